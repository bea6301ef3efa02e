package main

import (
	"os"

	"github.com/navijation/honeytable/storage/honey"
	"github.com/pkg/errors"
)

// The root metadata of a table built here is kept next to it, in <path>.root.
func rootPath(tablePath string) string {
	return tablePath + ".root"
}

func writeRoot(tablePath string, root honey.RootInfo) error {
	file, err := os.Create(rootPath(tablePath))
	if err != nil {
		return errors.Wrap(err, "failed to create root file")
	}
	defer file.Close()

	if _, err := root.WriteTo(file); err != nil {
		return errors.Wrapf(err, "failed to write %q", rootPath(tablePath))
	}
	return errors.Wrap(file.Sync(), "failed to sync root file")
}

func readRoot(tablePath string) (out honey.RootInfo, _ error) {
	file, err := os.Open(rootPath(tablePath))
	if err != nil {
		return out, errors.Wrap(err, "failed to open root file")
	}
	defer file.Close()

	if _, err := out.ReadFrom(file); err != nil {
		return out, errors.Wrapf(err, "failed to read %q", rootPath(tablePath))
	}
	return out, nil
}

// openTable opens a table built by construct or merge.
func openTable(tablePath string) (*honey.Table, error) {
	root, err := readRoot(tablePath)
	if err != nil {
		return nil, err
	}
	return honey.Open(honey.OpenArgs{Path: tablePath}, root)
}

// commitTable seals table and records its root next to it.
func commitTable(table *honey.Table) (honey.RootInfo, error) {
	root, err := table.Commit()
	if err != nil {
		return root, err
	}
	if err := table.Sync(); err != nil {
		return root, err
	}
	return root, writeRoot(table.Path(), root)
}
