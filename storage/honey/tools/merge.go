package main

import (
	"context"

	"github.com/navijation/honeytable/storage/honey"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

func mergeTables(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return errors.New("usage: merge dest_path src_path1 [src_path2 ...]")
	}
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	srcs, closeSrcs, err := openTables(cmd.Args().Slice()[1:])
	if err != nil {
		return err
	}
	defer closeSrcs()

	destPath := cmd.Args().First()
	if err := checkDest(cmd, destPath); err != nil {
		return err
	}
	args, err := createArgs(cmd, cfg.Table, destPath)
	if err != nil {
		return err
	}
	dest, err := honey.Create(args)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", destPath)
	}
	defer dest.Close(false)

	if err := dest.MergeTables(honey.MergeTablesArgs{Srcs: srcs}); err != nil {
		return err
	}
	if _, err := commitTable(dest); err != nil {
		return err
	}

	return visualizeTableHelper(dest)
}

// openTables opens every path; the returned function closes the ones that were opened.
func openTables(paths []string) (out []*honey.Table, closeAll func(), _ error) {
	closeAll = func() {
		for _, table := range out {
			_ = table.Close(false)
		}
	}
	for _, path := range paths {
		table, err := openTable(path)
		if err != nil {
			closeAll()
			return nil, nil, errors.Wrapf(err, "failed to open %q", path)
		}
		out = append(out, table)
	}
	return out, closeAll, nil
}
