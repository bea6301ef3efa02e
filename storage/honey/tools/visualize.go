package main

import (
	"context"
	"fmt"

	"github.com/navijation/honeytable/storage/honey"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

func visualizeTable(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("usage: visualize table_path")
	}
	if _, err := setup(cmd); err != nil {
		return err
	}

	path := cmd.Args().First()
	table, err := openTable(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %q", path)
	}
	defer table.Close(false)

	return visualizeTableHelper(table)
}

func visualizeTableHelper(table *honey.Table) error {
	root := table.RootInfo()
	fmt.Printf(
		"Root\n"+
			"  Offset: %d\n"+
			"  Root: %d\n"+
			"  Entries: %d\n"+
			"  Compress Min: %d\n\n",
		root.Offset,
		root.Root,
		root.NumEntries,
		root.CompressMin,
	)

	points, err := table.IndexPoints()
	if err != nil {
		return errors.Wrap(err, "failed to read index")
	}
	fmt.Printf(
		"Index\n"+
			"  Type: %s\n"+
			"  Size: %d\n"+
			"  Index Points:\n",
		root.IndexType,
		root.IndexSize,
	)
	for _, point := range points {
		fmt.Printf("   - %q -> @%d\n", point.Key, point.Offset)
	}

	fmt.Printf("\n" + "Entries:\n")
	if err := table.Rewind(); err != nil {
		return err
	}
	for entryNumber := 0; ; entryNumber++ {
		key, header, ok, err := table.ReadKey()
		if err != nil {
			return errors.Wrap(err, "failed to read table entry")
		}
		if !ok {
			break
		}
		raw, err := table.ReadVal()
		if err != nil {
			return errors.Wrap(err, "failed to read table entry")
		}

		compressed := ""
		if header.IsCompressed {
			compressed = ", compressed"
		}
		fmt.Printf("  - #%d: %q -> %q (%d bytes%s)\n", entryNumber, key, preview(raw, header.IsCompressed), header.Size, compressed)
	}

	return nil
}

func preview(raw []byte, isCompressed bool) string {
	const limit = 40
	if isCompressed {
		return "..."
	}
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}
