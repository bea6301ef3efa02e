package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/navijation/honeytable/storage/container"
	"github.com/navijation/honeytable/storage/honey"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

func packTables(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return errors.New("usage: pack container_path src_path1 [src_path2 ...]")
	}
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	srcPaths := cmd.Args().Slice()[1:]
	srcs, closeSrcs, err := openTables(srcPaths)
	if err != nil {
		return err
	}
	defer closeSrcs()

	containerPath := cmd.Args().First()
	if err := checkDest(cmd, containerPath); err != nil {
		return err
	}
	args, err := createArgs(cmd, cfg.Table, containerPath)
	if err != nil {
		return err
	}

	builder, err := container.Create(containerPath)
	if err != nil {
		return err
	}
	defer builder.Close()

	for i, src := range srcs {
		table, err := builder.NewTable(args)
		if err != nil {
			return err
		}
		if err := table.MergeTables(honey.MergeTablesArgs{Srcs: []*honey.Table{src}}); err != nil {
			return err
		}

		name := filepath.Base(srcPaths[i])
		root, err := builder.Commit(name, table)
		if err != nil {
			return errors.Wrapf(err, "failed to add %q", name)
		}
		fmt.Printf("%s: %d entries at [%d, %d)\n", name, root.NumEntries, root.Offset, root.Root+root.IndexSize)
	}

	if err := builder.Close(); err != nil {
		return err
	}
	fmt.Printf("container %s written to %q\n", builder.ID(), containerPath)
	return nil
}
