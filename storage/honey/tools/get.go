package main

import (
	"context"
	"fmt"

	"github.com/navijation/honeytable/storage/container"
	"github.com/navijation/honeytable/storage/honey"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

func getEntry(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("usage: get table_path key")
	}
	if _, err := setup(cmd); err != nil {
		return err
	}

	path, key := cmd.Args().Get(0), cmd.Args().Get(1)

	var table *honey.Table
	if name := cmd.String("table"); name != "" {
		c, err := container.Open(path)
		if err != nil {
			return err
		}
		defer c.Close(false)

		var exists bool
		table, exists, err = c.Table(name)
		if err != nil {
			return err
		}
		if !exists {
			return errors.Errorf("no table %q in %q", name, path)
		}
	} else {
		var err error
		table, err = openTable(path)
		if err != nil {
			return err
		}
		defer table.Close(false)
	}

	value, exists, err := table.GetExactEntry([]byte(key))
	if err != nil {
		return err
	}
	if !exists {
		return errors.Errorf("key %q not found", key)
	}
	fmt.Printf("%s\n", value)
	return nil
}
