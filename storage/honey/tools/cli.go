package main

import (
	"context"
	"os"

	"github.com/navijation/honeytable/util/log"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "honey_tools",
		Usage: "build, inspect and merge honey tables",
		Commands: []*cli.Command{
			{
				Name:      "construct",
				Usage:     "build a table from \"key: value\" lines read on stdin",
				ArgsUsage: "table_path",
				Action:    constructTable,
				Flags:     append(commonFlags(), tableFlags()...),
			},
			{
				Name:      "visualize",
				Usage:     "print a table's root, index and entries",
				ArgsUsage: "table_path",
				Action:    visualizeTable,
				Flags:     commonFlags(),
			},
			{
				Name:      "get",
				Usage:     "look a key up",
				ArgsUsage: "table_path key",
				Action:    getEntry,
				Flags: append(commonFlags(), &cli.StringFlag{
					Name:  "table",
					Usage: "read table_path as a container and look in the named table",
				}),
			},
			{
				Name:      "merge",
				Usage:     "merge tables into a new one; later sources win on equal keys",
				ArgsUsage: "dest_path src_path1 [src_path2 ...]",
				Action:    mergeTables,
				Flags:     append(commonFlags(), tableFlags()...),
			},
			{
				Name:      "pack",
				Usage:     "copy tables into one container file, named after their files",
				ArgsUsage: "container_path src_path1 [src_path2 ...]",
				Action:    packTables,
				Flags:     append(commonFlags(), tableFlags()...),
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Logger().Fatal(err)
	}
}
