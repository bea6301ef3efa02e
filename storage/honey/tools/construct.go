package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/navijation/honeytable/storage/honey"
	"github.com/navijation/honeytable/storage/keyvaluepair"
	"github.com/navijation/honeytable/util/log"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
)

func constructTable(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("usage: construct table_path")
	}
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	path := cmd.Args().First()
	if err := checkDest(cmd, path); err != nil {
		return err
	}
	args, err := createArgs(cmd, cfg.Table, path)
	if err != nil {
		return err
	}

	table, err := honey.Create(args)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	defer table.Close(false)

	var readErr error
	if err := table.AppendEntries(readEntries(os.Stdin, &readErr)); err != nil {
		return err
	}
	if readErr != nil {
		return readErr
	}

	root, err := commitTable(table)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d entries to %q, index at %d\n", root.NumEntries, path, root.Root)
	return nil
}

// readEntries yields one pair per "key: value" line. Lines without a colon are skipped with a
// warning; a read error ends the sequence and is stored in errOut.
func readEntries(reader io.Reader, errOut *error) iter.Seq[keyvaluepair.KeyValuePair] {
	return func(yield func(keyvaluepair.KeyValuePair) bool) {
		scanner := bufio.NewScanner(reader)
		for lineNumber := 1; scanner.Scan(); lineNumber++ {
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}

			key, value, ok := strings.Cut(line, ":")
			if !ok {
				log.Logger().Warnf("line %d: entry must be in \"key: value\" format", lineNumber)
				continue
			}

			kvp := keyvaluepair.KeyValuePair{
				Key:   []byte(strings.TrimSpace(key)),
				Value: []byte(strings.TrimSpace(value)),
			}
			if !yield(kvp) {
				return
			}
		}
		*errOut = scanner.Err()
	}
}
