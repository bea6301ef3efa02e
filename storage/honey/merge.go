package honey

import (
	"bytes"

	"github.com/navijation/honeytable/util/heap"
)

type MergeTablesArgs struct {
	Srcs []*Table
}

type mergeSource struct {
	cursor      *Cursor
	tableNumber int
}

// MergeTables appends every entry of the sealed source tables to this table in key order.
// When several sources hold the same key the one listed last wins. Compressed values are
// copied as they are.
func (me *Table) MergeTables(args MergeTablesArgs) error {
	sources := heap.NewHeap(func(a, b *mergeSource) int {
		// pick lower keys first, and upon ties pick the later tables first; this ensures
		// later writes win
		if cmp := bytes.Compare(a.cursor.CurrentKey(), b.cursor.CurrentKey()); cmp != 0 {
			return cmp
		}
		return b.tableNumber - a.tableNumber
	})

	for i, src := range args.Srcs {
		cursor, err := src.Cursor()
		if err != nil {
			return err
		}
		hasNext, err := cursor.Next()
		if err != nil {
			return err
		}
		if hasNext {
			sources.Push(&mergeSource{cursor: cursor, tableNumber: i})
		}
	}

	var lastKey []byte
	for sources.Size() > 0 {
		source := sources.Peek()

		// don't rewrite keys that were already written
		if key := source.cursor.CurrentKey(); lastKey == nil || !bytes.Equal(key, lastKey) {
			tag, isCompressed, err := source.cursor.ReadRawTag()
			if err != nil {
				return err
			}
			if err := me.Add(key, tag, isCompressed); err != nil {
				return err
			}
			lastKey = key
		}

		hasNext, err := source.cursor.Next()
		if err != nil {
			return err
		}
		if hasNext {
			sources.ReplaceTop(source)
		} else {
			sources.Pop()
		}
	}

	return nil
}
