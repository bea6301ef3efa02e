package honey

import (
	"io"

	"github.com/navijation/honeytable/util"
)

const rootReadOnlyFlag = 1

// RootInfo is the metadata a table hands to its owner at commit and gets back at open.
type RootInfo struct {
	// Root is the offset of the index, which is also the end of the entries. It is -1 for a
	// table that was never committed.
	Root int64
	// NumEntries is the number of entries in the table.
	NumEntries uint64
	// CompressMin is the value size above which values are compressed; 0 disables
	// compression.
	CompressMin uint32
	// Offset is where the table starts within its file; non-zero inside a container.
	Offset int64
	// IndexSize is the length of the index region; 0 when unknown.
	IndexSize int64
	// IndexType is the index encoding that was written.
	IndexType IndexType
	// ReadOnly is set once the table is sealed.
	ReadOnly bool
}

// ____________________________________________________________________________________________
// | 8 bytes | 8 bytes     | 8 bytes      | 8 bytes | 8 bytes    | 8 bytes                       |
// |------------------------------------------------------------------------------------------|
// | root    | num entries | compress min | offset  | index size | index type << 8 | read only  |
// |------------------------------------------------------------------------------------------|
func (me *RootInfo) WriteTo(writer io.Writer) (n int64, _ error) {
	var flags uint64
	if me.ReadOnly {
		flags |= rootReadOnlyFlag
	}
	flags |= uint64(me.IndexType) << 8

	dn, err := util.WriteUint64s(writer,
		uint64(me.Root),
		me.NumEntries,
		uint64(me.CompressMin),
		uint64(me.Offset),
		uint64(me.IndexSize),
		flags,
	)
	return int64(dn), err
}

func (me *RootInfo) ReadFrom(reader io.Reader) (n int64, _ error) {
	var root, compressMin, offset, indexSize, flags uint64
	dn, err := util.ReadUint64s(reader, &root, &me.NumEntries, &compressMin, &offset, &indexSize, &flags)
	if err != nil {
		return int64(dn), err
	}

	me.Root = int64(root)
	me.CompressMin = uint32(compressMin)
	me.Offset = int64(offset)
	me.IndexSize = int64(indexSize)
	me.IndexType = IndexType(flags >> 8)
	me.ReadOnly = flags&rootReadOnlyFlag != 0
	return int64(dn), nil
}

func (me *RootInfo) SizeOf() int64 {
	return 6 * 8
}
