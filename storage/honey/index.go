package honey

import (
	"encoding/binary"
	"math"

	"github.com/navijation/honeytable/storage/bufferedfile"
	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/navijation/honeytable/storage/keyvaluepair"
	"github.com/navijation/honeytable/util"
	"github.com/pkg/errors"
)

// IndexType selects the on-disk encoding of a table's sparse index. The value is also the
// selector byte that starts the index region.
type IndexType byte

const (
	// IndexArray maps each leading key byte to the first entry starting with it.
	IndexArray IndexType = 0x00
	// IndexBinaryChop stores fixed-width (truncated key, offset) records searched by bisection.
	IndexBinaryChop IndexType = 0x01
	// IndexSkipList stores a front-coded chain of (key, offset) points read in order.
	IndexSkipList IndexType = 0x02
)

const (
	// DefaultIndexBlockSize is the approximate span of entry bytes between two index points
	// of the binary chop and skiplist encodings.
	DefaultIndexBlockSize int64 = 1024

	// binaryChopKeySize is the number of leading key bytes kept in a binary chop record.
	binaryChopKeySize = 4
	// keylen(1) key(binaryChopKeySize) offset(4)
	binaryChopRecordSize = 1 + binaryChopKeySize + 4
)

func (me IndexType) IsValid() bool {
	return me <= IndexSkipList
}

func (me IndexType) String() string {
	switch me {
	case IndexArray:
		return "array"
	case IndexBinaryChop:
		return "binary-chop"
	case IndexSkipList:
		return "skiplist"
	default:
		return "unknown"
	}
}

// ParseIndexType is the inverse of IndexType.String.
func ParseIndexType(name string) (IndexType, error) {
	for _, t := range []IndexType{IndexArray, IndexBinaryChop, IndexSkipList} {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, errors.Wrapf(honeyerrors.ErrInvalidArgument, "unknown index type %q", name)
}

// IndexStats describes an index that was just written.
type IndexStats struct {
	Path       string
	Type       IndexType
	Points     int
	Size       int64
	NumEntries uint64
}

// indexWriter collects index points while entries are appended and serializes them once the
// entries are complete.
type indexWriter interface {
	// maxReuse is asked before the entry starting at pos is written and caps the prefix it
	// may share with the previous key.
	maxReuse(key []byte, pos int64) int
	// maybeAddEntry is told about every entry: where it starts and where its value header
	// starts. first is set for the entry that opens the table.
	maybeAddEntry(key []byte, pos, valuePos int64, first bool)
	writeTo(file *bufferedfile.BufferedFile) (root int64, _ error)
	numPoints() int
}

func newIndexWriter(indexType IndexType, base, blockSize int64) indexWriter {
	switch indexType {
	case IndexBinaryChop:
		return &binaryChopIndexWriter{base: base, blockSize: blockSize, lastBlock: -1}
	case IndexSkipList:
		return &skipListIndexWriter{base: base, blockSize: blockSize}
	default:
		return &arrayIndexWriter{base: base}
	}
}

func checkOffsetWidth(ptr int64) error {
	if ptr > math.MaxUint32 {
		return errors.Wrapf(honeyerrors.ErrInvalidArgument, "index offset %d needs more than 4 bytes", ptr)
	}
	return nil
}

// ------------------------------------------------------------------------------------------

// Array layout:
// __________________________________________________________________
// | 0x00 | first (1) | last-first (1) | offset (4) x (last-first+1) |
// |----------------------------------------------------------------|
//
// Each offset addresses a complete key: the first entry of the table, or the byte after the
// (always zero) reuse byte of the first entry with that leading byte. Gaps between leading
// bytes point at the next leading byte that does occur.
type arrayIndexWriter struct {
	base     int64
	pointers [256]int64
	started  bool
	first    byte
	last     byte
	points   int
}

func (me *arrayIndexWriter) maxReuse([]byte, int64) int {
	return keyvaluepair.MaxKeySize
}

func (me *arrayIndexWriter) maybeAddEntry(key []byte, pos, _ int64, first bool) {
	initial := key[0]
	ptr := pos
	if !first {
		ptr++
	}

	if !me.started {
		me.started = true
		me.first = initial
	} else if initial == me.last {
		return
	} else {
		for b := int(me.last) + 1; b < int(initial); b++ {
			me.pointers[b] = ptr
		}
	}

	me.pointers[initial] = ptr
	me.last = initial
	me.points++
}

func (me *arrayIndexWriter) writeTo(file *bufferedfile.BufferedFile) (root int64, _ error) {
	if !me.started {
		me.first, me.last = 0, 0
		me.pointers[0] = me.base
	}

	data := make([]byte, 3, 3+4*(int(me.last-me.first)+1))
	data[0] = byte(IndexArray)
	data[1] = me.first
	data[2] = me.last - me.first
	for b := int(me.first); b <= int(me.last); b++ {
		if err := checkOffsetWidth(me.pointers[b]); err != nil {
			return -1, err
		}
		word := util.Uint32ToWord32(uint32(me.pointers[b]))
		data = append(data, word[:]...)
	}

	root = file.Pos()
	if _, err := file.Write(data); err != nil {
		return -1, err
	}
	return root, nil
}

func (me *arrayIndexWriter) numPoints() int { return me.points }

// ------------------------------------------------------------------------------------------

// Binary chop layout:
// _______________________________________________________________________________
// | 0x01 | count (4) | keylen (1) | key (4, zero padded) | offset (4) | ...      |
// |-----------------------------------------------------------------------------|
//
// A record is written for the first entry and for the first entry starting in each later
// index block. The record offset addresses the start of the entry, whose reuse was capped at
// the record key length, so the record key is enough context to decode it.
type binaryChopIndexWriter struct {
	base      int64
	blockSize int64
	lastBlock int64
	records   []byte
	count     int
	err       error
}

func (me *binaryChopIndexWriter) isPoint(pos int64) bool {
	return (pos-me.base)/me.blockSize != me.lastBlock
}

func (me *binaryChopIndexWriter) maxReuse(key []byte, pos int64) int {
	if me.isPoint(pos) {
		return min(len(key), binaryChopKeySize)
	}
	return keyvaluepair.MaxKeySize
}

func (me *binaryChopIndexWriter) maybeAddEntry(key []byte, pos, _ int64, _ bool) {
	if !me.isPoint(pos) {
		return
	}
	me.lastBlock = (pos - me.base) / me.blockSize

	if err := checkOffsetWidth(pos); err != nil && me.err == nil {
		me.err = err
	}

	var record [binaryChopRecordSize]byte
	truncated := key[:min(len(key), binaryChopKeySize)]
	record[0] = byte(len(truncated))
	copy(record[1:], truncated)
	binary.BigEndian.PutUint32(record[1+binaryChopKeySize:], uint32(pos))
	me.records = append(me.records, record[:]...)
	me.count++
}

func (me *binaryChopIndexWriter) writeTo(file *bufferedfile.BufferedFile) (root int64, _ error) {
	if me.err != nil {
		return -1, me.err
	}

	root = file.Pos()
	header := [5]byte{byte(IndexBinaryChop)}
	binary.BigEndian.PutUint32(header[1:], uint32(me.count))
	if _, err := file.Write(header[:]); err != nil {
		return -1, err
	}
	if _, err := file.Write(me.records); err != nil {
		return -1, err
	}
	return root, nil
}

func (me *binaryChopIndexWriter) numPoints() int { return me.count }

// ------------------------------------------------------------------------------------------

// Skiplist layout:
// _____________________________________________________________________________
// | 0x02 | reuse (1) | suffix size (1) | suffix | offset (varint) | ...       |
// |---------------------------------------------------------------------------|
//
// Keys are front coded against the previous index key. Offsets address the value header
// that follows the complete key, so a reader adopts the index key as its decode context.
// No point is made in the first index block.
//
// TODO: chain a coarser parent index over this one for very large tables.
type skipListIndexWriter struct {
	base         int64
	blockSize    int64
	lastBlock    int64
	data         []byte
	lastIndexKey []byte
	points       int
}

func (me *skipListIndexWriter) maxReuse([]byte, int64) int {
	return keyvaluepair.MaxKeySize
}

func (me *skipListIndexWriter) maybeAddEntry(key []byte, _, valuePos int64, _ bool) {
	block := (valuePos - me.base) / me.blockSize
	if block == me.lastBlock {
		return
	}

	reuse := keyvaluepair.CommonPrefixLength(me.lastIndexKey, key)
	me.data = append(me.data, byte(reuse), byte(len(key)-reuse))
	me.data = append(me.data, key[reuse:]...)
	me.data = binary.AppendUvarint(me.data, uint64(valuePos))

	me.lastBlock = block
	me.lastIndexKey = append(me.lastIndexKey[:0], key...)
	me.points++
}

func (me *skipListIndexWriter) writeTo(file *bufferedfile.BufferedFile) (root int64, _ error) {
	root = file.Pos()
	if err := file.WriteByte(byte(IndexSkipList)); err != nil {
		return -1, err
	}
	if _, err := file.Write(me.data); err != nil {
		return -1, err
	}
	return root, nil
}

func (me *skipListIndexWriter) numPoints() int { return me.points }
