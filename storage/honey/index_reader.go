package honey

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/navijation/honeytable/storage/bufferedfile"
	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/navijation/honeytable/util"
	"github.com/pkg/errors"
)

// indexRegion locates a table's index within its file.
type indexRegion struct {
	base int64 // first entry
	root int64 // first index byte, also the end of the entries
	end  int64 // end of the index, or -1 when it runs to the end of the file
}

// resync is where a lookup resumes decoding after consulting the index.
type resync struct {
	// absent is set when the index proves the key is not stored. pos and lastKey still
	// describe a valid place for an ordered scan to continue from.
	absent  bool
	pos     int64
	lastKey []byte
	// atValue is set when pos addresses the value header of the entry whose key is lastKey.
	atValue bool
}

// IndexPoint is one decoded index point.
type IndexPoint struct {
	Key    []byte
	Offset int64
}

// resolve reads the index selector at the root and jumps to a point at or before the first
// entry >= key, restoring the decode context the writer used there.
func (me indexRegion) resolve(file *bufferedfile.BufferedFile, key []byte) (out resync, _ error) {
	file.Rewind(me.root)
	selector, err := file.ReadByte()
	if err == io.EOF {
		return resync{absent: true, pos: me.base}, nil
	} else if err != nil {
		return out, err
	}

	switch IndexType(selector) {
	case IndexArray:
		return me.resolveArray(file, key)
	case IndexBinaryChop:
		return me.resolveBinaryChop(file, key)
	case IndexSkipList:
		return me.resolveSkipList(file, key)
	default:
		return out, errors.Wrapf(honeyerrors.ErrCorrupt, "unknown index type 0x%02x", selector)
	}
}

func (me indexRegion) resolveArray(file *bufferedfile.BufferedFile, key []byte) (out resync, _ error) {
	var header [2]byte
	if err := file.ReadFull(header[:]); err != nil {
		return out, indexCorrupt(err)
	}
	first, span := header[0], header[1]

	if key[0] < first {
		return resync{absent: true, pos: me.base}, nil
	}
	delta := key[0] - first
	if delta > span {
		return resync{absent: true, pos: me.root}, nil
	}

	if err := file.Skip(int64(delta) * 4); err != nil {
		return out, err
	}
	jump, err := me.readOffset(file)
	if err != nil {
		return out, err
	}
	// The jump target is the first key with this leading byte (or the table start), written
	// without any prefix to reuse.
	return resync{pos: jump}, nil
}

type binaryChopRecord struct {
	key    []byte
	offset int64
}

func (me indexRegion) resolveBinaryChop(file *bufferedfile.BufferedFile, key []byte) (out resync, _ error) {
	count, err := readCount(file)
	if err != nil {
		return out, err
	}
	if count == 0 {
		return resync{absent: true, pos: me.base}, nil
	}
	recordsStart := file.Pos()

	target := key[:min(len(key), binaryChopKeySize)]

	var searchErr error
	readRecord := func(i int) (rec binaryChopRecord) {
		if searchErr != nil {
			return rec
		}
		rec, searchErr = me.readBinaryChopRecord(file, recordsStart+int64(i)*binaryChopRecordSize)
		return rec
	}

	// The records before i are the ones whose full key is known to be <= key from the
	// truncated bytes alone: a strictly smaller truncated key, or an equal one that is the
	// whole key.
	i := sort.Search(count, func(i int) bool {
		rec := readRecord(i)
		switch bytes.Compare(rec.key, target) {
		case -1:
			return false
		case 0:
			return len(rec.key) == binaryChopKeySize
		default:
			return true
		}
	}) - 1
	if searchErr != nil {
		return out, searchErr
	}
	if i < 0 {
		return resync{pos: me.base}, nil
	}

	rec := readRecord(i)
	if searchErr != nil {
		return out, searchErr
	}
	if rec.offset == me.base {
		return resync{pos: rec.offset}, nil
	}
	return resync{pos: rec.offset, lastKey: rec.key}, nil
}

func (me indexRegion) readBinaryChopRecord(file *bufferedfile.BufferedFile, pos int64) (rec binaryChopRecord, _ error) {
	if err := file.SetPos(pos); err != nil {
		return rec, err
	}
	var raw [binaryChopRecordSize]byte
	if err := file.ReadFull(raw[:]); err != nil {
		return rec, indexCorrupt(err)
	}
	keySize := int(raw[0])
	if keySize == 0 || keySize > binaryChopKeySize {
		return rec, errors.Wrapf(honeyerrors.ErrCorrupt, "binary chop record key size %d", keySize)
	}
	rec.key = append([]byte(nil), raw[1:1+keySize]...)
	rec.offset = int64(binary.BigEndian.Uint32(raw[1+binaryChopKeySize:]))
	if err := me.checkJump(rec.offset); err != nil {
		return rec, err
	}
	return rec, nil
}

func (me indexRegion) resolveSkipList(file *bufferedfile.BufferedFile, key []byte) (out resync, _ error) {
	var (
		indexKey, bestKey []byte
		bestPtr           int64
		found             bool
	)
	for me.end < 0 || file.Pos() < me.end {
		point, more, err := readSkipListPoint(file, indexKey)
		if err != nil {
			return out, err
		}
		if !more {
			break
		}
		indexKey = point.Key

		cmp := bytes.Compare(indexKey, key)
		if cmp > 0 {
			break
		}
		if err := me.checkValuePos(point.Offset); err != nil {
			return out, err
		}
		bestKey, bestPtr, found = indexKey, point.Offset, true
		if cmp == 0 {
			break
		}
	}

	if !found {
		return resync{pos: me.base}, nil
	}
	return resync{pos: bestPtr, lastKey: bestKey, atValue: true}, nil
}

// readSkipListPoint decodes the next point of a skiplist index; more is false at the end
// of the file.
func readSkipListPoint(file *bufferedfile.BufferedFile, lastKey []byte) (point IndexPoint, more bool, _ error) {
	reuse, err := file.ReadByte()
	if err == io.EOF {
		return point, false, nil
	} else if err != nil {
		return point, false, err
	}
	size, err := file.ReadByte()
	if err != nil {
		return point, false, indexCorrupt(err)
	}
	if int(reuse) > len(lastKey) {
		return point, false, errors.Wrapf(honeyerrors.ErrCorrupt,
			"index key reuses %d bytes of a %d byte key", reuse, len(lastKey))
	}

	point.Key = make([]byte, int(reuse)+int(size))
	copy(point.Key, lastKey[:reuse])
	if err := file.ReadFull(point.Key[reuse:]); err != nil {
		return point, false, indexCorrupt(err)
	}

	ptr, err := binary.ReadUvarint(file)
	if err != nil {
		return point, false, indexCorrupt(err)
	}
	point.Offset = int64(ptr)
	return point, true, nil
}

// points decodes every index point, in order.
func (me indexRegion) points(file *bufferedfile.BufferedFile) (out []IndexPoint, _ error) {
	file.Rewind(me.root)
	selector, err := file.ReadByte()
	if err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	switch IndexType(selector) {
	case IndexArray:
		var header [2]byte
		if err := file.ReadFull(header[:]); err != nil {
			return nil, indexCorrupt(err)
		}
		for i := 0; i <= int(header[1]); i++ {
			ptr, err := me.readOffset(file)
			if err != nil {
				return nil, err
			}
			out = append(out, IndexPoint{Key: []byte{header[0] + byte(i)}, Offset: ptr})
		}
	case IndexBinaryChop:
		count, err := readCount(file)
		if err != nil {
			return nil, err
		}
		start := file.Pos()
		for i := 0; i < count; i++ {
			rec, err := me.readBinaryChopRecord(file, start+int64(i)*binaryChopRecordSize)
			if err != nil {
				return nil, err
			}
			out = append(out, IndexPoint{Key: rec.key, Offset: rec.offset})
		}
	case IndexSkipList:
		var lastKey []byte
		for me.end < 0 || file.Pos() < me.end {
			point, more, err := readSkipListPoint(file, lastKey)
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
			out = append(out, point)
			lastKey = point.Key
		}
	default:
		return nil, errors.Wrapf(honeyerrors.ErrCorrupt, "unknown index type 0x%02x", selector)
	}
	return out, nil
}

func readCount(file *bufferedfile.BufferedFile) (int, error) {
	var word util.Word32
	if err := file.ReadFull(word[:]); err != nil {
		return 0, indexCorrupt(err)
	}
	return int(word.Uint32()), nil
}

func (me indexRegion) readOffset(file *bufferedfile.BufferedFile) (int64, error) {
	var word util.Word32
	if err := file.ReadFull(word[:]); err != nil {
		return 0, indexCorrupt(err)
	}
	ptr := int64(word.Uint32())
	if err := me.checkJump(ptr); err != nil {
		return 0, err
	}
	return ptr, nil
}

// checkJump rejects offsets outside the entries. The root itself is allowed: it is where a
// scan ends immediately.
func (me indexRegion) checkJump(ptr int64) error {
	if ptr < me.base || ptr > me.root {
		return errors.Wrapf(honeyerrors.ErrCorrupt, "index offset %d outside entries [%d, %d)", ptr, me.base, me.root)
	}
	return nil
}

func (me indexRegion) checkValuePos(ptr int64) error {
	if ptr <= me.base || ptr >= me.root {
		return errors.Wrapf(honeyerrors.ErrCorrupt, "index offset %d outside entries [%d, %d)", ptr, me.base, me.root)
	}
	return nil
}

func indexCorrupt(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(honeyerrors.ErrCorrupt, "unexpected end of index")
	}
	return err
}
