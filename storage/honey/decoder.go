package honey

import (
	"bytes"
	"io"

	"github.com/navijation/honeytable/storage/bufferedfile"
	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/navijation/honeytable/storage/keyvaluepair"
	"github.com/pkg/errors"
)

// entryDecoder replays front-coded entries from a read-only file. lastKey is the resync
// context: the key the next entry was front coded against.
type entryDecoder struct {
	file    *bufferedfile.BufferedFile
	root    int64
	lastKey []byte

	// header of the value following lastKey, when pending
	value   keyvaluepair.ValueHeader
	pending bool
}

func (me *entryDecoder) reset(pos int64, lastKey []byte) {
	me.file.Rewind(pos)
	me.lastKey = lastKey
	me.value = keyvaluepair.ValueHeader{}
	me.pending = false
}

// resync moves to where the index pointed. When the index addressed a value header, the
// entry it belongs to becomes the current one and its key is returned.
func (me *entryDecoder) resync(rs resync) (current []byte, _ error) {
	me.reset(rs.pos, rs.lastKey)
	if !rs.atValue {
		return nil, nil
	}
	if err := me.readValueHeader(); err != nil {
		return nil, err
	}
	return me.lastKey, nil
}

// readKey decodes the next key, skipping the value of the previous entry if it was not read.
// ok is false once the entries are exhausted.
func (me *entryDecoder) readKey() (key []byte, ok bool, _ error) {
	if me.pending {
		if err := me.file.Skip(int64(me.value.Size)); err != nil {
			return nil, false, err
		}
		me.pending = false
	}

	pos := me.file.Pos()
	if pos >= me.root {
		return nil, false, nil
	}

	key, err := keyvaluepair.ReadKey(me.file, me.lastKey)
	if err == io.EOF {
		return nil, false, errors.Wrapf(honeyerrors.ErrCorrupt, "entries end at %d before root %d", pos, me.root)
	} else if err != nil {
		return nil, false, err
	}
	me.lastKey = key

	if err := me.readValueHeader(); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

func (me *entryDecoder) readValueHeader() error {
	header, err := keyvaluepair.ReadValueHeader(me.file)
	if err != nil {
		return err
	}
	if remaining := me.root - me.file.Pos(); header.Size > uint64(max(remaining, 0)) {
		return errors.Wrapf(honeyerrors.ErrCorrupt, "value of %d bytes runs past the entries", header.Size)
	}
	me.value = header
	me.pending = true
	return nil
}

// readVal reads the raw bytes of the value following the last decoded key.
func (me *entryDecoder) readVal() ([]byte, error) {
	if !me.pending {
		return nil, errors.Wrap(honeyerrors.ErrInvalidArgument, "no value to read")
	}
	val := make([]byte, me.value.Size)
	if err := me.file.ReadFull(val); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errors.Wrap(honeyerrors.ErrCorrupt, "unexpected end of data reading value")
		}
		return nil, err
	}
	me.pending = false
	return val, nil
}

// scanTo decodes forward until the first key >= target, starting with current if set. ok is
// false when no such key exists.
func (me *entryDecoder) scanTo(target, current []byte) (key []byte, ok bool, _ error) {
	key = current
	for key == nil || bytes.Compare(key, target) < 0 {
		next, ok, err := me.readKey()
		if err != nil || !ok {
			return nil, false, err
		}
		key = next
	}
	return key, true, nil
}
