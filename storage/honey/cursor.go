package honey

import (
	"bytes"

	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/pkg/errors"
)

// Cursor allows ordered iteration over a sealed table. It reads through its own buffer, so
// several cursors may be used over one table, one goroutine each.
//
// A new cursor is positioned before the first entry; Next moves it onto the first one.
type Cursor struct {
	table *Table
	dec   entryDecoder

	started    bool
	isAfterEnd bool

	currentKey   []byte
	currentTag   []byte
	tagRead      bool
	rawRead      bool
	isCompressed bool
}

// CurrentKey returns the key of the current entry, or nil before the first entry and after
// the end.
func (me *Cursor) CurrentKey() []byte {
	return me.currentKey
}

// CurrentTag returns the value read by the last ReadTag call.
func (me *Cursor) CurrentTag() []byte {
	return me.currentTag
}

// IsCompressed reports whether the current entry's value is stored compressed.
func (me *Cursor) IsCompressed() bool {
	return me.isCompressed
}

func (me *Cursor) AfterEnd() bool {
	return me.isAfterEnd
}

// Rewind moves the cursor back before the first entry.
func (me *Cursor) Rewind() {
	me.started = false
	me.isAfterEnd = me.dec.file == nil
	me.clearCurrent()
}

// Next advances to the next entry and reports whether there was one.
func (me *Cursor) Next() (bool, error) {
	if err := me.checkTable(); err != nil {
		return false, err
	}
	if me.isAfterEnd {
		return false, nil
	}
	if !me.started {
		me.dec.reset(me.table.offset, nil)
		me.started = true
	}

	key, ok, err := me.dec.readKey()
	if err != nil {
		return false, err
	}
	if !ok {
		me.setAfterEnd()
		return false, nil
	}
	me.setCurrent(key)
	return true, nil
}

// FindEntry positions the cursor on the first entry >= key and reports whether it is an
// exact match. When every key is smaller the cursor ends up after the end.
func (me *Cursor) FindEntry(key []byte) (exact bool, _ error) {
	if err := me.checkTable(); err != nil {
		return false, err
	}
	if me.dec.file == nil {
		return false, nil
	}
	if len(key) == 0 {
		me.Rewind()
		_, err := me.Next()
		return false, err
	}

	rs, err := me.table.region().resolve(me.dec.file, key)
	if err != nil {
		return false, err
	}
	current, err := me.dec.resync(rs)
	if err != nil {
		return false, err
	}
	me.started = true
	me.isAfterEnd = false

	found, ok, err := me.dec.scanTo(key, current)
	if err != nil {
		return false, err
	}
	if !ok {
		me.setAfterEnd()
		return false, nil
	}
	me.setCurrent(found)
	return bytes.Equal(found, key), nil
}

// ReadTag reads the current entry's value into CurrentTag, decompressing it if needed.
// Reading the same entry's value twice is a no-op. It fails once ReadRawTag has consumed the
// value.
func (me *Cursor) ReadTag() error {
	if me.rawRead {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "value already read raw")
	}
	if me.tagRead {
		return nil
	}
	if err := me.checkTable(); err != nil {
		return err
	}
	if me.currentKey == nil {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "cursor is not on an entry")
	}
	tag, err := me.table.readValue(&me.dec)
	if err != nil {
		return err
	}
	me.currentTag = tag
	me.tagRead = true
	return nil
}

// ReadRawTag returns the current entry's value as stored, without decompressing it.
func (me *Cursor) ReadRawTag() (tag []byte, isCompressed bool, _ error) {
	if me.tagRead {
		return nil, false, errors.Wrap(honeyerrors.ErrInvalidArgument, "value already read")
	}
	if err := me.checkTable(); err != nil {
		return nil, false, err
	}
	if me.currentKey == nil {
		return nil, false, errors.Wrap(honeyerrors.ErrInvalidArgument, "cursor is not on an entry")
	}
	tag, err := me.dec.readVal()
	if err != nil {
		return nil, false, err
	}
	me.tagRead = true
	me.rawRead = true
	me.currentTag = nil
	return tag, me.isCompressed, nil
}

// checkTable fails once the table was closed permanently; the cursor shares its descriptor.
func (me *Cursor) checkTable() error {
	if me.table.file.WasForceClosed() {
		return errors.Wrapf(honeyerrors.ErrClosed, "table %q", me.table.path)
	}
	return nil
}

func (me *Cursor) setCurrent(key []byte) {
	me.currentKey = key
	me.currentTag = nil
	me.tagRead = false
	me.rawRead = false
	me.isCompressed = me.dec.value.IsCompressed
}

func (me *Cursor) setAfterEnd() {
	me.isAfterEnd = true
	me.clearCurrent()
}

func (me *Cursor) clearCurrent() {
	me.currentKey = nil
	me.currentTag = nil
	me.tagRead = false
	me.rawRead = false
	me.isCompressed = false
}
