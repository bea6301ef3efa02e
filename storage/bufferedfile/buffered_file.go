// Package bufferedfile implements a positioned, single-buffer byte stream over a file
// descriptor, or over a region of a descriptor that is shared by several tables.
//
// A BufferedFile is either appending (write mode) or reading (read mode). In read mode the
// buffer is filled from its tail: after a refill of r bytes they occupy buf[cap-r:], and the
// next unread byte is always buf[cap-bufEnd]. Skipping forward over buffered bytes therefore
// only adjusts bufEnd and never touches the descriptor.
package bufferedfile

import (
	"io"
	"os"

	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/pkg/errors"
)

// BufferSize is the size of the internal buffer.
const BufferSize = 4096

// Descriptor is the subset of *os.File a BufferedFile needs.
type Descriptor interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
}

var _ Descriptor = (*os.File)(nil)

var (
	_ io.Writer     = (*BufferedFile)(nil)
	_ io.ByteWriter = (*BufferedFile)(nil)
	_ io.ByteReader = (*BufferedFile)(nil)
)

type BufferedFile struct {
	file        Descriptor
	forceClosed bool

	// In read mode pos is the offset just past the buffered bytes, in write mode the offset
	// where the buffered bytes will land.
	pos      int64
	readOnly bool
	bufEnd   int
	buf      [BufferSize]byte
}

// New wraps an already open descriptor, positioned at pos.
func New(file Descriptor, pos int64, readOnly bool) *BufferedFile {
	return &BufferedFile{
		file:     file,
		pos:      pos,
		readOnly: readOnly,
	}
}

// Open opens path for reading, or creates (truncating) it for writing. The raw OS error is
// returned so callers can tell an absent file apart from other failures.
func (me *BufferedFile) Open(path string, readOnly bool) error {
	var (
		file *os.File
		err  error
	)
	if readOnly {
		file, err = os.Open(path)
	} else {
		file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	if err != nil {
		return err
	}

	me.file = file
	me.forceClosed = false
	me.readOnly = readOnly
	me.pos = 0
	me.bufEnd = 0
	return nil
}

// Close releases the descriptor. Closing twice is a no-op.
func (me *BufferedFile) Close() error {
	if me.file == nil {
		return nil
	}
	err := me.file.Close()
	me.file = nil
	me.bufEnd = 0
	return errors.Wrap(err, "close")
}

// ForceClose closes the descriptor for good: later access reports honeyerrors.ErrClosed.
func (me *BufferedFile) ForceClose() error {
	err := me.Close()
	me.forceClosed = true
	return err
}

// Detach forgets a descriptor owned by someone else without closing it. A permanent detach
// behaves like ForceClose for later access.
func (me *BufferedFile) Detach(permanent bool) {
	me.file = nil
	me.bufEnd = 0
	me.forceClosed = permanent
}

func (me *BufferedFile) IsOpen() bool { return me.file != nil }

func (me *BufferedFile) WasForceClosed() bool { return me.forceClosed }

func (me *BufferedFile) IsReadOnly() bool { return me.readOnly }

// Buffered returns the number of bytes currently held in the buffer.
func (me *BufferedFile) Buffered() int { return me.bufEnd }

// Pos returns the logical stream offset.
func (me *BufferedFile) Pos() int64 {
	if me.readOnly {
		return me.pos - int64(me.bufEnd)
	}
	return me.pos + int64(me.bufEnd)
}

// SetPos moves to offset. Pending writes are flushed first; in read mode the buffer is
// dropped even when offset is close by.
func (me *BufferedFile) SetPos(offset int64) error {
	if !me.readOnly {
		if err := me.Flush(); err != nil {
			return err
		}
	}
	me.bufEnd = 0
	me.pos = offset
	return nil
}

// Skip discards the next n unread bytes. No I/O happens when n fits in the buffer.
func (me *BufferedFile) Skip(n int64) error {
	if !me.readOnly {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "skip on a file open for writing")
	}
	if n < 0 {
		return errors.Wrapf(honeyerrors.ErrInvalidArgument, "negative skip %d", n)
	}
	if n > int64(me.bufEnd) {
		me.pos += n - int64(me.bufEnd)
		me.bufEnd = 0
	} else {
		me.bufEnd -= int(n)
	}
	return nil
}

// Rewind switches to read mode at start, discarding whatever is buffered.
func (me *BufferedFile) Rewind(start int64) {
	me.readOnly = true
	me.pos = start
	me.bufEnd = 0
}

// Clone returns an independent reader over the same descriptor at the current position.
func (me *BufferedFile) Clone() (*BufferedFile, error) {
	if !me.readOnly {
		return nil, errors.Wrap(honeyerrors.ErrInvalidArgument, "clone of a file open for writing")
	}
	if err := me.checkOpen(); err != nil {
		return nil, err
	}
	return New(me.file, me.Pos(), true), nil
}

func (me *BufferedFile) WriteByte(c byte) error {
	if err := me.checkWritable(); err != nil {
		return err
	}
	if me.bufEnd == len(me.buf) {
		if err := me.Flush(); err != nil {
			return err
		}
	}
	me.buf[me.bufEnd] = c
	me.bufEnd++
	return nil
}

// Write buffers p, flushing when the buffer would overflow. Writes at least as large as
// the buffer bypass it.
func (me *BufferedFile) Write(p []byte) (n int, _ error) {
	if err := me.checkWritable(); err != nil {
		return 0, err
	}
	if me.bufEnd+len(p) <= len(me.buf) {
		copy(me.buf[me.bufEnd:], p)
		me.bufEnd += len(p)
		return len(p), nil
	}

	if err := me.Flush(); err != nil {
		return 0, err
	}
	if len(p) >= len(me.buf) {
		if err := me.writeAt(p); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	me.bufEnd = copy(me.buf[:], p)
	return len(p), nil
}

// Flush writes out buffered bytes. It is a no-op in read mode.
func (me *BufferedFile) Flush() error {
	if me.readOnly || me.bufEnd == 0 {
		return nil
	}
	if err := me.writeAt(me.buf[:me.bufEnd]); err != nil {
		return err
	}
	me.bufEnd = 0
	return nil
}

func (me *BufferedFile) Sync() error {
	if err := me.checkOpen(); err != nil {
		return err
	}
	return errors.Wrap(me.file.Sync(), "sync")
}

// ReadByte returns the next byte, or io.EOF at the end of the file.
func (me *BufferedFile) ReadByte() (byte, error) {
	if err := me.checkReadable(); err != nil {
		return 0, err
	}
	if me.bufEnd == 0 {
		if err := me.fill(); err != nil {
			return 0, err
		}
	}
	c := me.buf[len(me.buf)-me.bufEnd]
	me.bufEnd--
	return c, nil
}

// ReadFull fills p completely. Running out of data part way is io.ErrUnexpectedEOF; having
// no data at all is io.EOF.
func (me *BufferedFile) ReadFull(p []byte) error {
	if err := me.checkReadable(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}

	total := len(p)
	if me.bufEnd != 0 {
		start := len(me.buf) - me.bufEnd
		if len(p) <= me.bufEnd {
			copy(p, me.buf[start:start+len(p)])
			me.bufEnd -= len(p)
			return nil
		}
		copy(p, me.buf[start:])
		p = p[me.bufEnd:]
		me.bufEnd = 0
	}

	if len(p) < len(me.buf) {
		if err := me.fill(); err != nil {
			return shortRead(err, len(p) != total)
		}
		start := len(me.buf) - me.bufEnd
		if me.bufEnd < len(p) {
			me.bufEnd = 0
			return io.ErrUnexpectedEOF
		}
		copy(p, me.buf[start:start+len(p)])
		me.bufEnd -= len(p)
		return nil
	}

	n, err := me.file.ReadAt(p, me.pos)
	me.pos += int64(n)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		return shortRead(io.EOF, n != 0 || len(p) != total)
	}
	return errors.Wrap(err, "read")
}

// fill refills an empty buffer from pos, placing the bytes at its tail.
func (me *BufferedFile) fill() error {
	n, err := me.file.ReadAt(me.buf[:], me.pos)
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "read")
	}
	if n == 0 {
		return io.EOF
	}
	if n < len(me.buf) {
		copy(me.buf[len(me.buf)-n:], me.buf[:n])
	}
	me.pos += int64(n)
	me.bufEnd = n
	return nil
}

func (me *BufferedFile) writeAt(p []byte) error {
	n, err := me.file.WriteAt(p, me.pos)
	me.pos += int64(n)
	if err != nil {
		return errors.Wrap(err, "write")
	}
	if n != len(p) {
		return errors.Wrapf(io.ErrShortWrite, "wrote %d of %d bytes", n, len(p))
	}
	return nil
}

func shortRead(err error, partial bool) error {
	if err == io.EOF && partial {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (me *BufferedFile) checkOpen() error {
	if me.file != nil {
		return nil
	}
	if me.forceClosed {
		return honeyerrors.ErrClosed
	}
	return errors.Wrap(honeyerrors.ErrClosed, "file is not open")
}

func (me *BufferedFile) checkWritable() error {
	if err := me.checkOpen(); err != nil {
		return err
	}
	if me.readOnly {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "write to a file open for reading")
	}
	return nil
}

func (me *BufferedFile) checkReadable() error {
	if err := me.checkOpen(); err != nil {
		return err
	}
	if !me.readOnly {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "read from a file open for writing")
	}
	return nil
}
