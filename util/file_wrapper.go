package util

import (
	"errors"
	"io"
	"os"
)

var _ io.ReadWriteSeeker = (*FileWrapper)(nil)

// FileWrapper is a utility class that can be used to read a file starting at an offset.
// More importantly, compared to a regular os.File, it uses `ReadAt` consistently, which
// does not mutate the underlying file descriptor state, allowing multiple readers and writers
// to be safely created over a single file (e.g. several tables sharing one container file).
type FileWrapper struct {
	file   *os.File
	offset int64
}

func NewFileWrapperAt(file *os.File, offset int64) FileWrapper {
	return FileWrapper{
		file:   file,
		offset: offset,
	}
}

func (me *FileWrapper) Read(b []byte) (n int, err error) {
	n, err = me.file.ReadAt(b, me.offset)
	me.offset += int64(n)
	return n, err
}

func (me *FileWrapper) Write(b []byte) (n int, err error) {
	n, err = me.file.WriteAt(b, me.offset)
	me.offset += int64(n)
	return n, err
}

func (me *FileWrapper) Seek(offset int64, whence int) (ret int64, err error) {
	switch whence {
	case io.SeekCurrent:
		me.offset += offset
	case io.SeekStart:
		me.offset = offset
	case io.SeekEnd:
		info, err := me.file.Stat()
		if err != nil {
			return -1, err
		}
		me.offset = info.Size() + offset
	default:
		return -1, errors.New("unsupported operation")
	}
	return me.offset, nil
}

func (me *FileWrapper) Offset() int64 {
	return me.offset
}

func (me *FileWrapper) Sync() error {
	return me.file.Sync()
}
