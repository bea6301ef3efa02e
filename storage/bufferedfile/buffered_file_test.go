package bufferedfile

import (
	"io"
	"io/fs"
	"testing"

	"github.com/navijation/honeytable/storage/honeyerrors"
	testing_util "github.com/navijation/honeytable/util/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFile is an in-memory Descriptor that counts reads and can truncate writes.
type memFile struct {
	data      []byte
	reads     int
	shortBy   int
	closed    bool
	syncCalls int
}

func (me *memFile) ReadAt(p []byte, off int64) (int, error) {
	me.reads++
	if off >= int64(len(me.data)) {
		return 0, io.EOF
	}
	n := copy(p, me.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (me *memFile) WriteAt(p []byte, off int64) (int, error) {
	n := len(p) - me.shortBy
	if end := off + int64(n); end > int64(len(me.data)) {
		me.data = append(me.data, make([]byte, end-int64(len(me.data)))...)
	}
	copy(me.data[off:], p[:n])
	return n, nil
}

func (me *memFile) Close() error {
	me.closed = true
	return nil
}

func (me *memFile) Sync() error {
	me.syncCalls++
	return nil
}

func sequence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func TestBufferedFile_TailFill(t *testing.T) {
	t.Parallel()

	mem := &memFile{data: sequence(10)}
	file := New(mem, 0, true)

	c, err := file.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0), c)
	assert.Equal(t, 1, mem.reads)
	assert.Equal(t, 9, file.Buffered())
	assert.Equal(t, int64(1), file.Pos())

	// the remaining bytes sit at the end of the buffer
	assert.Equal(t, sequence(10)[1:], file.buf[BufferSize-file.Buffered():])

	rest := make([]byte, 9)
	require.NoError(t, file.ReadFull(rest))
	assert.Equal(t, sequence(10)[1:], rest)
	assert.Equal(t, 1, mem.reads)

	_, err = file.ReadByte()
	assert.Equal(t, io.EOF, err)
}

func TestBufferedFile_Skip(t *testing.T) {
	t.Parallel()

	data := sequence(3 * BufferSize)
	mem := &memFile{data: data}
	file := New(mem, 0, true)

	_, err := file.ReadByte()
	require.NoError(t, err)
	require.Equal(t, 1, mem.reads)

	t.Run("within buffer", func(t *testing.T) {
		require.NoError(t, file.Skip(100))
		assert.Equal(t, 1, mem.reads)
		assert.Equal(t, int64(101), file.Pos())

		c, err := file.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, data[101], c)
		assert.Equal(t, 1, mem.reads)
	})

	t.Run("past buffer", func(t *testing.T) {
		require.NoError(t, file.Skip(BufferSize))
		assert.Equal(t, 1, mem.reads, "skipping does not read")
		assert.Equal(t, int64(102+BufferSize), file.Pos())

		c, err := file.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, data[102+BufferSize], c)
		assert.Equal(t, 2, mem.reads)
	})

	t.Run("errors", func(t *testing.T) {
		assert.ErrorIs(t, file.Skip(-1), honeyerrors.ErrInvalidArgument)

		writer := New(&memFile{}, 0, false)
		assert.ErrorIs(t, writer.Skip(1), honeyerrors.ErrInvalidArgument)
	})
}

func TestBufferedFile_ReadFull(t *testing.T) {
	t.Parallel()

	data := sequence(2*BufferSize + 17)
	end := int64(len(data))

	for _, tc := range []struct {
		name  string
		start int64
		// bytes read before the checked read, leaving the buffer partially consumed
		prime int
		size  int

		expected error
	}{
		{name: "small", start: 3, size: 10},
		{name: "buffered then refill", start: 0, prime: 10, size: BufferSize},
		{name: "buffered then small rest", start: 7, prime: 1, size: BufferSize + 300},
		{name: "buffered then large rest", start: 7, prime: 1, size: 2 * BufferSize},
		{name: "exact end", start: end - 20, size: 20},
		{name: "past end", start: end - 20, size: 21, expected: io.ErrUnexpectedEOF},
		{name: "buffered past end", start: end - 20, prime: 5, size: 16, expected: io.ErrUnexpectedEOF},
		{name: "large past end", start: 0, size: len(data) + 1, expected: io.ErrUnexpectedEOF},
		{name: "at end", start: end, size: 1, expected: io.EOF},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			file := New(&memFile{data: data}, tc.start, true)
			if tc.prime > 0 {
				require.NoError(t, file.ReadFull(make([]byte, tc.prime)))
			}

			p := make([]byte, tc.size)
			err := file.ReadFull(p)
			if tc.expected != nil {
				assert.Equal(t, tc.expected, err)
				return
			}
			require.NoError(t, err)
			from := tc.start + int64(tc.prime)
			assert.Equal(t, data[from:from+int64(tc.size)], p)
			assert.Equal(t, from+int64(tc.size), file.Pos())
		})
	}
}

func TestBufferedFile_Write(t *testing.T) {
	t.Parallel()

	mem := &memFile{}
	file := New(mem, 10, false)

	require.NoError(t, file.WriteByte('x'))
	_, err := file.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Empty(t, mem.data, "nothing reaches the descriptor before a flush")
	assert.Equal(t, int64(16), file.Pos())

	large := sequence(BufferSize + 1)
	_, err = file.Write(large)
	require.NoError(t, err)
	assert.Equal(t, 10+6+len(large), len(mem.data))

	require.NoError(t, file.WriteByte('!'))
	require.NoError(t, file.Flush())
	require.NoError(t, file.Sync())
	assert.Equal(t, 1, mem.syncCalls)

	expected := append(append([]byte("xhello"), large...), '!')
	assert.Equal(t, expected, mem.data[10:])

	file.Rewind(10)
	got := make([]byte, len(expected))
	require.NoError(t, file.ReadFull(got))
	assert.Equal(t, expected, got)

	assert.ErrorIs(t, file.WriteByte('y'), honeyerrors.ErrInvalidArgument, "read mode after rewind")
}

func TestBufferedFile_ShortWrite(t *testing.T) {
	t.Parallel()

	file := New(&memFile{shortBy: 1}, 0, false)
	_, err := file.Write([]byte("abc"))
	require.NoError(t, err)
	assert.ErrorIs(t, file.Flush(), io.ErrShortWrite)

	file = New(&memFile{shortBy: 1}, 0, false)
	_, err = file.Write(sequence(BufferSize + 1))
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestBufferedFile_Clone(t *testing.T) {
	t.Parallel()

	data := sequence(64)
	file := New(&memFile{data: data}, 0, true)
	require.NoError(t, file.Skip(10))

	clone, err := file.Clone()
	require.NoError(t, err)
	assert.Equal(t, int64(10), clone.Pos())

	c, err := clone.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, data[10], c)

	require.NoError(t, file.Skip(20))
	c, err = file.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, data[30], c)

	c, err = clone.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, data[11], c)
}

func TestBufferedFile_Close(t *testing.T) {
	t.Parallel()

	path := testing_util.TempPath(t, "file.bin")

	var file BufferedFile
	require.NoError(t, file.Open(path, false))
	_, err := file.Write([]byte("some bytes"))
	require.NoError(t, err)
	require.NoError(t, file.Flush())
	require.NoError(t, file.Close())
	require.NoError(t, file.Close(), "closing twice is a no-op")
	assert.False(t, file.IsOpen())
	assert.False(t, file.WasForceClosed())

	_, err = file.ReadByte()
	assert.ErrorIs(t, err, honeyerrors.ErrClosed)

	require.NoError(t, file.Open(path, true))
	got := make([]byte, 10)
	require.NoError(t, file.ReadFull(got))
	assert.Equal(t, "some bytes", string(got))

	require.NoError(t, file.ForceClose())
	assert.True(t, file.WasForceClosed())
	_, err = file.ReadByte()
	assert.ErrorIs(t, err, honeyerrors.ErrClosed)
	assert.ErrorIs(t, file.Sync(), honeyerrors.ErrClosed)
}

func TestBufferedFile_Detach(t *testing.T) {
	t.Parallel()

	mem := &memFile{data: []byte("shared")}
	file := New(mem, 0, true)

	file.Detach(false)
	assert.False(t, mem.closed, "a detached descriptor stays open")
	assert.False(t, file.WasForceClosed())

	file = New(mem, 0, true)
	file.Detach(true)
	assert.False(t, mem.closed)
	_, err := file.ReadByte()
	assert.ErrorIs(t, err, honeyerrors.ErrClosed)
}

func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	var file BufferedFile
	err := file.Open(testing_util.TempPath(t, "missing"), true)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
