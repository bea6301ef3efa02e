package keyvaluepair

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type byteReader struct {
	*bytes.Reader
}

func (me byteReader) ReadFull(p []byte) error {
	_, err := io.ReadFull(me.Reader, p)
	return err
}

func newReader(data []byte) byteReader {
	return byteReader{bytes.NewReader(data)}
}

func TestWriteKey(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name     string
		lastKey  string
		key      string
		maxReuse int

		expected []byte
	}{
		{
			name:     "first key",
			key:      "abc",
			maxReuse: MaxKeySize,
			expected: []byte{3, 'a', 'b', 'c'},
		},
		{
			name:     "shared prefix",
			lastKey:  "abc",
			key:      "abd",
			maxReuse: MaxKeySize,
			expected: []byte{2, 1, 'd'},
		},
		{
			name:     "capped reuse",
			lastKey:  "abc",
			key:      "abd",
			maxReuse: 1,
			expected: []byte{1, 2, 'b', 'd'},
		},
		{
			name:     "nothing shared",
			lastKey:  "abc",
			key:      "xyz",
			maxReuse: MaxKeySize,
			expected: []byte{0, 3, 'x', 'y', 'z'},
		},
		{
			name:     "longer key",
			lastKey:  "ab",
			key:      "abcd",
			maxReuse: MaxKeySize,
			expected: []byte{2, 2, 'c', 'd'},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			n, err := WriteKey(&buf, []byte(tc.lastKey), []byte(tc.key), tc.maxReuse)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tc.expected)), n)
			assert.Equal(t, tc.expected, buf.Bytes())

			var lastKey []byte
			if tc.lastKey != "" {
				lastKey = []byte(tc.lastKey)
			}
			key, err := ReadKey(newReader(buf.Bytes()), lastKey)
			require.NoError(t, err)
			assert.Equal(t, tc.key, string(key))
		})
	}
}

func TestWriteKey_InvalidSize(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := WriteKey(&buf, nil, nil, MaxKeySize)
	assert.ErrorIs(t, err, honeyerrors.ErrInvalidArgument)

	_, err = WriteKey(&buf, nil, []byte(strings.Repeat("k", MaxKeySize+1)), MaxKeySize)
	assert.ErrorIs(t, err, honeyerrors.ErrInvalidArgument)

	_, err = WriteKey(&buf, nil, []byte(strings.Repeat("k", MaxKeySize)), MaxKeySize)
	assert.NoError(t, err)
}

func TestReadKey_Errors(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		lastKey string
		data    []byte

		expected error
	}{
		{name: "no data", data: nil, expected: io.EOF},
		{name: "truncated first key", data: []byte{5, 'a', 'b'}, expected: honeyerrors.ErrCorrupt},
		{name: "empty first key", data: []byte{0}, expected: honeyerrors.ErrCorrupt},
		{name: "missing suffix size", lastKey: "ab", data: []byte{1}, expected: honeyerrors.ErrCorrupt},
		{name: "reuse past previous key", lastKey: "ab", data: []byte{3, 1, 'x'}, expected: honeyerrors.ErrCorrupt},
		{name: "empty key", lastKey: "ab", data: []byte{0, 0}, expected: honeyerrors.ErrCorrupt},
		{name: "key too long", lastKey: "ab", data: []byte{2, 254}, expected: honeyerrors.ErrCorrupt},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var lastKey []byte
			if tc.lastKey != "" {
				lastKey = []byte(tc.lastKey)
			}
			_, err := ReadKey(newReader(tc.data), lastKey)
			if tc.expected == io.EOF {
				assert.Equal(t, io.EOF, err)
			} else {
				assert.ErrorIs(t, err, tc.expected)
			}
		})
	}
}

func TestValueHeader(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name         string
		size         int
		isCompressed bool

		expected []byte
	}{
		{name: "empty", size: 0, expected: []byte{0x00}},
		{name: "small", size: 5, expected: []byte{0x0a}},
		{name: "small compressed", size: 5, isCompressed: true, expected: []byte{0x0b}},
		{name: "two bytes", size: 100, expected: []byte{0xc8, 0x01}},
		{name: "two bytes compressed", size: 64, isCompressed: true, expected: []byte{0x81, 0x01}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			n, err := WriteValueHeader(&buf, tc.size, tc.isCompressed)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tc.expected)), n)
			assert.Equal(t, tc.expected, buf.Bytes())

			header, err := ReadValueHeader(bytes.NewReader(buf.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, ValueHeader{Size: uint64(tc.size), IsCompressed: tc.isCompressed}, header)
		})
	}
}

func TestReadValueHeader_Corrupt(t *testing.T) {
	t.Parallel()

	_, err := ReadValueHeader(bytes.NewReader([]byte{0x80, 0x80}))
	assert.ErrorIs(t, err, honeyerrors.ErrCorrupt, "truncated varint")

	_, err = ReadValueHeader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, honeyerrors.ErrCorrupt, "missing varint")

	overflow := append(bytes.Repeat([]byte{0xff}, 9), 0x02)
	_, err = ReadValueHeader(bytes.NewReader(overflow))
	assert.ErrorIs(t, err, honeyerrors.ErrCorrupt, "varint overflow")
}

func TestKeyValuePair_Encode(t *testing.T) {
	t.Parallel()

	kvps := []KeyValuePair{
		{Key: []byte("apple"), Value: []byte("red")},
		{Key: []byte("apricot"), Value: []byte("orange")},
		{Key: []byte("banana"), Value: []byte{}, IsCompressed: true},
	}

	var (
		buf     bytes.Buffer
		lastKey []byte
	)
	for _, kvp := range kvps {
		_, err := kvp.Encode(&buf, lastKey)
		require.NoError(t, err)
		lastKey = kvp.Key
	}

	assert.Equal(t, []byte{
		5, 'a', 'p', 'p', 'l', 'e', 6, 'r', 'e', 'd',
		2, 5, 'r', 'i', 'c', 'o', 't', 12, 'o', 'r', 'a', 'n', 'g', 'e',
		0, 6, 'b', 'a', 'n', 'a', 'n', 'a', 1,
	}, buf.Bytes())

	reader := newReader(buf.Bytes())
	lastKey = nil
	for _, kvp := range kvps {
		key, err := ReadKey(reader, lastKey)
		require.NoError(t, err)
		assert.Equal(t, kvp.Key, key)

		header, err := ReadValueHeader(reader)
		require.NoError(t, err)
		assert.Equal(t, kvp.IsCompressed, header.IsCompressed)

		value := make([]byte, header.Size)
		require.NoError(t, reader.ReadFull(value))
		assert.Equal(t, kvp.Value, value)
		lastKey = key
	}

	_, err := ReadKey(reader, lastKey)
	assert.Equal(t, io.EOF, err)
}

func TestCommonPrefixLength(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, CommonPrefixLength(nil, []byte("a")))
	assert.Equal(t, 2, CommonPrefixLength([]byte("abc"), []byte("abd")))
	assert.Equal(t, 2, CommonPrefixLength([]byte("ab"), []byte("abc")))
	assert.Equal(t, 3, CommonPrefixLength([]byte("abc"), []byte("abc")))
}
