package keyvaluepair

import "io"

const (
	// MaxKeySize is the longest key a front-coded entry can describe: lengths are one byte.
	MaxKeySize = 255

	compressedFlag = 1
)

// Stored entries are front coded against the key written just before them. The value length
// carries the "compressed" flag in its low bit and is written as an unsigned varint
// (7 bits per byte, least significant group first, high bit set when more bytes follow).
//
// First entry of a run (no previous key):
// _____________________________________________________________
// | 1 byte   | (key size) bytes | varint           | value     |
// |-----------------------------------------------------------|
// | key size |  key             | size<<1|compr.   | bytes     |
// |-----------------------------------------------------------|
//
// Any later entry:
// ______________________________________________________________________________
// | 1 byte | 1 byte      | (suffix size) bytes | varint         | value         |
// |----------------------------------------------------------------------------|
// | reuse  | suffix size |  key[reuse:]        | size<<1|compr. | bytes         |
// |----------------------------------------------------------------------------|

// Higher-level DTO for passing around key-value pairs conveniently
type KeyValuePair struct {
	Key   []byte
	Value []byte
	// IsCompressed marks Value as already compressed; such values are stored as they are.
	IsCompressed bool
}

// ValueHeader describes the value that follows a decoded key.
type ValueHeader struct {
	Size         uint64
	IsCompressed bool
}

// Writer is what entries are encoded to.
type Writer interface {
	io.Writer
	io.ByteWriter
}

// Reader is what entries are decoded from.
type Reader interface {
	io.ByteReader
	// ReadFull fills p or fails; io.EOF means nothing was left at all.
	ReadFull(p []byte) error
}
