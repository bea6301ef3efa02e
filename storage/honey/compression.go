package honey

import (
	"github.com/golang/snappy"
	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/pkg/errors"
)

// Compressor is the compression capability used for large values.
type Compressor interface {
	// Compress returns a compressed copy of src, or false when that would not be smaller.
	Compress(src []byte) ([]byte, bool)
	// Decompress restores what Compress produced. Any failure means corrupt data.
	Decompress(src []byte) ([]byte, error)
}

// SnappyCompressor compresses values with snappy's block format.
type SnappyCompressor struct{}

var _ Compressor = SnappyCompressor{}

func (SnappyCompressor) Compress(src []byte) ([]byte, bool) {
	out := snappy.Encode(nil, src)
	if len(out) >= len(src) {
		return nil, false
	}
	return out, true
}

func (SnappyCompressor) Decompress(src []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, errors.Wrapf(honeyerrors.ErrCorrupt, "decompressing value: %v", err)
	}
	return out, nil
}
