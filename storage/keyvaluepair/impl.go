package keyvaluepair

import (
	"encoding/binary"
	"io"

	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/pkg/errors"
)

// CommonPrefixLength returns the length of the longest common prefix of a and b.
func CommonPrefixLength(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

// CheckKey validates the size of a key about to be stored.
func CheckKey(key []byte) error {
	if len(key) == 0 || len(key) > MaxKeySize {
		return errors.Wrapf(honeyerrors.ErrInvalidArgument, "invalid key size %d", len(key))
	}
	return nil
}

// WriteKey front codes key against lastKey. An empty lastKey starts a new run and writes the
// key in full. maxReuse caps the shared prefix, which lets an index point pin the decode
// context it needs; pass MaxKeySize for no cap.
func WriteKey(writer Writer, lastKey, key []byte, maxReuse int) (n int64, _ error) {
	if err := CheckKey(key); err != nil {
		return 0, err
	}

	if len(lastKey) == 0 {
		if err := writer.WriteByte(byte(len(key))); err != nil {
			return n, err
		}
		n++
		dn, err := writer.Write(key)
		return n + int64(dn), err
	}

	reuse := min(CommonPrefixLength(lastKey, key), maxReuse)
	if reuse < 0 {
		reuse = 0
	}
	if err := writer.WriteByte(byte(reuse)); err != nil {
		return n, err
	}
	n++
	if err := writer.WriteByte(byte(len(key) - reuse)); err != nil {
		return n, err
	}
	n++
	dn, err := writer.Write(key[reuse:])
	return n + int64(dn), err
}

// ReadKey decodes the next key given the previously decoded one. io.EOF is returned as is
// when there is no data at all; running out of data part way through is ErrCorrupt.
func ReadKey(reader Reader, lastKey []byte) ([]byte, error) {
	first, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	var reuse, size int
	if len(lastKey) == 0 {
		size = int(first)
	} else {
		reuse = int(first)
		second, err := reader.ReadByte()
		if err != nil {
			return nil, corrupt(err, "reading key length")
		}
		size = int(second)
		if reuse > len(lastKey) {
			return nil, errors.Wrapf(honeyerrors.ErrCorrupt,
				"key reuses %d bytes of a %d byte key", reuse, len(lastKey))
		}
	}

	if reuse+size == 0 || reuse+size > MaxKeySize {
		return nil, errors.Wrapf(honeyerrors.ErrCorrupt, "invalid stored key size %d", reuse+size)
	}

	key := make([]byte, reuse+size)
	copy(key, lastKey[:reuse])
	if err := reader.ReadFull(key[reuse:]); err != nil {
		return nil, corrupt(err, "reading key")
	}
	return key, nil
}

// WriteValueHeader writes the packed length-and-flag word that precedes a value.
func WriteValueHeader(writer io.Writer, size int, isCompressed bool) (n int64, _ error) {
	var tmp [binary.MaxVarintLen64]byte
	word := uint64(size) << 1
	if isCompressed {
		word |= compressedFlag
	}
	dn, err := writer.Write(tmp[:binary.PutUvarint(tmp[:], word)])
	return int64(dn), err
}

// ReadValueHeader reads the word written by WriteValueHeader.
func ReadValueHeader(reader io.ByteReader) (out ValueHeader, _ error) {
	var word uint64
	for shift := 0; ; shift += 7 {
		c, err := reader.ReadByte()
		if err != nil {
			return out, corrupt(err, "reading value size")
		}
		if shift == 63 && c > 1 {
			return out, errors.Wrap(honeyerrors.ErrCorrupt, "value size overflows 64 bits")
		}
		word |= uint64(c&0x7f) << shift
		if c < 0x80 {
			break
		}
	}
	out.Size = word >> 1
	out.IsCompressed = word&compressedFlag != 0
	return out, nil
}

// Encode writes a complete entry; it exists for callers encoding into plain buffers.
func (me *KeyValuePair) Encode(writer Writer, lastKey []byte) (n int64, _ error) {
	dn, err := WriteKey(writer, lastKey, me.Key, MaxKeySize)
	n += dn
	if err != nil {
		return n, err
	}

	dn, err = WriteValueHeader(writer, len(me.Value), me.IsCompressed)
	n += dn
	if err != nil {
		return n, err
	}

	dm, err := writer.Write(me.Value)
	return n + int64(dm), err
}

func corrupt(err error, what string) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrapf(honeyerrors.ErrCorrupt, "unexpected end of data %s", what)
	}
	return errors.Wrap(err, what)
}
