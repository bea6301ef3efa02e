package honey

import (
	"bytes"
	"io/fs"
	"iter"

	"github.com/navijation/honeytable/storage/bufferedfile"
	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/navijation/honeytable/storage/keyvaluepair"
	"github.com/navijation/honeytable/util"
	"github.com/navijation/honeytable/util/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultCompressMin is the value size above which values are compressed unless the
	// creator says otherwise.
	DefaultCompressMin uint32 = 32
	// DefaultIndexType is the index encoding used unless the creator says otherwise.
	DefaultIndexType = IndexArray
)

// Table is a sorted, append-once key/value table. A table is built with Add and sealed by
// Commit; from then on it only serves reads. A Table is not safe for concurrent use: give
// each reader its own Table (or Cursor) over the sealed file.
type Table struct {
	path       string
	readOnly   bool
	lazy       bool
	shared     bool
	compressor Compressor
	statsHook  func(IndexStats)

	compressMin    uint32
	indexType      IndexType
	indexBlockSize int64

	file *bufferedfile.BufferedFile

	// write state
	lastKey  []byte
	index    indexWriter
	writeErr error

	// read state
	dec entryDecoder

	root       int64
	indexSize  int64
	numEntries uint64
	// offset is added to every position in this table. It is zero when the table has a
	// file of its own.
	offset int64
}

type CreateArgs struct {
	Path string
	// File, when set, is a descriptor shared with other tables. The table is written from
	// Offset on and never closes File.
	File   bufferedfile.Descriptor
	Offset int64

	CompressMin    util.Optional[uint32]
	IndexType      util.Optional[IndexType]
	IndexBlockSize util.Optional[int64]
	// Compressor defaults to SnappyCompressor.
	Compressor Compressor
	// StatsHook, when set, is told about the index written at commit.
	StatsHook func(IndexStats)
}

type OpenArgs struct {
	Path string
	// File, when set, is a descriptor shared with other tables; root.Offset locates the
	// table within it.
	File bufferedfile.Descriptor
	// Lazy tolerates a missing file: the table then behaves as empty.
	Lazy bool
	// Compressor defaults to SnappyCompressor.
	Compressor Compressor
}

// Create creates a new table open for appending.
func Create(args CreateArgs) (out *Table, _ error) {
	indexType := args.IndexType.Or(DefaultIndexType)
	if !indexType.IsValid() {
		return nil, errors.Wrapf(honeyerrors.ErrInvalidArgument, "unknown index type %d", indexType)
	}
	blockSize := args.IndexBlockSize.Or(DefaultIndexBlockSize)
	if blockSize < 1 {
		return nil, errors.Wrapf(honeyerrors.ErrInvalidArgument, "index block size %d", blockSize)
	}

	out = &Table{
		path:           args.Path,
		compressor:     args.Compressor,
		statsHook:      args.StatsHook,
		compressMin:    args.CompressMin.Or(DefaultCompressMin),
		indexType:      indexType,
		indexBlockSize: blockSize,
		root:           -1,
		offset:         args.Offset,
	}
	if out.compressor == nil {
		out.compressor = SnappyCompressor{}
	}

	if args.File != nil {
		out.shared = true
		out.file = bufferedfile.New(args.File, args.Offset, false)
	} else {
		out.file = &bufferedfile.BufferedFile{}
		if err := out.file.Open(args.Path, false); err != nil {
			return nil, errors.Wrapf(honeyerrors.ErrOpen, "create %q: %v", args.Path, err)
		}
	}
	out.index = newIndexWriter(indexType, out.offset, blockSize)
	out.dec.file = out.file

	return out, nil
}

// Open opens a sealed table described by root.
func Open(args OpenArgs, root RootInfo) (out *Table, _ error) {
	if root.Root < root.Offset {
		return nil, errors.Wrapf(honeyerrors.ErrInvalidArgument,
			"root %d before table offset %d", root.Root, root.Offset)
	}

	out = &Table{
		path:        args.Path,
		readOnly:    true,
		lazy:        args.Lazy,
		compressor:  args.Compressor,
		compressMin: root.CompressMin,
		indexType:   root.IndexType,
		root:        root.Root,
		indexSize:   root.IndexSize,
		numEntries:  root.NumEntries,
		offset:      root.Offset,
	}
	if out.compressor == nil {
		out.compressor = SnappyCompressor{}
	}

	if args.File != nil {
		out.shared = true
		out.file = bufferedfile.New(args.File, root.Offset, true)
	} else {
		out.file = &bufferedfile.BufferedFile{}
		if err := out.file.Open(args.Path, true); err != nil {
			if !args.Lazy || !errors.Is(err, fs.ErrNotExist) {
				return nil, errors.Wrapf(honeyerrors.ErrOpen, "open %q: %v", args.Path, err)
			}
		}
	}
	out.dec = entryDecoder{file: out.file, root: out.root}
	out.file.Rewind(out.offset)

	out.logger().WithField("entries", out.numEntries).Debug("opened table")
	return out, nil
}

// Close releases the table's descriptor. A permanent close makes later access fail with
// honeyerrors.ErrClosed. A table sharing a container's descriptor only detaches from it.
func (me *Table) Close(permanent bool) error {
	if me.shared {
		me.file.Detach(permanent)
		return nil
	}
	if permanent {
		return me.file.ForceClose()
	}
	return me.file.Close()
}

// Add appends an entry. Keys must be strictly increasing and 1 to keyvaluepair.MaxKeySize
// bytes long. Values larger than the compression threshold are compressed when that makes
// them smaller, unless isCompressed says they already are.
func (me *Table) Add(key, value []byte, isCompressed bool) error {
	if me.readOnly {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "add() on read-only table")
	}
	if me.root >= 0 {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "add() after the index was written")
	}
	if me.writeErr != nil {
		return me.writeErr
	}
	if err := keyvaluepair.CheckKey(key); err != nil {
		return err
	}
	if bytes.Compare(key, me.lastKey) <= 0 {
		return errors.Wrapf(honeyerrors.ErrInvalidArgument, "new key %q <= previous key %q", key, me.lastKey)
	}

	if !isCompressed && me.compressMin > 0 && len(value) > int(me.compressMin) {
		if compressed, ok := me.compressor.Compress(value); ok {
			value, isCompressed = compressed, true
		}
	}

	if err := me.writeEntry(key, value, isCompressed); err != nil {
		// the file now ends in a partial entry
		me.writeErr = errors.Wrap(err, "table is unusable after a failed write")
		return err
	}

	me.numEntries++
	me.lastKey = append(me.lastKey[:0], key...)
	return nil
}

func (me *Table) writeEntry(key, value []byte, isCompressed bool) error {
	pos := me.file.Pos()
	first := len(me.lastKey) == 0

	if _, err := keyvaluepair.WriteKey(me.file, me.lastKey, key, me.index.maxReuse(key, pos)); err != nil {
		return err
	}
	me.index.maybeAddEntry(key, pos, me.file.Pos(), first)

	if _, err := keyvaluepair.WriteValueHeader(me.file, len(value), isCompressed); err != nil {
		return err
	}
	_, err := me.file.Write(value)
	return err
}

// AppendEntries adds every pair of keyValuePairs in order, stopping at the first error.
func (me *Table) AppendEntries(keyValuePairs iter.Seq[keyvaluepair.KeyValuePair]) error {
	for keyValuePair := range keyValuePairs {
		if err := me.Add(keyValuePair.Key, keyValuePair.Value, keyValuePair.IsCompressed); err != nil {
			return err
		}
	}
	return nil
}

// FlushDB writes the index after the entries and flushes the file. Commit calls it when it
// has not been called yet.
func (me *Table) FlushDB() error {
	if me.readOnly {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "flush of read-only table")
	}
	if me.writeErr != nil {
		return me.writeErr
	}
	if me.root >= 0 {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "index already written")
	}

	root, err := me.index.writeTo(me.file)
	if err != nil {
		return err
	}
	indexSize := me.file.Pos() - root
	if err := me.file.Flush(); err != nil {
		return err
	}
	me.root, me.indexSize = root, indexSize
	return nil
}

// Commit seals the table and returns the metadata needed to open it again.
func (me *Table) Commit() (out RootInfo, _ error) {
	if me.readOnly {
		return out, errors.Wrap(honeyerrors.ErrInvalidArgument, "commit() on read-only table")
	}
	if me.root < 0 {
		if err := me.FlushDB(); err != nil {
			return out, err
		}
	}

	stats := IndexStats{
		Path:       me.path,
		Type:       me.indexType,
		Points:     me.index.numPoints(),
		Size:       me.indexSize,
		NumEntries: me.numEntries,
	}
	if me.statsHook != nil {
		me.statsHook(stats)
	}
	me.logger().WithFields(logrus.Fields{
		"entries":       stats.NumEntries,
		"index_type":    stats.Type.String(),
		"index_size":    stats.Size,
		"index_entries": stats.Points,
	}).Debug("committed table")

	me.readOnly = true
	me.lastKey = nil
	me.index = nil
	me.file.Rewind(me.offset)
	me.dec = entryDecoder{file: me.file, root: me.root}

	return me.RootInfo(), nil
}

// Sync flushes the file to stable storage.
func (me *Table) Sync() error {
	return me.file.Sync()
}

// RootInfo describes the table as it stands.
func (me *Table) RootInfo() RootInfo {
	return RootInfo{
		Root:        me.root,
		NumEntries:  me.numEntries,
		CompressMin: me.compressMin,
		Offset:      me.offset,
		IndexSize:   me.indexSize,
		IndexType:   me.indexType,
		ReadOnly:    me.readOnly,
	}
}

// GetExactEntry looks key up. A missing key is reported through exists, not as an error.
func (me *Table) GetExactEntry(key []byte) (value []byte, exists bool, _ error) {
	return me.getExactEntry(key, true)
}

// KeyExists is GetExactEntry without reading the value.
func (me *Table) KeyExists(key []byte) (bool, error) {
	_, exists, err := me.getExactEntry(key, false)
	return exists, err
}

func (me *Table) getExactEntry(key []byte, wantValue bool) (value []byte, exists bool, _ error) {
	if !me.readOnly {
		return nil, false, errors.Wrap(honeyerrors.ErrInvalidArgument, "lookup in a table that is being written")
	}
	if ok, err := me.checkReadable(); !ok {
		return nil, false, err
	}
	if len(key) == 0 {
		return nil, false, nil
	}

	rs, err := me.region().resolve(me.file, key)
	if err != nil {
		return nil, false, err
	}
	if rs.absent {
		return nil, false, nil
	}

	current, err := me.dec.resync(rs)
	if err != nil {
		return nil, false, err
	}
	found, ok, err := me.dec.scanTo(key, current)
	if err != nil || !ok || !bytes.Equal(found, key) {
		return nil, false, err
	}
	if !wantValue {
		return nil, true, nil
	}

	value, err = me.readValue(&me.dec)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Rewind positions sequential reads (ReadKey/ReadVal) before the first entry.
func (me *Table) Rewind() error {
	if !me.readOnly {
		return errors.Wrap(honeyerrors.ErrInvalidArgument, "rewind of a table that is being written")
	}
	me.dec.reset(me.offset, nil)
	return nil
}

// ReadKey decodes the next entry's key and value header, continuing from wherever the last
// read or lookup stopped. ok is false at the end of the entries.
func (me *Table) ReadKey() (key []byte, header keyvaluepair.ValueHeader, ok bool, _ error) {
	if !me.readOnly {
		return nil, header, false, errors.Wrap(honeyerrors.ErrInvalidArgument, "sequential read of a table that is being written")
	}
	if ok, err := me.checkReadable(); !ok {
		return nil, header, false, err
	}
	key, ok, err := me.dec.readKey()
	if err != nil || !ok {
		return nil, header, false, err
	}
	return key, me.dec.value, true, nil
}

// ReadVal reads the raw, possibly compressed, value of the entry whose key was just read.
func (me *Table) ReadVal() ([]byte, error) {
	if ok, err := me.checkReadable(); !ok {
		if err == nil {
			err = errors.Wrap(honeyerrors.ErrInvalidArgument, "no value to read")
		}
		return nil, err
	}
	return me.dec.readVal()
}

// Cursor returns an independent cursor over the sealed table.
func (me *Table) Cursor() (*Cursor, error) {
	if !me.readOnly {
		return nil, errors.Wrap(honeyerrors.ErrInvalidArgument, "cursor on a table that is being written")
	}
	ok, err := me.checkReadable()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Cursor{table: me, isAfterEnd: true}, nil
	}

	file, err := me.file.Clone()
	if err != nil {
		return nil, err
	}
	return &Cursor{
		table: me,
		dec:   entryDecoder{file: file, root: me.root},
	}, nil
}

// IndexPoints decodes the table's index.
func (me *Table) IndexPoints() ([]IndexPoint, error) {
	if !me.readOnly {
		return nil, errors.Wrap(honeyerrors.ErrInvalidArgument, "index of a table that is being written")
	}
	if ok, err := me.checkReadable(); !ok {
		return nil, err
	}
	return me.region().points(me.file)
}

func (me *Table) Path() string { return me.path }

func (me *Table) IsWritable() bool { return !me.readOnly }

func (me *Table) IsOpen() bool { return me.file.IsOpen() }

func (me *Table) Empty() bool { return me.numEntries == 0 }

func (me *Table) IsModified() bool { return !me.readOnly && !me.Empty() }

func (me *Table) EntryCount() uint64 { return me.numEntries }

func (me *Table) Root() int64 { return me.root }

func (me *Table) Offset() int64 { return me.offset }

func (me *Table) region() indexRegion {
	end := int64(-1)
	if me.indexSize > 0 {
		end = me.root + me.indexSize
	}
	return indexRegion{base: me.offset, root: me.root, end: end}
}

// checkReadable reports whether there is a file to read. A lazily opened table whose file
// is absent is readable as an empty table; a permanently closed one is an error.
func (me *Table) checkReadable() (bool, error) {
	if me.file.IsOpen() {
		return true, nil
	}
	if me.file.WasForceClosed() {
		return false, errors.Wrapf(honeyerrors.ErrClosed, "table %q", me.path)
	}
	if me.lazy {
		return false, nil
	}
	return false, errors.Wrapf(honeyerrors.ErrClosed, "table %q is not open", me.path)
}

// readValue reads the pending value and decompresses it if needed.
func (me *Table) readValue(dec *entryDecoder) ([]byte, error) {
	isCompressed := dec.value.IsCompressed
	raw, err := dec.readVal()
	if err != nil {
		return nil, err
	}
	if !isCompressed {
		return raw, nil
	}
	return me.compressor.Decompress(raw)
}

func (me *Table) logger() *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"path":   me.path,
		"root":   me.root,
		"offset": me.offset,
	})
}
