// Package container stores several honey tables in one file. Tables are written one after
// another, each starting where the previous one ended, and a footer at the end of the file
// records every table's root under a name.
package container

import (
	"io"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/navijation/honeytable/storage/honey"
	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/navijation/honeytable/util"
	"github.com/navijation/honeytable/util/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// magic ends every container file.
var magic = [8]byte{'H', 'O', 'N', 'E', 'Y', 'C', 'T', 'R'}

const (
	// MaxNameSize is the longest table name a container accepts.
	MaxNameSize = 255

	// footer offset, id, magic
	trailerSize = 8 + 16 + len(magic)
)

type namedRoot struct {
	name string
	root honey.RootInfo
}

// Builder writes a new container. Tables are built one at a time: NewTable, Add, then Commit.
// Close writes the footer; a container that was never closed cannot be opened.
type Builder struct {
	path string
	file *os.File
	id   [16]byte

	// end of the last committed table
	end     int64
	pending *honey.Table
	roots   []namedRoot
}

// Create creates (truncating) a container file.
func Create(path string) (*Builder, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, errors.Wrapf(honeyerrors.ErrOpen, "create container %q: %v", path, err)
	}
	return &Builder{
		path: path,
		file: file,
		id:   util.NewRandomUUIDBytes(),
	}, nil
}

// ID returns the identifier that will be written to the footer.
func (me *Builder) ID() uuid.UUID {
	return util.UUIDFromBytes(me.id)
}

// NewTable starts a table at the end of the container. The previous table must have been
// committed. Path, File and Offset of args are overridden.
func (me *Builder) NewTable(args honey.CreateArgs) (*honey.Table, error) {
	if me.file == nil {
		return nil, errors.Wrapf(honeyerrors.ErrClosed, "container %q", me.path)
	}
	if me.pending != nil {
		return nil, errors.Wrap(honeyerrors.ErrInvalidArgument, "previous table is not committed")
	}

	args.Path = me.path
	args.File = me.file
	args.Offset = me.end
	table, err := honey.Create(args)
	if err != nil {
		return nil, err
	}
	me.pending = table
	return table, nil
}

// Commit seals table, which must be the one returned by the last NewTable call, and records
// its root under name. The table is detached from the container afterwards; read it back
// through Open once the container is closed.
func (me *Builder) Commit(name string, table *honey.Table) (out honey.RootInfo, _ error) {
	if me.file == nil {
		return out, errors.Wrapf(honeyerrors.ErrClosed, "container %q", me.path)
	}
	if table == nil || table != me.pending {
		return out, errors.Wrap(honeyerrors.ErrInvalidArgument, "table was not started by this container")
	}
	if err := checkName(name); err != nil {
		return out, err
	}
	if slices.ContainsFunc(me.roots, func(r namedRoot) bool { return r.name == name }) {
		return out, errors.Wrapf(honeyerrors.ErrInvalidArgument, "duplicate table name %q", name)
	}

	root, err := table.Commit()
	if err != nil {
		return out, err
	}
	if err := table.Close(false); err != nil {
		return out, err
	}

	me.roots = append(me.roots, namedRoot{name: name, root: root})
	me.end = root.Root + root.IndexSize
	me.pending = nil
	return root, nil
}

// Close writes the footer and closes the file. A table that was started but not committed is
// dropped.
//
// _______________________________________________________________________________
// | 8 bytes | per table                               | 8 bytes | 16 bytes | 8 bytes |
// |-------------------------------------------------------------------------------|
// | count   | name len (1) | name | root info (48) | ... | footer  | id       | magic   |
// |-------------------------------------------------------------------------------|
func (me *Builder) Close() error {
	if me.file == nil {
		return nil
	}
	if me.pending != nil {
		_ = me.pending.Close(true)
		me.pending = nil
	}

	end, err := me.writeFooter()
	if err == nil {
		// an uncommitted table may have left bytes past the footer
		err = errors.Wrap(me.file.Truncate(end), "truncate container")
	}
	if err == nil {
		err = errors.Wrap(me.file.Sync(), "sync container")
	}
	if closeErr := me.file.Close(); err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, "close container")
	}
	me.file = nil

	if err == nil {
		log.WithFields(logrus.Fields{
			"path":   me.path,
			"id":     me.ID().String(),
			"tables": len(me.roots),
		}).Debug("wrote container")
	}
	return err
}

func (me *Builder) writeFooter() (end int64, _ error) {
	writer := util.NewFileWrapperAt(me.file, me.end)
	fail := func(err error) (int64, error) {
		return 0, errors.Wrap(err, "write footer")
	}

	if _, err := util.WriteUint64(&writer, uint64(len(me.roots))); err != nil {
		return fail(err)
	}
	for _, r := range me.roots {
		if _, err := writer.Write(append([]byte{byte(len(r.name))}, r.name...)); err != nil {
			return fail(err)
		}
		if _, err := r.root.WriteTo(&writer); err != nil {
			return fail(err)
		}
	}

	if _, err := util.WriteUint64(&writer, uint64(me.end)); err != nil {
		return fail(err)
	}
	if _, err := writer.Write(me.id[:]); err != nil {
		return fail(err)
	}
	if _, err := writer.Write(magic[:]); err != nil {
		return fail(err)
	}
	return writer.Offset(), nil
}

// Container is an open container file. Tables are opened read-only on the container's
// descriptor; closing the container closes them too.
type Container struct {
	path string
	file *os.File
	id   uuid.UUID

	roots  []namedRoot
	tables map[string]*honey.Table
	closed bool
}

// Open reads the footer of the container at path.
func Open(path string) (*Container, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(honeyerrors.ErrOpen, "open container %q: %v", path, err)
	}

	out := &Container{
		path:   path,
		file:   file,
		tables: make(map[string]*honey.Table),
	}
	if err := out.readFooter(); err != nil {
		_ = file.Close()
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"path":   path,
		"id":     out.id.String(),
		"tables": len(out.roots),
	}).Debug("opened container")
	return out, nil
}

func (me *Container) readFooter() error {
	reader := util.NewFileWrapperAt(me.file, 0)
	size, err := reader.Seek(-int64(trailerSize), io.SeekEnd)
	if err != nil || size < 8 {
		return errors.Wrapf(honeyerrors.ErrCorrupt, "container %q is too small", me.path)
	}

	footerOffset, _, err := util.ReadUint64(&reader)
	if err != nil {
		return footerCorrupt(err)
	}
	var (
		id   [16]byte
		tail [len(magic)]byte
	)
	if _, err := io.ReadFull(&reader, id[:]); err != nil {
		return footerCorrupt(err)
	}
	if _, err := io.ReadFull(&reader, tail[:]); err != nil {
		return footerCorrupt(err)
	}
	if tail != magic {
		return errors.Wrapf(honeyerrors.ErrCorrupt, "container %q has no footer", me.path)
	}
	if int64(footerOffset) > size-8 {
		return errors.Wrapf(honeyerrors.ErrCorrupt, "footer offset %d past end of footer", footerOffset)
	}
	me.id = util.UUIDFromBytes(id)

	if _, err := reader.Seek(int64(footerOffset), io.SeekStart); err != nil {
		return footerCorrupt(err)
	}
	count, _, err := util.ReadUint64(&reader)
	if err != nil {
		return footerCorrupt(err)
	}
	for range count {
		var nameLen [1]byte
		if _, err := io.ReadFull(&reader, nameLen[:]); err != nil {
			return footerCorrupt(err)
		}
		name := make([]byte, nameLen[0])
		if _, err := io.ReadFull(&reader, name); err != nil {
			return footerCorrupt(err)
		}
		var root honey.RootInfo
		if _, err := root.ReadFrom(&reader); err != nil {
			return footerCorrupt(err)
		}
		if root.Root < root.Offset || root.Root+root.IndexSize > int64(footerOffset) {
			return errors.Wrapf(honeyerrors.ErrCorrupt, "table %q lies outside the container", name)
		}
		me.roots = append(me.roots, namedRoot{name: string(name), root: root})
	}
	if reader.Offset() != size {
		return errors.Wrapf(honeyerrors.ErrCorrupt, "footer of %d tables does not end at the trailer", count)
	}
	return nil
}

func (me *Container) ID() uuid.UUID {
	return me.id
}

func (me *Container) Path() string {
	return me.path
}

// Names lists the tables in the order they were written.
func (me *Container) Names() []string {
	out := make([]string, 0, len(me.roots))
	for _, r := range me.roots {
		out = append(out, r.name)
	}
	return out
}

// Table opens the table stored under name. Asking for the same name twice returns the same
// table. A missing name is reported through exists.
func (me *Container) Table(name string) (out *honey.Table, exists bool, _ error) {
	if me.closed {
		return nil, false, errors.Wrapf(honeyerrors.ErrClosed, "container %q", me.path)
	}
	if table, ok := me.tables[name]; ok {
		return table, true, nil
	}

	idx := slices.IndexFunc(me.roots, func(r namedRoot) bool { return r.name == name })
	if idx < 0 {
		return nil, false, nil
	}
	table, err := honey.Open(honey.OpenArgs{Path: me.path, File: me.file}, me.roots[idx].root)
	if err != nil {
		return nil, false, err
	}
	me.tables[name] = table
	return table, true, nil
}

// Close closes every table handed out and then the file. After a permanent close those
// tables report honeyerrors.ErrClosed.
func (me *Container) Close(permanent bool) error {
	if me.closed {
		return nil
	}
	for _, table := range me.tables {
		_ = table.Close(permanent)
	}
	me.tables = nil
	me.closed = true
	return errors.Wrap(me.file.Close(), "close container")
}

func checkName(name string) error {
	if len(name) == 0 || len(name) > MaxNameSize {
		return errors.Wrapf(honeyerrors.ErrInvalidArgument, "invalid table name size %d", len(name))
	}
	return nil
}

func footerCorrupt(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(honeyerrors.ErrCorrupt, "truncated container footer")
	}
	return errors.Wrap(err, "read container footer")
}
