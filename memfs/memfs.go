// Package memfs implements an in-memory file store with block-chained
// files, reference-counted by open descriptors.
//
// Files hold their bytes in a chain of fixed 512 byte blocks. Descriptors
// carry independent cursors over one shared file. Deleting a file unlinks
// its name immediately but keeps the data alive while descriptors remain
// open (orphaning); the memory goes away when the last descriptor closes.
//
// Nothing is persisted: Destroy drops the whole store.
package memfs

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/syskit/syskit/lib/logging"
)

// Sizing constants.
const (
	// BlockSize is the fixed size of one file block.
	BlockSize = 512
	// MaxFileSize caps a single file.
	MaxFileSize = 100 * 1024 * 1024
)

// Errors returned by file store operations.
var (
	ErrNoFile       = errors.New("no such file")
	ErrNoPermission = errors.New("permission denied")
	ErrNoMem        = errors.New("file size limit exceeded")
)

// Flags select creation and access mode on Open.
type Flags int

// Open flags. With no mode flag set the descriptor is read-write.
const (
	Create Flags = 1 << iota
	ReadOnly
	WriteOnly
	ReadWrite
)

// block is one fixed-size leaf of a file's chain.
type block struct {
	data [BlockSize]byte
}

// file is the store-side object behind one name.
type file struct {
	name          string
	blocks        *list.List // of *block
	refs          int
	pendingDelete bool
	eof           int64
	elem          *list.Element // position in FS.files, for O(1) unlink
}

func (f *file) String() string {
	return fmt.Sprintf("file %q", f.name)
}

// blockCount returns how many blocks the chain currently holds.
func (f *file) blockCount() int {
	return f.blocks.Len()
}

// blockAt returns the n-th block of the chain.
func (f *file) blockAt(n int) *block {
	e := f.blocks.Front()
	for i := 0; i < n; i++ {
		e = e.Next()
	}
	return e.Value.(*block)
}

// fileDesc is one open descriptor: a file, a mode and a cursor.
type fileDesc struct {
	file  *file
	flags Flags
	pos   int64 // cursor as a plain byte offset
}

// FS is the store: a file list plus the descriptor table. Descriptor slots
// are reused lowest-index first.
type FS struct {
	mu    sync.Mutex
	files *list.List // of *file
	fds   []*fileDesc
}

// New creates an empty store.
func New() *FS {
	return &FS{files: list.New()}
}

// String returns the store's name for logs.
func (fs *FS) String() string {
	return "memfs"
}

// findLive looks a file up by name, skipping orphaned ones.
func (fs *FS) findLive(name string) *file {
	for e := fs.files.Front(); e != nil; e = e.Next() {
		f := e.Value.(*file)
		if f.name == name && !f.pendingDelete {
			return f
		}
	}
	return nil
}

// desc validates a descriptor number.
func (fs *FS) desc(fd int) *fileDesc {
	if fd < 0 || fd >= len(fs.fds) {
		return nil
	}
	return fs.fds[fd]
}

// Open returns a descriptor on the named file. Without Create the file must
// exist; with Create a missing (or orphaned) name allocates a fresh file.
// The descriptor starts with its cursor at offset zero and takes the lowest
// vacant slot.
func (fs *FS) Open(name string, flags Flags) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f := fs.findLive(name)
	if f == nil {
		if flags&Create == 0 {
			return -1, ErrNoFile
		}
		f = &file{name: name, blocks: list.New()}
		f.elem = fs.files.PushBack(f)
		logging.Debugf(fs, "created %q", name)
	}
	f.refs++

	fd := &fileDesc{file: f, flags: flags}
	for i, slot := range fs.fds {
		if slot == nil {
			fs.fds[i] = fd
			return i, nil
		}
	}
	fs.fds = append(fs.fds, fd)
	return len(fs.fds) - 1, nil
}

// Write copies buf at the descriptor's cursor, growing the block chain as
// the cursor crosses block boundaries, and advances the cursor. A write
// that would exceed MaxFileSize is rejected whole.
func (fs *FS) Write(fd int, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d := fs.desc(fd)
	if d == nil {
		return -1, ErrNoFile
	}
	if d.flags&ReadOnly != 0 {
		return -1, ErrNoPermission
	}
	if d.pos+int64(len(buf)) > MaxFileSize {
		return -1, ErrNoMem
	}

	f := d.file
	if f.blockCount() == 0 {
		f.blocks.PushBack(&block{})
	}
	written := 0
	for written < len(buf) {
		idx := int(d.pos / BlockSize)
		off := int(d.pos % BlockSize)
		if idx == f.blockCount() {
			f.blocks.PushBack(&block{})
		}
		n := copy(f.blockAt(idx).data[off:], buf[written:])
		written += n
		d.pos += int64(n)
	}
	if d.pos > f.eof {
		f.eof = d.pos
	}
	return written, nil
}

// Read copies up to len(buf) bytes from the descriptor's cursor, clamped to
// the end of file, and advances the cursor. A cursor at or past the end
// reads zero bytes.
func (fs *FS) Read(fd int, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d := fs.desc(fd)
	if d == nil {
		return -1, ErrNoFile
	}
	if d.flags&WriteOnly != 0 {
		return -1, ErrNoPermission
	}

	f := d.file
	if d.pos >= f.eof {
		return 0, nil
	}
	size := int64(len(buf))
	if d.pos+size > f.eof {
		size = f.eof - d.pos
	}
	read := 0
	for int64(read) < size {
		idx := int(d.pos / BlockSize)
		off := int(d.pos % BlockSize)
		n := copy(buf[read:int(size)], f.blockAt(idx).data[off:])
		read += n
		d.pos += int64(n)
	}
	return read, nil
}

// Close releases the descriptor slot. If the file is orphaned and this was
// its last descriptor, the file and its blocks go away with it.
func (fs *FS) Close(fd int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d := fs.desc(fd)
	if d == nil {
		return ErrNoFile
	}
	f := d.file
	f.refs--
	if f.pendingDelete && f.refs == 0 {
		fs.reap(f)
	}
	fs.fds[fd] = nil
	return nil
}

// Delete unlinks the named file. Open descriptors keep the data alive; the
// name becomes immediately available for a fresh Create, which allocates a
// new file object.
func (fs *FS) Delete(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f := fs.findLive(name)
	if f == nil {
		return ErrNoFile
	}
	f.pendingDelete = true
	if f.refs == 0 {
		fs.reap(f)
	} else {
		logging.Debugf(fs, "orphaned %q with %d open descriptor(s)", name, f.refs)
	}
	return nil
}

// reap unlinks f from the store and frees its blocks.
func (fs *FS) reap(f *file) {
	fs.files.Remove(f.elem)
	f.blocks.Init()
	logging.Debugf(fs, "reaped %q", f.name)
}

// Resize grows or shrinks the file behind the descriptor.
//
// Growing allocates zero-filled blocks to cover size without moving the end
// of file. Shrinking frees trailing blocks, moves the end of file to size
// and clamps every cursor of the same file that now points past it.
func (fs *FS) Resize(fd int, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d := fs.desc(fd)
	if d == nil {
		return ErrNoFile
	}
	if d.flags&ReadOnly != 0 {
		return ErrNoPermission
	}
	if size > MaxFileSize {
		return ErrNoMem
	}

	f := d.file
	want := int((size + BlockSize - 1) / BlockSize)
	if f.eof <= size {
		for f.blockCount() < want {
			f.blocks.PushBack(&block{})
		}
		return nil
	}

	for f.blockCount() > want {
		f.blocks.Remove(f.blocks.Back())
	}
	f.eof = size
	for _, other := range fs.fds {
		if other != nil && other.file == f && other.pos > size {
			other.pos = size
		}
	}
	return nil
}

// Destroy frees every file and resets the descriptor table, dropping its
// reserve as well.
func (fs *FS) Destroy() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for e := fs.files.Front(); e != nil; e = e.Next() {
		e.Value.(*file).blocks.Init()
	}
	fs.files = list.New()
	fs.fds = nil
	logging.Debugf(fs, "destroyed")
}
