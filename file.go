package blend

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/meigma/blend/internal/blendtype"
	"github.com/meigma/blend/internal/scan"
	"github.com/meigma/blend/internal/sdna"
)

// File provides read access to one open blend file.
//
// Opening runs a fixed sequence: header, block index, schema catalog.
// All of it must succeed before a File is returned; a failure part way
// through releases the byte source and returns only the error.
//
// A File and everything derived from it (factories, objects, compiled
// layouts) is safe for use by a single owner. The lazy caches are
// guarded during first population, but no cross-goroutine ordering is
// promised beyond that.
type File struct {
	src      ByteSource
	hdr      Header
	blocks   []Block
	resolver *scan.Resolver
	catalog  *sdna.Catalog

	logger *slog.Logger
	closed atomic.Bool

	facMu     sync.Mutex
	factories map[string]*Factory
}

// New creates a File over an already-open byte source.
//
// If the source implements io.Closer it is closed on open failure and
// again by Close, mirroring Open.
func New(source ByteSource, opts ...Option) (*File, error) {
	f := &File{
		src:       source,
		factories: map[string]*Factory{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.load(); err != nil {
		f.release()
		return nil, err
	}
	return f, nil
}

func (f *File) load() error {
	size := f.src.Size()

	head := make([]byte, blendtype.HeaderSize)
	if size < int64(len(head)) {
		head = head[:size]
	}
	if _, err := f.src.ReadAt(head, 0); err != nil && err != io.EOF {
		return fmt.Errorf("read header: %w", err)
	}
	hdr, err := blendtype.ParseHeader(head)
	if err != nil {
		return err
	}
	f.hdr = hdr

	blocks, err := scan.Index(f.src, size, hdr)
	if err != nil {
		return err
	}
	f.blocks = blocks

	var schemaBlock *Block
	for i := range blocks {
		if blocks[i].Code != blendtype.CodeSchema {
			continue
		}
		if schemaBlock != nil {
			return fmt.Errorf("%w: duplicate schema block", ErrFormat)
		}
		schemaBlock = &blocks[i]
	}
	if schemaBlock == nil {
		return fmt.Errorf("%w: missing schema block", ErrFormat)
	}

	payload := make([]byte, schemaBlock.Size)
	if _, err := f.src.ReadAt(payload, schemaBlock.Offset); err != nil {
		return fmt.Errorf("read schema block: %w", err)
	}
	catalog, err := sdna.Load(payload, hdr)
	if err != nil {
		return err
	}
	f.catalog = catalog
	f.resolver = scan.NewResolver(blocks)

	f.log().Debug("blend file opened",
		"version", hdr.Version.String(),
		"ptrSize", hdr.PtrSize,
		"blocks", len(blocks),
		"schema", catalog.ID())
	return nil
}

// release drops the catalog reference and the byte source.
func (f *File) release() error {
	sdna.Release(f.catalog)
	f.catalog = nil
	if c, ok := f.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (f *File) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.logger
}

// Close releases the byte source and the shared schema reference.
// Every later decode attempt on the File or anything derived from it
// fails with ErrClosed. Close is idempotent.
func (f *File) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	return f.release()
}

// Header returns the decoded file prologue.
func (f *File) Header() Header {
	return f.hdr
}

// Blocks returns the ordered block descriptors recorded by the index
// scan, the schema block included, the terminal block not.
func (f *File) Blocks() []Block {
	return slices.Clone(f.blocks)
}

// ListStructures returns the sorted names of every structure the
// file's schema defines. No layout is compiled.
func (f *File) ListStructures() ([]string, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	names := f.catalog.StructNames()
	slices.Sort(names)
	return names, nil
}

// Describe renders the declared field tree of the named structure,
// recursing through embedded structures. A discovery aid for finding
// field names; see Object.Get for access.
func (f *File) Describe(name string) (string, error) {
	return f.DescribeDepth(name, math.MaxInt)
}

// DescribeDepth is Describe with recursion limited to depth levels of
// embedded structures; depth 0 lists only the immediate fields.
func (f *File) DescribeDepth(name string, depth int) (string, error) {
	if f.closed.Load() {
		return "", ErrClosed
	}
	fields, err := f.catalog.DescribeFields(name, depth)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (v%s)\n%s", name, f.hdr.Version, fields), nil
}

// ForStructure returns the object factory for the named structure.
// The factory's block list is fixed at this call; factories are cached
// per name.
func (f *File) ForStructure(name string) (*Factory, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}

	f.facMu.Lock()
	defer f.facMu.Unlock()
	if fac, ok := f.factories[name]; ok {
		return fac, nil
	}

	idx, ok := f.catalog.StructIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStruct, name)
	}
	typ, err := f.catalog.Compile(name)
	if err != nil {
		return nil, err
	}

	var blocks []*Block
	for i := range f.blocks {
		b := &f.blocks[i]
		if b.Code == blendtype.CodeSchema {
			continue
		}
		if int(b.SDNA) == idx {
			blocks = append(blocks, b)
		}
	}

	fac := &Factory{file: f, typ: typ, blocks: blocks}
	f.factories[name] = fac
	f.log().Debug("factory created", "structure", name, "blocks", len(blocks))
	return fac, nil
}

// payload reads a block's payload bytes.
func (f *File) payload(b *Block) ([]byte, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	buf := make([]byte, b.Size)
	if _, err := f.src.ReadAt(buf, b.Offset); err != nil {
		return nil, fmt.Errorf("read block %q payload: %w", b.Code, err)
	}
	return buf, nil
}
