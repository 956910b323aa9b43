// Package sdna decodes the embedded schema of a blend file and compiles
// its structure definitions into field-layout tables.
//
// A blend file is self-describing: one reserved block carries the SDNA,
// a catalog of every structure layout the file uses. Layouts vary from
// version to version, so nothing here is known before load time.
package sdna

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/blend/internal/blendtype"
)

// Catalog holds the decoded schema of one blend file: the names table,
// the type-names table, per-type byte lengths, and the ordered structure
// definitions. Catalogs are immutable after Load; the compiled-type
// cache they carry is populate-once.
type Catalog struct {
	id      string
	order   binary.ByteOrder
	ptrSize int

	names   []string
	types   []string
	lens    []int
	structs []structDef

	structByName map[string]int

	mu       sync.RWMutex
	compiled map[string]*Type
	group    singleflight.Group
}

type structDef struct {
	typeIndex int
	fields    []fieldRef
}

type fieldRef struct {
	typeIndex int
	nameIndex int
}

// Shared catalog cache keyed by schema identity. Files carrying
// byte-identical schemas share one catalog and therefore one set of
// compiled types. Entries are refcounted and evicted when the last
// holder releases.
var (
	cacheMu sync.Mutex
	cache   = map[string]*cacheEntry{}
)

type cacheEntry struct {
	catalog *Catalog
	refs    int
}

// Load decodes a schema block payload, or returns the already-loaded
// catalog when an identical schema is open elsewhere. Every Load must be
// paired with a Release.
func Load(payload []byte, hdr blendtype.Header) (*Catalog, error) {
	id := identity(payload, hdr)

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if e, ok := cache[id]; ok {
		e.refs++
		return e.catalog, nil
	}

	c, err := parse(payload, hdr)
	if err != nil {
		return nil, err
	}
	c.id = id
	cache[id] = &cacheEntry{catalog: c, refs: 1}
	return c, nil
}

// Release drops one reference to the catalog. At zero the catalog and
// every compiled type it cached are evicted from the shared cache.
func Release(c *Catalog) {
	if c == nil {
		return
	}
	cacheMu.Lock()
	defer cacheMu.Unlock()
	e, ok := cache[c.id]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(cache, c.id)
	}
}

// identity derives the cache key for a schema. The raw payload digest
// alone is not enough: the same bytes decode differently under another
// byte order or pointer width, so both are part of the key.
func identity(payload []byte, hdr blendtype.Header) string {
	tag := "be"
	if hdr.Order == binary.LittleEndian {
		tag = "le"
	}
	return fmt.Sprintf("%s/%s%d", digest.FromBytes(payload), tag, hdr.PtrSize)
}

// ID returns the schema identity string.
func (c *Catalog) ID() string { return c.id }

// StructNames returns the names of every structure the schema defines,
// in definition order.
func (c *Catalog) StructNames() []string {
	names := make([]string, len(c.structs))
	for i, s := range c.structs {
		names[i] = c.types[s.typeIndex]
	}
	return names
}

// StructIndex returns the position of the named structure in the
// structures table, which is what block headers store.
func (c *Catalog) StructIndex(name string) (int, bool) {
	i, ok := c.structByName[name]
	return i, ok
}

// StructNameAt returns the name of the structure at the given position
// in the structures table.
func (c *Catalog) StructNameAt(i int) (string, bool) {
	if i < 0 || i >= len(c.structs) {
		return "", false
	}
	return c.types[c.structs[i].typeIndex], true
}

// Section tags inside the schema payload, each aligned to 4 bytes.
const (
	tagSchema  = "SDNA"
	tagNames   = "NAME"
	tagTypes   = "TYPE"
	tagLengths = "TLEN"
	tagStructs = "STRC"
)

func parse(payload []byte, hdr blendtype.Header) (*Catalog, error) {
	r := &sectionReader{buf: payload, order: hdr.Order}

	if err := r.tag(tagSchema); err != nil {
		return nil, err
	}

	if err := r.tag(tagNames); err != nil {
		return nil, err
	}
	nameCount, err := r.count()
	if err != nil {
		return nil, err
	}
	names, err := r.strings(nameCount)
	if err != nil {
		return nil, err
	}

	r.align4()
	if err := r.tag(tagTypes); err != nil {
		return nil, err
	}
	typeCount, err := r.count()
	if err != nil {
		return nil, err
	}
	types, err := r.strings(typeCount)
	if err != nil {
		return nil, err
	}

	r.align4()
	if err := r.tag(tagLengths); err != nil {
		return nil, err
	}
	lens := make([]int, typeCount)
	for i := range lens {
		n, err := r.int16()
		if err != nil {
			return nil, err
		}
		lens[i] = n
	}

	r.align4()
	if err := r.tag(tagStructs); err != nil {
		return nil, err
	}
	structCount, err := r.count()
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		order:        hdr.Order,
		ptrSize:      hdr.PtrSize,
		names:        names,
		types:        types,
		lens:         lens,
		structs:      make([]structDef, 0, structCount),
		structByName: make(map[string]int, structCount),
		compiled:     map[string]*Type{},
	}

	for i := 0; i < structCount; i++ {
		typeIndex, err := r.int16()
		if err != nil {
			return nil, err
		}
		if typeIndex < 0 || typeIndex >= typeCount {
			return nil, fmt.Errorf("%w: structure %d names type %d of %d", blendtype.ErrFormat, i, typeIndex, typeCount)
		}
		fieldCount, err := r.int16()
		if err != nil {
			return nil, err
		}
		def := structDef{typeIndex: typeIndex, fields: make([]fieldRef, 0, fieldCount)}
		for j := 0; j < fieldCount; j++ {
			ft, err := r.int16()
			if err != nil {
				return nil, err
			}
			fn, err := r.int16()
			if err != nil {
				return nil, err
			}
			if ft < 0 || ft >= typeCount {
				return nil, fmt.Errorf("%w: field %d of structure %q names type %d of %d", blendtype.ErrFormat, j, types[typeIndex], ft, typeCount)
			}
			if fn < 0 || fn >= nameCount {
				return nil, fmt.Errorf("%w: field %d of structure %q names name %d of %d", blendtype.ErrFormat, j, types[typeIndex], fn, nameCount)
			}
			def.fields = append(def.fields, fieldRef{typeIndex: ft, nameIndex: fn})
		}
		c.structs = append(c.structs, def)
		c.structByName[types[typeIndex]] = i
	}

	return c, nil
}

// sectionReader is a bounds-checked cursor over the schema payload.
type sectionReader struct {
	buf   []byte
	off   int
	order binary.ByteOrder
}

func (r *sectionReader) tag(want string) error {
	if r.off+4 > len(r.buf) {
		return fmt.Errorf("%w: schema truncated before %s section", blendtype.ErrFormat, want)
	}
	got := string(r.buf[r.off : r.off+4])
	if got != want {
		return fmt.Errorf("%w: schema section tag %q, want %q", blendtype.ErrFormat, got, want)
	}
	r.off += 4
	return nil
}

func (r *sectionReader) count() (int, error) {
	if r.off+4 > len(r.buf) {
		return 0, fmt.Errorf("%w: schema truncated in count", blendtype.ErrFormat)
	}
	n := int32(r.order.Uint32(r.buf[r.off : r.off+4]))
	r.off += 4
	if n < 0 {
		return 0, fmt.Errorf("%w: negative schema count %d", blendtype.ErrFormat, n)
	}
	return int(n), nil
}

func (r *sectionReader) int16() (int, error) {
	if r.off+2 > len(r.buf) {
		return 0, fmt.Errorf("%w: schema truncated in value", blendtype.ErrFormat)
	}
	n := int16(r.order.Uint16(r.buf[r.off : r.off+2]))
	r.off += 2
	return int(n), nil
}

// strings reads n consecutive NUL-terminated strings.
func (r *sectionReader) strings(n int) ([]string, error) {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		start := r.off
		for {
			if r.off >= len(r.buf) {
				return nil, fmt.Errorf("%w: schema truncated in string table", blendtype.ErrFormat)
			}
			if r.buf[r.off] == 0 {
				break
			}
			r.off++
		}
		out = append(out, string(r.buf[start:r.off]))
		r.off++ // NUL
	}
	return out, nil
}

func (r *sectionReader) align4() {
	if rem := r.off % 4; rem != 0 {
		r.off += 4 - rem
	}
}
