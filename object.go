package blend

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/meigma/blend/internal/sdna"
)

// Object presents one block (or a sub-range of one) as a lazily-decoded
// record of its compiled structure layout.
//
// Field values are decoded on first access and cached, so repeated Get
// calls return the identical value or sub-object. Pointer fields decode
// to their raw address; dereferencing happens only through Deref, which
// memoizes its result.
type Object struct {
	file  *File
	typ   *sdna.Type
	block *Block
	data  []byte

	mu     sync.Mutex
	fields map[string]any
	derefs map[string]*Object
	lists  map[string][]*Object
	elems  map[int]*Object
}

// Struct returns the structure name the object is bound to.
func (o *Object) Struct() string {
	return o.typ.Name
}

// Block returns the descriptor of the block backing the object.
// Nested sub-objects report their parent's block.
func (o *Object) Block() Block {
	return *o.block
}

// FieldNames returns the clean field names in declaration order.
func (o *Object) FieldNames() []string {
	names := make([]string, len(o.typ.Fields))
	for i := range o.typ.Fields {
		names[i] = o.typ.Fields[i].Name
	}
	return names
}

// Count returns the number of consecutive elements in the backing
// block; 1 for nested sub-objects and sub-views.
func (o *Object) Count() int {
	if o.block != nil && len(o.data) == int(o.block.Size) {
		return int(o.block.Count)
	}
	return 1
}

// Elem returns a sub-view of the i-th element of a multi-element
// block. Views are memoized; repeated calls return the same Object.
func (o *Object) Elem(i int) (*Object, error) {
	if o.file.closed.Load() {
		return nil, ErrClosed
	}
	if i < 0 || i >= o.Count() {
		return nil, fmt.Errorf("blend: element %d out of range [0,%d)", i, o.Count())
	}
	end := (i + 1) * o.typ.Size
	if end > len(o.data) {
		return nil, fmt.Errorf("%w: block payload too short for element %d of %q", ErrFormat, i, o.typ.Name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.elems[i]; ok {
		return e, nil
	}
	e := &Object{file: o.file, typ: o.typ, block: o.block, data: o.data[i*o.typ.Size : end]}
	if o.elems == nil {
		o.elems = map[int]*Object{}
	}
	o.elems[i] = e
	return e, nil
}

// Get decodes the named field.
//
// Primitive scalars decode to int64, uint64, or float64; char arrays
// decode to a string cut at the first NUL; array dimensions produce
// nested []any. Embedded structures come back as *Object sharing this
// object's buffer. Pointer fields yield their raw address (uint64, or
// shaped []any of addresses) for diagnostics; use Deref to follow them.
// Results are cached, so repeated access returns the identical value.
func (o *Object) Get(name string) (any, error) {
	if o.file.closed.Load() {
		return nil, ErrClosed
	}
	field, ok := o.typ.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no field %q", ErrUnknownField, o.typ.Name, name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if v, ok := o.fields[name]; ok {
		return v, nil
	}

	v, err := o.decode(field)
	if err != nil {
		return nil, err
	}
	if o.fields == nil {
		o.fields = map[string]any{}
	}
	o.fields[name] = v
	return v, nil
}

// Deref follows the named pointer field.
//
// A null address or one no block owns resolves to (nil, nil); that is a
// defined result, not an error. A resolved address binds an Object over
// the target block with that block's own declared structure layout,
// memoized so repeat calls return the identical Object.
func (o *Object) Deref(name string) (*Object, error) {
	field, err := o.pointerField(name)
	if err != nil {
		return nil, err
	}
	if len(field.Dims) > 0 {
		return nil, fmt.Errorf("blend: field %q is a pointer array, use DerefAll", name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if target, ok := o.derefs[name]; ok {
		return target, nil
	}
	if err := o.checkBounds(field); err != nil {
		return nil, err
	}

	target, err := o.file.objectAt(o.addrAt(field.Offset))
	if err != nil {
		return nil, err
	}
	if o.derefs == nil {
		o.derefs = map[string]*Object{}
	}
	o.derefs[name] = target
	return target, nil
}

// DerefAll follows every element of a pointer array field. Null and
// unresolved entries come back as nil in place.
func (o *Object) DerefAll(name string) ([]*Object, error) {
	field, err := o.pointerField(name)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if targets, ok := o.lists[name]; ok {
		return targets, nil
	}
	if err := o.checkBounds(field); err != nil {
		return nil, err
	}

	targets := make([]*Object, field.Elems())
	for i := range targets {
		t, err := o.file.objectAt(o.addrAt(field.Offset + i*field.ElemSize))
		if err != nil {
			return nil, err
		}
		targets[i] = t
	}
	if o.lists == nil {
		o.lists = map[string][]*Object{}
	}
	o.lists[name] = targets
	return targets, nil
}

// Equal reports value equality: same structure name and byte-identical
// raw data. Separately constructed objects over the same bytes compare
// equal; no field is decoded.
func (o *Object) Equal(other *Object) bool {
	if other == nil {
		return false
	}
	return o.typ.Name == other.typ.Name && bytes.Equal(o.data, other.data)
}

// Hash returns a hash consistent with Equal, derived from the
// structure name and the raw data only.
func (o *Object) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(o.typ.Name))
	h.Write([]byte{0})
	h.Write(o.data)
	return h.Sum64()
}

func (o *Object) pointerField(name string) (*sdna.Field, error) {
	if o.file.closed.Load() {
		return nil, ErrClosed
	}
	field, ok := o.typ.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q has no field %q", ErrUnknownField, o.typ.Name, name)
	}
	if field.PtrDepth == 0 {
		return nil, fmt.Errorf("%w: %q is not a pointer field", ErrUnknownField, name)
	}
	return field, nil
}

// objectAt resolves an original memory address to an Object over its
// owning block, or nil when the address is null, unclaimed, or the
// target block carries no usable structure index.
func (f *File) objectAt(addr uint64) (*Object, error) {
	target := f.resolver.Resolve(addr)
	if target == nil {
		return nil, nil
	}
	typ, err := f.catalog.CompileAt(int(target.SDNA))
	if errors.Is(err, ErrUnknownStruct) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f.newObject(target, typ)
}

func (o *Object) checkBounds(field *sdna.Field) error {
	if field.Offset+field.Size > len(o.data) {
		return fmt.Errorf("%w: block payload too short for field %q of %q",
			ErrFormat, field.Name, o.typ.Name)
	}
	return nil
}

func (o *Object) decode(field *sdna.Field) (any, error) {
	if err := o.checkBounds(field); err != nil {
		return nil, err
	}

	if field.PtrDepth > 0 {
		return o.shape(field.Dims, field.Offset, field.ElemSize, func(off int) any {
			return o.addrAt(off)
		}), nil
	}

	switch field.Kind {
	case sdna.KindStruct:
		nested, err := o.file.catalog.Compile(field.Type)
		if err != nil {
			return nil, err
		}
		return o.shape(field.Dims, field.Offset, field.ElemSize, func(off int) any {
			// Sub-objects alias the parent buffer; no copy.
			return &Object{file: o.file, typ: nested, block: o.block, data: o.data[off : off+nested.Size]}
		}), nil

	case sdna.KindPrimitive:
		if field.Class == sdna.ClassChar && len(field.Dims) > 0 {
			// The innermost dimension is a NUL-terminated string.
			last := field.Dims[len(field.Dims)-1] * field.ElemSize
			return o.shape(field.Dims[:len(field.Dims)-1], field.Offset, last, func(off int) any {
				return cstring(o.data[off : off+last])
			}), nil
		}
		return o.shape(field.Dims, field.Offset, field.ElemSize, func(off int) any {
			return o.scalar(field, off)
		}), nil

	default:
		// Unknown base type: expose the raw bytes.
		return o.data[field.Offset : field.Offset+field.Size], nil
	}
}

// shape builds nested []any slices per the array dimensions, outermost
// first; with no dimensions it decodes a single element.
func (o *Object) shape(dims []int, off, elemSize int, elem func(off int) any) any {
	if len(dims) == 0 {
		return elem(off)
	}
	stride := elemSize
	for _, d := range dims[1:] {
		stride *= d
	}
	out := make([]any, dims[0])
	for i := range out {
		out[i] = o.shape(dims[1:], off+i*stride, elemSize, elem)
	}
	return out
}

func (o *Object) scalar(field *sdna.Field, off int) any {
	order := o.file.hdr.Order
	b := o.data[off:]
	switch field.Class {
	case sdna.ClassFloat:
		if field.ElemSize == 8 {
			return math.Float64frombits(order.Uint64(b))
		}
		return float64(math.Float32frombits(order.Uint32(b)))
	case sdna.ClassUint:
		switch field.ElemSize {
		case 1:
			return uint64(b[0])
		case 2:
			return uint64(order.Uint16(b))
		case 4:
			return uint64(order.Uint32(b))
		default:
			return order.Uint64(b)
		}
	default:
		switch field.ElemSize {
		case 1:
			return int64(int8(b[0]))
		case 2:
			return int64(int16(order.Uint16(b)))
		case 4:
			return int64(int32(order.Uint32(b)))
		default:
			return int64(order.Uint64(b))
		}
	}
}

func (o *Object) addrAt(off int) uint64 {
	order := o.file.hdr.Order
	if o.file.hdr.PtrSize == 8 {
		return order.Uint64(o.data[off:])
	}
	return uint64(order.Uint32(o.data[off:]))
}

// idName decodes the object's identifying name: the "name" field of
// its embedded ID structure, two-character code prefix stripped.
func (o *Object) idName(idField string) (string, error) {
	v, err := o.Get(idField)
	if err != nil {
		return "", err
	}
	idObj, ok := v.(*Object)
	if !ok {
		return "", fmt.Errorf("%w: field %q of %q is not an embedded structure", ErrUnknownField, idField, o.typ.Name)
	}
	nv, err := idObj.Get("name")
	if err != nil {
		return "", err
	}
	name, ok := nv.(string)
	if !ok {
		return "", fmt.Errorf("%w: id name of %q is not a string", ErrUnknownField, o.typ.Name)
	}
	if len(name) >= 2 {
		name = name[2:]
	}
	return name, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
