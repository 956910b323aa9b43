package sdna

import (
	"fmt"

	"github.com/meigma/blend/internal/blendtype"
)

// Kind classifies a field's base type.
type Kind uint8

const (
	// KindPrimitive is a scalar the schema tabulates a length for.
	KindPrimitive Kind = iota

	// KindStruct is another structure of this schema, embedded by value.
	KindStruct

	// KindUnknown is a type with no primitive class and no structure
	// definition, e.g. void. Its bytes are exposed raw.
	KindUnknown
)

// Class refines KindPrimitive for value decoding.
type Class uint8

const (
	ClassInt Class = iota
	ClassUint
	ClassFloat
	ClassChar
)

// primClasses maps the primitive type names blend files use. Sizes are
// never taken from here; the schema's own length table is authoritative.
var primClasses = map[string]Class{
	"char":     ClassChar,
	"uchar":    ClassUint,
	"short":    ClassInt,
	"ushort":   ClassUint,
	"int":      ClassInt,
	"long":     ClassInt,
	"ulong":    ClassUint,
	"float":    ClassFloat,
	"double":   ClassFloat,
	"int64_t":  ClassInt,
	"uint64_t": ClassUint,
	"int8_t":   ClassInt,
	"uint8_t":  ClassUint,
}

// Field is the compiled layout of one structure field.
type Field struct {
	// Name is the field name stripped of pointer markers and array
	// dimensions; RawName keeps the schema's original spelling.
	Name    string
	RawName string

	// Type is the base type name.
	Type string

	Kind  Kind
	Class Class // meaningful only for KindPrimitive

	// PtrDepth is the number of leading pointer markers; zero for
	// plain values.
	PtrDepth int

	// Dims is the array shape, outermost first; nil for scalars.
	Dims []int

	// Offset and Size locate the field inside the structure payload.
	// ElemSize is the size of one array element (Size when scalar).
	Offset   int
	Size     int
	ElemSize int
}

// Elems returns the total element count, 1 for scalars.
func (f *Field) Elems() int {
	n := 1
	for _, d := range f.Dims {
		n *= d
	}
	return n
}

// Type is the compiled field-layout table for one structure: every
// field with its offset, size, shape, and kind, in declaration order.
// Compiled types are cached per catalog, so all objects of one
// structure in one file (or in files sharing the schema) see the same
// instance.
type Type struct {
	Name   string
	Size   int
	Fields []Field

	byName map[string]int
}

// Field returns the compiled layout of the named field.
func (t *Type) Field(name string) (*Field, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return &t.Fields[i], true
}

// Compile returns the compiled layout for the named structure,
// building and caching it on first use. Repeat calls return the
// identical instance.
func (c *Catalog) Compile(name string) (*Type, error) {
	c.mu.RLock()
	t := c.compiled[name]
	c.mu.RUnlock()
	if t != nil {
		return t, nil
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		c.mu.RLock()
		t := c.compiled[name]
		c.mu.RUnlock()
		if t != nil {
			return t, nil
		}
		t, err := c.compile(name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.compiled[name] = t
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Type), nil
}

// CompileAt compiles the structure at the given position in the
// structures table, which is how blocks name their layout.
func (c *Catalog) CompileAt(i int) (*Type, error) {
	name, ok := c.StructNameAt(i)
	if !ok {
		return nil, fmt.Errorf("%w: structure index %d", blendtype.ErrUnknownStruct, i)
	}
	return c.Compile(name)
}

func (c *Catalog) compile(name string) (*Type, error) {
	idx, ok := c.structByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", blendtype.ErrUnknownStruct, name)
	}
	def := c.structs[idx]
	declared := c.lens[def.typeIndex]

	t := &Type{
		Name:   name,
		Size:   declared,
		Fields: make([]Field, 0, len(def.fields)),
		byName: make(map[string]int, len(def.fields)),
	}

	// Fields are packed in declaration order; offsets accumulate with
	// no implicit padding.
	offset := 0
	for _, ref := range def.fields {
		raw := c.names[ref.nameIndex]
		typeName := c.types[ref.typeIndex]
		clean, ptrDepth, dims := parseFieldName(raw)

		f := Field{
			Name:     clean,
			RawName:  raw,
			Type:     typeName,
			PtrDepth: ptrDepth,
			Dims:     dims,
			Offset:   offset,
		}

		if _, isStruct := c.structByName[typeName]; isStruct {
			f.Kind = KindStruct
		} else if class, isPrim := primClasses[typeName]; isPrim {
			f.Kind = KindPrimitive
			f.Class = class
		} else {
			f.Kind = KindUnknown
		}

		if ptrDepth > 0 {
			f.ElemSize = c.ptrSize
		} else {
			f.ElemSize = c.lens[ref.typeIndex]
		}
		if f.Kind == KindPrimitive && ptrDepth == 0 && !scalarSizeOK(f.Class, f.ElemSize) {
			return nil, fmt.Errorf("%w: structure %q field %q has unreadable %s length %d",
				blendtype.ErrFormat, name, clean, typeName, f.ElemSize)
		}
		f.Size = f.ElemSize * f.Elems()
		offset += f.Size

		t.byName[clean] = len(t.Fields)
		t.Fields = append(t.Fields, f)
	}

	// The declared length is checked, not trusted.
	if offset != declared {
		return nil, fmt.Errorf("%w: structure %q fields sum to %d bytes, schema declares %d",
			blendtype.ErrFormat, name, offset, declared)
	}
	return t, nil
}

// scalarSizeOK reports whether a tabulated primitive length is one the
// value decoder can read. The length table is file data, so a hostile
// or corrupt schema can tabulate any length for any primitive.
func scalarSizeOK(class Class, size int) bool {
	switch size {
	case 1, 2:
		return class != ClassFloat
	case 4, 8:
		return true
	default:
		return false
	}
}

// parseFieldName splits the shape the schema encodes in a field name:
// a leading run of pointer markers and trailing bracketed array
// dimensions, e.g. "**mat", "name[24]", "loc[3][3]", "(*handler)()".
// Unparseable dimension text is treated as part of the name.
func parseFieldName(raw string) (name string, ptrDepth int, dims []int) {
	s := raw
	for len(s) > 0 && s[0] == '(' {
		s = s[1:]
	}
	for len(s) > 0 && s[0] == '*' {
		ptrDepth++
		s = s[1:]
	}

	end := len(s)
	for i := 0; i < len(s); i++ {
		if s[i] == '[' || s[i] == ')' {
			end = i
			break
		}
	}
	name = s[:end]

	for i := end; i < len(s); {
		if s[i] != '[' {
			i++
			continue
		}
		j := i + 1
		n := 0
		digits := false
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			n = n*10 + int(s[j]-'0')
			digits = true
			j++
		}
		if !digits || j >= len(s) || s[j] != ']' {
			break
		}
		dims = append(dims, n)
		i = j + 1
	}
	return name, ptrDepth, dims
}
