package blend

import (
	"fmt"
	"iter"

	"github.com/meigma/blend/internal/sdna"
)

// Factory reads the objects of one structure from a file's data blocks.
//
// The block list is filtered once at creation and fixed thereafter.
type Factory struct {
	file   *File
	typ    *sdna.Type
	blocks []*Block
}

// Structure returns the structure name the factory is bound to.
func (fa *Factory) Structure() string {
	return fa.typ.Name
}

// Len returns the number of matching data blocks.
func (fa *Factory) Len() int {
	return len(fa.blocks)
}

// All returns a sequence of one Object per matching block, in file
// order. The sequence is restartable: every range starts fresh with no
// shared cursor. Iteration stops after the first read error.
func (fa *Factory) All() iter.Seq2[*Object, error] {
	return func(yield func(*Object, error) bool) {
		for _, b := range fa.blocks {
			obj, err := fa.file.newObject(b, fa.typ)
			if !yield(obj, err) || err != nil {
				return
			}
		}
	}
}

// FindByName scans the factory's objects for the one whose id name
// matches id. The conventional two-character structure code prefix of
// stored names is stripped before comparison, so Scene "SCOutdoor" is
// found as "Outdoor". Returns ErrNotFound when no object matches.
func (fa *Factory) FindByName(id string) (*Object, error) {
	idField, ok := fa.idField()
	if !ok {
		return nil, fmt.Errorf("%w: structure %q has no id field", ErrUnknownField, fa.typ.Name)
	}

	for obj, err := range fa.All() {
		if err != nil {
			return nil, err
		}
		name, err := obj.idName(idField)
		if err != nil {
			return nil, err
		}
		if name == id {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("%w: no %q named %q", ErrNotFound, fa.typ.Name, id)
}

// idField locates the embedded ID structure carrying the object name.
func (fa *Factory) idField() (string, bool) {
	for i := range fa.typ.Fields {
		f := &fa.typ.Fields[i]
		if f.Kind == sdna.KindStruct && f.Type == "ID" && f.PtrDepth == 0 {
			return f.Name, true
		}
	}
	return "", false
}

func (f *File) newObject(b *Block, typ *sdna.Type) (*Object, error) {
	data, err := f.payload(b)
	if err != nil {
		return nil, err
	}
	return &Object{file: f, typ: typ, block: b, data: data}, nil
}
