// Package testutil builds synthetic blend streams for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// SchemaSpec describes a schema block payload to build.
type SchemaSpec struct {
	Names   []string
	Types   []string
	Lens    []int16
	Structs []StructSpec
}

// StructSpec is one structure definition: the index of its type name
// and (typeIndex, nameIndex) pairs for its fields.
type StructSpec struct {
	TypeIndex int16
	Fields    [][2]int16
}

// BlockSpec describes one data block to write.
type BlockSpec struct {
	Code  string
	Addr  uint64
	SDNA  int32
	Count int32
	Data  []byte

	// DeclaredSize overrides the size written in the block header,
	// for truncation tests. The payload written is always Data.
	DeclaredSize *int32
}

// FileSpec describes a whole blend stream to build.
type FileSpec struct {
	PtrSize int
	Order   binary.ByteOrder
	Version string // three ASCII digits

	Blocks []BlockSpec

	// Schema, when set, is appended as a DNA1 block after Blocks.
	// Blocks may carry additional explicit DNA1 entries for
	// duplicate-schema tests.
	Schema *SchemaSpec

	// OmitEnd leaves out the terminal ENDB block.
	OmitEnd bool
}

// BuildSchema encodes a schema block payload.
func BuildSchema(order binary.ByteOrder, s SchemaSpec) []byte {
	var b bytes.Buffer
	b.WriteString("SDNA")

	b.WriteString("NAME")
	writeUint32(&b, order, uint32(len(s.Names)))
	for _, n := range s.Names {
		b.WriteString(n)
		b.WriteByte(0)
	}

	pad4(&b)
	b.WriteString("TYPE")
	writeUint32(&b, order, uint32(len(s.Types)))
	for _, n := range s.Types {
		b.WriteString(n)
		b.WriteByte(0)
	}

	pad4(&b)
	b.WriteString("TLEN")
	for _, l := range s.Lens {
		writeUint16(&b, order, uint16(l))
	}

	pad4(&b)
	b.WriteString("STRC")
	writeUint32(&b, order, uint32(len(s.Structs)))
	for _, st := range s.Structs {
		writeUint16(&b, order, uint16(st.TypeIndex))
		writeUint16(&b, order, uint16(len(st.Fields)))
		for _, f := range st.Fields {
			writeUint16(&b, order, uint16(f[0]))
			writeUint16(&b, order, uint16(f[1]))
		}
	}
	return b.Bytes()
}

// BuildFile encodes a whole blend stream.
func BuildFile(tb testing.TB, spec FileSpec) []byte {
	tb.Helper()

	order := spec.Order
	if order == nil {
		order = binary.LittleEndian
	}
	ptrSize := spec.PtrSize
	if ptrSize == 0 {
		ptrSize = 8
	}
	version := spec.Version
	if version == "" {
		version = "277"
	}

	var b bytes.Buffer
	b.WriteString("BLENDER")
	if ptrSize == 8 {
		b.WriteByte('-')
	} else {
		b.WriteByte('_')
	}
	if order == binary.LittleEndian {
		b.WriteByte('v')
	} else {
		b.WriteByte('V')
	}
	b.WriteString(version)

	blocks := spec.Blocks
	if spec.Schema != nil {
		blocks = append(append([]BlockSpec{}, blocks...), BlockSpec{
			Code:  "DNA1",
			Count: 1,
			Data:  BuildSchema(order, *spec.Schema),
		})
	}
	for _, blk := range blocks {
		size := int32(len(blk.Data))
		if blk.DeclaredSize != nil {
			size = *blk.DeclaredSize
		}
		writeBlockHeader(&b, order, ptrSize, blk.Code, size, blk.Addr, blk.SDNA, blk.Count)
		b.Write(blk.Data)
	}
	if !spec.OmitEnd {
		writeBlockHeader(&b, order, ptrSize, "ENDB", 0, 0, 0, 0)
	}
	return b.Bytes()
}

// Int32p is a convenience for BlockSpec.DeclaredSize.
func Int32p(v int32) *int32 { return &v }

func writeBlockHeader(b *bytes.Buffer, order binary.ByteOrder, ptrSize int, code string, size int32, addr uint64, sdna, count int32) {
	for len(code) < 4 {
		code += "\x00"
	}
	b.WriteString(code[:4])
	writeUint32(b, order, uint32(size))
	if ptrSize == 8 {
		writeUint64(b, order, addr)
	} else {
		writeUint32(b, order, uint32(addr))
	}
	writeUint32(b, order, uint32(sdna))
	writeUint32(b, order, uint32(count))
}

func writeUint16(b *bytes.Buffer, order binary.ByteOrder, v uint16) {
	var buf [2]byte
	order.PutUint16(buf[:], v)
	b.Write(buf[:])
}

func writeUint32(b *bytes.Buffer, order binary.ByteOrder, v uint32) {
	var buf [4]byte
	order.PutUint32(buf[:], v)
	b.Write(buf[:])
}

func writeUint64(b *bytes.Buffer, order binary.ByteOrder, v uint64) {
	var buf [8]byte
	order.PutUint64(buf[:], v)
	b.Write(buf[:])
}

func pad4(b *bytes.Buffer) {
	for b.Len()%4 != 0 {
		b.WriteByte(0)
	}
}
