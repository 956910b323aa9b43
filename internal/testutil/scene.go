package testutil

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// Structure indexes of SceneSchema, as block headers reference them.
const (
	SceneSchemaIDIndex    = 0
	SceneSchemaSceneIndex = 1
)

// SceneSchema returns a minimal schema defining:
//
//	ID    { char name[24] }
//	Scene { ID id; int frame_start; int frame_end; Scene *next }
//
// Scene's declared length depends on the pointer width.
func SceneSchema(ptrSize int) SchemaSpec {
	return SchemaSpec{
		Names: []string{"name[24]", "id", "frame_start", "frame_end", "*next"},
		Types: []string{"char", "int", "ID", "Scene"},
		Lens:  []int16{1, 4, 24, int16(24 + 4 + 4 + ptrSize)},
		Structs: []StructSpec{
			{TypeIndex: 2, Fields: [][2]int16{{0, 0}}},
			{TypeIndex: 3, Fields: [][2]int16{{2, 1}, {1, 2}, {1, 3}, {3, 4}}},
		},
	}
}

// ScenePayload encodes one Scene element. The id name carries the
// conventional two-character structure code prefix ("SC").
func ScenePayload(order binary.ByteOrder, ptrSize int, name string, frameStart, frameEnd int32, next uint64) []byte {
	var b bytes.Buffer
	id := "SC" + name
	b.WriteString(id)
	for b.Len() < 24 {
		b.WriteByte(0)
	}
	writeUint32(&b, order, uint32(frameStart))
	writeUint32(&b, order, uint32(frameEnd))
	if ptrSize == 8 {
		writeUint64(&b, order, next)
	} else {
		writeUint32(&b, order, uint32(next))
	}
	return b.Bytes()
}

// SceneFile builds a complete little-endian, 8-byte-pointer stream with
// a single Scene block named "MyScene" at address 0x1000.
func SceneFile(tb testing.TB) []byte {
	tb.Helper()
	schema := SceneSchema(8)
	return BuildFile(tb, FileSpec{
		Schema: &schema,
		Blocks: []BlockSpec{{
			Code:  "SC",
			Addr:  0x1000,
			SDNA:  SceneSchemaSceneIndex,
			Count: 1,
			Data:  ScenePayload(binary.LittleEndian, 8, "MyScene", 1, 250, 0),
		}},
	})
}
