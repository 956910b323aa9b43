package blend

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blend/internal/testutil"
)

func TestForStructure(t *testing.T) {
	t.Parallel()

	t.Run("filters matching blocks once", func(t *testing.T) {
		t.Parallel()
		f := linkedScenes(t, 0)
		factory, err := f.ForStructure("Scene")
		require.NoError(t, err)
		assert.Equal(t, "Scene", factory.Structure())
		assert.Equal(t, 2, factory.Len())
	})

	t.Run("no matching blocks", func(t *testing.T) {
		t.Parallel()
		f := openScene(t)
		factory, err := f.ForStructure("ID")
		require.NoError(t, err)
		assert.Equal(t, 0, factory.Len())
	})

	t.Run("unknown structure", func(t *testing.T) {
		t.Parallel()
		f := openScene(t)
		_, err := f.ForStructure("Mesh")
		assert.ErrorIs(t, err, ErrUnknownStruct)
	})

	t.Run("unreadable primitive length fails at compile", func(t *testing.T) {
		t.Parallel()
		schema := testutil.SchemaSpec{
			Names:   []string{"x"},
			Types:   []string{"int", "Sample"},
			Lens:    []int16{3, 3},
			Structs: []testutil.StructSpec{{TypeIndex: 1, Fields: [][2]int16{{0, 0}}}},
		}
		stream := testutil.BuildFile(t, testutil.FileSpec{
			Schema: &schema,
			Blocks: []testutil.BlockSpec{{Code: "SA", SDNA: 0, Count: 1, Data: []byte{1, 2, 3}}},
		})
		f, err := New(bytes.NewReader(stream))
		require.NoError(t, err)
		defer f.Close()

		_, err = f.ForStructure("Sample")
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("factories are cached per name", func(t *testing.T) {
		t.Parallel()
		f := openScene(t)
		a, err := f.ForStructure("Scene")
		require.NoError(t, err)
		b, err := f.ForStructure("Scene")
		require.NoError(t, err)
		assert.Same(t, a, b)
	})
}

func TestAll(t *testing.T) {
	t.Parallel()

	f := linkedScenes(t, 0)
	factory, err := f.ForStructure("Scene")
	require.NoError(t, err)

	t.Run("one object per block in file order", func(t *testing.T) {
		t.Parallel()
		var names []string
		for obj, err := range factory.All() {
			require.NoError(t, err)
			name, err := obj.idName("id")
			require.NoError(t, err)
			names = append(names, name)
		}
		assert.Equal(t, []string{"First", "Second"}, names)
	})

	t.Run("restartable with no shared cursor", func(t *testing.T) {
		t.Parallel()
		count := 0
		for range factory.All() {
			count++
			break // abandon mid-sequence
		}
		require.Equal(t, 1, count)

		count = 0
		for _, err := range factory.All() {
			require.NoError(t, err)
			count++
		}
		assert.Equal(t, 2, count, "a fresh range must start from the beginning")
	})
}

func TestFindByName(t *testing.T) {
	t.Parallel()

	t.Run("strips the id code prefix", func(t *testing.T) {
		t.Parallel()
		f := linkedScenes(t, 0)
		factory, err := f.ForStructure("Scene")
		require.NoError(t, err)

		obj, err := factory.FindByName("Second")
		require.NoError(t, err)
		v, err := obj.Get("frame_start")
		require.NoError(t, err)
		assert.Equal(t, int64(101), v)
	})

	t.Run("no match", func(t *testing.T) {
		t.Parallel()
		f := linkedScenes(t, 0)
		factory, err := f.ForStructure("Scene")
		require.NoError(t, err)

		_, err = factory.FindByName("Third")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("structure without an id field", func(t *testing.T) {
		t.Parallel()
		schema := testutil.SchemaSpec{
			Names:   []string{"value"},
			Types:   []string{"int", "Sample"},
			Lens:    []int16{4, 4},
			Structs: []testutil.StructSpec{{TypeIndex: 1, Fields: [][2]int16{{0, 0}}}},
		}
		stream := testutil.BuildFile(t, testutil.FileSpec{
			Schema: &schema,
			Blocks: []testutil.BlockSpec{{Code: "SA", SDNA: 0, Count: 1, Data: binary.LittleEndian.AppendUint32(nil, 5)}},
		})
		f, err := New(bytes.NewReader(stream))
		require.NoError(t, err)
		defer f.Close()

		factory, err := f.ForStructure("Sample")
		require.NoError(t, err)
		_, err = factory.FindByName("anything")
		assert.ErrorIs(t, err, ErrUnknownField)
	})
}
