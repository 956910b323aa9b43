package sdna

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blend/internal/blendtype"
	"github.com/meigma/blend/internal/testutil"
)

var (
	le64 = blendtype.Header{PtrSize: 8, Order: binary.LittleEndian}
	be32 = blendtype.Header{PtrSize: 4, Order: binary.BigEndian}
)

func loadScene(tb testing.TB, hdr blendtype.Header) *Catalog {
	tb.Helper()
	payload := testutil.BuildSchema(hdr.Order, testutil.SceneSchema(hdr.PtrSize))
	c, err := Load(payload, hdr)
	require.NoError(tb, err)
	tb.Cleanup(func() { Release(c) })
	return c
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("decodes all sections", func(t *testing.T) {
		t.Parallel()
		c := loadScene(t, le64)

		assert.Equal(t, []string{"ID", "Scene"}, c.StructNames())

		idx, ok := c.StructIndex("Scene")
		require.True(t, ok)
		assert.Equal(t, 1, idx)

		name, ok := c.StructNameAt(0)
		require.True(t, ok)
		assert.Equal(t, "ID", name)

		_, ok = c.StructIndex("Mesh")
		assert.False(t, ok)
	})

	t.Run("big endian", func(t *testing.T) {
		t.Parallel()
		c := loadScene(t, be32)
		assert.Equal(t, []string{"ID", "Scene"}, c.StructNames())
	})

	t.Run("bad leading tag", func(t *testing.T) {
		t.Parallel()
		payload := testutil.BuildSchema(binary.LittleEndian, testutil.SceneSchema(8))
		copy(payload, "XXXX")
		_, err := Load(payload, le64)
		assert.ErrorIs(t, err, blendtype.ErrFormat)
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		payload := testutil.BuildSchema(binary.LittleEndian, testutil.SceneSchema(8))
		_, err := Load(payload[:len(payload)-6], le64)
		assert.ErrorIs(t, err, blendtype.ErrFormat)
	})

	t.Run("field name index out of range", func(t *testing.T) {
		t.Parallel()
		s := testutil.SceneSchema(8)
		s.Structs[0].Fields[0][1] = 99
		payload := testutil.BuildSchema(binary.LittleEndian, s)
		_, err := Load(payload, le64)
		assert.ErrorIs(t, err, blendtype.ErrFormat)
	})

	t.Run("struct type index out of range", func(t *testing.T) {
		t.Parallel()
		s := testutil.SceneSchema(8)
		s.Structs[1].TypeIndex = 42
		payload := testutil.BuildSchema(binary.LittleEndian, s)
		_, err := Load(payload, le64)
		assert.ErrorIs(t, err, blendtype.ErrFormat)
	})
}

func TestCatalogSharing(t *testing.T) {
	// Exercises the shared package-level cache; not parallel with itself.
	payload := testutil.BuildSchema(binary.LittleEndian, testutil.SceneSchema(8))

	c1, err := Load(payload, le64)
	require.NoError(t, err)
	c2, err := Load(payload, le64)
	require.NoError(t, err)

	// Identical schema bytes under the same layout parameters share one
	// catalog, and through it one set of compiled types.
	assert.Same(t, c1, c2)

	t1, err := c1.Compile("Scene")
	require.NoError(t, err)
	t2, err := c2.Compile("Scene")
	require.NoError(t, err)
	assert.Same(t, t1, t2)

	Release(c2)

	// Still referenced: a third load keeps sharing.
	c3, err := Load(payload, le64)
	require.NoError(t, err)
	assert.Same(t, c1, c3)
	Release(c3)
	Release(c1)

	// Fully released: the catalog and its compiled types are evicted.
	c4, err := Load(payload, le64)
	require.NoError(t, err)
	defer Release(c4)
	assert.NotSame(t, c1, c4)
}

func TestCatalogIdentity(t *testing.T) {
	t.Parallel()

	t.Run("distinct bytes are distinct identities", func(t *testing.T) {
		s := testutil.SceneSchema(8)
		s.Names = append(s.Names, "unused")
		payloadA := testutil.BuildSchema(binary.LittleEndian, testutil.SceneSchema(8))
		payloadB := testutil.BuildSchema(binary.LittleEndian, s)

		a, err := Load(payloadA, le64)
		require.NoError(t, err)
		defer Release(a)
		b, err := Load(payloadB, le64)
		require.NoError(t, err)
		defer Release(b)

		assert.NotSame(t, a, b)
		assert.NotEqual(t, a.ID(), b.ID())

		// Equivalent Scene layouts, but never a shared compiled type.
		ta, err := a.Compile("Scene")
		require.NoError(t, err)
		tb, err := b.Compile("Scene")
		require.NoError(t, err)
		assert.NotSame(t, ta, tb)
		assert.Equal(t, ta.Size, tb.Size)
	})

	t.Run("pointer width is part of the identity", func(t *testing.T) {
		payload4 := testutil.BuildSchema(binary.LittleEndian, testutil.SceneSchema(4))
		a, err := Load(payload4, le64)
		require.NoError(t, err)
		defer Release(a)
		b, err := Load(payload4, blendtype.Header{PtrSize: 4, Order: binary.LittleEndian})
		require.NoError(t, err)
		defer Release(b)
		assert.NotSame(t, a, b)
	})
}
