package blendtype

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	t.Parallel()

	t.Run("little endian 64-bit", func(t *testing.T) {
		t.Parallel()
		h, err := ParseHeader([]byte("BLENDER-v277"))
		require.NoError(t, err)
		assert.Equal(t, 8, h.PtrSize)
		assert.Equal(t, binary.ByteOrder(binary.LittleEndian), h.Order)
		assert.Equal(t, Version{Major: 2, Minor: 7, Patch: 7}, h.Version)
		assert.Equal(t, "2.77", h.Version.String())
	})

	t.Run("big endian 32-bit", func(t *testing.T) {
		t.Parallel()
		h, err := ParseHeader([]byte("BLENDER_V304"))
		require.NoError(t, err)
		assert.Equal(t, 4, h.PtrSize)
		assert.Equal(t, binary.ByteOrder(binary.BigEndian), h.Order)
		assert.Equal(t, "3.04", h.Version.String())
	})

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()
		_, err := ParseHeader([]byte("NOTBLEND-v277"))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		_, err := ParseHeader([]byte("BLEND"))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("bad pointer flag", func(t *testing.T) {
		t.Parallel()
		_, err := ParseHeader([]byte("BLENDER?v277"))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("bad order flag", func(t *testing.T) {
		t.Parallel()
		_, err := ParseHeader([]byte("BLENDER-x277"))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("bad version digits", func(t *testing.T) {
		t.Parallel()
		_, err := ParseHeader([]byte("BLENDER-v2a7"))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("gzip magic", func(t *testing.T) {
		t.Parallel()
		_, err := ParseHeader([]byte{0x1f, 0x8b, 0x08, 0x00})
		assert.ErrorIs(t, err, ErrCompressed)
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("zstd magic", func(t *testing.T) {
		t.Parallel()
		_, err := ParseHeader([]byte{0x28, 0xb5, 0x2f, 0xfd, 0x00})
		assert.ErrorIs(t, err, ErrCompressed)
		assert.ErrorIs(t, err, ErrFormat)
	})
}
