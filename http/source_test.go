package http

import (
	"bytes"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/blend"
	"github.com/meigma/blend/internal/testutil"
)

func newServer(tb testing.TB, data []byte) *httptest.Server {
	tb.Helper()
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.ServeContent(w, r, "scene.blend", time.Time{}, bytes.NewReader(data))
	}))
	tb.Cleanup(srv.Close)
	return srv
}

func TestSource(t *testing.T) {
	t.Parallel()

	data := []byte("0123456789abcdef")
	srv := newServer(t, data)

	src, err := NewSource(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), src.Size())

	t.Run("reads a range", func(t *testing.T) {
		t.Parallel()
		buf := make([]byte, 4)
		n, err := src.ReadAt(buf, 10)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, "abcd", string(buf))
	})

	t.Run("short read at the tail", func(t *testing.T) {
		t.Parallel()
		buf := make([]byte, 8)
		n, err := src.ReadAt(buf, 12)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 4, n)
		assert.Equal(t, "cdef", string(buf[:n]))
	})

	t.Run("offset past the end", func(t *testing.T) {
		t.Parallel()
		_, err := src.ReadAt(make([]byte, 1), int64(len(data)))
		assert.ErrorIs(t, err, io.EOF)
	})
}

func TestSourceErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing remote", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(nethttp.NotFoundHandler())
		t.Cleanup(srv.Close)
		_, err := NewSource(srv.URL)
		assert.Error(t, err)
	})
}

func TestDecodeOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newServer(t, testutil.SceneFile(t))
	src, err := NewSource(srv.URL)
	require.NoError(t, err)

	f, err := blend.New(src)
	require.NoError(t, err)
	defer f.Close()

	factory, err := f.ForStructure("Scene")
	require.NoError(t, err)

	obj, err := factory.FindByName("MyScene")
	require.NoError(t, err)
	v, err := obj.Get("frame_start")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}
