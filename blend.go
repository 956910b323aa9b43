// Package blend decodes the Blender scene-container format (.blend)
// without the authoring application.
//
// A blend file is a header followed by tagged blocks, one of which
// carries the SDNA: a self-describing catalog of every structure layout
// the file uses. The package indexes blocks without reading payloads,
// compiles schema structures into cached field-layout tables on first
// use, and resolves pointer fields lazily through the file's original
// memory addresses. It is strictly read-only: no writing, no repair,
// no decompression.
//
// Usage:
//
//	f, err := blend.Open("scene.blend")
//	if err != nil { ... }
//	defer f.Close()
//
//	scenes, err := f.ForStructure("Scene")
//	for obj, err := range scenes.All() { ... }
package blend

import (
	"github.com/meigma/blend/internal/blendtype"
)

// Re-export types from internal/blendtype for the public API.
type (
	// Header describes the fixed 12-byte file prologue.
	Header = blendtype.Header

	// Version is the blend file version triple.
	Version = blendtype.Version

	// Block describes one indexed file block.
	Block = blendtype.Block
)

// Sentinel errors re-exported from internal/blendtype.
var (
	// ErrFormat is returned when a stream is not a well-formed blend file.
	ErrFormat = blendtype.ErrFormat

	// ErrCompressed is returned for gzip or zstd streams; it matches
	// ErrFormat under errors.Is.
	ErrCompressed = blendtype.ErrCompressed

	// ErrUnknownStruct is returned when a structure name is not in the schema.
	ErrUnknownStruct = blendtype.ErrUnknownStruct

	// ErrUnknownField is returned when a field name is not in the structure.
	ErrUnknownField = blendtype.ErrUnknownField

	// ErrNotFound is returned when a lookup by id name matches no object.
	ErrNotFound = blendtype.ErrNotFound

	// ErrClosed is returned when decoding is attempted after Close.
	ErrClosed = blendtype.ErrClosed
)
