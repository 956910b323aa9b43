package blendtype

import (
	"errors"
	"fmt"
)

// Sentinel errors for blend decoding.
var (
	// ErrFormat is returned when a stream is not a well-formed blend file.
	ErrFormat = errors.New("blend: invalid file format")

	// ErrCompressed is returned when a stream carries a compression magic
	// instead of the blend magic. It matches ErrFormat under errors.Is.
	ErrCompressed = fmt.Errorf("%w: compressed stream, decompress before opening", ErrFormat)

	// ErrUnknownStruct is returned when a structure name is not in the schema.
	ErrUnknownStruct = errors.New("blend: unknown structure")

	// ErrUnknownField is returned when a field name is not in the structure.
	ErrUnknownField = errors.New("blend: unknown field")

	// ErrNotFound is returned when a lookup by id name matches no object.
	ErrNotFound = errors.New("blend: object not found")

	// ErrClosed is returned when decoding is attempted after Close.
	ErrClosed = errors.New("blend: file is closed")
)
