// Package blendtype defines the shared types and sentinel errors used
// across the blend decoding packages.
package blendtype

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of the blend file prologue.
const HeaderSize = 12

var (
	magic     = []byte("BLENDER")
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Version is the blend file version triple, e.g. 2.77.0 for the
// header digits "277".
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d%d", v.Major, v.Minor, v.Patch)
}

// Header describes the fixed 12-byte prologue of a blend file.
//
// PtrSize is the width in bytes of pointer fields and block addresses,
// either 4 or 8. Order is the byte order of every multi-byte integer in
// the file, including the schema block.
type Header struct {
	PtrSize int
	Order   binary.ByteOrder
	Version Version
}

// ParseHeader decodes the 12-byte prologue.
//
// Streams starting with a gzip or zstd magic are rejected with
// ErrCompressed; anything else that is not a blend prologue fails with
// ErrFormat.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) >= 2 && bytes.Equal(buf[:2], gzipMagic) {
		return Header{}, fmt.Errorf("%w (gzip)", ErrCompressed)
	}
	if len(buf) >= 4 && bytes.Equal(buf[:4], zstdMagic) {
		return Header{}, fmt.Errorf("%w (zstd)", ErrCompressed)
	}
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: truncated header", ErrFormat)
	}
	if !bytes.Equal(buf[:7], magic) {
		return Header{}, fmt.Errorf("%w: bad magic", ErrFormat)
	}

	h := Header{}
	switch buf[7] {
	case '_':
		h.PtrSize = 4
	case '-':
		h.PtrSize = 8
	default:
		return Header{}, fmt.Errorf("%w: bad pointer-size flag %q", ErrFormat, buf[7])
	}

	switch buf[8] {
	case 'v':
		h.Order = binary.LittleEndian
	case 'V':
		h.Order = binary.BigEndian
	default:
		return Header{}, fmt.Errorf("%w: bad byte-order flag %q", ErrFormat, buf[8])
	}

	for _, c := range buf[9:12] {
		if c < '0' || c > '9' {
			return Header{}, fmt.Errorf("%w: bad version digit %q", ErrFormat, c)
		}
	}
	h.Version = Version{
		Major: int(buf[9] - '0'),
		Minor: int(buf[10] - '0'),
		Patch: int(buf[11] - '0'),
	}
	return h, nil
}
