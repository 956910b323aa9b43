// Package scan builds the block index of a blend file.
//
// The scan reads only block headers and records payload offsets; payload
// bytes are left untouched, so indexing costs O(block count) rather than
// O(file size).
package scan

import (
	"fmt"
	"io"

	"github.com/meigma/blend/internal/blendtype"
)

// Index scans the block stream starting immediately after the file
// prologue and returns the ordered block descriptors, the terminal block
// excluded. The scan stops at the first terminal tag; a stream that runs
// out of bytes before one is seen is malformed.
func Index(r io.ReaderAt, size int64, hdr blendtype.Header) ([]blendtype.Block, error) {
	headSize := int64(16 + hdr.PtrSize)
	buf := make([]byte, headSize)

	var blocks []blendtype.Block
	off := int64(blendtype.HeaderSize)
	for {
		if off+headSize > size {
			return nil, fmt.Errorf("%w: truncated block header at offset %d", blendtype.ErrFormat, off)
		}
		if _, err := r.ReadAt(buf, off); err != nil {
			return nil, fmt.Errorf("read block header at offset %d: %w", off, err)
		}

		b := decodeBlockHeader(buf, hdr)
		if b.Code == blendtype.CodeEnd {
			return blocks, nil
		}
		if b.Size < 0 {
			return nil, fmt.Errorf("%w: block %q declares negative size %d", blendtype.ErrFormat, b.Code, b.Size)
		}

		b.Offset = off + headSize
		if b.Offset+int64(b.Size) > size {
			return nil, fmt.Errorf("%w: block %q payload exceeds file size", blendtype.ErrFormat, b.Code)
		}
		blocks = append(blocks, b)
		off = b.Offset + int64(b.Size)
	}
}

func decodeBlockHeader(buf []byte, hdr blendtype.Header) blendtype.Block {
	b := blendtype.Block{
		Code: trimCode(buf[:4]),
		Size: int32(hdr.Order.Uint32(buf[4:8])),
	}
	p := 8
	if hdr.PtrSize == 8 {
		b.Addr = hdr.Order.Uint64(buf[p : p+8])
		p += 8
	} else {
		b.Addr = uint64(hdr.Order.Uint32(buf[p : p+4]))
		p += 4
	}
	b.SDNA = int32(hdr.Order.Uint32(buf[p : p+4]))
	b.Count = int32(hdr.Order.Uint32(buf[p+4 : p+8]))
	return b
}

func trimCode(raw []byte) string {
	end := len(raw)
	for end > 0 && raw[end-1] == 0 {
		end--
	}
	return string(raw[:end])
}

// Resolver maps original in-memory addresses back to their owning blocks.
//
// Only whole-block base addresses resolve; pointers into the interior of
// an array payload are not supported.
type Resolver struct {
	byAddr map[uint64]*blendtype.Block
}

// NewResolver indexes the non-zero addresses of the given blocks.
// The block slice must not change afterwards.
func NewResolver(blocks []blendtype.Block) *Resolver {
	m := make(map[uint64]*blendtype.Block, len(blocks))
	for i := range blocks {
		if blocks[i].Addr != 0 {
			m[blocks[i].Addr] = &blocks[i]
		}
	}
	return &Resolver{byAddr: m}
}

// Resolve returns the block owning addr, or nil for the null address and
// for addresses no block claims. Unresolved addresses are not an error;
// real files legitimately contain them.
func (r *Resolver) Resolve(addr uint64) *blendtype.Block {
	if addr == 0 {
		return nil
	}
	return r.byAddr[addr]
}
