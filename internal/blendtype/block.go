package blendtype

// Reserved block codes.
const (
	// CodeSchema marks the single block carrying the embedded schema (SDNA).
	CodeSchema = "DNA1"

	// CodeEnd marks the end of the block stream; nothing past it is read.
	CodeEnd = "ENDB"
)

// Block describes one file block: the header fields recorded during the
// index scan plus the file offset of the (unread) payload.
//
// Blocks are immutable after the scan. Addr is the address the payload
// occupied in the writing process; zero means the block was never
// addressed and cannot be the target of a pointer field.
type Block struct {
	// Code is the 4-character block tag with trailing NULs stripped.
	Code string

	// Size is the payload length in bytes.
	Size int32

	// Addr is the original in-memory address of the payload.
	Addr uint64

	// SDNA indexes the schema's structures table and names the layout
	// of the payload. Control blocks leave it at zero.
	SDNA int32

	// Count is the number of consecutive elements in the payload.
	Count int32

	// Offset is the absolute file offset of the payload.
	Offset int64
}
