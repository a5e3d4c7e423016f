// Package nand defines the contract a raw NAND driver must satisfy for the
// journal and map layers to manage it. Geometry is fixed for the lifetime
// of an instance: page/block size and block count never change after the
// driver is constructed.
package nand

import "fmt"

// Error is the taxonomy of conditions a NAND driver can signal. It mirrors
// Dhara_error_t: a small closed set, not a wrapped error chain, because the
// journal branches on the exact kind rather than unwrapping.
type Error int

const (
	ErrNone Error = iota
	ErrBadBlock
	ErrECC
)

func (e Error) Error() string {
	switch e {
	case ErrNone:
		return "nand: no error"
	case ErrBadBlock:
		return "nand: bad block"
	case ErrECC:
		return "nand: uncorrectable ECC error"
	default:
		return fmt.Sprintf("nand: unknown error %d", int(e))
	}
}

// Geometry describes the fixed shape of a NAND device.
type Geometry struct {
	Log2PageSize uint // page_size = 1 << Log2PageSize
	Log2PPB      uint // pages per block = 1 << Log2PPB
	NumBlocks    uint32
}

// PageSize returns the size in bytes of one page.
func (g Geometry) PageSize() int { return 1 << g.Log2PageSize }

// PagesPerBlock returns the number of pages in one block.
func (g Geometry) PagesPerBlock() uint32 { return 1 << g.Log2PPB }

// TotalPages returns the total number of addressable pages on the device.
func (g Geometry) TotalPages() uint32 { return g.NumBlocks << g.Log2PPB }

// Page is a raw page index: block number in the high bits, page-in-block
// index in the low Log2PPB bits. PageNone is the sentinel "no such page".
type Page uint32

// PageNone denotes "no such page". It can never be a valid page index
// because the top bit of a real page index is always within NumBlocks.
const PageNone Page = 0xffffffff

// Block is a raw block index.
type Block uint32

// NAND is the contract consumed by the journal. All operations are
// synchronous and blocking; the driver is not safe for concurrent use by
// more than one journal.
type NAND interface {
	Geometry() Geometry

	// IsBad reports whether blk is marked bad. Pure, cheap, called often.
	IsBad(blk Block) bool

	// MarkBad persists a bad-block marker for blk. Idempotent.
	MarkBad(blk Block)

	// Erase erases blk in its entirety. After a nil return every page in
	// blk is free. Returns ErrBadBlock if the block is unusable.
	Erase(blk Block) error

	// Prog programs page_size bytes at p. Must be called in strictly
	// increasing page order within a block between erases. Returns
	// ErrBadBlock if the block became unusable.
	Prog(p Page, buf []byte) error

	// IsFree reports whether p has never been programmed since its last
	// erase. Used only during resume; may consult out-of-band state.
	IsFree(p Page) bool

	// Read reads length bytes at the given offset within page p into buf.
	// Returns ErrECC on an uncorrectable error.
	Read(p Page, offset, length int, buf []byte) error

	// Copy copies the contents of src to dst, logically equivalent to a
	// Read followed by a Prog, but may be implemented without staging
	// through caller-visible RAM.
	Copy(src, dst Page) error
}
