// Package filenand is a real-file-backed nand.NAND adapter. It opens its
// backing store with O_DIRECT (via github.com/ncw/directio) and allocates
// page buffers with directio.AlignedBlock, so page I/O bypasses the page
// cache the way raw NAND I/O would on real hardware. Bad-block marks are
// kept in a small sidecar bitmap file, standing in for the out-of-band
// area a real NAND chip would use.
package filenand

import (
	"fmt"
	"os"

	"github.com/ncw/directio"

	"github.com/nandftl/dhara-go/nand"
)

// NAND is a directio-backed nand.NAND implementation.
type NAND struct {
	geo      nand.Geometry
	data     *os.File
	badPath  string
	bad      []bool
	progged  []bool
}

// Open opens (creating if needed) a directio-backed NAND image at path,
// sized for geo. The bad-block sidecar lives at path+".bad".
func Open(path string, geo nand.Geometry) (*NAND, error) {
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("filenand: open %s: %w", path, err)
	}

	size := int64(geo.TotalPages()) * int64(geo.PageSize())
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("filenand: stat %s: %w", path, err)
	}
	if fi.Size() != size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("filenand: truncate %s: %w", path, err)
		}
		if err := formatBlank(f, geo); err != nil {
			f.Close()
			return nil, err
		}
	}

	n := &NAND{
		geo:     geo,
		data:    f,
		badPath: path + ".bad",
		bad:     make([]bool, geo.NumBlocks),
		progged: make([]bool, geo.TotalPages()),
	}
	n.loadBad()
	return n, nil
}

func formatBlank(f *os.File, geo nand.Geometry) error {
	blank := directio.AlignedBlock(geo.PageSize())
	for i := range blank {
		blank[i] = 0xff
	}
	total := int64(geo.TotalPages())
	for p := int64(0); p < total; p++ {
		if _, err := f.WriteAt(blank, p*int64(geo.PageSize())); err != nil {
			return fmt.Errorf("filenand: format page %d: %w", p, err)
		}
	}
	return nil
}

func (n *NAND) loadBad() {
	raw, err := os.ReadFile(n.badPath)
	if err != nil {
		return
	}
	for i := 0; i < len(raw) && i < len(n.bad); i++ {
		n.bad[i] = raw[i] != 0
	}
}

func (n *NAND) saveBad() {
	raw := make([]byte, len(n.bad))
	for i, b := range n.bad {
		if b {
			raw[i] = 1
		}
	}
	_ = os.WriteFile(n.badPath, raw, 0o600)
}

// Close closes the backing file.
func (n *NAND) Close() error {
	return n.data.Close()
}

// Geometry implements nand.NAND.
func (n *NAND) Geometry() nand.Geometry { return n.geo }

// IsBad implements nand.NAND.
func (n *NAND) IsBad(blk nand.Block) bool { return n.bad[blk] }

// MarkBad implements nand.NAND.
func (n *NAND) MarkBad(blk nand.Block) {
	n.bad[blk] = true
	n.saveBad()
}

func (n *NAND) pageOffset(p nand.Page) int64 {
	return int64(p) * int64(n.geo.PageSize())
}

// Erase implements nand.NAND.
func (n *NAND) Erase(blk nand.Block) error {
	if n.bad[blk] {
		return nand.ErrBadBlock
	}
	blank := directio.AlignedBlock(n.geo.PageSize())
	for i := range blank {
		blank[i] = 0xff
	}
	ppb := n.geo.PagesPerBlock()
	base := nand.Page(uint32(blk) << n.geo.Log2PPB)
	for i := uint32(0); i < ppb; i++ {
		p := base + nand.Page(i)
		if _, err := n.data.WriteAt(blank, n.pageOffset(p)); err != nil {
			return fmt.Errorf("filenand: erase block %d: %w", blk, err)
		}
		n.progged[p] = false
	}
	return nil
}

// Prog implements nand.NAND.
func (n *NAND) Prog(p nand.Page, buf []byte) error {
	blk := nand.Block(uint32(p) >> n.geo.Log2PPB)
	if n.bad[blk] {
		return nand.ErrBadBlock
	}
	aligned := directio.AlignedBlock(n.geo.PageSize())
	copy(aligned, buf)
	if _, err := n.data.WriteAt(aligned, n.pageOffset(p)); err != nil {
		return fmt.Errorf("filenand: prog page %d: %w", p, err)
	}
	n.progged[p] = true
	return nil
}

// IsFree implements nand.NAND.
func (n *NAND) IsFree(p nand.Page) bool { return !n.progged[p] }

// Read implements nand.NAND.
func (n *NAND) Read(p nand.Page, offset, length int, buf []byte) error {
	aligned := directio.AlignedBlock(n.geo.PageSize())
	if _, err := n.data.ReadAt(aligned, n.pageOffset(p)); err != nil {
		return fmt.Errorf("filenand: read page %d: %w", p, err)
	}
	copy(buf[:length], aligned[offset:offset+length])
	return nil
}

// Copy implements nand.NAND.
func (n *NAND) Copy(src, dst nand.Page) error {
	buf := make([]byte, n.geo.PageSize())
	if err := n.Read(src, 0, len(buf), buf); err != nil {
		return err
	}
	return n.Prog(dst, buf)
}

var _ nand.NAND = (*NAND)(nil)
