// Package simnand is an in-memory NAND simulator used by the journal and
// map test suites. It backs its flat page array with a memfile.File rather
// than a bare slice, so it behaves as an addressable medium (an
// io.ReaderAt/io.WriterAt) instead of ordinary heap memory, and it can
// inject the bad-block and mid-operation failure patterns the end-to-end
// test scenarios require.
package simnand

import (
	"math/rand"

	"github.com/dsnet/golib/memfile"

	"github.com/nandftl/dhara-go/nand"
)

type blockState struct {
	bad         bool
	alwaysBad   bool // fails every Prog/Erase from the first access
	fuse        int  // >0: number of remaining ops before this block starts failing; -1: disarmed
	erased      bool
	progged     []bool // per-page "has been programmed since last erase"
}

// Sim is an in-memory nand.NAND implementation with fault injection.
type Sim struct {
	geo    nand.Geometry
	file   *memfile.File
	blocks []blockState
	rng    *rand.Rand
	frozen bool
}

// New creates a simulator for the given geometry. All blocks start erased
// and good.
func New(geo nand.Geometry) *Sim {
	s := &Sim{
		geo:    geo,
		file:   memfile.New(make([]byte, int(geo.TotalPages())*geo.PageSize())),
		blocks: make([]blockState, geo.NumBlocks),
		rng:    rand.New(rand.NewSource(1)),
	}
	ppb := geo.PagesPerBlock()
	for b := range s.blocks {
		s.blocks[b].erased = true
		s.blocks[b].progged = make([]bool, ppb)
		s.blocks[b].fuse = -1
	}
	return s
}

// Geometry implements nand.NAND.
func (s *Sim) Geometry() nand.Geometry { return s.geo }

func (s *Sim) blockOf(p nand.Page) nand.Block {
	return nand.Block(uint32(p) >> s.geo.Log2PPB)
}

func (s *Sim) pageInBlock(p nand.Page) uint32 {
	return uint32(p) & (s.geo.PagesPerBlock() - 1)
}

// IsBad implements nand.NAND.
func (s *Sim) IsBad(blk nand.Block) bool {
	return s.blocks[blk].bad
}

// MarkBad implements nand.NAND.
func (s *Sim) MarkBad(blk nand.Block) {
	s.blocks[blk].bad = true
}

// fireFault consumes one operation against blk's fuse/always-bad state and
// reports whether this operation should fail.
func (s *Sim) fireFault(blk nand.Block) bool {
	if s.frozen {
		return false
	}
	bs := &s.blocks[blk]
	if bs.bad {
		return true
	}
	if bs.alwaysBad {
		bs.bad = true
		return true
	}
	if bs.fuse > 0 {
		bs.fuse--
		if bs.fuse == 0 {
			bs.bad = true
			return true
		}
	}
	return false
}

// Erase implements nand.NAND.
func (s *Sim) Erase(blk nand.Block) error {
	if s.blocks[blk].bad {
		return nand.ErrBadBlock
	}
	if s.fireFault(blk) {
		return nand.ErrBadBlock
	}
	bs := &s.blocks[blk]
	bs.erased = true
	for i := range bs.progged {
		bs.progged[i] = false
	}
	off := int64(uint32(blk)<<s.geo.Log2PPB) * int64(s.geo.PageSize())
	blank := make([]byte, int(s.geo.PagesPerBlock())*s.geo.PageSize())
	for i := range blank {
		blank[i] = 0xff
	}
	if _, err := s.file.WriteAt(blank, off); err != nil {
		panic(err)
	}
	return nil
}

// Prog implements nand.NAND.
func (s *Sim) Prog(p nand.Page, buf []byte) error {
	blk := s.blockOf(p)
	if s.blocks[blk].bad {
		return nand.ErrBadBlock
	}
	if s.fireFault(blk) {
		return nand.ErrBadBlock
	}
	pib := s.pageInBlock(p)
	if s.blocks[blk].progged[pib] {
		panic("simnand: program of an already-programmed page")
	}
	s.blocks[blk].progged[pib] = true
	off := int64(p) * int64(s.geo.PageSize())
	if _, err := s.file.WriteAt(buf, off); err != nil {
		panic(err)
	}
	return nil
}

// IsFree implements nand.NAND.
func (s *Sim) IsFree(p nand.Page) bool {
	return !s.blocks[s.blockOf(p)].progged[s.pageInBlock(p)]
}

// Read implements nand.NAND.
func (s *Sim) Read(p nand.Page, offset, length int, buf []byte) error {
	off := int64(p)*int64(s.geo.PageSize()) + int64(offset)
	if _, err := s.file.ReadAt(buf[:length], off); err != nil {
		panic(err)
	}
	return nil
}

// Copy implements nand.NAND.
func (s *Sim) Copy(src, dst nand.Page) error {
	buf := make([]byte, s.geo.PageSize())
	if err := s.Read(src, 0, len(buf), buf); err != nil {
		return err
	}
	return s.Prog(dst, buf)
}

// MarkAlwaysBad arms blk to fail every Prog/Erase starting with its next
// access (scenario: "instant-fail block 0").
func (s *Sim) MarkAlwaysBad(blk nand.Block) {
	s.blocks[blk].alwaysBad = true
}

// TimeBomb arms blk to fail its opsRemaining'th Prog/Erase from now
// (scenario: "cascade failure").
func (s *Sim) TimeBomb(blk nand.Block, opsRemaining int) {
	s.blocks[blk].fuse = opsRemaining
}

// InjectBadBlocks deterministically (given seed) marks count distinct
// blocks always-bad, skipping block 0 so resume always has somewhere to
// start scanning from.
func (s *Sim) InjectBadBlocks(seed int64, count int) {
	rng := rand.New(rand.NewSource(seed))
	chosen := make(map[int]bool)
	for len(chosen) < count && len(chosen) < len(s.blocks)-1 {
		b := 1 + rng.Intn(len(s.blocks)-1)
		if chosen[b] {
			continue
		}
		chosen[b] = true
		s.MarkAlwaysBad(nand.Block(b))
	}
}

// InjectTimeBombs deterministically (given seed) arms count distinct
// blocks to fail after fuse more operations.
func (s *Sim) InjectTimeBombs(seed int64, count, fuse int) {
	rng := rand.New(rand.NewSource(seed ^ 0x5a5a5a5a))
	chosen := make(map[int]bool)
	for len(chosen) < count && len(chosen) < len(s.blocks)-1 {
		b := 1 + rng.Intn(len(s.blocks)-1)
		if chosen[b] || s.blocks[b].alwaysBad {
			continue
		}
		chosen[b] = true
		s.TimeBomb(nand.Block(b), fuse)
	}
}

// Freeze and Thaw bracket a read-only consistency check: fault counters
// (fuse, firing) are not consumed while frozen, mirroring the reference
// test harness's sim_freeze(), so a checker can walk the trie without
// perturbing injected faults.
func (s *Sim) Freeze() { s.frozen = true }
func (s *Sim) Thaw()   { s.frozen = false }

var _ nand.NAND = (*Sim)(nil)
