// Package journal implements a log-structured, append-only queue of data
// pages over a whole NAND device, with an embedded periodic checkpoint
// format, in-place resume from persistent state after a crash, and an
// assisted recovery protocol for pages lost to a program failure mid-block.
//
// The journal is single-threaded and non-reentrant: every exported method
// runs to completion on the caller's goroutine, and the caller owns the
// page buffer and serializes access to the underlying nand.NAND.
package journal

import (
	"fmt"

	"github.com/nandftl/dhara-go/nand"
)

// Error is the taxonomy of outcomes a journal operation can report. It is
// a small closed set rather than a wrapped error chain: Recovered in
// particular is a *positive* signal ("call the recovery loop"), not a
// failure, and callers are expected to switch on the exact value.
type Error int

const (
	ErrNone Error = iota
	ErrBadBlock
	ErrECC
	ErrTooBad
	ErrRecovered
	ErrJournalFull
	ErrNotFound
	ErrMapFull
)

func (e Error) Error() string {
	switch e {
	case ErrNone:
		return "journal: no error"
	case ErrBadBlock:
		return "journal: bad block"
	case ErrECC:
		return "journal: uncorrectable ECC error"
	case ErrTooBad:
		return "journal: too many consecutive bad blocks"
	case ErrRecovered:
		return "journal: recovery in progress, drive the recovery loop"
	case ErrJournalFull:
		return "journal: full"
	case ErrNotFound:
		return "journal: sector not found"
	case ErrMapFull:
		return "journal: map full"
	default:
		return fmt.Sprintf("journal: unknown error %d", int(e))
	}
}

const (
	// HeaderSize is the fixed size of the checkpoint header within a
	// metapage: magic(4) + tail(4) + bb_current(4) + bb_last(4).
	HeaderSize = 16
	// MetaSize is the size in bytes of one user page's metadata record.
	MetaSize = 132
	// maxRetries bounds bad-block skip loops during head advance and recovery.
	maxRetries = 8
)

// PageNone is the sentinel "no such page" (re-exported for convenience).
const PageNone = nand.PageNone

// Journal manages a NAND device as a log-structured queue of user pages.
// All fields below are reconstructable from flash by Resume; nothing here
// is authoritative except what has actually been programmed.
type Journal struct {
	nand nand.NAND
	geo  nand.Geometry

	pageBuf    []byte // exactly page_size bytes, owned exclusively by j
	log2ppc    uint
	cookieSize int

	epoch     uint8
	bbCurrent uint32
	bbLast    uint32

	head     nand.Page
	tail     nand.Page
	tailSync nand.Page
	root     nand.Page

	recoverNext  nand.Page
	recoverRoot  nand.Page
	recoverMeta  nand.Page
	recoverStart nand.Page
}

// New initializes a journal over n, using pageBuf (which must be exactly
// one page long) as the journal's exclusive metadata accumulation buffer,
// and reserving cookieSize bytes per checkpoint for caller use. No NAND
// operations are performed at this point; call Resume to scan the device.
func New(n nand.NAND, pageBuf []byte, cookieSize int) *Journal {
	geo := n.Geometry()
	if len(pageBuf) != geo.PageSize() {
		panic("journal: page buffer must be exactly one page long")
	}

	j := &Journal{
		nand:       n,
		geo:        geo,
		pageBuf:    pageBuf,
		cookieSize: cookieSize,
		log2ppc:    choosePPC(geo.PageSize(), cookieSize, geo.Log2PPB),
	}
	j.resetEmpty()
	return j
}

func choosePPC(pageSize, cookieSize int, maxP uint) uint {
	maxMeta := pageSize - HeaderSize - cookieSize
	p := uint(1)
	for p < maxP {
		next := p + 1
		if MetaSize*((1<<next)-1) > maxMeta {
			break
		}
		p = next
	}
	return p
}

func (j *Journal) ppc() uint32 { return uint32(1) << j.log2ppc }

func isAligned(p nand.Page, n uint) bool {
	return uint32(p)&((uint32(1)<<n)-1) == 0
}

func alignEq(a, b nand.Page, n uint) bool {
	return (uint32(a)^uint32(b))>>n == 0
}

func (j *Journal) blockOf(p nand.Page) nand.Block {
	return nand.Block(uint32(p) >> j.geo.Log2PPB)
}

func (j *Journal) clearRecovery() {
	j.recoverNext = PageNone
	j.recoverRoot = PageNone
	j.recoverMeta = PageNone
	j.recoverStart = PageNone
}

func (j *Journal) clearUserMeta() {
	for i := HeaderSize + j.cookieSize; i < len(j.pageBuf); i++ {
		j.pageBuf[i] = 0xff
	}
}

// resetEmpty sets up a blank journal: conservative bad-block estimate,
// empty queue, no recovery in progress. Used both for a fresh, never
// written device and as the fallback when resume finds nothing usable.
func (j *Journal) resetEmpty() {
	j.epoch = 0
	j.bbLast = j.geo.NumBlocks >> 6
	j.bbCurrent = 0

	j.head = 0
	j.tail = 0
	j.tailSync = 0
	j.root = PageNone

	j.clearRecovery()

	for i := range j.pageBuf {
		j.pageBuf[i] = 0xff
	}
}

// ---------------------------------------------------------------------
// Metapage header access (within j.pageBuf)
// ---------------------------------------------------------------------

func hdrHasMagic(buf []byte) bool {
	return buf[0] == 'D' && buf[1] == 'h' && buf[2] == 'a'
}

func hdrPutMagic(buf []byte) {
	buf[0], buf[1], buf[2] = 'D', 'h', 'a'
}

func hdrGetEpoch(buf []byte) uint8 { return buf[3] }
func hdrSetEpoch(buf []byte, e uint8) { buf[3] = e }

func le32(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}

func putLE32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}

func hdrGetTail(buf []byte) nand.Page    { return nand.Page(le32(buf[4:8])) }
func hdrSetTail(buf []byte, p nand.Page) { putLE32(buf[4:8], uint32(p)) }
func hdrGetBBCurrent(buf []byte) uint32  { return le32(buf[8:12]) }
func hdrSetBBCurrent(buf []byte, v uint32) { putLE32(buf[8:12], v) }
func hdrGetBBLast(buf []byte) uint32     { return le32(buf[12:16]) }
func hdrSetBBLast(buf []byte, v uint32)  { putLE32(buf[12:16], v) }

// Cookie returns the caller-reserved cookie region of the in-RAM metapage
// buffer. The caller may read or write it at will before the next
// checkpoint seals the page.
func (j *Journal) Cookie() []byte {
	return j.pageBuf[HeaderSize : HeaderSize+j.cookieSize]
}

func (j *Journal) userOffset(which uint32) int {
	return HeaderSize + j.cookieSize + int(which)*MetaSize
}

// ---------------------------------------------------------------------
// advance_head_block
// ---------------------------------------------------------------------

func (j *Journal) advanceHeadBlock() Error {
	blk := j.blockOf(j.head)
	badCur := j.bbCurrent
	badLast := j.bbLast
	e := j.epoch

	for i := 0; i < maxRetries; i++ {
		blk++
		if uint32(blk) >= j.geo.NumBlocks {
			blk = 0
			e++
			badLast = badCur
			badCur = 0
		}

		if blk == j.blockOf(j.tail) {
			return ErrJournalFull
		}

		if !j.nand.IsBad(blk) {
			j.head = nand.Page(uint32(blk) << j.geo.Log2PPB)
			j.bbLast = badLast
			j.bbCurrent = badCur
			j.epoch = e
			return ErrNone
		}

		badCur++
	}

	return ErrTooBad
}

// ---------------------------------------------------------------------
// Resume: locate head, tail and root on existing flash.
// ---------------------------------------------------------------------

func (j *Journal) checkblockPage(blk nand.Block) nand.Page {
	return nand.Page((uint32(blk) << j.geo.Log2PPB) | (j.ppc() - 1))
}

// findCheckblock scans forward from blk for a block whose first metapage
// slot holds a valid checkpoint. Any block containing a checkpoint
// contains one here, because blocks are programmed strictly from page 0
// upward.
func (j *Journal) findCheckblock(blk nand.Block) (nand.Block, Error) {
	for i := 0; uint32(blk) < j.geo.NumBlocks && i < maxRetries; i++ {
		p := j.checkblockPage(blk)
		if !j.nand.IsBad(blk) {
			if err := j.nand.Read(p, 0, j.geo.PageSize(), j.pageBuf); err == nil {
				if hdrHasMagic(j.pageBuf) {
					return blk, ErrNone
				}
			}
		}
		blk++
	}
	return 0, ErrTooBad
}

// findLastCheckblock binary searches for the last block in epoch j.epoch
// that contains a checkpoint.
func (j *Journal) findLastCheckblock(first nand.Block) nand.Block {
	low := first
	high := nand.Block(j.geo.NumBlocks - 1)

	for low <= high {
		mid := (low + high) >> 1

		found, err := j.findCheckblock(mid)
		if err != ErrNone || hdrGetEpoch(j.pageBuf) != j.epoch {
			if mid == 0 {
				return first
			}
			high = mid - 1
			continue
		}

		if uint32(found)+1 >= j.geo.NumBlocks {
			return found
		}
		nf, err2 := j.findCheckblock(found + 1)
		if err2 != ErrNone || hdrGetEpoch(j.pageBuf) != j.epoch {
			return found
		}
		low = nf
	}

	return first
}

// findLastGroup binary searches the checkpoint groups ("periods") within
// blk for the last one whose first user page is programmed.
func (j *Journal) findLastGroup(blk nand.Block) nand.Page {
	numGroups := int(1) << (j.geo.Log2PPB - j.log2ppc)
	low, high := 0, numGroups-1

	for low <= high {
		mid := (low + high) >> 1
		p := nand.Page((uint32(mid) << j.log2ppc) | (uint32(blk) << j.geo.Log2PPB))

		if j.nand.IsFree(p) {
			high = mid - 1
		} else if mid+1 >= numGroups || j.nand.IsFree(p+nand.Page(j.ppc())) {
			return p
		} else {
			low = mid + 1
		}
	}

	return nand.Page(uint32(blk) << j.geo.Log2PPB)
}

// findRoot linear-scans backward from start for the last good metapage,
// restoring j.root.
func (j *Journal) findRoot(start nand.Page) Error {
	blk := j.blockOf(start)
	i := int((uint32(start) & (j.geo.PagesPerBlock() - 1)) >> j.log2ppc)

	for i >= 0 {
		p := nand.Page((uint32(blk) << j.geo.Log2PPB) + (uint32(i+1) << j.log2ppc) - 1)

		if err := j.nand.Read(p, 0, j.geo.PageSize(), j.pageBuf); err == nil &&
			hdrHasMagic(j.pageBuf) && hdrGetEpoch(j.pageBuf) == j.epoch {
			j.root = p - 1
			return ErrNone
		}
		i--
	}

	return ErrTooBad
}

// findHead linear-scans forward from start for the next free user page.
func (j *Journal) findHead(start nand.Page) Error {
	j.head = start

	for {
		if isAligned(j.head+2, j.geo.Log2PPB) {
			return j.advanceHeadBlock()
		}

		j.head++
		if isAligned(j.head+1, j.log2ppc) {
			j.head++
		}

		if j.nand.IsFree(j.head) {
			return ErrNone
		}
	}
}

// Resume scans the NAND for the journal's head, tail and root, or resets
// to an empty journal if none is found. O(log N) in the number of pages.
func (j *Journal) Resume() Error {
	first, err := j.findCheckblock(0)
	if err != ErrNone {
		j.resetEmpty()
		return ErrNone
	}

	j.epoch = hdrGetEpoch(j.pageBuf)
	last := j.findLastCheckblock(first)
	lastGroup := j.findLastGroup(last)

	if err := j.findRoot(lastGroup); err != ErrNone {
		j.resetEmpty()
		return err
	}

	j.tail = hdrGetTail(j.pageBuf)
	j.tailSync = j.tail
	j.bbCurrent = hdrGetBBCurrent(j.pageBuf)
	j.bbLast = hdrGetBBLast(j.pageBuf)
	j.clearUserMeta()

	if err := j.findHead(lastGroup); err != ErrNone {
		j.resetEmpty()
		return err
	}

	j.clearRecovery()
	return ErrNone
}

// ---------------------------------------------------------------------
// Capacity, size, accessors
// ---------------------------------------------------------------------

// Capacity returns an upper bound on the number of user pages storable in
// the journal.
func (j *Journal) Capacity() uint32 {
	maxBad := j.bbLast
	if j.bbCurrent > maxBad {
		maxBad = j.bbCurrent
	}
	goodBlocks := j.geo.NumBlocks - maxBad - 1
	log2cpb := j.geo.Log2PPB - j.log2ppc
	goodCps := goodBlocks << log2cpb

	return (goodCps << j.log2ppc) - goodCps
}

// Size returns an upper bound on the number of user pages currently
// consumed by the journal.
func (j *Journal) Size() uint32 {
	numPages := uint32(j.head)
	numCps := uint32(j.head) >> j.log2ppc

	if j.head < j.tail {
		total := j.geo.TotalPages()
		numPages += total
		numCps += total >> j.log2ppc
	}

	numPages -= uint32(j.tail)
	numCps -= uint32(j.tail) >> j.log2ppc

	return numPages - numCps
}

func (j *Journal) checkSize() Error {
	if j.Size() >= j.Capacity() {
		return ErrJournalFull
	}
	return ErrNone
}

// Root returns the most recently enqueued user page, or PageNone if empty.
func (j *Journal) Root() nand.Page { return j.root }

// Tail returns the oldest live user page in the queue.
func (j *Journal) Tail() nand.Page { return j.tail }

// Peek is an alias for Tail, returning PageNone if the journal is empty.
func (j *Journal) Peek() nand.Page {
	if j.root == PageNone {
		return PageNone
	}
	return j.tail
}

// IsCheckpointed reports whether every enqueued page is currently
// persistent (the head is period-aligned).
func (j *Journal) IsCheckpointed() bool {
	return isAligned(j.head, j.log2ppc)
}

// InRecovery reports whether the journal is in the middle of assisted
// recovery.
func (j *Journal) InRecovery() bool { return j.recoverRoot != PageNone }

// NextRecoverable returns the next user page needing recovery, or
// PageNone if recovery is not in progress.
func (j *Journal) NextRecoverable() nand.Page { return j.recoverNext }

// Epoch, BBCurrent and BBLast expose internal counters for diagnostics
// and for the CLI's inspect subcommand.
func (j *Journal) Epoch() uint8      { return j.epoch }
func (j *Journal) BBCurrent() uint32 { return j.bbCurrent }
func (j *Journal) BBLast() uint32    { return j.bbLast }

// Log2PPC exposes the checkpoint period exponent, needed by the map layer
// to size its GC reserve.
func (j *Journal) Log2PPC() uint { return j.log2ppc }

// Head returns the next free page the journal will program.
func (j *Journal) Head() nand.Page { return j.head }

// Clear empties the queue in RAM without touching flash: tail moves to
// head, root becomes PageNone and buffered metadata is discarded. It does
// not reload state from flash and does not block further use until the
// next Resume.
func (j *Journal) Clear() {
	j.tail = j.head
	j.root = PageNone
	j.clearUserMeta()
}

// ---------------------------------------------------------------------
// read_meta
// ---------------------------------------------------------------------

// ReadMeta reads the 132-byte metadata record associated with user page p
// into buf (which must be at least MetaSize long).
func (j *Journal) ReadMeta(p nand.Page, buf []byte) Error {
	ppcMask := j.ppc() - 1
	offset := j.userOffset(uint32(p) & ppcMask)

	if alignEq(p, j.head, j.log2ppc) {
		copy(buf, j.pageBuf[offset:offset+MetaSize])
		return ErrNone
	}

	if j.recoverMeta != PageNone && alignEq(p, j.recoverRoot, j.log2ppc) {
		if err := j.nand.Read(j.recoverMeta, offset, MetaSize, buf); err != nil {
			return ErrECC
		}
		return ErrNone
	}

	metaPage := nand.Page(uint32(p) | ppcMask)
	if err := j.nand.Read(metaPage, offset, MetaSize, buf); err != nil {
		return ErrECC
	}
	return ErrNone
}

// ---------------------------------------------------------------------
// dequeue
// ---------------------------------------------------------------------

// Dequeue removes the oldest user page from the journal; root becomes
// PageNone once the queue is empty. This does not take permanent effect
// until the next checkpoint.
func (j *Journal) Dequeue() Error {
	t := j.tail
	if t == j.head {
		return ErrNone
	}

	t++
	if isAligned(t+1, j.log2ppc) {
		t++
	}

	if isAligned(t, j.geo.Log2PPB) {
		blk := j.blockOf(j.tail)

		for i := 0; i < maxRetries; i++ {
			if blk == j.blockOf(j.head) {
				break
			}
			blk++
			if uint32(blk) >= j.geo.NumBlocks {
				blk = 0
			}
			if !j.nand.IsBad(blk) {
				j.tail = nand.Page(uint32(blk) << j.geo.Log2PPB)
				if j.tail == j.head {
					j.root = PageNone
				}
				return ErrNone
			}
		}

		return ErrTooBad
	}

	j.tail = t
	if j.tail == j.head {
		j.root = PageNone
	}
	return ErrNone
}

// ---------------------------------------------------------------------
// Recovery protocol: mid-block write failure handling.
// ---------------------------------------------------------------------

func (j *Journal) recoverTailFixup(badPage nand.Page) {
	if !alignEq(j.tail, badPage, j.geo.Log2PPB) {
		return
	}

	blk := j.blockOf(j.tail)
	for i := 0; i < maxRetries; i++ {
		blk++
		if uint32(blk) >= j.geo.NumBlocks {
			blk = 0
		}
		if !j.nand.IsBad(blk) {
			j.tail = nand.Page(uint32(blk) << j.geo.Log2PPB)
			return
		}
	}
}

func (j *Journal) restartRecovery(oldHead nand.Page) {
	if j.recoverMeta == PageNone || !alignEq(j.recoverMeta, oldHead, j.geo.Log2PPB) {
		j.nand.MarkBad(j.blockOf(oldHead))
	}

	j.recoverStart = j.head
	j.recoverNext = nand.Page(uint32(j.recoverRoot) &^ (j.geo.PagesPerBlock() - 1))
	j.root = j.recoverRoot
}

func (j *Journal) dumpMeta() Error {
	for i := 0; i < maxRetries; i++ {
		headBlk := j.blockOf(j.head)

		eraseErr := j.nand.Erase(headBlk)
		var progErr error
		if eraseErr == nil {
			progErr = j.nand.Prog(j.head, j.pageBuf)
		}

		if eraseErr == nil && progErr == nil {
			j.recoverMeta = j.head
			j.head++
			j.clearUserMeta()
			return ErrNone
		}

		if eraseErr != nand.ErrBadBlock && progErr != nand.ErrBadBlock {
			if eraseErr != nil {
				return ErrECC
			}
			return ErrECC
		}

		if err := j.advanceHeadBlock(); err != ErrNone {
			return err
		}
		j.nand.MarkBad(headBlk)
	}

	return ErrTooBad
}

// recoverFrom is entered when a program fails mid-block. writeErr is the
// NAND error that triggered recovery (must be ErrBadBlock).
func (j *Journal) recoverFrom(writeErr error) Error {
	oldHead := j.head

	if writeErr != nand.ErrBadBlock {
		return ErrECC
	}

	if err := j.advanceHeadBlock(); err != ErrNone {
		return err
	}

	if j.recoverRoot != PageNone {
		j.restartRecovery(oldHead)
		return ErrRecovered
	}

	if isAligned(oldHead, j.geo.Log2PPB) {
		j.nand.MarkBad(j.blockOf(oldHead))
		j.recoverTailFixup(oldHead)
		return ErrNone
	}

	j.recoverRoot = j.root
	j.recoverNext = nand.Page(uint32(j.recoverRoot) &^ (j.geo.PagesPerBlock() - 1))

	if !isAligned(oldHead, j.log2ppc) {
		if err := j.dumpMeta(); err != ErrNone {
			return err
		}
	}

	j.recoverStart = j.head
	return ErrRecovered
}

// AckRecoverable acknowledges that the page returned by NextRecoverable
// has been recovered (via Copy). If this was the last page needing
// recovery, the source block (and, if distinct, the dumped-metadata
// block) are marked bad and recovery ends.
func (j *Journal) AckRecoverable() {
	if !j.InRecovery() {
		return
	}

	if j.recoverNext == j.recoverRoot {
		j.nand.MarkBad(j.blockOf(j.recoverRoot))

		if j.recoverMeta != PageNone && !alignEq(j.recoverStart, j.recoverMeta, j.geo.Log2PPB) {
			j.nand.MarkBad(j.blockOf(j.recoverMeta))
		}

		j.recoverTailFixup(j.recoverRoot)
		j.clearRecovery()
		return
	}

	j.recoverNext++
	if isAligned(j.recoverNext+1, j.log2ppc) {
		j.recoverNext++
	}
}

// ---------------------------------------------------------------------
// enqueue / copy / push_meta
// ---------------------------------------------------------------------

func (j *Journal) prepareProg() Error {
	if !isAligned(j.head, j.geo.Log2PPB) {
		return ErrNone
	}

	if j.head < j.tail && alignEq(j.head, j.tail, j.geo.Log2PPB) {
		return ErrJournalFull
	}

	if err := j.nand.Erase(j.blockOf(j.head)); err != nil {
		if err == nand.ErrBadBlock {
			return ErrBadBlock
		}
		return ErrECC
	}
	return ErrNone
}

// pushMeta appends meta into the in-RAM metapage buffer for the page just
// written at the old head, sealing and programming the metapage if this
// was the last user page of the period.
func (j *Journal) pushMeta(meta []byte) Error {
	oldHead := j.head
	offset := j.userOffset(uint32(j.head) & (j.ppc() - 1))

	j.head++
	copy(j.pageBuf[offset:offset+MetaSize], meta[:MetaSize])

	if !isAligned(j.head+1, j.log2ppc) {
		j.root = oldHead
		return ErrNone
	}

	hdrPutMagic(j.pageBuf)
	hdrSetEpoch(j.pageBuf, j.epoch)
	hdrSetTail(j.pageBuf, j.tail)
	hdrSetBBCurrent(j.pageBuf, j.bbCurrent)
	hdrSetBBLast(j.pageBuf, j.bbLast)

	if err := j.nand.Prog(j.head, j.pageBuf); err != nil {
		return j.recoverFrom(err)
	}

	j.clearUserMeta()
	j.tailSync = j.tail

	if isAligned(j.head+1, j.geo.Log2PPB) {
		if err := j.advanceHeadBlock(); err != ErrNone {
			j.head = oldHead
			return err
		}
	} else {
		j.head++
	}

	j.root = oldHead
	return ErrNone
}

// Enqueue appends data (one page) and its metadata to the journal. May
// fail with ErrRecovered, in which case the caller must drive the
// recovery loop (NextRecoverable/Copy/AckRecoverable) and then retry.
func (j *Journal) Enqueue(data, meta []byte) Error {
	if err := j.checkSize(); err != ErrNone {
		return err
	}

	for i := 0; i < maxRetries; i++ {
		if err := j.prepareProg(); err != ErrNone {
			if err == ErrBadBlock {
				if rerr := j.recoverFrom(nand.ErrBadBlock); rerr != ErrNone {
					return rerr
				}
				continue
			}
			return err
		}

		if err := j.nand.Prog(j.head, data); err != nil {
			if rerr := j.recoverFrom(err); rerr != ErrNone {
				return rerr
			}
			continue
		}

		return j.pushMeta(meta)
	}

	return ErrTooBad
}

// Copy relocates the existing page src to the head of the journal with
// new metadata, using the NAND's Copy primitive. Same failure contract
// as Enqueue.
func (j *Journal) Copy(src nand.Page, meta []byte) Error {
	if err := j.checkSize(); err != ErrNone {
		return err
	}

	for i := 0; i < maxRetries; i++ {
		if err := j.prepareProg(); err != ErrNone {
			if err == ErrBadBlock {
				if rerr := j.recoverFrom(nand.ErrBadBlock); rerr != ErrNone {
					return rerr
				}
				continue
			}
			return err
		}

		if err := j.nand.Copy(src, j.head); err != nil {
			if rerr := j.recoverFrom(err); rerr != ErrNone {
				return rerr
			}
			continue
		}

		return j.pushMeta(meta)
	}

	return ErrTooBad
}

// CheckInvariants panics with a descriptive message if head, tail or
// root are in a state the journal should never reach. Intended for use
// in tests after every mutating operation, not on the hot path.
func (j *Journal) CheckInvariants() {
	ppcMask := j.ppc() - 1

	if uint32(j.head)&ppcMask == ppcMask {
		panic("journal: head at a metapage slot")
	}
	if uint32(j.tail)&ppcMask == ppcMask {
		panic("journal: tail at a metapage slot")
	}
	if j.blockOf(j.head) >= nand.Block(j.geo.NumBlocks) {
		panic("journal: head block out of range")
	}
	if j.blockOf(j.tail) >= nand.Block(j.geo.NumBlocks) {
		panic("journal: tail block out of range")
	}

	if j.blockOf(j.head) == j.blockOf(j.tail) && j.head < j.tail {
		panic("journal: head precedes tail within the same block")
	}

	total := j.geo.TotalPages()
	headOff := (uint32(j.head) - uint32(j.tailSync) + total) % total
	tailOff := (uint32(j.tail) - uint32(j.tailSync) + total) % total
	if headOff < tailOff {
		panic("journal: head precedes the last synced tail")
	}

	if j.root != PageNone {
		rootOff := (uint32(j.root) - uint32(j.tail) + total) % total
		headOff2 := (uint32(j.head) - uint32(j.tail) + total) % total
		if rootOff >= headOff2 {
			panic("journal: root is not behind head")
		}
	}
}
