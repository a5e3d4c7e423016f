// Package ftlmap implements the logical sector map on top of a journal: a
// forest of per-sector binary-trie "alt-pointer" chains embedded in
// journal metadata, with incremental garbage collection of the tail
// block. Named ftlmap (not map) to avoid shadowing the builtin.
package ftlmap

import (
	"math/bits"

	"github.com/nandftl/dhara-go/journal"
	"github.com/nandftl/dhara-go/nand"
)

// Error reuses the journal's taxonomy: the map has no failure modes the
// journal doesn't already have, plus MapFull for when count saturates
// capacity even though the journal has room.
type Error = journal.Error

const (
	ErrNone        = journal.ErrNone
	ErrBadBlock    = journal.ErrBadBlock
	ErrECC         = journal.ErrECC
	ErrTooBad      = journal.ErrTooBad
	ErrRecovered   = journal.ErrRecovered
	ErrJournalFull = journal.ErrJournalFull
	ErrNotFound    = journal.ErrNotFound
	ErrMapFull     = journal.ErrMapFull
)

// trimFlag marks a record as a tombstone. It occupies the top bit of the
// 32-bit sector id field; real sector ids are expected to fit in the
// remaining 31 bits. Divergence is always computed on the low 31 bits, so
// trie routing is identical for live and trimmed records of the same
// sector — only Find's termination check distinguishes them.
const trimFlag = uint32(1) << 31

const numAlt = 32

type record struct {
	id  uint32
	alt [numAlt]nand.Page
}

func encodeRecord(r record) []byte {
	buf := make([]byte, journal.MetaSize)
	putLE32(buf[0:4], r.id)
	for i, p := range r.alt {
		putLE32(buf[4+i*4:8+i*4], uint32(p))
	}
	return buf
}

func decodeRecord(buf []byte) record {
	var r record
	r.id = le32(buf[0:4])
	for i := range r.alt {
		r.alt[i] = nand.Page(le32(buf[4+i*4 : 8+i*4]))
	}
	return r
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// divergence returns the bit position (0 = MSB) at which a and b first
// differ: 31 - msb(a XOR b).
func divergence(a, b uint32) int {
	return bits.LeadingZeros32(a ^ b)
}

// Map is the logical sector map sitting on top of a journal.
type Map struct {
	j       *journal.Journal
	n       nand.NAND
	gcRatio int
	count   uint32

	padData []byte
	padMeta []byte
	scratch []byte
}

// New constructs a map over an already-constructed journal. gcRatio is
// the number of garbage-collection attempts run per logical write; ≥2
// guarantees net forward progress under steady-state rewrite.
func New(j *journal.Journal, n nand.NAND, gcRatio int) *Map {
	geo := n.Geometry()
	m := &Map{
		j:       j,
		n:       n,
		gcRatio: gcRatio,
		padData: make([]byte, geo.PageSize()),
		padMeta: make([]byte, journal.MetaSize),
		scratch: make([]byte, journal.MetaSize),
	}
	for i := range m.padData {
		m.padData[i] = 0xff
	}
	for i := range m.padMeta {
		m.padMeta[i] = 0xff
	}
	return m
}

// Resume scans the journal and rebuilds count by walking every record
// reachable from root via alt-pointer edges, resolving each distinct
// sector to its most recent (highest queue position) entry. Pages outside
// the live queue (behind the tail) are not considered.
func (m *Map) Resume() Error {
	if err := m.j.Resume(); err != ErrNone {
		return err
	}
	return m.rebuildCount()
}

func (m *Map) rebuildCount() Error {
	root := m.j.Root()
	if root == nand.PageNone {
		m.count = 0
		return ErrNone
	}

	geo := m.n.Geometry()
	total := geo.TotalPages()
	tail := m.j.Tail()
	recency := func(p nand.Page) uint32 {
		return (uint32(p) - uint32(tail) + total) % total
	}

	type latest struct {
		page    nand.Page
		trimmed bool
	}
	best := make(map[uint32]latest)
	visited := make(map[nand.Page]bool)

	queue := []nand.Page{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p == nand.PageNone || visited[p] {
			continue
		}
		visited[p] = true
		if recency(p) >= recency(m.j.Head()) {
			continue
		}

		if err := m.j.ReadMeta(p, m.scratch); err != ErrNone {
			continue
		}
		rec := decodeRecord(m.scratch)
		real := rec.id &^ trimFlag

		if cur, ok := best[real]; !ok || recency(p) > recency(cur.page) {
			best[real] = latest{page: p, trimmed: rec.id&trimFlag != 0}
		}

		for _, next := range rec.alt {
			if next != nand.PageNone && !visited[next] {
				queue = append(queue, next)
			}
		}
	}

	var count uint32
	for _, l := range best {
		if !l.trimmed {
			count++
		}
	}
	m.count = count
	return ErrNone
}

// LiveSectors returns the sector ids currently live in the map, in no
// particular order. Intended for inspection tools (fsck, drain), not the
// hot write/read path.
func (m *Map) LiveSectors() ([]uint32, Error) {
	root := m.j.Root()
	if root == nand.PageNone {
		return nil, ErrNone
	}

	geo := m.n.Geometry()
	total := geo.TotalPages()
	tail := m.j.Tail()
	recency := func(p nand.Page) uint32 {
		return (uint32(p) - uint32(tail) + total) % total
	}

	type latest struct {
		page    nand.Page
		trimmed bool
	}
	best := make(map[uint32]latest)
	visited := make(map[nand.Page]bool)

	queue := []nand.Page{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p == nand.PageNone || visited[p] {
			continue
		}
		visited[p] = true
		if recency(p) >= recency(m.j.Head()) {
			continue
		}

		rec, err := m.readRecord(p)
		if err != ErrNone {
			continue
		}
		real := rec.id &^ trimFlag

		if cur, ok := best[real]; !ok || recency(p) > recency(cur.page) {
			best[real] = latest{page: p, trimmed: rec.id&trimFlag != 0}
		}
		for _, next := range rec.alt {
			if next != nand.PageNone && !visited[next] {
				queue = append(queue, next)
			}
		}
	}

	sectors := make([]uint32, 0, len(best))
	for id, l := range best {
		if !l.trimmed {
			sectors = append(sectors, id)
		}
	}
	return sectors, ErrNone
}

func (m *Map) readRecord(p nand.Page) (record, Error) {
	if err := m.j.ReadMeta(p, m.scratch); err != ErrNone {
		return record{}, err
	}
	return decodeRecord(m.scratch), ErrNone
}

// Find locates the journal page holding the current entry for sector s,
// or ErrNotFound if s has never been written or has been trimmed.
// Guaranteed to terminate in at most numAlt+1 hops.
func (m *Map) Find(s uint32) (nand.Page, Error) {
	cur := m.j.Root()

	for hops := 0; hops <= numAlt; hops++ {
		if cur == nand.PageNone {
			return nand.PageNone, ErrNotFound
		}

		rec, err := m.readRecord(cur)
		if err != ErrNone {
			return nand.PageNone, err
		}

		real := rec.id &^ trimFlag
		if real == s {
			if rec.id&trimFlag != 0 {
				return nand.PageNone, ErrNotFound
			}
			return cur, ErrNone
		}

		cur = rec.alt[divergence(real, s)]
	}

	return nand.PageNone, ErrNotFound
}

// buildAlt walks the existing chain for target, harvesting a new alt
// vector: at each hop inherit the current record's alt entries for the
// bits above the divergence bit and record the page being left as the
// alt entry for the divergence bit, in both cases unless that slot is
// already filled; on reaching the chain's current entry for target,
// inherit its remaining slots directly.
func (m *Map) buildAlt(target uint32) (alt [numAlt]nand.Page, live bool, err Error) {
	for i := range alt {
		alt[i] = nand.PageNone
	}

	cur := m.j.Root()
	for hops := 0; hops <= numAlt; hops++ {
		if cur == nand.PageNone {
			return alt, false, ErrNone
		}

		rec, rerr := m.readRecord(cur)
		if rerr != ErrNone {
			return alt, false, rerr
		}

		real := rec.id &^ trimFlag
		if real == target {
			for i := range alt {
				if alt[i] == nand.PageNone {
					alt[i] = rec.alt[i]
				}
			}
			return alt, rec.id&trimFlag == 0, ErrNone
		}

		d := divergence(real, target)
		for i := 0; i < d; i++ {
			if alt[i] == nand.PageNone {
				alt[i] = rec.alt[i]
			}
		}
		if alt[d] == nand.PageNone {
			alt[d] = cur
		}
		cur = rec.alt[d]
	}

	return alt, false, ErrNone
}

func (m *Map) enqueueWithRecovery(data, meta []byte) Error {
	for {
		err := m.j.Enqueue(data, meta)
		if err == journal.ErrRecovered {
			if derr := m.driveRecovery(); derr != ErrNone {
				return derr
			}
			continue
		}
		return err
	}
}

func (m *Map) copyWithRecovery(src nand.Page, meta []byte) Error {
	for {
		err := m.j.Copy(src, meta)
		if err == journal.ErrRecovered {
			if derr := m.driveRecovery(); derr != ErrNone {
				return derr
			}
			continue
		}
		return err
	}
}

// driveRecovery runs the caller-side recovery loop the journal's
// recovery protocol expects: feed it a recoverable page at a time (or
// padding, if none is pending) until it leaves the recovering state.
func (m *Map) driveRecovery() Error {
	for m.j.InRecovery() {
		p := m.j.NextRecoverable()

		if p == nand.PageNone {
			if err := m.j.Enqueue(m.padData, m.padMeta); err != ErrNone && err != ErrRecovered {
				return err
			}
		} else {
			meta := make([]byte, journal.MetaSize)
			if err := m.j.ReadMeta(p, meta); err != ErrNone {
				return err
			}
			if err := m.j.Copy(p, meta); err != ErrNone && err != ErrRecovered {
				return err
			}
		}

		m.j.AckRecoverable()
	}
	return ErrNone
}

// Write stores data under sector s, superseding any previous entry, and
// then runs gcRatio garbage-collection passes.
func (m *Map) Write(s uint32, data []byte) Error {
	if err := m.checkCapacity(); err != ErrNone {
		return err
	}

	alt, wasLive, err := m.buildAlt(s)
	if err != ErrNone {
		return err
	}

	meta := encodeRecord(record{id: s, alt: alt})
	if err := m.enqueueWithRecovery(data, meta); err != ErrNone {
		return err
	}

	if !wasLive {
		m.count++
	}

	m.runGC()
	return ErrNone
}

// Trim removes sector s from the map. A subsequent Find(s) returns
// ErrNotFound.
func (m *Map) Trim(s uint32) Error {
	alt, wasLive, err := m.buildAlt(s)
	if err != ErrNone {
		return err
	}
	if !wasLive {
		m.runGC()
		return ErrNone
	}

	meta := encodeRecord(record{id: s | trimFlag, alt: alt})
	if err := m.enqueueWithRecovery(m.padData, meta); err != ErrNone {
		return err
	}

	m.count--
	m.runGC()
	return ErrNone
}

// Read finds sector s and reads its page data into buf.
func (m *Map) Read(s uint32, buf []byte) Error {
	p, err := m.Find(s)
	if err != ErrNone {
		return err
	}
	if rerr := m.n.Read(p, 0, len(buf), buf); rerr != nil {
		return ErrECC
	}
	return ErrNone
}

func (m *Map) runGC() {
	for i := 0; i < m.gcRatio; i++ {
		m.tryGC()
	}
}

// tryGC examines the tail page; if it holds the live entry for its
// sector, the entry is relocated to head (refreshing its trie linkage)
// before the tail is advanced past it. A tail page whose sector has
// since been rewritten or trimmed is simply dequeued.
func (m *Map) tryGC() {
	if m.j.Size() == 0 {
		return
	}

	t := m.j.Tail()
	rec, err := m.readRecord(t)
	if err != ErrNone {
		m.j.Dequeue()
		return
	}

	real := rec.id &^ trimFlag
	p, ferr := m.Find(real)
	if ferr == ErrNone && p == t {
		newAlt, _, berr := m.buildAlt(real)
		if berr == ErrNone {
			newMeta := encodeRecord(record{id: rec.id, alt: newAlt})
			if cerr := m.copyWithRecovery(t, newMeta); cerr != ErrNone {
				return
			}
		}
	}

	m.j.Dequeue()
}

// gcReserve returns the number of pages reserved so GC can always make
// progress: one period's worth.
func (m *Map) gcReserve() uint32 {
	return uint32(1) << m.j.Log2PPC()
}

func (m *Map) checkCapacity() Error {
	if m.Capacity() == 0 {
		return ErrMapFull
	}
	return ErrNone
}

// Capacity returns the number of additional live sectors the map can
// currently accept: journal capacity minus the live count minus the GC
// reserve.
func (m *Map) Capacity() uint32 {
	total := m.j.Capacity()
	reserved := m.gcReserve() + m.count
	if total < reserved {
		return 0
	}
	return total - reserved
}

// Size returns the number of live logical sectors currently stored.
func (m *Map) Size() uint32 { return m.count }

// Sync pads the journal until head is period-aligned, persisting a
// checkpoint. Padding re-appends a copy of the root record (data and
// metadata), so the newest root still links every live sector; only an
// empty map is padded with blank records. After Sync, a crash loses
// nothing committed so far.
func (m *Map) Sync() Error {
	for !m.j.IsCheckpointed() {
		root := m.j.Root()
		if root == nand.PageNone {
			if err := m.enqueueWithRecovery(m.padData, m.padMeta); err != ErrNone {
				return err
			}
			continue
		}
		meta := make([]byte, journal.MetaSize)
		if err := m.j.ReadMeta(root, meta); err != ErrNone {
			return err
		}
		if err := m.copyWithRecovery(root, meta); err != ErrNone {
			return err
		}
	}
	return ErrNone
}
