// Package harness wires a journal and a map over an in-memory simulator
// for the end-to-end scenario tests. It is the Go analogue of
// the reference test harness's global NandSim state, made an explicit
// value passed by reference instead of a package-level global.
package harness

import (
	"github.com/nandftl/dhara-go/ftlmap"
	"github.com/nandftl/dhara-go/journal"
	"github.com/nandftl/dhara-go/nand"
	"github.com/nandftl/dhara-go/nand/simnand"
)

// Instance bundles a simulator, journal and map constructed over it.
type Instance struct {
	Sim     *simnand.Sim
	Journal *journal.Journal
	Map     *ftlmap.Map
}

// CookieSize is the fixed size of the caller-reserved cookie region used
// throughout the test harness.
const CookieSize = 8

// DefaultGeometry is the small geometry the end-to-end scenario tests
// run against: page_size=512, ppb=8, num_blocks=113.
func DefaultGeometry() nand.Geometry {
	return nand.Geometry{Log2PageSize: 9, Log2PPB: 3, NumBlocks: 113}
}

// New constructs a fresh Instance: a blank simulator, an initialized
// journal and map, with resume run once (a no-op on blank flash).
func New(geo nand.Geometry, gcRatio int) *Instance {
	sim := simnand.New(geo)
	pageBuf := make([]byte, geo.PageSize())
	j := journal.New(sim, pageBuf, CookieSize)
	m := ftlmap.New(j, sim, gcRatio)
	m.Resume()
	return &Instance{Sim: sim, Journal: j, Map: m}
}

// Resume rebuilds the journal and map from the current flash contents,
// reusing the same simulator (modelling a cold restart).
func Resume(sim *simnand.Sim, gcRatio int) *Instance {
	geo := sim.Geometry()
	pageBuf := make([]byte, geo.PageSize())
	j := journal.New(sim, pageBuf, CookieSize)
	m := ftlmap.New(j, sim, gcRatio)
	m.Resume()
	return &Instance{Sim: sim, Journal: j, Map: m}
}

// FillDrainOnce enqueues pages [0, n) directly at the journal level
// (bypassing the map) until JournalFull, dequeues them all, and reports
// how many pages were enqueued. Used by scenario 1 (fill-and-drain).
func FillDrainOnce(j *journal.Journal, pageSize int) int {
	data := make([]byte, pageSize)
	meta := make([]byte, journal.MetaSize)

	n := 0
	for {
		err := j.Enqueue(data, meta)
		if err == journal.ErrRecovered {
			driveJournalRecovery(j, data, meta)
			continue
		}
		if err != journal.ErrNone {
			break
		}
		n++
	}

	for i := 0; i < n; i++ {
		j.Dequeue()
	}

	return n
}

func driveJournalRecovery(j *journal.Journal, padData, padMeta []byte) {
	for j.InRecovery() {
		p := j.NextRecoverable()
		if p == nand.PageNone {
			j.Enqueue(padData, padMeta)
		} else {
			meta := make([]byte, journal.MetaSize)
			j.ReadMeta(p, meta)
			j.Copy(p, meta)
		}
		j.AckRecoverable()
	}
}
