package harness

import (
	"math/rand"
	"testing"

	"github.com/nandftl/dhara-go/journal"
	"github.com/nandftl/dhara-go/nand"
)

// Scenario 1: fill-and-drain. N should be stable across repetitions.
func TestFillAndDrain(t *testing.T) {
	inst := New(DefaultGeometry(), 2)
	pageSize := inst.Sim.Geometry().PageSize()

	var counts []int
	for i := 0; i < 5; i++ {
		n := FillDrainOnce(inst.Journal, pageSize)
		if n == 0 {
			t.Fatalf("round %d: filled 0 pages", i)
		}
		if inst.Journal.Size() != 0 {
			t.Fatalf("round %d: size %d after drain, want 0", i, inst.Journal.Size())
		}
		counts = append(counts, n)
	}

	lo, hi := counts[0], counts[0]
	for _, c := range counts {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	if hi-lo > hi/4+1 {
		t.Fatalf("fill counts too unstable across repetitions: %v", counts)
	}
}

// Scenario 2: resume across epoch wrap. Regression for the
// epoch-increment-on-wrap bug: writing enough sectors to wrap head back
// to block 0 must not corrupt subsequent resumes.
func TestResumeAcrossEpochWrap(t *testing.T) {
	geo := DefaultGeometry()
	inst := New(geo, 2)

	for s := uint32(0); s < 679; s++ {
		data := pagePattern(geo.PageSize(), s)
		if err := inst.Map.Write(s, data); err != journal.ErrNone {
			t.Fatalf("write %d: %v", s, err)
		}
	}

	inst2 := Resume(inst.Sim, 2)

	for _, s := range []uint32{900001, 900002} {
		data := pagePattern(geo.PageSize(), s)
		if err := inst2.Map.Write(s, data); err != journal.ErrNone {
			t.Fatalf("write distinctive sector %d: %v", s, err)
		}
	}

	inst3 := Resume(inst.Sim, 2)

	for _, s := range []uint32{900001, 900002} {
		buf := make([]byte, geo.PageSize())
		if err := inst3.Map.Read(s, buf); err != journal.ErrNone {
			t.Fatalf("read back sector %d: %v", s, err)
		}
		if !patternMatches(buf, s) {
			t.Fatalf("sector %d decoded incorrectly after resume", s)
		}
	}
}

// Scenario 3: instant-fail block 0.
func TestInstantFailBlock0(t *testing.T) {
	geo := DefaultGeometry()
	inst := New(geo, 2)
	inst.Sim.MarkAlwaysBad(0)

	for s := uint32(0); s < 30; s++ {
		data := pagePattern(geo.PageSize(), s)
		if err := inst.Map.Write(s, data); err != journal.ErrNone {
			t.Fatalf("write %d: %v", s, err)
		}
	}

	if !inst.Sim.IsBad(0) {
		t.Fatalf("block 0 not marked bad after forced failure")
	}

	for s := uint32(0); s < 30; s++ {
		buf := make([]byte, geo.PageSize())
		if err := inst.Map.Read(s, buf); err != journal.ErrNone {
			t.Fatalf("read %d: %v", s, err)
		}
		if !patternMatches(buf, s) {
			t.Fatalf("sector %d decoded incorrectly", s)
		}
	}
}

// Scenario 4: cascade failure. Blocks 0,1,2 time-bombed to fail after
// 6,3,3 operations respectively.
func TestCascadeFailure(t *testing.T) {
	geo := DefaultGeometry()
	inst := New(geo, 2)
	inst.Sim.TimeBomb(0, 6)
	inst.Sim.TimeBomb(1, 3)
	inst.Sim.TimeBomb(2, 3)

	for s := uint32(0); s < 30; s++ {
		data := pagePattern(geo.PageSize(), s)
		if err := inst.Map.Write(s, data); err != journal.ErrNone {
			t.Fatalf("write %d: %v", s, err)
		}
	}

	for s := uint32(0); s < 30; s++ {
		buf := make([]byte, geo.PageSize())
		if err := inst.Map.Read(s, buf); err != journal.ErrNone {
			t.Fatalf("read %d: %v", s, err)
		}
		if !patternMatches(buf, s) {
			t.Fatalf("sector %d decoded incorrectly", s)
		}
	}

	for _, blk := range []nand.Block{0, 1, 2} {
		if !inst.Sim.IsBad(blk) {
			t.Fatalf("expected block %d marked bad", blk)
		}
	}
}

// Scenario 5: random rewrite, repeated across a handful of seeds (a
// sampled subset of seeds 0..999 to keep test time bounded).
func TestRandomRewrite(t *testing.T) {
	geo := DefaultGeometry()

	for _, seed := range []int64{0, 1, 2, 17, 999} {
		inst := New(geo, 2)
		inst.Sim.InjectBadBlocks(seed, 10)
		inst.Sim.InjectTimeBombs(seed, 30, 50)

		order := rand.New(rand.NewSource(seed)).Perm(200)

		for _, s := range order {
			data := pagePattern(geo.PageSize(), uint32(s))
			if err := inst.Map.Write(uint32(s), data); err != journal.ErrNone {
				t.Fatalf("seed %d: write %d: %v", seed, s, err)
			}
		}
		if err := inst.Map.Sync(); err != journal.ErrNone {
			t.Fatalf("seed %d: sync: %v", seed, err)
		}

		inst2 := Resume(inst.Sim, 2)
		for _, s := range order {
			buf := make([]byte, geo.PageSize())
			if err := inst2.Map.Read(uint32(s), buf); err != journal.ErrNone {
				t.Fatalf("seed %d: read %d after resume: %v", seed, s, err)
			}
			if !patternMatches(buf, uint32(s)) {
				t.Fatalf("seed %d: sector %d wrong after resume", seed, s)
			}
		}

		for i, s := range order {
			if i%2 == 0 {
				data := complementPattern(geo.PageSize(), uint32(s))
				if err := inst2.Map.Write(uint32(s), data); err != journal.ErrNone {
					t.Fatalf("seed %d: rewrite %d: %v", seed, s, err)
				}
			} else {
				if err := inst2.Map.Trim(uint32(s)); err != journal.ErrNone {
					t.Fatalf("seed %d: trim %d: %v", seed, s, err)
				}
			}
		}
		if err := inst2.Map.Sync(); err != journal.ErrNone {
			t.Fatalf("seed %d: second sync: %v", seed, err)
		}

		inst3 := Resume(inst.Sim, 2)
		for i, s := range order {
			buf := make([]byte, geo.PageSize())
			err := inst3.Map.Read(uint32(s), buf)
			if i%2 == 0 {
				if err != journal.ErrNone {
					t.Fatalf("seed %d: rewritten sector %d: %v", seed, s, err)
				}
				if !isComplement(buf, uint32(s)) {
					t.Fatalf("seed %d: rewritten sector %d has wrong data", seed, s)
				}
			} else {
				if err != journal.ErrNotFound {
					t.Fatalf("seed %d: trimmed sector %d: got %v, want NotFound", seed, s, err)
				}
			}
		}
	}
}

// Every live sector's find walk must terminate within 32 hops.
// ftlmap.Find already enforces this as a loop bound; this test confirms
// it returns a correct answer for every live sector, not a false
// negative from hitting the bound.
func TestTrieFindTerminates(t *testing.T) {
	geo := DefaultGeometry()
	inst := New(geo, 2)

	for s := uint32(0); s < 200; s++ {
		data := pagePattern(geo.PageSize(), s)
		if err := inst.Map.Write(s, data); err != journal.ErrNone {
			t.Fatalf("write %d: %v", s, err)
		}
	}

	for s := uint32(0); s < 200; s++ {
		if _, err := inst.Map.Find(s); err != journal.ErrNone {
			t.Fatalf("find %d: %v", s, err)
		}
	}
}

func pagePattern(pageSize int, s uint32) []byte {
	buf := make([]byte, pageSize)
	for i := range buf {
		buf[i] = byte(s) ^ byte(i)
	}
	return buf
}

func patternMatches(buf []byte, s uint32) bool {
	want := pagePattern(len(buf), s)
	for i := range buf {
		if buf[i] != want[i] {
			return false
		}
	}
	return true
}

func complementPattern(pageSize int, s uint32) []byte {
	buf := pagePattern(pageSize, s)
	for i := range buf {
		buf[i] = ^buf[i]
	}
	return buf
}

func isComplement(buf []byte, s uint32) bool {
	want := complementPattern(len(buf), s)
	for i := range buf {
		if buf[i] != want[i] {
			return false
		}
	}
	return true
}
