package ftlmap

import (
	"testing"

	"github.com/nandftl/dhara-go/journal"
	"github.com/nandftl/dhara-go/nand"
	"github.com/nandftl/dhara-go/nand/simnand"
)

func testGeometry() nand.Geometry {
	return nand.Geometry{Log2PageSize: 9, Log2PPB: 3, NumBlocks: 113}
}

func newTestMap(gcRatio int) (*Map, *journal.Journal, *simnand.Sim) {
	geo := testGeometry()
	sim := simnand.New(geo)
	pageBuf := make([]byte, geo.PageSize())
	j := journal.New(sim, pageBuf, 8)
	m := New(j, sim, gcRatio)
	return m, j, sim
}

func TestWriteReadFind(t *testing.T) {
	m, _, _ := newTestMap(2)
	data := []byte("hello sector zero, padded to a full page..........")
	buf := make([]byte, 512)
	copy(buf, data)

	if err := m.Write(7, buf); err != ErrNone {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, 512)
	if err := m.Read(7, got); err != ErrNone {
		t.Fatalf("read: %v", err)
	}
	if string(got[:len(data)]) != string(data) {
		t.Fatalf("read mismatch: got %q", got[:len(data)])
	}

	if m.Size() != 1 {
		t.Fatalf("size = %d, want 1", m.Size())
	}
}

func TestTrimRemovesEntry(t *testing.T) {
	m, _, _ := newTestMap(2)
	buf := make([]byte, 512)
	buf[0] = 9

	if err := m.Write(3, buf); err != ErrNone {
		t.Fatalf("write: %v", err)
	}
	if err := m.Trim(3); err != ErrNone {
		t.Fatalf("trim: %v", err)
	}

	if _, err := m.Find(3); err != ErrNotFound {
		t.Fatalf("find after trim = %v, want NotFound", err)
	}
	if m.Size() != 0 {
		t.Fatalf("size after trim = %d, want 0", m.Size())
	}
}

func TestOverwriteKeepsSingleLiveEntry(t *testing.T) {
	m, _, _ := newTestMap(2)
	buf1 := make([]byte, 512)
	buf1[0] = 1
	buf2 := make([]byte, 512)
	buf2[0] = 2

	if err := m.Write(5, buf1); err != ErrNone {
		t.Fatalf("write 1: %v", err)
	}
	if err := m.Write(5, buf2); err != ErrNone {
		t.Fatalf("write 2: %v", err)
	}

	if m.Size() != 1 {
		t.Fatalf("size = %d, want 1 after overwrite", m.Size())
	}

	got := make([]byte, 512)
	if err := m.Read(5, got); err != ErrNone {
		t.Fatalf("read: %v", err)
	}
	if got[0] != 2 {
		t.Fatalf("read returned stale value %d, want 2", got[0])
	}
}

func TestManySectorsSurviveGC(t *testing.T) {
	m, _, _ := newTestMap(2)

	for s := uint32(0); s < 40; s++ {
		buf := make([]byte, 512)
		buf[0] = byte(s)
		if err := m.Write(s, buf); err != ErrNone {
			t.Fatalf("write %d: %v", s, err)
		}
	}

	for s := uint32(0); s < 40; s++ {
		buf := make([]byte, 512)
		if err := m.Read(s, buf); err != ErrNone {
			t.Fatalf("read %d: %v", s, err)
		}
		if buf[0] != byte(s) {
			t.Fatalf("sector %d corrupted: got %d", s, buf[0])
		}
	}

	if m.Size() != 40 {
		t.Fatalf("size = %d, want 40", m.Size())
	}
}

func TestResumeRebuildsCount(t *testing.T) {
	geo := testGeometry()
	sim := simnand.New(geo)
	pageBuf := make([]byte, geo.PageSize())
	j := journal.New(sim, pageBuf, 8)
	m := New(j, sim, 2)

	for s := uint32(0); s < 20; s++ {
		buf := make([]byte, 512)
		buf[0] = byte(s)
		if err := m.Write(s, buf); err != ErrNone {
			t.Fatalf("write %d: %v", s, err)
		}
	}
	if err := m.Trim(0); err != ErrNone {
		t.Fatalf("trim: %v", err)
	}
	if err := m.Sync(); err != ErrNone {
		t.Fatalf("sync: %v", err)
	}

	pageBuf2 := make([]byte, geo.PageSize())
	j2 := journal.New(sim, pageBuf2, 8)
	m2 := New(j2, sim, 2)
	if err := m2.Resume(); err != ErrNone {
		t.Fatalf("resume: %v", err)
	}

	if m2.Size() != 19 {
		t.Fatalf("resumed size = %d, want 19", m2.Size())
	}
	if _, err := m2.Find(0); err != ErrNotFound {
		t.Fatalf("find(0) after resume = %v, want NotFound", err)
	}
	for s := uint32(1); s < 20; s++ {
		if _, err := m2.Find(s); err != ErrNone {
			t.Fatalf("find(%d) after resume: %v", s, err)
		}
	}
}
