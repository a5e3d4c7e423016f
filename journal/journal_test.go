package journal

import (
	"testing"

	"github.com/nandftl/dhara-go/nand"
	"github.com/nandftl/dhara-go/nand/simnand"
)

func testGeometry() nand.Geometry {
	return nand.Geometry{Log2PageSize: 9, Log2PPB: 3, NumBlocks: 113}
}

func newTestJournal() (*Journal, *simnand.Sim) {
	geo := testGeometry()
	sim := simnand.New(geo)
	pageBuf := make([]byte, geo.PageSize())
	j := New(sim, pageBuf, 8)
	return j, sim
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	j, _ := newTestJournal()
	pageSize := j.geo.PageSize()

	data := make([]byte, pageSize)
	for i := range data {
		data[i] = byte(i)
	}
	meta := make([]byte, MetaSize)
	meta[0] = 0x42

	if err := j.Enqueue(data, meta); err != ErrNone {
		t.Fatalf("enqueue: %v", err)
	}
	j.CheckInvariants()

	root := j.Root()
	if root == PageNone {
		t.Fatalf("root is none after enqueue")
	}

	got := make([]byte, MetaSize)
	if err := j.ReadMeta(root, got); err != ErrNone {
		t.Fatalf("read_meta: %v", err)
	}
	if got[0] != 0x42 {
		t.Fatalf("meta mismatch: got %#x want 0x42", got[0])
	}

	if err := j.Dequeue(); err != ErrNone {
		t.Fatalf("dequeue: %v", err)
	}
	j.CheckInvariants()

	if j.Size() != 0 {
		t.Fatalf("size after dequeue = %d, want 0", j.Size())
	}
}

func TestFillReportsJournalFull(t *testing.T) {
	j, _ := newTestJournal()
	pageSize := j.geo.PageSize()
	data := make([]byte, pageSize)
	meta := make([]byte, MetaSize)

	n := 0
	for {
		err := j.Enqueue(data, meta)
		if err != ErrNone {
			if err != ErrJournalFull {
				t.Fatalf("unexpected error filling journal: %v", err)
			}
			break
		}
		n++
		j.CheckInvariants()
		if n > 10000 {
			t.Fatalf("journal never reported full")
		}
	}
	if n == 0 {
		t.Fatalf("journal accepted zero pages")
	}
}

func TestResumeEmptyJournal(t *testing.T) {
	j, _ := newTestJournal()
	if err := j.Resume(); err != ErrNone {
		t.Fatalf("resume on blank flash: %v", err)
	}
	if j.Root() != PageNone {
		t.Fatalf("root should be none on blank flash")
	}
}

func TestResumeAfterWrites(t *testing.T) {
	geo := testGeometry()
	sim := simnand.New(geo)
	pageBuf := make([]byte, geo.PageSize())
	j := New(sim, pageBuf, 8)

	data := make([]byte, geo.PageSize())
	meta := make([]byte, MetaSize)
	for i := 0; i < 50; i++ {
		data[0] = byte(i)
		meta[0] = byte(i)
		if err := j.Enqueue(data, meta); err != ErrNone {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	// Force a checkpoint by padding to a period boundary.
	for !j.IsCheckpointed() {
		if err := j.Enqueue(data, meta); err != ErrNone {
			t.Fatalf("pad enqueue: %v", err)
		}
	}

	pageBuf2 := make([]byte, geo.PageSize())
	j2 := New(sim, pageBuf2, 8)
	if err := j2.Resume(); err != ErrNone {
		t.Fatalf("resume: %v", err)
	}
	if j2.Root() == PageNone {
		t.Fatalf("resume lost root")
	}
	j2.CheckInvariants()
}
