package ecc

import (
	"math/rand"
	"testing"
)

// Scenario 6: BCH round-trip. For each code, generate ECC over a 512-byte
// chunk, flip syns/2 random bits, verify fails, repair, verify succeeds,
// original data restored.
func TestBCHRoundTrip(t *testing.T) {
	codes := []*BCHCode{&BCH1, &BCH2, &BCH3, &BCH4}

	for _, code := range codes {
		rng := rand.New(rand.NewSource(int64(code.Degree)))

		chunk := make([]byte, 512)
		rng.Read(chunk)
		original := append([]byte(nil), chunk...)

		ecc := make([]byte, code.EccBytes)
		Generate(code, chunk, ecc)

		if !Verify(code, chunk, ecc) {
			t.Fatalf("degree %d: freshly generated ecc failed to verify", code.Degree)
		}

		flips := code.Syns / 2
		flipped := make(map[int]bool)
		for len(flipped) < flips {
			bit := rng.Intn(len(chunk) * 8)
			if flipped[bit] {
				continue
			}
			flipped[bit] = true
			chunk[bit>>3] ^= 1 << uint(bit&7)
		}

		if Verify(code, chunk, ecc) {
			t.Fatalf("degree %d: verify succeeded despite %d flipped bits", code.Degree, flips)
		}

		Repair(code, chunk, ecc)

		if !Verify(code, chunk, ecc) {
			t.Fatalf("degree %d: verify failed after repair", code.Degree)
		}

		for i := range chunk {
			if chunk[i] != original[i] {
				t.Fatalf("degree %d: byte %d not restored: got %#x want %#x", code.Degree, i, chunk[i], original[i])
			}
		}
	}
}

func TestHammingRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	chunk := make([]byte, HammingMaxChunkSize)
	rng.Read(chunk)
	original := append([]byte(nil), chunk...)

	ecc := make([]byte, HammingEccSize)
	HammingGenerate(chunk, ecc)

	if s := HammingSyndrome(chunk, ecc); s != 0 {
		t.Fatalf("fresh ecc has nonzero syndrome %x", s)
	}

	bit := rng.Intn(len(chunk) * 8)
	chunk[bit>>3] ^= 1 << uint(bit&7)

	s := HammingSyndrome(chunk, ecc)
	if s == 0 {
		t.Fatalf("syndrome zero after single-bit flip")
	}

	if ok := HammingRepair(chunk, s); !ok {
		t.Fatalf("repair reported failure for a single-bit error")
	}

	for i := range chunk {
		if chunk[i] != original[i] {
			t.Fatalf("byte %d not restored: got %#x want %#x", i, chunk[i], original[i])
		}
	}
}

func TestCRC32RoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	if CRC32(data) != CRC32(append([]byte(nil), data...)) {
		t.Fatalf("CRC32 not deterministic over identical content")
	}
	if CRC32(data) == CRC32(append(append([]byte(nil), data...), 'x')) {
		t.Fatalf("CRC32 collided trivially")
	}
}
