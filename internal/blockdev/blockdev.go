// Package blockdev presents a *ftlmap.Map as a fixed-size-sector block
// device: an io.ReaderAt/io.WriterAt-shaped adapter with sector granules
// instead of byte offsets. It knows nothing about names, directories or
// permissions, only consecutively numbered sectors.
package blockdev

import (
	"fmt"
	"sync"

	"github.com/nandftl/dhara-go/ftlmap"
)

// Device wraps a *ftlmap.Map with a mutex: the integrator serializes
// access to one FTL instance externally rather than the core doing its
// own locking.
type Device struct {
	mu       sync.Mutex
	m        *ftlmap.Map
	pageSize int
}

// New constructs a Device over an already-resumed map.
func New(m *ftlmap.Map, pageSize int) *Device {
	return &Device{m: m, pageSize: pageSize}
}

// ReadAt reads len(p)/pageSize consecutive sectors starting at sector
// into p. len(p) must be an exact multiple of the page size.
func (d *Device) ReadAt(p []byte, sector int64) (int, error) {
	if len(p)%d.pageSize != 0 {
		return 0, fmt.Errorf("blockdev: read length %d is not a multiple of page size %d", len(p), d.pageSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(p) / d.pageSize
	for i := 0; i < n; i++ {
		buf := p[i*d.pageSize : (i+1)*d.pageSize]
		if err := d.m.Read(uint32(sector)+uint32(i), buf); err != ftlmap.ErrNone {
			return i * d.pageSize, fmt.Errorf("blockdev: read sector %d: %w", sector+int64(i), err)
		}
	}
	return len(p), nil
}

// WriteAt writes len(p)/pageSize consecutive sectors starting at sector
// from p. len(p) must be an exact multiple of the page size.
func (d *Device) WriteAt(p []byte, sector int64) (int, error) {
	if len(p)%d.pageSize != 0 {
		return 0, fmt.Errorf("blockdev: write length %d is not a multiple of page size %d", len(p), d.pageSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(p) / d.pageSize
	for i := 0; i < n; i++ {
		buf := p[i*d.pageSize : (i+1)*d.pageSize]
		if err := d.m.Write(uint32(sector)+uint32(i), buf); err != ftlmap.ErrNone {
			return i * d.pageSize, fmt.Errorf("blockdev: write sector %d: %w", sector+int64(i), err)
		}
	}
	return len(p), nil
}

// Sync persists a checkpoint via the underlying map.
func (d *Device) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.m.Sync(); err != ftlmap.ErrNone {
		return fmt.Errorf("blockdev: sync: %w", err)
	}
	return nil
}
