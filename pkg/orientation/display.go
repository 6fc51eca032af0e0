package orientation

import (
	"fmt"
	"sync"

	"camera-preview/pkg/types"
)

// VirtualDisplay is a display whose size and rotation are set by the
// application shell.
type VirtualDisplay struct {
	mu       sync.RWMutex
	size     types.Resolution
	rotation types.Rotation
}

func NewVirtualDisplay(size types.Resolution, rotation types.Rotation) (*VirtualDisplay, error) {
	d := &VirtualDisplay{}
	if err := d.Set(size, rotation); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *VirtualDisplay) Set(size types.Resolution, rotation types.Rotation) error {
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("invalid display size %s", size)
	}
	if !rotation.Valid() {
		return fmt.Errorf("invalid display rotation %s", rotation)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.size = size
	d.rotation = rotation
	return nil
}

func (d *VirtualDisplay) Rotation() types.Rotation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rotation
}

func (d *VirtualDisplay) Size() types.Resolution {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size
}
