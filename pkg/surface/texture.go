// Package surface bridges the capture stream to the render side. A Texture
// is the capture target handed to the camera session: frames arrive on the
// capture goroutine and are latched onto the GPU texture by the render
// goroutine.
package surface

import (
	"fmt"
	"image"
	"sync"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"camera-preview/pkg/types"
	"camera-preview/pkg/utils"
	imageutil "camera-preview/pkg/utils/image"
	"camera-preview/pkg/utils/rgb"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

// Sink receives the latched image. It is the external texture on the GPU side.
type Sink interface {
	SetImage(img image.Image)
}

type Stats struct {
	Published uint64 `json:"published"`
	Latched   uint64 `json:"latched"`
	Dropped   uint64 `json:"dropped"`
	LastSize  string `json:"lastSize"`
}

// Texture holds at most one pending frame. A frame published before the
// previous one was latched replaces it.
type Texture struct {
	sink Sink

	mu         sync.Mutex
	pending    []byte
	bufferSize types.Resolution
	stats      Stats
	lastBytes  int
}

func NewTexture(sink Sink) *Texture {
	return &Texture{sink: sink}
}

// SetDefaultBufferSize sets the size producers must write. It is needed to
// interpret raw RGB24 frames.
func (t *Texture) SetDefaultBufferSize(size types.Resolution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bufferSize = size
	logger.Debugf("surface texture buffer size %s", size)
}

func (t *Texture) BufferSize() types.Resolution {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bufferSize
}

func (t *Texture) Publish(frame []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.stats.Dropped++
	}
	t.pending = frame
	t.stats.Published++
}

// UpdateTexImage latches the newest pending frame onto the sink. With
// nothing pending the sink keeps its previous image.
func (t *Texture) UpdateTexImage() error {
	t.mu.Lock()
	frame := t.pending
	size := t.bufferSize
	t.pending = nil
	t.mu.Unlock()

	if frame == nil {
		return nil
	}
	img, err := decode(frame, size)
	if err != nil {
		return fmt.Errorf("latch frame: %w", err)
	}
	t.sink.SetImage(img)

	t.mu.Lock()
	t.stats.Latched++
	t.lastBytes = len(frame)
	t.mu.Unlock()

	return nil
}

func (t *Texture) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.stats
	st.LastSize = humanize.Bytes(uint64(t.lastBytes))
	return st
}

func decode(frame []byte, size types.Resolution) (image.Image, error) {
	if isJPEG(frame) {
		return imageutil.DecodeJPEG(frame)
	}
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("raw frame of %d bytes with no buffer size", len(frame))
	}
	if len(frame) < size.Width*size.Height*3 {
		return nil, fmt.Errorf("short rgb24 frame: %d bytes for %s", len(frame), size)
	}
	return rgb.NewRGB(frame, size.Width, size.Height), nil
}

func isJPEG(frame []byte) bool {
	return len(frame) > 2 && frame[0] == 0xff && frame[1] == 0xd8
}
