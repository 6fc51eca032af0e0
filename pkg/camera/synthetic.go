package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"slices"
	"sync"
	"time"

	"golang.org/x/image/draw"

	"camera-preview/pkg/types"
	imgutil "camera-preview/pkg/utils/image"
)

const SyntheticID = "synthetic:back"

var SyntheticSizes = []types.Resolution{
	{Width: 640, Height: 480},
	{Width: 1280, Height: 720},
	{Width: 1600, Height: 1200},
}

var colorBars = []color.RGBA{
	{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff},
	{R: 0xc0, G: 0xc0, B: 0x00, A: 0xff},
	{R: 0x00, G: 0xc0, B: 0xc0, A: 0xff},
	{R: 0x00, G: 0xc0, B: 0x00, A: 0xff},
	{R: 0xc0, G: 0x00, B: 0xc0, A: 0xff},
	{R: 0xc0, G: 0x00, B: 0x00, A: 0xff},
	{R: 0x00, G: 0x00, B: 0xc0, A: 0xff},
	{R: 0x10, G: 0x10, B: 0x10, A: 0xff},
}

// SyntheticManager is a hardware-free back camera streaming JPEG color
// bars with a white marker in the sensor's top-left corner.
type SyntheticManager struct {
	sizes []types.Resolution
	fps   int

	mu   sync.Mutex
	lost chan struct{}
}

func NewSyntheticManager(sizes []types.Resolution, fps int) *SyntheticManager {
	if len(sizes) == 0 {
		sizes = SyntheticSizes
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &SyntheticManager{sizes: slices.Clone(sizes), fps: fps}
}

func (m *SyntheticManager) CameraIDs() ([]string, error) {
	return []string{SyntheticID}, nil
}

func (m *SyntheticManager) Characteristics(id string) (types.Characteristics, error) {
	if id != SyntheticID {
		return types.Characteristics{}, fmt.Errorf("unknown camera %q", id)
	}
	return types.Characteristics{
		ID:     SyntheticID,
		Name:   "synthetic color bars",
		Facing: types.FacingBack,
		Sizes:  slices.Clone(m.sizes),
	}, nil
}

func (m *SyntheticManager) Open(ctx context.Context, id string) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id != SyntheticID {
		return nil, fmt.Errorf("unknown camera %q", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lost = make(chan struct{})

	return &syntheticDevice{fps: m.fps, lost: m.lost}, nil
}

// Disconnect simulates losing the device: the running stream ends as if
// the camera had been unplugged.
func (m *SyntheticManager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lost != nil {
		close(m.lost)
		m.lost = nil
	}
}

type syntheticDevice struct {
	fps  int
	lost chan struct{}
}

func (d *syntheticDevice) ID() string {
	return SyntheticID
}

func (d *syntheticDevice) CreateCaptureSession(target Target, size types.Resolution) (Stream, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, fmt.Errorf("%w: size %s", ErrInvalidArgument, size)
	}
	target.SetDefaultBufferSize(size)

	return &syntheticStream{d: d, size: size}, nil
}

func (d *syntheticDevice) Close() error {
	return nil
}

type syntheticStream struct {
	d    *syntheticDevice
	size types.Resolution
}

// SetRepeatingRequest encodes the first frame up front and the remaining
// bar phases on first use, so the stream starts without rendering them all.
func (s *syntheticStream) SetRepeatingRequest(ctx context.Context, _ Request) (<-chan []byte, error) {
	frames := make([][]byte, len(colorBars))
	first, err := colorBarFrame(s.size, 0)
	if err != nil {
		return nil, err
	}
	frames[0] = first

	out := make(chan []byte, 1)
	go func() {
		defer close(out)
		t := time.NewTicker(time.Second / time.Duration(s.d.fps))
		defer t.Stop()
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case <-s.d.lost:
				return
			case <-t.C:
				phase := i % len(frames)
				if frames[phase] == nil {
					frame, err := colorBarFrame(s.size, phase)
					if err != nil {
						logger.Errorf("synthetic frame: %s", err)
						return
					}
					frames[phase] = frame
				}
				select {
				case out <- frames[phase]:
				default:
					// consumer is behind; drop
				}
			}
		}
	}()

	return out, nil
}

func (s *syntheticStream) Close() error {
	return nil
}

// colorBarFrame renders one JPEG frame of the bars at the given phase.
func colorBarFrame(size types.Resolution, phase int) ([]byte, error) {
	return imgutil.EncodeJPEGBytes(ColorBars(size, phase), 85)
}

// ColorBars draws the bars shifted by phase bars, plus a white square in
// the top-left corner so the image orientation is visible.
func ColorBars(size types.Resolution, phase int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	barWidth := max(size.Width/len(colorBars), 1)
	for i := 0; i*barWidth < size.Width; i++ {
		bar := image.Rect(i*barWidth, 0, min((i+1)*barWidth, size.Width), size.Height)
		c := colorBars[(i+phase)%len(colorBars)]
		draw.Draw(img, bar, &image.Uniform{C: c}, image.Point{}, draw.Src)
	}
	marker := max(min(size.Width, size.Height)/8, 1)
	draw.Draw(img, image.Rect(0, 0, marker, marker), image.White, image.Point{}, draw.Src)
	return img
}
