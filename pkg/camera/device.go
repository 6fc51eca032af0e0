package camera

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	"camera-preview/pkg/types"
)

const (
	DefaultDevice = "/dev/video0"
	DefaultFPS    = 30
)

var DefaultPixelFormat = v4l2.PixelFmtMJPEG

// V4L2Manager exposes video4linux capture nodes as cameras. V4L2 does not
// report lens facing, so the configured back device is FacingBack and
// every other node is FacingExternal.
type V4L2Manager struct {
	devices     []string
	back        string
	pixelFormat v4l2.FourCCType
	fps         uint32
}

type V4L2Config struct {
	// Devices lists the nodes to expose; /dev/video* when empty.
	Devices     []string
	Back        string
	PixelFormat v4l2.FourCCType
	FPS         uint32
}

func NewV4L2Manager(cfg V4L2Config) *V4L2Manager {
	m := &V4L2Manager{
		devices:     slices.Clone(cfg.Devices),
		back:        cfg.Back,
		pixelFormat: cfg.PixelFormat,
		fps:         cfg.FPS,
	}
	if m.back == "" {
		m.back = DefaultDevice
	}
	if m.pixelFormat == 0 {
		m.pixelFormat = DefaultPixelFormat
	}
	if m.fps == 0 {
		m.fps = DefaultFPS
	}
	return m
}

func (m *V4L2Manager) CameraIDs() ([]string, error) {
	if len(m.devices) > 0 {
		return slices.Clone(m.devices), nil
	}
	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	return paths, nil
}

func (m *V4L2Manager) Characteristics(id string) (types.Characteristics, error) {
	dev, err := device.Open(id, device.WithBufferSize(1))
	if err != nil {
		return types.Characteristics{}, err
	}
	defer dev.Close()

	sizes, err := v4l2.GetAllFormatFrameSizes(dev.Fd())
	if err != nil {
		return types.Characteristics{}, err
	}

	c := types.Characteristics{
		ID:     id,
		Name:   dev.Capability().Card,
		Facing: types.FacingExternal,
	}
	if id == m.back {
		c.Facing = types.FacingBack
	}
	add := func(w, h uint32) {
		r := types.Resolution{Width: int(w), Height: int(h)}
		if r.Width > 0 && r.Height > 0 && !slices.Contains(c.Sizes, r) {
			c.Sizes = append(c.Sizes, r)
		}
	}
	for _, size := range sizes {
		if size.PixelFormat != m.pixelFormat {
			continue
		}
		// Discrete entries have min == max; stepwise ranges contribute both ends.
		add(size.Size.MaxWidth, size.Size.MaxHeight)
		add(size.Size.MinWidth, size.Size.MinHeight)
	}

	return c, nil
}

func (m *V4L2Manager) Open(ctx context.Context, id string) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dev, err := device.Open(
		id,
		device.WithBufferSize(1),
		device.WithFPS(m.fps),
	)
	if err != nil {
		return nil, err
	}

	return &v4l2Device{id: id, dev: dev, pixelFormat: m.pixelFormat}, nil
}

type v4l2Device struct {
	id          string
	dev         *device.Device
	pixelFormat v4l2.FourCCType
	started     atomic.Bool
}

func (d *v4l2Device) ID() string {
	return d.id
}

func (d *v4l2Device) CreateCaptureSession(target Target, size types.Resolution) (Stream, error) {
	err := d.dev.SetPixFormat(v4l2.PixFormat{
		PixelFormat: d.pixelFormat,
		Width:       uint32(size.Width),
		Height:      uint32(size.Height),
		Field:       v4l2.FieldNone,
	})
	if err != nil {
		return nil, fmt.Errorf("set format %s: %w", size, err)
	}
	target.SetDefaultBufferSize(size)

	return &v4l2Stream{d: d}, nil
}

func (d *v4l2Device) Close() error {
	if d.started.Load() {
		// Give the stream goroutine time to reach ctx.Done and call Stop()
		// so it does not race with Close().
		time.Sleep(100 * time.Millisecond)
	}
	return d.dev.Close()
}

type v4l2Stream struct {
	d *v4l2Device
}

func (s *v4l2Stream) SetRepeatingRequest(ctx context.Context, req Request) (<-chan []byte, error) {
	if req.AFMode == AFModeContinuousPicture {
		if err := setContinuousFocus(s.d.dev); err != nil {
			logger.Warnf("camera %s: continuous autofocus unavailable: %s", s.d.id, err)
		}
	}
	if err := s.d.dev.Start(ctx); err != nil {
		return nil, err
	}
	s.d.started.Store(true)

	return s.d.dev.GetOutput(), nil
}

// Close is a no-op: streaming stops with the request context and the
// device is released by Device.Close.
func (s *v4l2Stream) Close() error {
	return nil
}
