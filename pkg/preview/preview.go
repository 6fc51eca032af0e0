// Package preview assembles the capture session, the display and the render
// pipeline into one runnable camera preview.
package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"camera-preview/pkg/camera"
	"camera-preview/pkg/config"
	"camera-preview/pkg/orientation"
	"camera-preview/pkg/pacer"
	"camera-preview/pkg/render"
	"camera-preview/pkg/render/soft"
	"camera-preview/pkg/surface"
	"camera-preview/pkg/types"
	"camera-preview/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

type Preview struct {
	Manager  camera.Manager
	Session  *camera.Session
	Display  *orientation.VirtualDisplay
	Resolver *orientation.Resolver
	GPU      *soft.GPU
	Pacer    *pacer.Pacer
	Loop     *render.Loop
	Pipeline *render.Pipeline

	texture atomic.Pointer[surface.Texture]

	noticeLock sync.Mutex
	notice     error
}

func NewManager(cfg config.Config) (camera.Manager, error) {
	if cfg.Synthetic {
		return camera.NewSyntheticManager(camera.SyntheticSizes, cfg.FPS), nil
	}
	v, err := cfg.V4L2()
	if err != nil {
		return nil, err
	}
	return camera.NewV4L2Manager(v), nil
}

func New(cfg config.Config) (*Preview, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	manager, err := NewManager(cfg)
	if err != nil {
		return nil, err
	}
	display, err := orientation.NewVirtualDisplay(cfg.Display, cfg.Rotation())
	if err != nil {
		return nil, err
	}

	p := &Preview{
		Manager:  manager,
		Display:  display,
		Resolver: orientation.NewResolver(cfg.PortraitApp, display),
		GPU:      soft.New(cfg.Display),
		Pacer:    pacer.New(cfg.FrameInterval),
		Loop:     render.NewLoop(cfg.Display),
	}
	p.Session = camera.NewSession(manager, camera.Options{
		Target:   cfg.Target,
		OnNotice: p.setNotice,
	})
	p.Pipeline, err = render.NewPipeline(render.Options{
		GPU:       p.GPU,
		Session:   p.Session,
		Rotation:  p.Resolver,
		Display:   display,
		Pacer:     p.Pacer,
		Requester: p.Loop,
		Attach:    p.attach,
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Run drives the render loop until ctx is done, then closes the camera.
func (p *Preview) Run(ctx context.Context) error {
	defer p.Session.Close()

	err := p.Loop.Run(ctx, p.Pipeline)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Open starts a new capture session on the surface texture.
func (p *Preview) Open() error {
	st := p.texture.Load()
	if st == nil {
		return errors.New("render surface not created yet")
	}
	return p.Session.Open(st)
}

// SetDisplay changes the display and reports it as a surface change.
func (p *Preview) SetDisplay(size types.Resolution, rotation types.Rotation) error {
	if err := p.Display.Set(size, rotation); err != nil {
		return err
	}
	p.Loop.SurfaceChanged(size)
	return nil
}

// Texture is nil until the render surface exists and the first open has
// been attempted.
func (p *Preview) Texture() *surface.Texture {
	return p.texture.Load()
}

// Notice is the last user-facing error raised by the session.
func (p *Preview) Notice() error {
	p.noticeLock.Lock()
	defer p.noticeLock.Unlock()
	return p.notice
}

func (p *Preview) attach(tex render.Texture) (render.TextureSource, error) {
	sink, err := p.GPU.Sink(tex)
	if err != nil {
		return nil, err
	}
	st := surface.NewTexture(sink)

	// A camera that fails to open is reported as a notice; the preview
	// keeps drawing idle frames.
	if err := p.Session.Open(st); err != nil {
		logger.Errorf("open camera: %s", err)
	}
	p.texture.Store(st)

	return st, nil
}

func (p *Preview) setNotice(err error) {
	logger.Warnf("camera notice: %s", err)
	p.noticeLock.Lock()
	p.notice = err
	p.noticeLock.Unlock()
}

// Describe lists what the manager can see, for diagnostics.
func Describe(m camera.Manager) ([]types.Characteristics, error) {
	ids, err := m.CameraIDs()
	if err != nil {
		return nil, err
	}
	res := make([]types.Characteristics, 0, len(ids))
	for _, id := range ids {
		c, err := m.Characteristics(id)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", id, err)
		}
		res = append(res, c)
	}
	return res, nil
}
