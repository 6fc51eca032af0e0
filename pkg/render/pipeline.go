package render

import (
	"errors"
	"fmt"
	"sync/atomic"

	"camera-preview/pkg/camera"
	"camera-preview/pkg/orientation"
	"camera-preview/pkg/pacer"
	"camera-preview/pkg/types"
)

// SessionView is what the pipeline reads of the capture session.
type SessionView interface {
	Snapshot() *camera.Snapshot
}

// Resizable is implemented by backends that own their framebuffer.
type Resizable interface {
	Resize(size types.Resolution)
}

type RotationSource interface {
	Resolve() types.Rotation
}

// Requester schedules the next draw.
type Requester interface {
	RequestRender()
}

// AttachFunc binds a capture-backed source to a freshly created external
// texture. It runs once per surface creation.
type AttachFunc func(tex Texture) (TextureSource, error)

type Options struct {
	GPU       GPU
	Session   SessionView
	Rotation  RotationSource
	Display   orientation.Display
	Pacer     *pacer.Pacer
	Requester Requester
	Attach    AttachFunc
}

// FrameConfig is resolved once per Ready session and surface.
type FrameConfig struct {
	SessionID string           `json:"sessionId"`
	Size      types.Resolution `json:"size"`
	Rotation  types.Rotation   `json:"rotation"`
	Quad      TextureQuad      `json:"quad"`
	Viewport  ViewportRect     `json:"viewport"`
}

// Pipeline draws the camera preview. Everything but Config runs on the
// render goroutine.
type Pipeline struct {
	opts Options

	program Program
	texture Texture
	source  TextureSource

	config atomic.Pointer[FrameConfig]
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.GPU == nil || opts.Session == nil || opts.Rotation == nil || opts.Display == nil {
		return nil, errors.New("render pipeline needs a gpu, session, rotation source and display")
	}
	if opts.Attach == nil {
		return nil, errors.New("render pipeline needs an attach func")
	}
	if opts.Pacer == nil {
		opts.Pacer = pacer.New(pacer.DefaultInterval)
	}

	return &Pipeline{opts: opts}, nil
}

func (p *Pipeline) SurfaceCreated(size types.Resolution) error {
	gpu := p.opts.GPU
	p.resize(size)

	program, err := gpu.CompileProgram(VertexShader, FragmentShader)
	if err != nil {
		return fmt.Errorf("compile preview program: %w", err)
	}
	texture, err := gpu.GenExternalTexture()
	if err != nil {
		return fmt.Errorf("create external texture: %w", err)
	}
	source, err := p.opts.Attach(texture)
	if err != nil {
		return fmt.Errorf("attach external texture: %w", err)
	}

	p.program = program
	p.texture = texture
	p.source = source
	p.config.Store(nil)

	return nil
}

// SurfaceChanged drops the cached configuration; the next ready draw
// resolves it again.
func (p *Pipeline) SurfaceChanged(size types.Resolution) {
	logger.Infof("render surface changed to %s", size)
	p.resize(size)
	p.config.Store(nil)
	p.request()
}

// DrawFrame renders one frame. A returned error is unrecoverable.
func (p *Pipeline) DrawFrame() error {
	if p.source == nil {
		return errors.New("draw before surface created")
	}
	gpu := p.opts.GPU
	frame := p.opts.Pacer.Begin()

	gpu.ClearColor(ClearColor[0], ClearColor[1], ClearColor[2], ClearColor[3])
	gpu.Clear()

	snap := p.opts.Session.Snapshot()
	if snap == nil {
		p.config.Store(nil)
		if err := gpu.Present(); err != nil {
			return fmt.Errorf("present: %w", err)
		}
		p.opts.Pacer.End(frame)
		p.request()
		return nil
	}

	cfg := p.config.Load()
	if cfg == nil || cfg.SessionID != snap.ID {
		cfg = p.configure(snap)
	}

	if err := p.source.UpdateTexImage(); err != nil {
		logger.Warnf("update texture: %s", err)
	}

	gpu.UseProgram(p.program)
	gpu.BindExternalTexture(p.texture)
	gpu.DrawTriangleStrip(QuadVertices, cfg.Quad)
	gpu.UseProgram(0)
	gpu.BindExternalTexture(0)
	if err := gpu.Err(); err != nil {
		return fmt.Errorf("draw preview: %w", err)
	}
	if err := gpu.Present(); err != nil {
		return fmt.Errorf("present: %w", err)
	}

	p.opts.Pacer.End(frame)
	p.request()

	return nil
}

// Config is the configuration of the last ready draw, nil when idle.
// Safe from any goroutine.
func (p *Pipeline) Config() *FrameConfig {
	return p.config.Load()
}

func (p *Pipeline) configure(snap *camera.Snapshot) *FrameConfig {
	rot := p.opts.Rotation.Resolve()
	cfg := &FrameConfig{
		SessionID: snap.ID,
		Size:      snap.Size,
		Rotation:  rot,
		Quad:      QuadFor(rot),
		Viewport:  ComposeViewport(p.opts.Display.Size(), snap.Size),
	}
	vp := cfg.Viewport
	p.opts.GPU.Viewport(vp.X, vp.Y, vp.Width, vp.Height)
	p.config.Store(cfg)
	logger.Infof("preview configured: size %s, rotation %s, viewport %s", cfg.Size, cfg.Rotation, vp)

	return cfg
}

func (p *Pipeline) resize(size types.Resolution) {
	if r, ok := p.opts.GPU.(Resizable); ok {
		r.Resize(size)
	}
}

func (p *Pipeline) request() {
	if p.opts.Requester != nil {
		p.opts.Requester.RequestRender()
	}
}
