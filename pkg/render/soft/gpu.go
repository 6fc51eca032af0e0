// Package soft is an in-memory GPU backend. It rasterizes the preview quad
// with bilinear affine sampling so the render pipeline can run headless and
// stream its output.
package soft

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync/atomic"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"camera-preview/pkg/render"
	"camera-preview/pkg/surface"
	"camera-preview/pkg/types"
)

var (
	ErrCompile        = errors.New("shader compile failed")
	ErrInvalidProgram = errors.New("invalid program")
	ErrInvalidTexture = errors.New("invalid texture")
	ErrNoProgram      = errors.New("draw with no program in use")
	ErrNoTexture      = errors.New("draw with no texture bound")
)

// GPU must be driven from one goroutine. Frames, Latest and Presented are
// safe from anywhere.
type GPU struct {
	fb       *image.RGBA
	clear    color.RGBA
	viewport image.Rectangle

	programs map[render.Program]struct{}
	textures map[render.Texture]*externalTexture
	nextName uint32

	program render.Program
	bound   render.Texture
	err     error

	out       chan *image.RGBA
	latest    atomic.Pointer[image.RGBA]
	presented atomic.Uint64
}

func New(size types.Resolution) *GPU {
	g := &GPU{
		programs: make(map[render.Program]struct{}),
		textures: make(map[render.Texture]*externalTexture),
		out:      make(chan *image.RGBA, 1),
	}
	g.Resize(size)
	return g
}

// Resize replaces the framebuffer and resets the viewport to cover it.
func (g *GPU) Resize(size types.Resolution) {
	g.fb = image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	g.viewport = g.fb.Bounds()
}

func (g *GPU) CompileProgram(vertexSrc, fragmentSrc string) (render.Program, error) {
	for _, want := range []string{"attribute vec4 position", "attribute vec2 texcoord", "gl_Position"} {
		if !strings.Contains(vertexSrc, want) {
			return 0, fmt.Errorf("%w: vertex shader has no %q", ErrCompile, want)
		}
	}
	for _, want := range []string{"samplerExternalOES", "gl_FragColor"} {
		if !strings.Contains(fragmentSrc, want) {
			return 0, fmt.Errorf("%w: fragment shader has no %q", ErrCompile, want)
		}
	}

	g.nextName++
	p := render.Program(g.nextName)
	g.programs[p] = struct{}{}
	return p, nil
}

func (g *GPU) GenExternalTexture() (render.Texture, error) {
	g.nextName++
	t := render.Texture(g.nextName)
	g.textures[t] = &externalTexture{}
	return t, nil
}

// Sink returns the image sink backing an external texture.
func (g *GPU) Sink(t render.Texture) (surface.Sink, error) {
	tex, ok := g.textures[t]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTexture, t)
	}
	return tex, nil
}

func (g *GPU) ClearColor(r, gr, b, a float32) {
	g.clear = color.RGBA{R: toUint8(r), G: toUint8(gr), B: toUint8(b), A: toUint8(a)}
}

// Clear fills the whole framebuffer, ignoring the viewport.
func (g *GPU) Clear() {
	draw.Draw(g.fb, g.fb.Bounds(), &image.Uniform{C: g.clear}, image.Point{}, draw.Src)
}

// Viewport takes a lower-left origin like GL.
func (g *GPU) Viewport(x, y, width, height int) {
	if width < 0 || height < 0 {
		g.record(fmt.Errorf("negative viewport %dx%d", width, height))
		return
	}
	top := g.fb.Bounds().Dy() - y - height
	g.viewport = image.Rect(x, top, x+width, top+height)
}

func (g *GPU) UseProgram(p render.Program) {
	if _, ok := g.programs[p]; p != 0 && !ok {
		g.record(fmt.Errorf("%w: %d", ErrInvalidProgram, p))
		return
	}
	g.program = p
}

func (g *GPU) BindExternalTexture(t render.Texture) {
	if _, ok := g.textures[t]; t != 0 && !ok {
		g.record(fmt.Errorf("%w: %d", ErrInvalidTexture, t))
		return
	}
	g.bound = t
}

// DrawTriangleStrip maps the texture onto the quad spanned by the first
// three vertices. A texture with no image yet draws nothing.
func (g *GPU) DrawTriangleStrip(vertices [4]render.Vec3, texcoords render.TextureQuad) {
	if g.program == 0 {
		g.record(ErrNoProgram)
		return
	}
	if g.bound == 0 {
		g.record(ErrNoTexture)
		return
	}
	src := g.textures[g.bound].img
	if src == nil {
		return
	}

	s2d, err := affine(g.viewport, src.Bounds(), vertices, texcoords)
	if err != nil {
		g.record(err)
		return
	}
	clip := g.viewport.Intersect(g.fb.Bounds())
	if clip.Empty() {
		return
	}
	dst := g.fb.SubImage(clip).(*image.RGBA)
	draw.ApproxBiLinear.Transform(dst, s2d, src, src.Bounds(), draw.Src, nil)
}

// Present copies the framebuffer out. The output channel holds only the
// newest frame.
func (g *GPU) Present() error {
	frame := image.NewRGBA(g.fb.Bounds())
	copy(frame.Pix, g.fb.Pix)
	g.latest.Store(frame)
	g.presented.Add(1)

	select {
	case g.out <- frame:
	default:
		select {
		case <-g.out:
		default:
		}
		select {
		case g.out <- frame:
		default:
		}
	}
	return nil
}

func (g *GPU) Err() error {
	err := g.err
	g.err = nil
	return err
}

func (g *GPU) Frames() <-chan *image.RGBA {
	return g.out
}

// Latest is the last presented frame, nil before the first Present.
func (g *GPU) Latest() *image.RGBA {
	return g.latest.Load()
}

func (g *GPU) Presented() uint64 {
	return g.presented.Load()
}

func (g *GPU) record(err error) {
	if g.err == nil {
		g.err = err
	}
}

// affine solves the source-to-destination transform that sends the texture
// coordinates of vertices 0, 1 and 2 to their viewport positions.
func affine(vp, sb image.Rectangle, vertices [4]render.Vec3, tc render.TextureQuad) (f64.Aff3, error) {
	var s, d [3][2]float64
	for i := 0; i < 3; i++ {
		s[i] = [2]float64{
			float64(sb.Min.X) + float64(tc[i].U)*float64(sb.Dx()),
			float64(sb.Min.Y) + float64(tc[i].V)*float64(sb.Dy()),
		}
		d[i] = [2]float64{
			float64(vp.Min.X) + (float64(vertices[i][0])+1)/2*float64(vp.Dx()),
			float64(vp.Min.Y) + (1-float64(vertices[i][1]))/2*float64(vp.Dy()),
		}
	}

	s1x, s1y := s[1][0]-s[0][0], s[1][1]-s[0][1]
	s2x, s2y := s[2][0]-s[0][0], s[2][1]-s[0][1]
	d1x, d1y := d[1][0]-d[0][0], d[1][1]-d[0][1]
	d2x, d2y := d[2][0]-d[0][0], d[2][1]-d[0][1]

	det := s1x*s2y - s2x*s1y
	if det == 0 {
		return f64.Aff3{}, errors.New("degenerate texture coordinates")
	}
	m00 := (d1x*s2y - d2x*s1y) / det
	m01 := (d2x*s1x - d1x*s2x) / det
	m10 := (d1y*s2y - d2y*s1y) / det
	m11 := (d2y*s1x - d1y*s2x) / det

	return f64.Aff3{
		m00, m01, d[0][0] - m00*s[0][0] - m01*s[0][1],
		m10, m11, d[0][1] - m10*s[0][0] - m11*s[0][1],
	}, nil
}

func toUint8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xff
	}
	return uint8(v*0xff + 0.5)
}

type externalTexture struct {
	img image.Image
}

func (t *externalTexture) SetImage(img image.Image) {
	t.img = img
}
