package render

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"camera-preview/pkg/types"
	"camera-preview/pkg/utils"
)

var logger *zap.SugaredLogger

func init() {
	logger = utils.GetLogger()
}

// Renderer is driven by a Loop on a single goroutine.
type Renderer interface {
	SurfaceCreated(size types.Resolution) error
	SurfaceChanged(size types.Resolution)
	DrawFrame() error
}

// Loop is a render-when-dirty loop. It draws only after RequestRender and
// never on a timer; a renderer keeps it going by requesting the next
// frame from inside DrawFrame.
type Loop struct {
	render  chan struct{}
	changed chan struct{}

	mu   sync.Mutex
	size types.Resolution
}

func NewLoop(size types.Resolution) *Loop {
	return &Loop{
		render:  make(chan struct{}, 1),
		changed: make(chan struct{}, 1),
		size:    size,
	}
}

// RequestRender schedules one draw. Requests made before the draw runs
// collapse into one.
func (l *Loop) RequestRender() {
	select {
	case l.render <- struct{}{}:
	default:
	}
}

// SurfaceChanged reports a new surface size; only the latest is delivered.
func (l *Loop) SurfaceChanged(size types.Resolution) {
	l.mu.Lock()
	l.size = size
	l.mu.Unlock()

	select {
	case l.changed <- struct{}{}:
	default:
	}
}

func (l *Loop) Size() types.Resolution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Run creates the surface and then serves change and draw requests until
// ctx is done or the renderer fails. The calling goroutine is locked to
// its OS thread for the duration, as GPU contexts require.
func (l *Loop) Run(ctx context.Context, r Renderer) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := r.SurfaceCreated(l.Size()); err != nil {
		return err
	}
	logger.Infof("render surface created at %s", l.Size())
	l.RequestRender()

	for {
		// a pending change always lands before the next draw
		select {
		case <-l.changed:
			r.SurfaceChanged(l.Size())
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.changed:
			r.SurfaceChanged(l.Size())
		case <-l.render:
			if err := r.DrawFrame(); err != nil {
				return err
			}
		}
	}
}
