package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"camera-preview/pkg/types"
)

const (
	StateClosed       = "closed"
	StateOpening      = "opening"
	StateOpened       = "opened"
	StateConfiguring  = "configuring"
	StateReady        = "ready"
	StateDisconnected = "disconnected"
	StateFailed       = "failed"
)

const (
	eventOpen       = "open"
	eventOpened     = "opened"
	eventConfigure  = "configure"
	eventConfigured = "configured"
	eventDisconnect = "disconnect"
	eventFail       = "fail"
	eventReset      = "reset"
	eventClose      = "close"
)

var liveStates = []string{StateOpening, StateOpened, StateConfiguring, StateReady}

// Snapshot is what the render side sees of a Ready session. It is
// immutable once published.
type Snapshot struct {
	ID       string           `json:"id"`
	CameraID string           `json:"cameraId"`
	Size     types.Resolution `json:"size"`
	ReadyAt  time.Time        `json:"readyAt"`
}

type Options struct {
	// Target is the ideal capture size; DefaultTarget when zero.
	Target types.Resolution
	// Facing selects the camera; back-facing when empty.
	Facing  types.Facing
	Request Request
	// OnNotice receives errors meant for the user (device access and
	// configuration failures). It is called with no session lock held.
	OnNotice func(err error)
}

// attempt is one open of the device. It owns the open goroutine and the
// repeating-capture goroutine; both exit when ctx is cancelled.
type attempt struct {
	id       string
	cameraID string
	size     types.Resolution
	target   Target

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ready    chan struct{}
	done     chan struct{}
	snapshot *Snapshot
	err      error

	device Device
	stream Stream
	// pending is set while a platform call runs without the session lock;
	// a Close meanwhile is queued and honored when the call returns.
	pending     bool
	closeQueued bool
}

// Session owns at most one open camera and its repeating capture request.
type Session struct {
	manager Manager
	opts    Options

	mu      sync.Mutex
	fsm     *fsm.FSM
	cur     *attempt
	lastErr error

	snapshot atomic.Pointer[Snapshot]
}

func NewSession(manager Manager, opts Options) *Session {
	if opts.Target == (types.Resolution{}) {
		opts.Target = DefaultTarget
	}
	if opts.Facing == "" {
		opts.Facing = types.FacingBack
	}
	if opts.Request == (Request{}) {
		opts.Request = PreviewRequest()
	}

	s := &Session{manager: manager, opts: opts}
	s.fsm = fsm.NewFSM(
		StateClosed,
		fsm.Events{
			{Name: eventOpen, Src: []string{StateClosed}, Dst: StateOpening},
			{Name: eventOpened, Src: []string{StateOpening}, Dst: StateOpened},
			{Name: eventConfigure, Src: []string{StateOpened}, Dst: StateConfiguring},
			{Name: eventConfigured, Src: []string{StateConfiguring}, Dst: StateReady},
			{Name: eventDisconnect, Src: liveStates, Dst: StateDisconnected},
			{Name: eventFail, Src: liveStates, Dst: StateFailed},
			{Name: eventReset, Src: []string{StateDisconnected, StateFailed}, Dst: StateClosed},
			{Name: eventClose, Src: liveStates, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debugf("capture session: %s -> %s (%s)", e.Src, e.Dst, e.Event)
			},
		},
	)

	return s
}

// Open selects the camera, negotiates the capture size and starts opening
// the device in the background. It is only valid from StateClosed.
func (s *Session) Open(target Target) error {
	s.mu.Lock()
	err := s.open(target)
	s.mu.Unlock()

	var accessErr *DeviceAccessError
	if errors.As(err, &accessErr) {
		s.notify(err)
	}
	return err
}

func (s *Session) open(target Target) error {
	if target == nil {
		return fmt.Errorf("%w: nil target", ErrInvalidArgument)
	}
	if err := s.event(eventOpen); err != nil {
		return err
	}

	info, err := s.selectCamera()
	var size types.Resolution
	if err == nil {
		size, err = ClosestSize(info.Sizes, s.opts.Target)
	}
	if err != nil {
		s.lastErr = err
		_ = s.event(eventFail)
		_ = s.event(eventReset)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &attempt{
		id:       uuid.NewString(),
		cameraID: info.ID,
		size:     size,
		target:   target,
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.cur = a
	s.lastErr = nil
	logger.Infof("opening camera %s at %s (ideal %s), session %s", a.cameraID, size, s.opts.Target, a.id)

	a.pending = true
	a.wg.Add(1)
	go s.openDevice(a)

	return nil
}

func (s *Session) selectCamera() (types.Characteristics, error) {
	ids, err := s.manager.CameraIDs()
	if err != nil {
		return types.Characteristics{}, &DeviceAccessError{Err: err}
	}
	for _, id := range ids {
		c, err := s.manager.Characteristics(id)
		if err != nil {
			return types.Characteristics{}, &DeviceAccessError{ID: id, Err: err}
		}
		if c.Facing == s.opts.Facing {
			return c, nil
		}
	}

	return types.Characteristics{}, &DeviceAccessError{Err: ErrNoCamera}
}

// openDevice runs on the camera-open goroutine.
func (s *Session) openDevice(a *attempt) {
	defer a.wg.Done()

	dev, err := s.manager.Open(a.ctx, a.cameraID)

	s.mu.Lock()
	a.pending = false
	if s.cur != a {
		s.mu.Unlock()
		if dev != nil {
			_ = dev.Close()
		}
		return
	}
	if a.closeQueued {
		if err == nil {
			a.device = dev
			_ = s.event(eventOpened)
		}
		s.closeLocked(a)
		s.mu.Unlock()
		return
	}
	if err != nil {
		err = &DeviceAccessError{ID: a.cameraID, Err: err}
		s.failLocked(a, eventFail, err)
		s.mu.Unlock()
		s.notify(err)
		return
	}
	a.device = dev
	_ = s.event(eventOpened)
	_ = s.event(eventConfigure)
	a.pending = true
	s.mu.Unlock()

	stream, err := dev.CreateCaptureSession(a.target, a.size)

	s.mu.Lock()
	a.pending = false
	if s.cur != a {
		s.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return
	}
	if a.closeQueued {
		if err == nil {
			a.stream = stream
		}
		s.closeLocked(a)
		s.mu.Unlock()
		return
	}
	if err != nil {
		err = &ConfigurationError{ID: a.cameraID, Err: err}
		s.failLocked(a, eventFail, err)
		s.mu.Unlock()
		s.notify(err)
		return
	}
	a.stream = stream
	a.pending = true
	a.wg.Add(1)
	go s.repeat(a)
	s.mu.Unlock()
}

// repeat runs on the repeating-capture goroutine. It marks the session
// Ready once the request is running, then forwards frames to the target
// until the attempt ends.
func (s *Session) repeat(a *attempt) {
	defer a.wg.Done()

	frames, err := a.stream.SetRepeatingRequest(a.ctx, s.opts.Request)

	s.mu.Lock()
	a.pending = false
	if s.cur != a {
		s.mu.Unlock()
		return
	}
	if a.closeQueued {
		s.closeLocked(a)
		s.mu.Unlock()
		return
	}
	if err != nil {
		err = &ConfigurationError{ID: a.cameraID, Err: err}
		s.failLocked(a, eventFail, err)
		s.mu.Unlock()
		s.notify(err)
		return
	}
	_ = s.event(eventConfigured)
	a.snapshot = &Snapshot{
		ID:       a.id,
		CameraID: a.cameraID,
		Size:     a.size,
		ReadyAt:  time.Now(),
	}
	s.snapshot.Store(a.snapshot)
	close(a.ready)
	s.mu.Unlock()
	logger.Infof("camera %s ready at %s, session %s", a.cameraID, a.size, a.id)

	for {
		select {
		case <-a.ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				if a.ctx.Err() != nil {
					return
				}
				s.mu.Lock()
				if s.cur == a {
					logger.Warnf("camera %s disconnected, session %s", a.cameraID, a.id)
					s.failLocked(a, eventDisconnect, ErrDisconnected)
				}
				s.mu.Unlock()
				return
			}
			if len(frame) == 0 {
				continue
			}
			a.target.Publish(frame)
		}
	}
}

// Close releases the device. Closing while a platform call is in flight
// (open, configure or starting the request) is queued until that call
// returns, and Close waits for it.
func (s *Session) Close() error {
	s.mu.Lock()
	a := s.cur
	if a == nil {
		s.mu.Unlock()
		return nil
	}
	if a.pending {
		a.closeQueued = true
	} else {
		s.closeLocked(a)
	}
	s.mu.Unlock()

	a.wg.Wait()
	return nil
}

// WaitReady blocks until the current open attempt reaches Ready or ends.
func (s *Session) WaitReady(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	a := s.cur
	lastErr := s.lastErr
	s.mu.Unlock()
	if a == nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrClosed
	}

	select {
	case <-a.ready:
		select {
		case <-a.done:
			return nil, a.err
		default:
		}
		return a.snapshot, nil
	case <-a.done:
		return nil, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Snapshot is nil unless the session is Ready. Safe from any goroutine.
func (s *Session) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsm.Current()
}

// LastError is the error that ended the previous attempt, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) closeLocked(a *attempt) {
	a.err = ErrClosed
	_ = s.event(eventClose)
	s.releaseLocked(a)
	logger.Infof("camera %s closed, session %s", a.cameraID, a.id)
}

func (s *Session) failLocked(a *attempt, event string, err error) {
	_ = s.event(event)
	s.lastErr = err
	a.err = err
	s.releaseLocked(a)
	_ = s.event(eventReset)
}

func (s *Session) releaseLocked(a *attempt) {
	a.cancel()
	if a.stream != nil {
		if err := a.stream.Close(); err != nil {
			logger.Warnf("close capture stream: %s", err)
		}
	}
	if a.device != nil {
		if err := a.device.Close(); err != nil {
			logger.Warnf("close camera %s: %s", a.cameraID, err)
		}
	}
	s.snapshot.Store(nil)
	s.cur = nil
	close(a.done)
}

func (s *Session) event(name string) error {
	if err := s.fsm.Event(context.Background(), name); err != nil {
		return fmt.Errorf("%w: %s from %s", ErrInvalidState, name, s.fsm.Current())
	}
	return nil
}

func (s *Session) notify(err error) {
	if s.opts.OnNotice != nil {
		s.opts.OnNotice(err)
		return
	}
	logger.Warn(err)
}
