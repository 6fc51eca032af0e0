package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"camera-preview/pkg/types"
)

type fakeManager struct {
	mu       sync.Mutex
	cameras  []types.Characteristics
	openGate chan struct{}
	openErr  error
	opens    int
	dev      *fakeDevice
}

func newFakeManager() *fakeManager {
	return &fakeManager{
		cameras: []types.Characteristics{
			{ID: "1", Facing: types.FacingFront, Sizes: []types.Resolution{res(640, 480)}},
			{ID: "0", Facing: types.FacingBack, Sizes: []types.Resolution{res(640, 480), res(1280, 720), res(1600, 1200)}},
		},
		dev: &fakeDevice{frames: make(chan []byte, 1)},
	}
}

func (m *fakeManager) CameraIDs() ([]string, error) {
	var ids []string
	for _, c := range m.cameras {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (m *fakeManager) Characteristics(id string) (types.Characteristics, error) {
	for _, c := range m.cameras {
		if c.ID == id {
			return c, nil
		}
	}
	return types.Characteristics{}, errors.New("no such camera")
}

func (m *fakeManager) Open(_ context.Context, id string) (Device, error) {
	m.mu.Lock()
	m.opens++
	gate := m.openGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.dev.id = id
	return m.dev, nil
}

func (m *fakeManager) openCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

type fakeDevice struct {
	mu        sync.Mutex
	id        string
	configErr error
	size      types.Resolution
	request   Request
	closed    int
	frames    chan []byte

	// configGate and requestGate hold CreateCaptureSession and
	// SetRepeatingRequest until closed.
	configGate   chan struct{}
	requestGate  chan struct{}
	configCalls  int
	requestCalls int
	streamClosed int
	// closedEarly records a Close that ran while a call was still blocked.
	closedEarly bool
	inCall      bool
}

func (d *fakeDevice) ID() string { return d.id }

func (d *fakeDevice) CreateCaptureSession(target Target, size types.Resolution) (Stream, error) {
	d.enter(&d.configCalls, d.configGate)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inCall = false
	if d.configErr != nil {
		return nil, d.configErr
	}
	d.size = size
	target.SetDefaultBufferSize(size)
	return &fakeStream{d: d}, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	if d.inCall {
		d.closedEarly = true
	}
	return nil
}

// enter counts a call and blocks on gate, if any, marking the device busy.
func (d *fakeDevice) enter(calls *int, gate chan struct{}) {
	d.mu.Lock()
	*calls++
	d.inCall = gate != nil
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (d *fakeDevice) calls() (config, request int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configCalls, d.requestCalls
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

type fakeStream struct {
	d *fakeDevice
}

func (s *fakeStream) SetRepeatingRequest(_ context.Context, req Request) (<-chan []byte, error) {
	s.d.enter(&s.d.requestCalls, s.d.requestGate)
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.inCall = false
	s.d.request = req
	return s.d.frames, nil
}

func (s *fakeStream) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.streamClosed++
	return nil
}

type fakeTarget struct {
	mu     sync.Mutex
	size   types.Resolution
	frames chan []byte
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{frames: make(chan []byte, 8)}
}

func (t *fakeTarget) SetDefaultBufferSize(size types.Resolution) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.size = size
}

func (t *fakeTarget) Publish(frame []byte) {
	select {
	case t.frames <- frame:
	default:
	}
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []error
}

func (r *noticeRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, err)
}

func (r *noticeRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.notices...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func closeQueued(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil && s.cur.closeQueued
}

func waitReady(t *testing.T, s *Session) *Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := s.WaitReady(ctx)
	if err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	return snap
}

func TestSessionOpenReady(t *testing.T) {
	m := newFakeManager()
	target := newFakeTarget()
	s := NewSession(m, Options{})

	if s.Snapshot() != nil {
		t.Fatal("snapshot before open")
	}
	if err := s.Open(target); err != nil {
		t.Fatal(err)
	}
	snap := waitReady(t, s)

	if snap.Size != res(1600, 1200) {
		t.Fatalf("size: got %s", snap.Size)
	}
	if snap.CameraID != "0" {
		t.Fatalf("camera: got %s want back camera 0", snap.CameraID)
	}
	if snap.ID == "" {
		t.Fatal("empty session id")
	}
	if got := s.State(); got != StateReady {
		t.Fatalf("state: got %s", got)
	}
	if s.Snapshot() != snap {
		t.Fatal("published snapshot differs from WaitReady result")
	}
	target.mu.Lock()
	bufSize := target.size
	target.mu.Unlock()
	if bufSize != res(1600, 1200) {
		t.Fatalf("buffer size: got %s", bufSize)
	}
	m.dev.mu.Lock()
	req := m.dev.request
	m.dev.mu.Unlock()
	if req != PreviewRequest() {
		t.Fatalf("request: got %+v", req)
	}

	m.dev.frames <- []byte("frame-1")
	select {
	case f := <-target.frames:
		if string(f) != "frame-1" {
			t.Fatalf("frame: got %q", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("frame not forwarded to target")
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state after close: got %s", got)
	}
	if s.Snapshot() != nil {
		t.Fatal("snapshot after close")
	}
	if got := m.dev.closeCount(); got != 1 {
		t.Fatalf("device closed %d times", got)
	}
}

func TestSessionOpenOnlyFromClosed(t *testing.T) {
	m := newFakeManager()
	m.openGate = make(chan struct{})
	s := NewSession(m, Options{})

	if err := s.Open(newFakeTarget()); err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != StateOpening {
		t.Fatalf("state: got %s", got)
	}
	if err := s.Open(newFakeTarget()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("second open: got %v want ErrInvalidState", err)
	}

	close(m.openGate)
	waitReady(t, s)
	if err := s.Open(newFakeTarget()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("open while ready: got %v want ErrInvalidState", err)
	}
	if got := m.openCount(); got != 1 {
		t.Fatalf("device opened %d times", got)
	}
	_ = s.Close()
}

func TestSessionReopen(t *testing.T) {
	m := newFakeManager()
	s := NewSession(m, Options{})

	if err := s.Open(newFakeTarget()); err != nil {
		t.Fatal(err)
	}
	first := waitReady(t, s)
	_ = s.Close()

	if err := s.Open(newFakeTarget()); err != nil {
		t.Fatal(err)
	}
	second := waitReady(t, s)
	if first.ID == second.ID {
		t.Fatal("reopened session reused id")
	}
	_ = s.Close()
}

func TestSessionCloseWhenClosed(t *testing.T) {
	s := NewSession(newFakeManager(), Options{})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state: got %s", got)
	}
	if _, err := s.WaitReady(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("WaitReady on closed: got %v", err)
	}
}

func TestSessionDisconnect(t *testing.T) {
	m := newFakeManager()
	notices := &noticeRecorder{}
	s := NewSession(m, Options{OnNotice: notices.record})

	if err := s.Open(newFakeTarget()); err != nil {
		t.Fatal(err)
	}
	waitReady(t, s)

	close(m.dev.frames)
	waitFor(t, "closed after disconnect", func() bool { return s.State() == StateClosed })

	if s.Snapshot() != nil {
		t.Fatal("snapshot survived disconnect")
	}
	if err := s.LastError(); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("last error: got %v", err)
	}
	if got := m.dev.closeCount(); got != 1 {
		t.Fatalf("device closed %d times", got)
	}
	if n := notices.all(); len(n) != 0 {
		t.Fatalf("disconnect should be silent, got %v", n)
	}
}

func TestSessionConfigureFailure(t *testing.T) {
	m := newFakeManager()
	m.dev.configErr = errors.New("no surface")
	notices := &noticeRecorder{}
	s := NewSession(m, Options{OnNotice: notices.record})

	if err := s.Open(newFakeTarget()); err != nil {
		t.Fatal(err)
	}
	_, err := s.WaitReady(context.Background())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("WaitReady: got %v want ConfigurationError", err)
	}
	waitFor(t, "notice", func() bool { return len(notices.all()) == 1 })
	if !errors.As(notices.all()[0], &cfgErr) {
		t.Fatalf("notice: got %v", notices.all()[0])
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state: got %s", got)
	}
	if s.Snapshot() != nil {
		t.Fatal("snapshot after configure failure")
	}
}

func TestSessionOpenFailure(t *testing.T) {
	m := newFakeManager()
	m.openErr = errors.New("permission denied")
	notices := &noticeRecorder{}
	s := NewSession(m, Options{OnNotice: notices.record})

	if err := s.Open(newFakeTarget()); err != nil {
		t.Fatal(err)
	}
	_, err := s.WaitReady(context.Background())
	var accessErr *DeviceAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("WaitReady: got %v want DeviceAccessError", err)
	}
	if accessErr.ID != "0" {
		t.Fatalf("camera id: got %q", accessErr.ID)
	}
	waitFor(t, "notice", func() bool { return len(notices.all()) == 1 })
	if got := s.State(); got != StateClosed {
		t.Fatalf("state: got %s", got)
	}
}

func TestSessionNoBackCamera(t *testing.T) {
	m := newFakeManager()
	m.cameras = m.cameras[:1]
	notices := &noticeRecorder{}
	s := NewSession(m, Options{OnNotice: notices.record})

	err := s.Open(newFakeTarget())
	var accessErr *DeviceAccessError
	if !errors.As(err, &accessErr) || !errors.Is(err, ErrNoCamera) {
		t.Fatalf("got %v want DeviceAccessError(ErrNoCamera)", err)
	}
	if len(notices.all()) != 1 {
		t.Fatalf("notices: %v", notices.all())
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state: got %s", got)
	}
	if m.openCount() != 0 {
		t.Fatal("device opened without a back camera")
	}
}

func TestSessionEmptySizes(t *testing.T) {
	m := newFakeManager()
	m.cameras[1].Sizes = nil
	s := NewSession(m, Options{})

	if err := s.Open(newFakeTarget()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state: got %s", got)
	}
}

func TestSessionCloseWhileOpening(t *testing.T) {
	m := newFakeManager()
	m.openGate = make(chan struct{})
	s := NewSession(m, Options{})

	if err := s.Open(newFakeTarget()); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		_ = s.Close()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("close returned before the open settled")
	case <-time.After(50 * time.Millisecond):
	}

	close(m.openGate)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not complete")
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state: got %s", got)
	}
	if got := m.dev.closeCount(); got != 1 {
		t.Fatalf("device closed %d times", got)
	}
	if s.Snapshot() != nil {
		t.Fatal("snapshot after queued close")
	}
}

func TestSessionCloseWhilePlatformCallRuns(t *testing.T) {
	tests := []struct {
		name    string
		gate    func(d *fakeDevice, gate chan struct{})
		entered func(config, request int) bool
	}{
		{
			name:    "configuring",
			gate:    func(d *fakeDevice, gate chan struct{}) { d.configGate = gate },
			entered: func(config, _ int) bool { return config == 1 },
		},
		{
			name:    "starting request",
			gate:    func(d *fakeDevice, gate chan struct{}) { d.requestGate = gate },
			entered: func(_, request int) bool { return request == 1 },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newFakeManager()
			gate := make(chan struct{})
			tt.gate(m.dev, gate)
			s := NewSession(m, Options{})

			if err := s.Open(newFakeTarget()); err != nil {
				t.Fatal(err)
			}
			waitFor(t, "platform call", func() bool { return tt.entered(m.dev.calls()) })

			done := make(chan struct{})
			go func() {
				_ = s.Close()
				close(done)
			}()
			waitFor(t, "queued close", func() bool { return closeQueued(s) })
			select {
			case <-done:
				t.Fatal("close returned while the platform call was running")
			case <-time.After(50 * time.Millisecond):
			}
			if got := m.dev.closeCount(); got != 0 {
				t.Fatalf("device closed %d times during the call", got)
			}

			close(gate)
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("close did not complete")
			}

			m.dev.mu.Lock()
			early, streams := m.dev.closedEarly, m.dev.streamClosed
			m.dev.mu.Unlock()
			if early {
				t.Fatal("device closed before the call returned")
			}
			if streams != 1 {
				t.Fatalf("stream closed %d times", streams)
			}
			if got := m.dev.closeCount(); got != 1 {
				t.Fatalf("device closed %d times", got)
			}
			if got := s.State(); got != StateClosed {
				t.Fatalf("state: got %s", got)
			}
			if s.Snapshot() != nil || s.LastError() != nil {
				t.Fatalf("snapshot %v, last error %v", s.Snapshot(), s.LastError())
			}
		})
	}
}

func TestSessionCloseQueuedThenOpenFails(t *testing.T) {
	m := newFakeManager()
	m.openGate = make(chan struct{})
	m.openErr = errors.New("boom")
	notices := &noticeRecorder{}
	s := NewSession(m, Options{OnNotice: notices.record})

	if err := s.Open(newFakeTarget()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "open call", func() bool { return m.openCount() == 1 })
	done := make(chan struct{})
	go func() {
		_ = s.Close()
		close(done)
	}()
	waitFor(t, "queued close", func() bool { return closeQueued(s) })
	close(m.openGate)
	<-done

	if got := notices.all(); len(got) != 0 {
		t.Fatalf("notices after close: %v", got)
	}
	if err := s.LastError(); err != nil {
		t.Fatalf("last error: %v", err)
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state: got %s", got)
	}
}
