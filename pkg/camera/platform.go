package camera

import (
	"context"

	"camera-preview/pkg/types"
)

// Manager is the capability and device-control side of a camera platform.
type Manager interface {
	CameraIDs() ([]string, error)
	Characteristics(id string) (types.Characteristics, error)
	// Open blocks until the device is opened or fails. There is no timeout
	// beyond what ctx imposes.
	Open(ctx context.Context, id string) (Device, error)
}

type Device interface {
	ID() string
	// CreateCaptureSession configures a pipeline that will write frames of
	// the given size into target.
	CreateCaptureSession(target Target, size types.Resolution) (Stream, error)
	Close() error
}

type Stream interface {
	// SetRepeatingRequest starts continuous capture. The returned channel is
	// closed when capture stops; closing while ctx is still live means the
	// device was lost.
	SetRepeatingRequest(ctx context.Context, req Request) (<-chan []byte, error)
	Close() error
}

// Target is the GPU-importable surface the capture pipeline feeds.
type Target interface {
	SetDefaultBufferSize(size types.Resolution)
	// Publish hands over the most recent frame. It must not block.
	Publish(frame []byte)
}

type Template int

const (
	TemplatePreview Template = iota + 1
	TemplateStillCapture
)

type AFMode int

const (
	AFModeOff AFMode = iota
	AFModeAuto
	AFModeContinuousPicture
)

type Request struct {
	Template Template
	AFMode   AFMode
}

func PreviewRequest() Request {
	return Request{Template: TemplatePreview, AFMode: AFModeContinuousPicture}
}
