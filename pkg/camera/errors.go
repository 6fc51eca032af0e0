package camera

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument reports a violated precondition, such as an empty
	// candidate size set.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState is returned when a call is not a valid transition
	// from the current session state.
	ErrInvalidState = errors.New("invalid session state")
	ErrDisconnected = errors.New("camera disconnected")
	ErrClosed       = errors.New("session closed")
	ErrNoCamera     = errors.New("no camera with the requested facing")
)

// DeviceAccessError means the camera could not be enumerated or opened.
type DeviceAccessError struct {
	ID  string
	Err error
}

func (e *DeviceAccessError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("camera access: %s", e.Err)
	}
	return fmt.Sprintf("camera %s access: %s", e.ID, e.Err)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }

// ConfigurationError means the capture pipeline could not be configured.
type ConfigurationError struct {
	ID  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("camera %s configure failed: %s", e.ID, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
