// Package orientation resolves how far captured frames must be rotated to
// appear upright on the current display.
//
// The back camera is assumed to be mounted in the device's default
// landscape orientation, the usual phone convention. Sensor orientation
// metadata is not consulted, so devices with a non-standard mount will be
// mis-rotated.
package orientation

import "camera-preview/pkg/types"

// Display is the live display query.
type Display interface {
	Rotation() types.Rotation
	Size() types.Resolution
}

type State struct {
	PortraitApp    bool           `json:"portraitApp"`
	PortraitDevice bool           `json:"portraitDevice"`
	Display        types.Rotation `json:"displayRotation"`
}

// Rows are indexed by display rotation; columns by [landscape device, portrait device].
var corrections = [types.RotationCount][2]types.Rotation{
	types.Rotation0:   {types.Rotation0, types.Rotation270},
	types.Rotation90:  {types.Rotation90, types.Rotation0},
	types.Rotation180: {types.Rotation180, types.Rotation90},
	types.Rotation270: {types.Rotation270, types.Rotation180},
}

// Correction returns the clockwise rotation to apply to captured pixels.
// It panics if displayRotation is not one of the four rotations.
func Correction(portraitDevice bool, displayRotation types.Rotation) types.Rotation {
	col := 0
	if portraitDevice {
		col = 1
	}
	return corrections[displayRotation][col]
}

// IsPortraitDevice reports whether the device's natural orientation is
// portrait, given the app's declared orientation and the display rotation
// observed while the app holds it.
func IsPortraitDevice(portraitApp bool, displayRotation types.Rotation) bool {
	quarter := displayRotation == types.Rotation90 || displayRotation == types.Rotation270
	if portraitApp {
		return !quarter
	}
	return quarter
}

type Resolver struct {
	display        Display
	portraitApp    bool
	portraitDevice bool
}

// NewResolver fixes the device's natural orientation from the display
// rotation at construction time.
func NewResolver(portraitApp bool, display Display) *Resolver {
	return &Resolver{
		display:        display,
		portraitApp:    portraitApp,
		portraitDevice: IsPortraitDevice(portraitApp, display.Rotation()),
	}
}

// Resolve reads the display rotation now and returns the correction.
func (r *Resolver) Resolve() types.Rotation {
	return Correction(r.portraitDevice, r.display.Rotation())
}

func (r *Resolver) State() State {
	return State{
		PortraitApp:    r.portraitApp,
		PortraitDevice: r.portraitDevice,
		Display:        r.display.Rotation(),
	}
}
