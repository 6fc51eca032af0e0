package types

import (
	"fmt"
	"time"
)

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) Area() int64 {
	return int64(r.Width) * int64(r.Height)
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Rotation is a clockwise quarter-turn. It is used both for the display
// rotation reported by the platform and for the correction applied to
// captured pixels.
type Rotation uint8

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270

	RotationCount = 4
)

func (r Rotation) Degrees() int {
	return int(r) * 90
}

func (r Rotation) Valid() bool {
	return r < RotationCount
}

func (r Rotation) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Rotation(%d)", uint8(r))
	}
	return fmt.Sprintf("R%d", r.Degrees())
}

func RotationFromDegrees(deg int) (Rotation, error) {
	switch deg {
	case 0:
		return Rotation0, nil
	case 90:
		return Rotation90, nil
	case 180:
		return Rotation180, nil
	case 270:
		return Rotation270, nil
	}
	return 0, fmt.Errorf("rotation must be one of 0, 90, 180, 270, got %d", deg)
}

type Facing string

const (
	FacingBack     Facing = "back"
	FacingFront    Facing = "front"
	FacingExternal Facing = "external"
)

// Characteristics is what the capability query reports for one camera.
type Characteristics struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Facing Facing       `json:"facing"`
	Sizes  []Resolution `json:"sizes"`
}

type File struct {
	Name    string    `json:"name"`
	Size    string    `json:"size"`
	ModTime time.Time `json:"modTime"`
}
