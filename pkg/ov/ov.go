package ov

import (
	"camera-preview/pkg/orientation"
	"camera-preview/pkg/pacer"
	"camera-preview/pkg/render"
	"camera-preview/pkg/surface"
	"camera-preview/pkg/types"
	"camera-preview/pkg/utils/ps"
)

type Session struct {
	State     string              `json:"state"`
	ID        string              `json:"id,omitempty"`
	CameraID  string              `json:"cameraId,omitempty"`
	Size      *types.Resolution   `json:"size,omitempty"`
	Config    *render.FrameConfig `json:"config,omitempty"`
	LastError string              `json:"lastError,omitempty"`
	Notice    string              `json:"notice,omitempty"`
}

type Display struct {
	Width  int `json:"width" binding:"required,min=1"`
	Height int `json:"height" binding:"required,min=1"`
	// clockwise degrees: 0, 90, 180 or 270
	Rotation int `json:"rotation"`
}

type DisplayState struct {
	Display
	Orientation orientation.State `json:"orientation"`
}

type Status struct {
	CPU       ps.CPU        `json:"cpu"`
	Memory    ps.Memory     `json:"memory"`
	Disk      *ps.Disk      `json:"disk,omitempty"`
	Pacer     pacer.Stats   `json:"pacer"`
	Surface   surface.Stats `json:"surface"`
	Presented uint64        `json:"presented"`
	Snapshots string        `json:"snapshots"`
}

type Snapshot struct {
	Name string `json:"name"`
	Size string `json:"size"`
}
