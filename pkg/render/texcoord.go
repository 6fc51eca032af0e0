package render

import (
	"fmt"

	"camera-preview/pkg/types"
)

// TexCoord is a point on the unit texture square, V pointing down.
type TexCoord struct {
	U float32 `json:"u"`
	V float32 `json:"v"`
}

// TextureQuad holds the texture coordinates for the strip vertices, in
// the order top-left, bottom-left, top-right, bottom-right.
type TextureQuad [4]TexCoord

// Each quad is the R0 quad turned a quarter clockwise per step.
var quads = [types.RotationCount]TextureQuad{
	types.Rotation0:   {{0, 0}, {0, 1}, {1, 0}, {1, 1}},
	types.Rotation90:  {{1, 0}, {0, 0}, {1, 1}, {0, 1}},
	types.Rotation180: {{1, 1}, {1, 0}, {0, 1}, {0, 0}},
	types.Rotation270: {{0, 1}, {1, 1}, {0, 0}, {1, 0}},
}

// QuadFor returns the texture quad that undoes r. An invalid rotation is a
// programming error and panics.
func QuadFor(r types.Rotation) TextureQuad {
	if !r.Valid() {
		panic(fmt.Sprintf("render: no texture quad for %s", r))
	}
	return quads[r]
}

// Vec3 is a clip-space vertex position.
type Vec3 [3]float32

// QuadVertices is the full-viewport triangle strip, in TextureQuad order.
var QuadVertices = [4]Vec3{
	{-1, 1, 0},
	{-1, -1, 0},
	{1, 1, 0},
	{1, -1, 0},
}
