package render

import (
	"fmt"

	"camera-preview/pkg/types"
)

// ViewportRect is in display pixels. The origin is negative when the
// image is cropped and positive when it is letterboxed.
type ViewportRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r ViewportRect) String() string {
	return fmt.Sprintf("%dx%d@(%d,%d)", r.Width, r.Height, r.X, r.Y)
}

// ComposeViewport scales img by the display's shorter side over the image
// height and centers it. On a display that is not wider than tall the
// scaled width and height are swapped, matching a portrait-rotated frame.
func ComposeViewport(display, img types.Resolution) ViewportRect {
	var w, h int
	if display.Width > display.Height {
		scale := float64(display.Height) / float64(img.Height)
		w = int(scale * float64(img.Width))
		h = int(scale * float64(img.Height))
	} else {
		scale := float64(display.Width) / float64(img.Height)
		w = int(scale * float64(img.Height))
		h = int(scale * float64(img.Width))
	}

	return ViewportRect{
		X:      (display.Width - w) / 2,
		Y:      (display.Height - h) / 2,
		Width:  w,
		Height: h,
	}
}
