package camera

import (
	"errors"
	"testing"

	"camera-preview/pkg/types"
)

func res(w, h int) types.Resolution {
	return types.Resolution{Width: w, Height: h}
}

func TestClosestSize(t *testing.T) {
	tests := []struct {
		name       string
		candidates []types.Resolution
		ideal      types.Resolution
		want       types.Resolution
	}{
		{
			name:       "exact match",
			candidates: []types.Resolution{res(640, 480), res(1280, 720), res(1600, 1200)},
			ideal:      res(1600, 1200),
			want:       res(1600, 1200),
		},
		{
			name:       "closest area",
			candidates: []types.Resolution{res(800, 600), res(1920, 1080)},
			ideal:      res(1600, 1200),
			want:       res(1920, 1080),
		},
		{
			name:       "exact area with other shape short-circuits",
			candidates: []types.Resolution{res(1920, 1080), res(1200, 1600), res(1600, 1200)},
			ideal:      res(1600, 1200),
			want:       res(1200, 1600),
		},
		{
			name:       "single candidate",
			candidates: []types.Resolution{res(320, 240)},
			ideal:      res(1600, 1200),
			want:       res(320, 240),
		},
		{
			name:       "ignores aspect ratio",
			candidates: []types.Resolution{res(1280, 960), res(3840, 500)},
			ideal:      res(1600, 1200),
			want:       res(3840, 500),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClosestSize(tt.candidates, tt.ideal)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("got %s want %s", got, tt.want)
			}
		})
	}
}

func TestClosestSizeTieKeepsFirst(t *testing.T) {
	// 1600x1200 = 1,920,000; both candidates are 320,000 away.
	a := res(1600, 1000)
	b := res(1600, 1400)
	got, err := ClosestSize([]types.Resolution{a, b}, DefaultTarget)
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Fatalf("[a,b]: got %s want %s", got, a)
	}
	got, err = ClosestSize([]types.Resolution{b, a}, DefaultTarget)
	if err != nil {
		t.Fatal(err)
	}
	if got != b {
		t.Fatalf("[b,a]: got %s want %s", got, b)
	}
}

func TestClosestSizeEmpty(t *testing.T) {
	_, err := ClosestSize(nil, DefaultTarget)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
}
