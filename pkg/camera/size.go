package camera

import (
	"fmt"

	"camera-preview/pkg/types"
)

// DefaultTarget is large enough to fill a phone-sized display without
// pulling full sensor resolution.
var DefaultTarget = types.Resolution{Width: 1600, Height: 1200}

// ClosestSize returns the candidate whose area is closest to ideal's area.
// An exact area match returns immediately; otherwise the first candidate
// with the smallest difference wins. Aspect ratio is not considered.
func ClosestSize(candidates []types.Resolution, ideal types.Resolution) (types.Resolution, error) {
	if len(candidates) == 0 {
		return types.Resolution{}, fmt.Errorf("%w: no candidate sizes", ErrInvalidArgument)
	}

	idealArea := ideal.Area()
	best := candidates[0]
	smallestDiff := absDiff(idealArea, best.Area())
	if smallestDiff == 0 {
		return best, nil
	}
	for _, size := range candidates[1:] {
		diff := absDiff(idealArea, size.Area())
		if diff == 0 {
			return size, nil
		}
		if diff < smallestDiff {
			best = size
			smallestDiff = diff
		}
	}

	return best, nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
