// Package filtergraph holds the pure timing and geometry math for lead videos
// and builds the ffmpeg filter graphs from it. Nothing here touches the
// filesystem or runs a process; Graph.String is the only place ffmpeg
// filtergraph syntax is produced.
package filtergraph

import "math"

const (
	// Stepped scrolling moves during the first 70% of each step and holds for
	// the rest.
	scrollFraction = 0.7
	minSteps       = 3

	minSteppedScroll = 8.0
	maxSteppedScroll = 45.0
	steppedRatio     = 0.7
)

// Smoothstep eases p in [0,1] with zero velocity at both ends. Input outside
// the range is clamped.
func Smoothstep(p float64) float64 {
	p = clamp(p, 0, 1)
	return p * p * (3 - 2*p)
}

// SmoothProgress is the eased scroll position at time t for a single
// continuous scroll lasting scroll seconds.
func SmoothProgress(t, scroll float64) float64 {
	if scroll <= 0 {
		return 1
	}
	return Smoothstep(clamp(t, 0, scroll) / scroll)
}

// StepCount is the number of scroll steps for a stepped scroll.
func StepCount(scroll, step float64) int {
	if step <= 0 {
		return minSteps
	}
	n := int(math.Ceil(scroll / step))
	if n < minSteps {
		return minSteps
	}
	return n
}

// SteppedProgress is the scroll position at time t for a scroll split into
// StepCount(scroll, step) equal steps. Within step k the position eases from
// k/N to (k+1)/N over the first 70% of the step and then holds.
func SteppedProgress(t, scroll, step float64) float64 {
	if scroll <= 0 {
		return 1
	}
	n := float64(StepCount(scroll, step))
	stepLen := scroll / n
	tt := clamp(t, 0, scroll)
	k := math.Min(math.Floor(tt/stepLen), n-1)
	local := (tt - k*stepLen) / stepLen
	q := math.Min(local/scrollFraction, 1)
	return (k + Smoothstep(q)) / n
}

// CropOffset converts a progress value into the vertical crop offset of a
// viewport-sized window over an image of height imageH.
func CropOffset(progress float64, imageH, viewportH int) float64 {
	travel := float64(imageH - viewportH)
	if travel <= 0 {
		return 0
	}
	return clamp(progress*travel, 0, travel)
}

// SteppedScrollDuration derives the scroll length from the intro clip length
// for stepped scrolling.
func SteppedScrollDuration(intro float64) float64 {
	return clamp(intro*steppedRatio, minSteppedScroll, maxSteppedScroll)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
