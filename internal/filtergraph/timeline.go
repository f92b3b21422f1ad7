package filtergraph

import (
	"fmt"

	"github.com/bobarin/leadreel/internal/style"
)

// Phase is what the overlay looks like at a given instant.
type Phase int

const (
	PhaseHidden Phase = iota
	PhaseBubble
	PhaseFullFrame
)

func (p Phase) String() string {
	switch p {
	case PhaseBubble:
		return "bubble"
	case PhaseFullFrame:
		return "full_frame"
	default:
		return "hidden"
	}
}

// PhaseAt reports the overlay phase at time t.
func PhaseAt(l style.Layout, t float64) Phase {
	fs, ok := l.(style.FullScreen)
	if !ok {
		return PhaseBubble
	}
	switch {
	case t < fs.DisplayDelay:
		return PhaseHidden
	case t < fs.TransitionAt:
		return PhaseBubble
	default:
		return PhaseFullFrame
	}
}

// BackgroundDuration is how long the synthesized background must run.
// Bubble styles get one second beyond the intro; full_screen only needs the
// scroll because the overlay graph freezes the last frame afterwards.
func BackgroundDuration(l style.Layout, intro, scroll float64) float64 {
	if style.IsFullScreen(l) {
		return scroll
	}
	return intro + 1
}

func bubbleEnable(fs style.FullScreen) string {
	return fmt.Sprintf("gte(t,%s)*lt(t,%s)", num(fs.DisplayDelay), num(fs.TransitionAt))
}

func fullFrameEnable(fs style.FullScreen) string {
	return fmt.Sprintf("gte(t,%s)", num(fs.TransitionAt))
}
