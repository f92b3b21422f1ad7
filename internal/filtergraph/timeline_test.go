package filtergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobarin/leadreel/internal/style"
)

func TestPhaseAtBubbleAlwaysVisible(t *testing.T) {
	for _, l := range []style.Layout{style.SmallBubble{}, style.BigBubble{}} {
		for _, ts := range []float64{0, 3, 60} {
			assert.Equal(t, PhaseBubble, PhaseAt(l, ts))
		}
	}
}

func TestPhaseAtFullScreenHardCut(t *testing.T) {
	l := style.FullScreen{Shape: style.ShapeCircle, Position: style.PositionBottomRight, TransitionAt: 5}

	assert.Equal(t, PhaseBubble, PhaseAt(l, 0))
	assert.Equal(t, PhaseBubble, PhaseAt(l, 3))
	assert.Equal(t, PhaseBubble, PhaseAt(l, 4.99))
	assert.Equal(t, PhaseFullFrame, PhaseAt(l, 5))
	assert.Equal(t, PhaseFullFrame, PhaseAt(l, 6))
}

func TestPhaseAtFullScreenDelay(t *testing.T) {
	l := style.FullScreen{DisplayDelay: 2, TransitionAt: 10}
	assert.Equal(t, PhaseHidden, PhaseAt(l, 1))
	assert.Equal(t, PhaseBubble, PhaseAt(l, 2))
	assert.Equal(t, PhaseFullFrame, PhaseAt(l, 10))
}

func TestBackgroundDuration(t *testing.T) {
	assert.Equal(t, 13.0, BackgroundDuration(style.SmallBubble{}, 12, 8.4))
	assert.Equal(t, 31.0, BackgroundDuration(style.BigBubble{}, 30, 21))
	assert.Equal(t, 8.4, BackgroundDuration(style.FullScreen{TransitionAt: 5}, 12, 8.4))

	for _, intro := range []float64{0.5, 5, 12, 90} {
		scroll := SteppedScrollDuration(intro)
		assert.GreaterOrEqual(t, BackgroundDuration(style.SmallBubble{}, intro, scroll), intro+1)
	}
}
