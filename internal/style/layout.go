package style

import "math"

// Layout is the resolved overlay arrangement for one job. It is one of
// SmallBubble, BigBubble or FullScreen.
type Layout interface {
	OverlayShape() Shape
	OverlayPosition() Position
	isLayout()
}

// SmallBubble shows a 200px overlay in a corner for the whole video.
type SmallBubble struct {
	Shape    Shape
	Position Position
}

// BigBubble shows a 400px overlay in a corner for the whole video.
type BigBubble struct {
	Shape    Shape
	Position Position
}

// FullScreen shows a small bubble from DisplayDelay until TransitionAt and
// then cuts to the overlay filling the canvas.
type FullScreen struct {
	Shape        Shape
	Position     Position
	DisplayDelay float64
	TransitionAt float64
}

func (l SmallBubble) OverlayShape() Shape       { return l.Shape }
func (l SmallBubble) OverlayPosition() Position { return l.Position }
func (SmallBubble) isLayout()                   {}

func (l BigBubble) OverlayShape() Shape       { return l.Shape }
func (l BigBubble) OverlayPosition() Position { return l.Position }
func (BigBubble) isLayout()                   {}

func (l FullScreen) OverlayShape() Shape       { return l.Shape }
func (l FullScreen) OverlayPosition() Position { return l.Position }
func (FullScreen) isLayout()                   {}

// Layout resolves validated settings into exactly one layout variant.
func (s Settings) Layout() Layout {
	switch s.Style {
	case StyleBigBubble:
		return BigBubble{Shape: s.Shape, Position: s.Position}
	case StyleFullScreen:
		return FullScreen{
			Shape:        s.Shape,
			Position:     s.Position,
			DisplayDelay: math.Min(s.DisplayDelaySeconds, s.FullscreenTransitionSeconds),
			TransitionAt: s.FullscreenTransitionSeconds,
		}
	default:
		return SmallBubble{Shape: s.Shape, Position: s.Position}
	}
}

// IsFullScreen reports whether l is the full_screen variant.
func IsFullScreen(l Layout) bool {
	_, ok := l.(FullScreen)
	return ok
}
