package filtergraph

import "github.com/bobarin/leadreel/internal/style"

const (
	CanvasWidth  = 1280
	CanvasHeight = 720
	FrameRate    = 30

	Padding         = 20
	SmallBubbleSize = 200
	BigBubbleSize   = 400
)

// BubbleSize is the edge length of the bubble overlay. full_screen starts
// from a small bubble.
func BubbleSize(l style.Layout) int {
	if _, ok := l.(style.BigBubble); ok {
		return BigBubbleSize
	}
	return SmallBubbleSize
}

// BubbleOrigin returns the top-left corner of a size×size bubble anchored in
// the given corner of the canvas.
func BubbleOrigin(size int, pos style.Position) (x, y int) {
	left := Padding
	right := CanvasWidth - size - Padding
	top := Padding
	bottom := CanvasHeight - size - Padding

	switch pos {
	case style.PositionTopLeft:
		return left, top
	case style.PositionTopRight:
		return right, top
	case style.PositionBottomRight:
		return right, bottom
	default:
		return left, bottom
	}
}
