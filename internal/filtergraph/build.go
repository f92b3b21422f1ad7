package filtergraph

import (
	"fmt"
	"strconv"

	"github.com/bobarin/leadreel/internal/style"
)

// Pad labels for compositor inputs.
const (
	BackgroundInput = "0:v"
	PrimaryInput    = "1:v"
	SecondaryInput  = "2:v"

	BackgroundOutput = "bg"
	OverlayOutput    = "outv"
)

// circleAlpha keeps the circle inscribed in the frame and clears the corners.
const circleAlpha = "if(lte(hypot(X-W/2,Y-H/2),W/2),255,0)"

// BackgroundGraph scrolls a full-page screenshot through a canvas-sized
// window. Short pages are padded to the canvas height.
func BackgroundGraph(s Scroll) Graph {
	g := Graph{Output: BackgroundOutput}
	g.add(pads(BackgroundInput), "scale", pads("scaled"),
		kv("w", itoa(CanvasWidth)), kv("h", "-2"))
	g.add(pads("scaled"), "pad", pads("padded"),
		kv("w", itoa(CanvasWidth)),
		kv("h", fmt.Sprintf("max(ih,%d)", CanvasHeight)),
		kv("x", "0"), kv("y", "0"), kv("color", "white"))
	g.add(pads("padded"), "crop", pads("scrolled"),
		kv("w", itoa(CanvasWidth)), kv("h", itoa(CanvasHeight)),
		kv("x", "0"), kv("y", s.CropYExpr()))
	g.add(pads("scrolled"), "fps", pads("paced"), kv("", itoa(FrameRate)))
	g.add(pads("paced"), "format", pads(BackgroundOutput), kv("", "yuv420p"))
	return g
}

// OverlayInputs describes the clips composited on top of the background.
type OverlayInputs struct {
	// IntroDuration is the primary clip length. It bounds how far the
	// background is frozen past the end of its scroll.
	IntroDuration float64
	// HasSecondary switches the full-frame phase of full_screen to the
	// secondary clip.
	HasSecondary bool
}

// OverlayGraph composites the intro clip over the background according to
// the layout.
func OverlayGraph(l style.Layout, in OverlayInputs) Graph {
	g := Graph{Output: OverlayOutput}
	size := BubbleSize(l)
	x, y := BubbleOrigin(size, l.OverlayPosition())

	fs, full := l.(style.FullScreen)
	if !full {
		bubble := addBubble(&g, PrimaryInput, size, l.OverlayShape())
		g.add(pads(BackgroundInput, bubble), "overlay", pads("composed"),
			kv("x", itoa(x)), kv("y", itoa(y)), kv("shortest", "1"))
		g.add(pads("composed"), "format", pads(OverlayOutput), kv("", "yuv420p"))
		return g
	}

	// The background only covers the scroll, freeze its last frame for the
	// rest of the intro.
	g.add(pads(BackgroundInput), "tpad", pads("bgx"),
		kv("stop_mode", "clone"), kv("stop_duration", num(in.IntroDuration)))

	bubbleSrc, fullSrc := PrimaryInput, "ovf"
	if in.HasSecondary {
		g.add(pads(SecondaryInput), "tpad", pads("ovf"),
			kv("start_duration", num(fs.TransitionAt)), kv("start_mode", "add"), kv("color", "black"))
	} else {
		g.add(pads(PrimaryInput), "split", pads("ovb", "ovf"), kv("", "2"))
		bubbleSrc = "ovb"
	}

	bubble := addBubble(&g, bubbleSrc, size, l.OverlayShape())

	g.add(pads(fullSrc), "scale", pads("fulls"),
		kv("w", itoa(CanvasWidth)), kv("h", itoa(CanvasHeight)),
		kv("force_original_aspect_ratio", "increase"))
	g.add(pads("fulls"), "crop", pads("full"),
		kv("w", itoa(CanvasWidth)), kv("h", itoa(CanvasHeight)))

	g.add(pads("bgx", bubble), "overlay", pads("withbubble"),
		kv("x", itoa(x)), kv("y", itoa(y)), kv("enable", bubbleEnable(fs)))
	g.add(pads("withbubble", "full"), "overlay", pads("composed"),
		kv("x", "0"), kv("y", "0"), kv("enable", fullFrameEnable(fs)), kv("shortest", "1"))
	g.add(pads("composed"), "format", pads(OverlayOutput), kv("", "yuv420p"))
	return g
}

// addBubble scales src to a size×size square, masks it when the shape is a
// circle and returns the output label.
func addBubble(g *Graph, src string, size int, shape style.Shape) string {
	g.add(pads(src), "scale", pads("bubs"),
		kv("w", itoa(size)), kv("h", itoa(size)),
		kv("force_original_aspect_ratio", "increase"))
	g.add(pads("bubs"), "crop", pads("bubc"),
		kv("w", itoa(size)), kv("h", itoa(size)))
	if shape != style.ShapeCircle {
		return "bubc"
	}
	g.add(pads("bubc"), "format", pads("buba"), kv("", "yuva420p"))
	g.add(pads("buba"), "geq", pads("bubble"),
		kv("lum", "p(X,Y)"), kv("cb", "p(X,Y)"), kv("cr", "p(X,Y)"), kv("a", circleAlpha))
	return "bubble"
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
