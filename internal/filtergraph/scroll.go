package filtergraph

import (
	"fmt"
	"strconv"
	"strings"
)

type ScrollMode string

const (
	ScrollStepped ScrollMode = "stepped"
	ScrollSmooth  ScrollMode = "smooth"
)

// Scroll describes how the background travels from the top of the page to
// the bottom.
type Scroll struct {
	Mode     ScrollMode
	Duration float64
	// Step is the target length of one step in stepped mode.
	Step float64
}

// Progress evaluates the scroll at time t in [0,1].
func (s Scroll) Progress(t float64) float64 {
	if s.Mode == ScrollStepped {
		return SteppedProgress(t, s.Duration, s.Step)
	}
	return SmoothProgress(t, s.Duration)
}

// Expr renders Progress as an ffmpeg expression of t.
func (s Scroll) Expr() string {
	if s.Duration <= 0 {
		return "1"
	}
	if s.Mode == ScrollStepped {
		return s.steppedExpr()
	}
	return smoothstepExpr(fmt.Sprintf("clip(t/%s,0,1)", num(s.Duration)))
}

func (s Scroll) steppedExpr() string {
	n := StepCount(s.Duration, s.Step)
	stepLen := s.Duration / float64(n)

	tt := fmt.Sprintf("min(t,%s)", num(s.Duration))
	k := fmt.Sprintf("min(floor(%s/%s),%d)", tt, num(stepLen), n-1)
	local := fmt.Sprintf("(%s-%s*%s)/%s", tt, k, num(stepLen), num(stepLen))
	q := fmt.Sprintf("min((%s)/%s,1)", local, num(scrollFraction))
	return fmt.Sprintf("(%s+%s)/%d", k, smoothstepExpr(q), n)
}

// CropYExpr is the crop y offset for a viewport of height oh sliding over
// an input of height ih.
func (s Scroll) CropYExpr() string {
	return fmt.Sprintf("max(0,min(ih-oh,(%s)*(ih-oh)))", s.Expr())
}

func smoothstepExpr(p string) string {
	return fmt.Sprintf("(%s)*(%s)*(3-2*(%s))", p, p, p)
}

func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
