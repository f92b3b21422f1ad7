package style

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, StyleSmallBubble, s.Style)
	assert.Equal(t, PositionBottomLeft, s.Position)
	assert.Equal(t, ShapeCircle, s.Shape)
	assert.Equal(t, 5.0, s.DisplayDelaySeconds)
	assert.Equal(t, 20.0, s.FullscreenTransitionSeconds)
	assert.Equal(t, 15.0, s.ScrollDurationSeconds)
}

func TestParseDisplayDelayDefaultsByStyle(t *testing.T) {
	tests := []struct {
		style Style
		want  float64
	}{
		{StyleSmallBubble, 5},
		{StyleBigBubble, 10},
		{StyleFullScreen, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			s, err := Parse(map[string]interface{}{KeyStyle: string(tt.style)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.DisplayDelaySeconds)
			assert.GreaterOrEqual(t, s.DisplayDelaySeconds, 2.0)
			assert.LessOrEqual(t, s.DisplayDelaySeconds, 10.0)
		})
	}

	s, err := Parse(map[string]interface{}{KeyStyle: "full_screen", KeyDisplayDelay: 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.DisplayDelaySeconds, "an explicit zero is kept")

	fs := s.Layout().(FullScreen)
	assert.Equal(t, 0.0, fs.DisplayDelay)
}

func TestParseMixedValueTypes(t *testing.T) {
	raw := map[string]interface{}{
		KeyStyle:                " Full_Screen ",
		KeyPosition:             "top_right",
		KeyShape:                "square",
		KeyDisplayDelay:         "2.5",
		KeyFullscreenTransition: json.Number("5"),
		KeyScrollDuration:       12,
	}

	s, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, StyleFullScreen, s.Style)
	assert.Equal(t, PositionTopRight, s.Position)
	assert.Equal(t, ShapeSquare, s.Shape)
	assert.Equal(t, 2.5, s.DisplayDelaySeconds)
	assert.Equal(t, 5.0, s.FullscreenTransitionSeconds)
	assert.Equal(t, 12.0, s.ScrollDurationSeconds)
}

func TestParseEmptyValuesFallBackToDefaults(t *testing.T) {
	s, err := Parse(map[string]interface{}{
		KeyStyle:          "",
		KeyScrollDuration: "  ",
	})
	require.NoError(t, err)
	assert.Equal(t, StyleSmallBubble, s.Style)
	assert.Equal(t, DefaultScrollDuration, s.ScrollDurationSeconds)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
		want string
	}{
		{"unknown style", map[string]interface{}{KeyStyle: "sideways"}, KeyStyle},
		{"unknown position", map[string]interface{}{KeyPosition: "center"}, KeyPosition},
		{"unknown shape", map[string]interface{}{KeyShape: "hexagon"}, KeyShape},
		{"negative delay", map[string]interface{}{KeyDisplayDelay: -1}, KeyDisplayDelay},
		{"zero transition", map[string]interface{}{KeyFullscreenTransition: 0}, KeyFullscreenTransition},
		{"non-numeric scroll", map[string]interface{}{KeyScrollDuration: "fast"}, KeyScrollDuration},
		{"unsupported type", map[string]interface{}{KeyScrollDuration: []int{1}}, KeyScrollDuration},
		{"infinite string", map[string]interface{}{KeyScrollDuration: "Inf"}, KeyScrollDuration},
		{"infinite number", map[string]interface{}{KeyFullscreenTransition: math.Inf(1)}, KeyFullscreenTransition},
		{"nan", map[string]interface{}{KeyDisplayDelay: "NaN"}, KeyDisplayDelay},
		{"too long", map[string]interface{}{KeyFullscreenTransition: 601}, KeyFullscreenTransition},
		{"huge delay", map[string]interface{}{KeyDisplayDelay: "1e9"}, KeyDisplayDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLayoutResolvesOneVariant(t *testing.T) {
	s := Defaults()
	assert.Equal(t, SmallBubble{Shape: ShapeCircle, Position: PositionBottomLeft}, s.Layout())

	s.Style = StyleBigBubble
	s.Shape = ShapeSquare
	assert.Equal(t, BigBubble{Shape: ShapeSquare, Position: PositionBottomLeft}, s.Layout())

	s.Style = StyleFullScreen
	s.DisplayDelaySeconds = 2
	s.FullscreenTransitionSeconds = 5
	l := s.Layout()
	assert.True(t, IsFullScreen(l))
	assert.Equal(t, FullScreen{Shape: ShapeSquare, Position: PositionBottomLeft, DisplayDelay: 2, TransitionAt: 5}, l)
}

func TestLayoutClampsDelayToTransition(t *testing.T) {
	s := Defaults()
	s.Style = StyleFullScreen
	s.DisplayDelaySeconds = 30
	s.FullscreenTransitionSeconds = 10

	fs := s.Layout().(FullScreen)
	assert.Equal(t, 10.0, fs.DisplayDelay)
}
