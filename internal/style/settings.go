// Package style turns a campaign's free-form settings map into validated
// Settings and resolves them into a concrete overlay Layout.
package style

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Style string

const (
	StyleSmallBubble Style = "small_bubble"
	StyleBigBubble   Style = "big_bubble"
	StyleFullScreen  Style = "full_screen"
)

type Position string

const (
	PositionBottomLeft  Position = "bottom_left"
	PositionBottomRight Position = "bottom_right"
	PositionTopLeft     Position = "top_left"
	PositionTopRight    Position = "top_right"
)

type Shape string

const (
	ShapeCircle Shape = "circle"
	ShapeSquare Shape = "square"
)

// Campaign settings keys.
const (
	KeyStyle                = "video_style"
	KeyPosition             = "video_position"
	KeyShape                = "video_shape"
	KeyDisplayDelay         = "display_delay"
	KeyFullscreenTransition = "fullscreen_transition_time"
	KeyScrollDuration       = "scroll_duration"
)

const (
	DefaultStyle                = StyleSmallBubble
	DefaultPosition             = PositionBottomLeft
	DefaultShape                = ShapeCircle
	DefaultFullscreenTransition = 20.0
	DefaultScrollDuration       = 15.0
)

// DefaultDisplayDelay is the display delay used when a campaign does not set
// one. Bubble styles carry it but show the overlay for the whole video.
func DefaultDisplayDelay(st Style) float64 {
	switch st {
	case StyleFullScreen:
		return 2
	case StyleBigBubble:
		return 10
	default:
		return 5
	}
}

// Settings is the immutable per-job style configuration.
type Settings struct {
	Style    Style    `json:"video_style" validate:"oneof=small_bubble big_bubble full_screen"`
	Position Position `json:"video_position" validate:"oneof=bottom_left bottom_right top_left top_right"`
	Shape    Shape    `json:"video_shape" validate:"oneof=circle square"`
	// DisplayDelaySeconds only applies to full_screen, where it holds the
	// bubble back. Bubble styles show the overlay for the whole video.
	DisplayDelaySeconds         float64 `json:"display_delay" validate:"gte=0,lte=600"`
	FullscreenTransitionSeconds float64 `json:"fullscreen_transition_time" validate:"gt=0,lte=600"`
	ScrollDurationSeconds       float64 `json:"scroll_duration" validate:"gt=0,lte=600"`
}

var validate = validator.New()

// Defaults returns the settings used when a campaign sets nothing.
func Defaults() Settings {
	return Settings{
		Style:                       DefaultStyle,
		Position:                    DefaultPosition,
		Shape:                       DefaultShape,
		DisplayDelaySeconds:         DefaultDisplayDelay(DefaultStyle),
		FullscreenTransitionSeconds: DefaultFullscreenTransition,
		ScrollDurationSeconds:       DefaultScrollDuration,
	}
}

// Parse reads the recognized keys from raw, applies defaults for anything
// missing or empty, and validates the result.
func Parse(raw map[string]interface{}) (Settings, error) {
	s := Defaults()

	if v, ok := stringSetting(raw, KeyStyle); ok {
		s.Style = Style(v)
	}
	if v, ok := stringSetting(raw, KeyPosition); ok {
		s.Position = Position(v)
	}
	if v, ok := stringSetting(raw, KeyShape); ok {
		s.Shape = Shape(v)
	}

	s.DisplayDelaySeconds = DefaultDisplayDelay(s.Style)

	var err error
	if s.DisplayDelaySeconds, err = numberSetting(raw, KeyDisplayDelay, s.DisplayDelaySeconds); err != nil {
		return Settings{}, err
	}
	if s.FullscreenTransitionSeconds, err = numberSetting(raw, KeyFullscreenTransition, s.FullscreenTransitionSeconds); err != nil {
		return Settings{}, err
	}
	if s.ScrollDurationSeconds, err = numberSetting(raw, KeyScrollDuration, s.ScrollDurationSeconds); err != nil {
		return Settings{}, err
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports the first invalid field by its settings key.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Errorf("invalid style settings: %w", err)
	}
	fe := verrs[0]
	return fmt.Errorf("invalid style setting %s=%v (%s %s)", jsonKey(fe.StructField()), fe.Value(), fe.Tag(), fe.Param())
}

func jsonKey(field string) string {
	switch field {
	case "Style":
		return KeyStyle
	case "Position":
		return KeyPosition
	case "Shape":
		return KeyShape
	case "DisplayDelaySeconds":
		return KeyDisplayDelay
	case "FullscreenTransitionSeconds":
		return KeyFullscreenTransition
	case "ScrollDurationSeconds":
		return KeyScrollDuration
	}
	return field
}

func stringSetting(raw map[string]interface{}, key string) (string, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", false
	}
	s := strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
	if s == "" {
		return "", false
	}
	return s, true
}

// numberSetting reads a finite number. Settings written by the CSV importer
// arrive as strings, the dashboard writes JSON numbers.
func numberSetting(raw map[string]interface{}, key string, def float64) (float64, error) {
	f, err := parseNumber(raw, key, def)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid style setting %s=%v: must be a finite number", key, f)
	}
	return f, nil
}

func parseNumber(raw map[string]interface{}, key string, def float64) (float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid style setting %s=%q: %w", key, n, err)
		}
		return f, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return def, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid style setting %s=%q: %w", key, n, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("invalid style setting %s: unsupported type %T", key, v)
}
