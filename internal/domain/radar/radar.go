// Package radar maps (distance, bearing) pairs onto a circular display and
// nudges markers apart so they do not overlap.
package radar

import (
	"fmt"
	"math"

	"github.com/okian/loka/internal/domain/geo"
)

// Placement defaults.
const (
	// AngleStep is added to a marker angle each time it collides.
	AngleStep = 0.15
	// MaxAttempts bounds the candidate positions evaluated per marker,
	// the initial angle included.
	MaxAttempts = 10

	DefaultMaxRangeMeters        = 50.0
	DefaultMinMarkerRadiusPixels = 30.0
	DefaultMarkerSizePixels      = 40.0
	DefaultDisplayRatio          = 0.8
)

// Config holds the fixed display parameters of one radar view.
type Config struct {
	DisplayRadiusPixels   float64
	MaxRangeMeters        float64
	MinMarkerRadiusPixels float64
	MarkerSizePixels      float64
}

// DefaultConfig returns the default parameters for a display radius.
func DefaultConfig(displayRadius float64) Config {
	return Config{
		DisplayRadiusPixels:   displayRadius,
		MaxRangeMeters:        DefaultMaxRangeMeters,
		MinMarkerRadiusPixels: DefaultMinMarkerRadiusPixels,
		MarkerSizePixels:      DefaultMarkerSizePixels,
	}
}

// DisplayRadiusForViewport returns the radius of a radar drawn as a circle
// whose diameter is ratio times the viewport width.
func DisplayRadiusForViewport(viewportWidth, ratio float64) float64 {
	return viewportWidth * ratio / 2
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	switch {
	case !geo.IsFinite(c.DisplayRadiusPixels) || c.DisplayRadiusPixels <= 0:
		return fmt.Errorf("%w: display radius must be positive, got %v", geo.ErrInvalidArgument, c.DisplayRadiusPixels)
	case !geo.IsFinite(c.MaxRangeMeters) || c.MaxRangeMeters <= 0:
		return fmt.Errorf("%w: max range must be positive, got %v", geo.ErrInvalidArgument, c.MaxRangeMeters)
	case !geo.IsFinite(c.MinMarkerRadiusPixels) || c.MinMarkerRadiusPixels < 0:
		return fmt.Errorf("%w: min marker radius must not be negative, got %v", geo.ErrInvalidArgument, c.MinMarkerRadiusPixels)
	case !geo.IsFinite(c.MarkerSizePixels) || c.MarkerSizePixels < 0:
		return fmt.Errorf("%w: marker size must not be negative, got %v", geo.ErrInvalidArgument, c.MarkerSizePixels)
	}
	return nil
}

// Input is one marker to place.
type Input struct {
	ID             string
	DistanceMeters float64
	BearingDegrees float64
}

// PlacedPoint is a marker position relative to the radar centre. Radius is
// the pixel distance from the centre and Angle the final placement angle in
// radians. Overlaps is set when every attempt collided and the last
// candidate was kept anyway.
type PlacedPoint struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"radius"`
	Angle    float64 `json:"angle"`
	Attempts int     `json:"attempts"`
	Overlaps bool    `json:"overlaps"`
}

// Project places every input on the display in order. Each marker is only
// checked against markers placed earlier in the same call, so the result
// depends on the input order but not on previous calls.
func Project(points []Input, cfg Config) ([]PlacedPoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, p := range points {
		if !geo.IsFinite(p.DistanceMeters) || p.DistanceMeters < 0 {
			return nil, fmt.Errorf("%w: point %q distance %v", geo.ErrInvalidArgument, p.ID, p.DistanceMeters)
		}
		if !geo.IsFinite(p.BearingDegrees) {
			return nil, fmt.Errorf("%w: point %q bearing %v", geo.ErrInvalidArgument, p.ID, p.BearingDegrees)
		}
	}

	placed := make([]PlacedPoint, 0, len(points))
	for _, p := range points {
		placed = append(placed, place(p, cfg, placed))
	}
	return placed, nil
}

// PixelRadius maps a distance to its radial pixel offset, floored at the
// minimum marker radius and capped at the display radius.
func PixelRadius(distanceMeters float64, cfg Config) float64 {
	r := distanceMeters / cfg.MaxRangeMeters * cfg.DisplayRadiusPixels
	r = math.Max(r, cfg.MinMarkerRadiusPixels)
	return math.Min(r, cfg.DisplayRadiusPixels)
}

func place(p Input, cfg Config, placed []PlacedPoint) PlacedPoint {
	r := PixelRadius(p.DistanceMeters, cfg)
	angle := geo.DegreesToRadians(p.BearingDegrees)

	out := PlacedPoint{ID: p.ID, Radius: r}
	for attempt := 1; ; attempt++ {
		x, y := math.Cos(angle)*r, math.Sin(angle)*r
		out.X, out.Y, out.Angle, out.Attempts = x, y, angle, attempt

		if !collides(x, y, cfg.MarkerSizePixels, placed) {
			return out
		}
		if attempt == MaxAttempts {
			out.Overlaps = true
			return out
		}
		angle += AngleStep
	}
}

func collides(x, y, size float64, placed []PlacedPoint) bool {
	for _, q := range placed {
		if math.Hypot(x-q.X, y-q.Y) < size {
			return true
		}
	}
	return false
}

// Summary counts how markers were placed.
type Summary struct {
	Placed      int
	Nudged      int
	Overlapping int
}

// Summarize reports placement outcomes of a Project result.
func Summarize(points []PlacedPoint) Summary {
	s := Summary{Placed: len(points)}
	for _, p := range points {
		if p.Attempts > 1 {
			s.Nudged++
		}
		if p.Overlaps {
			s.Overlapping++
		}
	}
	return s
}
