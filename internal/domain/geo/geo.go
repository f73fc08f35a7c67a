// Package geo holds the spherical-earth geometry shared by the proximity
// engine and the radar projector.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Coordinate bounds.
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

const fullCircleDegrees = 360.0

// Coordinate is a point on the earth surface in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewCoordinate returns a validated coordinate.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Latitude: lat, Longitude: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate reports ErrInvalidArgument for non-finite or out-of-range values.
func (c Coordinate) Validate() error {
	if !IsFinite(c.Latitude) || c.Latitude < MinLatitude || c.Latitude > MaxLatitude {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidArgument, c.Latitude)
	}
	if !IsFinite(c.Longitude) || c.Longitude < MinLongitude || c.Longitude > MaxLongitude {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidArgument, c.Longitude)
	}
	return nil
}

// Equal reports exact equality of both components.
func (c Coordinate) Equal(o Coordinate) bool {
	return c.Latitude == o.Latitude && c.Longitude == o.Longitude
}

// String implements fmt.Stringer.
func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Latitude, c.Longitude)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// DegreesToRadians converts degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadiansToDegrees converts radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	n := math.Mod(deg, fullCircleDegrees)
	if n < 0 {
		n += fullCircleDegrees
	}
	if n >= fullCircleDegrees {
		n = 0
	}
	return n
}

// Round2 rounds v to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b Coordinate) float64 {
	lat1 := DegreesToRadians(a.Latitude)
	lat2 := DegreesToRadians(b.Latitude)
	dLat := DegreesToRadians(b.Latitude - a.Latitude)
	dLon := DegreesToRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// rounding can push h marginally outside [0, 1] near antipodes
	h = math.Max(0, math.Min(1, h))

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial forward azimuth from a to b in degrees,
// normalized to [0, 360). North is 0 and angles grow clockwise.
func Bearing(a, b Coordinate) float64 {
	lat1 := DegreesToRadians(a.Latitude)
	lat2 := DegreesToRadians(b.Latitude)
	dLon := DegreesToRadians(b.Longitude - a.Longitude)

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeDegrees(RadiansToDegrees(math.Atan2(y, x)))
}

// RoundedBearing rounds a bearing to two decimals keeping it inside [0, 360).
func RoundedBearing(deg float64) float64 {
	r := Round2(deg)
	if r >= fullCircleDegrees {
		return 0
	}
	return r
}

// Offset returns the coordinate reached by travelling meters from c along
// the given bearing. Used by the simulator to scatter users around a centre.
func Offset(c Coordinate, bearingDegrees, meters float64) Coordinate {
	delta := meters / EarthRadiusMeters
	theta := DegreesToRadians(bearingDegrees)
	lat1 := DegreesToRadians(c.Latitude)
	lon1 := DegreesToRadians(c.Longitude)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lon2 := lon1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	lon := RadiansToDegrees(lon2)
	// wrap to [-180, 180]
	lon = math.Mod(lon+540, fullCircleDegrees) - 180

	return Coordinate{Latitude: RadiansToDegrees(lat2), Longitude: lon}
}
