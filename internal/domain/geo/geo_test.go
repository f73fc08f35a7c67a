package geo_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/loka/internal/domain/geo"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCoordinateValidate(t *testing.T) {
	Convey("Given coordinates at and beyond the bounds", t, func() {
		Convey("When they are inside the valid range", func() {
			Convey("Then validation passes", func() {
				for _, c := range []geo.Coordinate{
					{Latitude: 0, Longitude: 0},
					{Latitude: 90, Longitude: 180},
					{Latitude: -90, Longitude: -180},
				} {
					So(c.Validate(), ShouldBeNil)
				}
			})
		})

		Convey("When a component is out of range or not finite", func() {
			Convey("Then ErrInvalidArgument is returned", func() {
				for _, c := range []geo.Coordinate{
					{Latitude: 90.0001, Longitude: 0},
					{Latitude: -91, Longitude: 0},
					{Latitude: 0, Longitude: 180.5},
					{Latitude: math.NaN(), Longitude: 0},
					{Latitude: 0, Longitude: math.Inf(1)},
				} {
					err := c.Validate()
					So(errors.Is(err, geo.ErrInvalidArgument), ShouldBeTrue)
				}
			})
		})

		Convey("When building through NewCoordinate", func() {
			_, err := geo.NewCoordinate(100, 0)
			So(errors.Is(err, geo.ErrInvalidArgument), ShouldBeTrue)

			c, err := geo.NewCoordinate(12.5, -7.25)
			So(err, ShouldBeNil)
			So(c.Latitude, ShouldEqual, 12.5)
			So(c.Longitude, ShouldEqual, -7.25)
		})
	})
}

func TestDistance(t *testing.T) {
	origin := geo.Coordinate{}

	Convey("Given the haversine distance", t, func() {
		Convey("When measuring small offsets on the equator", func() {
			So(geo.Distance(origin, geo.Coordinate{Latitude: 0.00045}), ShouldAlmostEqual, 50.0377, 0.001)
			So(geo.Distance(origin, geo.Coordinate{Latitude: 0.0009}), ShouldAlmostEqual, 100.0754, 0.001)
			So(geo.Distance(origin, geo.Coordinate{Longitude: 0.00045}), ShouldAlmostEqual, 50.0377, 0.001)
		})

		Convey("When measuring one degree of latitude", func() {
			So(geo.Distance(origin, geo.Coordinate{Latitude: 1}), ShouldAlmostEqual, 111194.9266, 0.01)
		})

		Convey("When the points are identical", func() {
			So(geo.Distance(origin, origin), ShouldEqual, 0)
		})

		Convey("When the points are antipodal", func() {
			half := math.Pi * geo.EarthRadiusMeters
			So(geo.Distance(origin, geo.Coordinate{Longitude: 180}), ShouldAlmostEqual, half, 0.01)
			So(geo.Distance(geo.Coordinate{Latitude: 90}, geo.Coordinate{Latitude: -90}), ShouldAlmostEqual, half, 0.01)
		})

		Convey("When swapping arguments", func() {
			pairs := [][2]geo.Coordinate{
				{{Latitude: 52.52, Longitude: 13.405}, {Latitude: 48.8566, Longitude: 2.3522}},
				{{Latitude: -33.86, Longitude: 151.2}, {Latitude: 40.71, Longitude: -74.0}},
				{{Latitude: 89.9, Longitude: 0}, {Latitude: 89.9, Longitude: 180}},
			}
			for _, p := range pairs {
				So(geo.Distance(p[0], p[1]), ShouldAlmostEqual, geo.Distance(p[1], p[0]), 0.01)
			}
		})
	})
}

func TestBearing(t *testing.T) {
	origin := geo.Coordinate{}

	Convey("Given the forward azimuth", t, func() {
		Convey("When the target lies on a cardinal direction", func() {
			So(geo.Bearing(origin, geo.Coordinate{Latitude: 0.00045}), ShouldAlmostEqual, 0, 1e-9)
			So(geo.Bearing(origin, geo.Coordinate{Longitude: 0.00045}), ShouldAlmostEqual, 90, 1e-9)
			So(geo.Bearing(origin, geo.Coordinate{Latitude: -0.00045}), ShouldAlmostEqual, 180, 1e-9)
			So(geo.Bearing(origin, geo.Coordinate{Longitude: -0.00045}), ShouldAlmostEqual, 270, 1e-9)
		})

		Convey("When the result would be negative", func() {
			b := geo.Bearing(origin, geo.Coordinate{Latitude: 0.001, Longitude: -0.001})
			So(b, ShouldBeGreaterThanOrEqualTo, 0)
			So(b, ShouldBeLessThan, 360)
			So(b, ShouldAlmostEqual, 315, 0.01)
		})

		Convey("When reversing nearby points", func() {
			pairs := [][2]geo.Coordinate{
				{{Latitude: 0, Longitude: 0}, {Latitude: 0.0003, Longitude: 0.0003}},
				{{Latitude: -33.86, Longitude: 151.2}, {Latitude: -33.8601, Longitude: 151.2001}},
			}
			for _, p := range pairs {
				forward := geo.Bearing(p[0], p[1])
				back := geo.NormalizeDegrees(geo.Bearing(p[1], p[0]) + 180)
				So(forward, ShouldAlmostEqual, back, 0.01)
			}
		})

		Convey("When either endpoint sits on a pole", func() {
			pairs := [][2]geo.Coordinate{
				{{Latitude: 90, Longitude: 0}, {Latitude: 89.999, Longitude: 45}},
				{{Latitude: -90, Longitude: 0}, {Latitude: 0, Longitude: 0}},
				{{Latitude: 10, Longitude: 20}, {Latitude: 90, Longitude: 0}},
				{{Latitude: 90, Longitude: 0}, {Latitude: 90, Longitude: 120}},
				{{Latitude: 90, Longitude: 0}, {Latitude: -90, Longitude: 0}},
			}
			for _, p := range pairs {
				b := geo.Bearing(p[0], p[1])
				So(geo.IsFinite(b), ShouldBeTrue)
				So(b, ShouldBeGreaterThanOrEqualTo, 0)
				So(b, ShouldBeLessThan, 360)
				So(geo.IsFinite(geo.Distance(p[0], p[1])), ShouldBeTrue)
			}

			Convey("Then every direction away from the north pole points south", func() {
				So(geo.Bearing(geo.Coordinate{Latitude: 90}, geo.Coordinate{Latitude: 89}), ShouldAlmostEqual, 180, 1e-6)
				So(geo.Bearing(geo.Coordinate{Latitude: -90}, geo.Coordinate{Latitude: 0}), ShouldAlmostEqual, 0, 1e-6)
			})

			Convey("Then longitude makes no difference to the distance at the pole", func() {
				d := geo.Distance(geo.Coordinate{Latitude: 90}, geo.Coordinate{Latitude: 90, Longitude: 120})
				So(d, ShouldAlmostEqual, 0, 1e-6)
			})
		})
	})
}

func TestRoundingHelpers(t *testing.T) {
	Convey("Given the rounding helpers", t, func() {
		So(geo.Round2(50.0377), ShouldEqual, 50.04)
		So(geo.Round2(100.0754), ShouldEqual, 100.08)
		So(geo.RoundedBearing(359.996), ShouldEqual, 0)
		So(geo.RoundedBearing(359.994), ShouldEqual, 359.99)
		So(geo.NormalizeDegrees(-90), ShouldEqual, 270)
		So(geo.NormalizeDegrees(720), ShouldEqual, 0)
		So(geo.RadiansToDegrees(geo.DegreesToRadians(123.4)), ShouldAlmostEqual, 123.4, 1e-9)
	})
}

func TestOffset(t *testing.T) {
	Convey("Given a centre coordinate", t, func() {
		centre := geo.Coordinate{Latitude: 35.6895, Longitude: 139.6917}

		Convey("When moving a known distance along a bearing", func() {
			for _, bearing := range []float64{0, 45, 90, 200, 330} {
				target := geo.Offset(centre, bearing, 250)
				So(geo.Distance(centre, target), ShouldAlmostEqual, 250, 0.01)
				So(geo.Bearing(centre, target), ShouldAlmostEqual, bearing, 0.01)
			}
		})

		Convey("When crossing the antimeridian", func() {
			target := geo.Offset(geo.Coordinate{Longitude: 179.9999}, 90, 1000)
			So(target.Validate(), ShouldBeNil)
			So(target.Longitude, ShouldBeLessThan, 0)
		})
	})
}
