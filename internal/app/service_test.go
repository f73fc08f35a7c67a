package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/loka/internal/adapters/repository"
	service "github.com/okian/loka/internal/app"
	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/pkg/logger"
	"github.com/okian/loka/pkg/schedule"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var origin = geo.Coordinate{Latitude: 0, Longitude: 0}

func update(id string, lat, lon float64) model.LocationUpdate {
	return model.LocationUpdate{UserID: id, Username: "user " + id, Latitude: lat, Longitude: lon}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.DefaultRadius(), ShouldEqual, service.DefaultRadiusMeters)
			stats := svc.GetStats()
			So(stats["backend"], ShouldEqual, "memory")
			So(stats["records"], ShouldEqual, 0)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithLogger(logger.Get()),
			service.WithDefaultRadius(250),
			service.WithMaxRadius(500),
			service.WithDisplayRatio(0.5),
			service.WithViewportWidth(800),
			service.WithFlushInterval(time.Minute),
			service.WithStatsInterval(time.Minute),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
			So(svc.DefaultRadius(), ShouldEqual, 250)
			So(svc.GetStats()["maxRadius"], ShouldEqual, 500.0)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then it should be marked as started", func() {
				So(svc.GetStats()["started"], ShouldEqual, true)
				So(svc.Start(ctx), ShouldBeNil)
				svc.Stop()
			})

			Convey("And after stopping it is marked as stopped", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)

				Convey("And the store is closed", func() {
					_, _, err := svc.UpdateLocation(ctx, update("a", 1, 1))
					So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
				})
			})
		})

		Convey("When stopping a service that never started", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)

			Convey("Then its store is closed anyway", func() {
				_, _, err := svc.UpdateLocation(ctx, update("a", 1, 1))
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
			})

			Convey("And it cannot be started again", func() {
				So(errors.Is(svc.Start(ctx), service.ErrStopped), ShouldBeTrue)
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_UpdateLocation(t *testing.T) {
	Convey("Given a service with a fixed clock", t, func() {
		ctx := context.Background()
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
		svc := service.New(service.WithClock(schedule.NewFakeClock(now)))

		Convey("When a new user reports a location", func() {
			rec, created, err := svc.UpdateLocation(ctx, model.LocationUpdate{
				UserID:    "u1",
				Username:  "Ada Lovelace",
				Latitude:  51.5,
				Longitude: -0.12,
			})

			Convey("Then the user is created with derived fields", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
				So(rec.UserID, ShouldEqual, "u1")
				So(rec.Avatar, ShouldEqual, "https://api.dicebear.com/7.x/adventurer/png?seed=Ada%20Lovelace")
				So(rec.LastUpdated.Equal(now), ShouldBeTrue)
				So(rec.LastUpdated.Location(), ShouldEqual, time.UTC)
				So(rec.Tag, ShouldBeEmpty)
			})

			Convey("And a second report replaces the position but keeps the tag", func() {
				_, err := svc.UpdateTag(ctx, "u1", "cyclist")
				So(err, ShouldBeNil)

				rec, created, err := svc.UpdateLocation(ctx, update("u1", 51.6, -0.13))
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(rec.Latitude, ShouldEqual, 51.6)
				So(rec.Tag, ShouldEqual, "cyclist")

				all, err := svc.All(ctx)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 1)
			})
		})

		Convey("When the update is incomplete or out of range", func() {
			cases := []model.LocationUpdate{
				{Username: "no id", Latitude: 1, Longitude: 1},
				{UserID: "no-name", Latitude: 1, Longitude: 1},
				update("lat", 91, 0),
				update("lon", 0, -181),
			}

			Convey("Then each is rejected as an invalid argument", func() {
				for _, u := range cases {
					_, _, err := svc.UpdateLocation(ctx, u)
					So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
				}
				all, err := svc.All(ctx)
				So(err, ShouldBeNil)
				So(all, ShouldBeEmpty)
			})
		})
	})
}

func TestService_UpdateTag(t *testing.T) {
	Convey("Given a service with one user", t, func() {
		ctx := context.Background()
		svc := service.New()
		_, _, err := svc.UpdateLocation(ctx, update("u1", 10, 10))
		So(err, ShouldBeNil)

		Convey("When tagging the known user", func() {
			rec, err := svc.UpdateTag(ctx, "u1", "hiker")

			Convey("Then the tag is stored", func() {
				So(err, ShouldBeNil)
				So(rec.Tag, ShouldEqual, "hiker")
				got, err := svc.User(ctx, "u1")
				So(err, ShouldBeNil)
				So(got.Tag, ShouldEqual, "hiker")
			})
		})

		Convey("When tagging an unknown user", func() {
			_, err := svc.UpdateTag(ctx, "ghost", "hiker")

			Convey("Then it is not found", func() {
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the user id is empty", func() {
			_, err := svc.UpdateTag(ctx, "", "hiker")

			Convey("Then it is an invalid argument", func() {
				So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
			})
		})
	})
}

func TestService_Nearby(t *testing.T) {
	Convey("Given users 50 m and 100 m north of the origin", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithMaxRadius(5000))
		for _, u := range []model.LocationUpdate{
			update("self", 0, 0),
			update("near", 0.00045, 0),
			update("far", 0.0009, 0),
		} {
			_, _, err := svc.UpdateLocation(ctx, u)
			So(err, ShouldBeNil)
		}

		Convey("When querying with a 51 m radius", func() {
			users, err := svc.Nearby(ctx, origin, 51)

			Convey("Then only the near user is returned", func() {
				So(err, ShouldBeNil)
				So(users, ShouldHaveLength, 1)
				So(users[0].UserID, ShouldEqual, "near")
				So(users[0].DistanceMeters, ShouldEqual, 50.04)
				So(users[0].BearingDegrees, ShouldEqual, 0)
			})
		})

		Convey("When the radius is omitted", func() {
			users, err := svc.Nearby(ctx, origin, 0)

			Convey("Then the default radius applies and the caller is excluded", func() {
				So(err, ShouldBeNil)
				So(users, ShouldHaveLength, 2)
				So(users[0].UserID, ShouldEqual, "near")
				So(users[1].UserID, ShouldEqual, "far")
				So(svc.GetStats()["nearbyQueries"], ShouldEqual, int64(1))
			})
		})

		Convey("When the radius exceeds the maximum", func() {
			_, err := svc.Nearby(ctx, origin, 5001)

			Convey("Then it is an invalid argument", func() {
				So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
			})
		})

		Convey("When the radius is negative or the reference is invalid", func() {
			_, err1 := svc.Nearby(ctx, origin, -1)
			_, err2 := svc.Nearby(ctx, geo.Coordinate{Latitude: 100}, 10)

			Convey("Then both are invalid arguments", func() {
				So(errors.Is(err1, service.ErrInvalidArgument), ShouldBeTrue)
				So(errors.Is(err2, service.ErrInvalidArgument), ShouldBeTrue)
			})
		})
	})
}

func TestService_Radar(t *testing.T) {
	Convey("Given a user 25 m north of the origin", t, func() {
		ctx := context.Background()
		svc := service.New()
		_, _, err := svc.UpdateLocation(ctx, update("north", 0.000225, 0))
		So(err, ShouldBeNil)

		Convey("When projecting on the default viewport", func() {
			view, err := svc.Radar(ctx, origin, 100, 0)

			Convey("Then the display radius is 80% of 400 px halved", func() {
				So(err, ShouldBeNil)
				So(view.DisplayRadius, ShouldEqual, 160)
				So(view.RadiusMeters, ShouldEqual, 100)
				So(view.Users, ShouldHaveLength, 1)
				So(view.Points, ShouldHaveLength, 1)
			})

			Convey("And the marker is scaled by distance along its bearing", func() {
				p := view.Points[0]
				So(p.ID, ShouldEqual, "north")
				So(p.Radius, ShouldAlmostEqual, 80.064, 1e-9)
				So(p.X, ShouldAlmostEqual, 80.064, 1e-9)
				So(p.Y, ShouldAlmostEqual, 0, 1e-9)
				So(p.Attempts, ShouldEqual, 1)
				So(p.Overlaps, ShouldBeFalse)
			})
		})

		Convey("When the viewport width is negative", func() {
			_, err := svc.Radar(ctx, origin, 100, -10)

			Convey("Then it is an invalid argument", func() {
				So(errors.Is(err, service.ErrInvalidArgument), ShouldBeTrue)
			})
		})

		Convey("When nobody is in range", func() {
			view, err := svc.Radar(ctx, geo.Coordinate{Latitude: 45, Longitude: 45}, 10, 600)

			Convey("Then the view is empty", func() {
				So(err, ShouldBeNil)
				So(view.Users, ShouldBeEmpty)
				So(view.Points, ShouldBeEmpty)
				So(view.DisplayRadius, ShouldEqual, 240)
			})
		})
	})
}

func TestAvatarURL(t *testing.T) {
	Convey("Given usernames with reserved characters", t, func() {
		Convey("Then they are escaped into the seed", func() {
			So(service.AvatarURL("bob"), ShouldEqual, "https://api.dicebear.com/7.x/adventurer/png?seed=bob")
			So(service.AvatarURL("a&b=c"), ShouldEqual, "https://api.dicebear.com/7.x/adventurer/png?seed=a%26b%3Dc")
		})
	})
}
