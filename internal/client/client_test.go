package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClient(t *testing.T) {
	Convey("Given a stub location API", t, func() {
		var gotQuery string
		var gotUpdate model.LocationUpdate
		mux := http.NewServeMux()
		mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		mux.HandleFunc("POST /location/update", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&gotUpdate)
			_, _ = w.Write([]byte(`{"message":"User location updated","created":true}`))
		})
		mux.HandleFunc("POST /location/tag", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"not_found","error":"user not found"}`))
		})
		mux.HandleFunc("GET /location/nearby", func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`[{"userId":"a","distance":12.5,"angle":90}]`))
		})
		mux.HandleFunc("GET /location/all", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"userId":"a"},{"userId":"b"}]`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		c := New(srv.URL+"/", time.Second)
		ctx := context.Background()

		Convey("When checking health", func() {
			So(c.Health(ctx), ShouldBeNil)
		})

		Convey("When updating a location", func() {
			created, err := c.UpdateLocation(ctx, model.LocationUpdate{UserID: "a", Username: "A", Latitude: 1.5, Longitude: 2})

			Convey("Then the body is sent and the outcome decoded", func() {
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
				So(gotUpdate.UserID, ShouldEqual, "a")
				So(gotUpdate.Latitude, ShouldEqual, 1.5)
			})
		})

		Convey("When the server answers with an error", func() {
			err := c.UpdateTag(ctx, "ghost", "x")

			Convey("Then a status error carries the message", func() {
				var se *StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Code, ShouldEqual, http.StatusNotFound)
				So(se.Message, ShouldEqual, "user not found")
				So(errors.Is(err, ErrUnexpectedStatus), ShouldBeTrue)
			})
		})

		Convey("When querying nearby users", func() {
			users, err := c.Nearby(ctx, geo.Coordinate{Latitude: 1.25, Longitude: -3}, 100)

			Convey("Then the reference and radius are sent", func() {
				So(err, ShouldBeNil)
				So(gotQuery, ShouldEqual, "lat=1.25&lon=-3&radius=100")
				So(users, ShouldHaveLength, 1)
				So(users[0].DistanceMeters, ShouldEqual, 12.5)
				So(users[0].BearingDegrees, ShouldEqual, 90)
			})
		})

		Convey("When listing everyone", func() {
			all, err := c.All(ctx)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 2)
		})
	})
}
