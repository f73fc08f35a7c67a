package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/loka/internal/adapters/http/api"
	service "github.com/okian/loka/internal/app"
	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies fails every call with err.
type mockDependencies struct {
	err error
}

func (m *mockDependencies) UpdateLocation(context.Context, model.LocationUpdate) (model.LocationRecord, bool, error) {
	return model.LocationRecord{}, false, m.err
}

func (m *mockDependencies) UpdateTag(context.Context, string, string) (model.LocationRecord, error) {
	return model.LocationRecord{}, m.err
}

func (m *mockDependencies) User(context.Context, string) (model.LocationRecord, error) {
	return model.LocationRecord{}, m.err
}

func (m *mockDependencies) All(context.Context) ([]model.LocationRecord, error) {
	return nil, m.err
}

func (m *mockDependencies) Nearby(context.Context, geo.Coordinate, float64) ([]model.NearbyUser, error) {
	return nil, m.err
}

func (m *mockDependencies) Radar(context.Context, geo.Coordinate, float64, float64) (model.RadarView, error) {
	return model.RadarView{}, m.err
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newHandler(deps api.Dependencies, stats api.StatsProvider) http.Handler {
	server, err := api.NewServer(deps, stats)
	So(err, ShouldBeNil)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return server.Handler(mux)
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func TestLocationRoutes(t *testing.T) {
	Convey("Given the API backed by an in-memory service", t, func() {
		svc := service.New()
		h := newHandler(svc, svc)

		Convey("When a user reports a location", func() {
			w := do(h, http.MethodPost, "/location/update",
				`{"userId":"u1","username":"Ada","latitude":0.00045,"longitude":0}`)

			Convey("Then the user is created", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp struct {
					Message string               `json:"message"`
					Created bool                 `json:"created"`
					User    model.LocationRecord `json:"user"`
				}
				decode(w, &resp)
				So(resp.Message, ShouldEqual, "User location updated")
				So(resp.Created, ShouldBeTrue)
				So(resp.User.Avatar, ShouldEqual, "https://api.dicebear.com/7.x/adventurer/png?seed=Ada")
			})

			Convey("And the user can be read back", func() {
				w := do(h, http.MethodGet, "/location/user/u1", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var rec model.LocationRecord
				decode(w, &rec)
				So(rec.UserID, ShouldEqual, "u1")
				So(rec.Latitude, ShouldEqual, 0.00045)
			})

			Convey("And it appears in the full list", func() {
				w := do(h, http.MethodGet, "/location/all", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var all []model.LocationRecord
				decode(w, &all)
				So(all, ShouldHaveLength, 1)
			})

			Convey("And it can be tagged", func() {
				w := do(h, http.MethodPost, "/location/tag", `{"userId":"u1","tag":"runner"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				var resp map[string]string
				decode(w, &resp)
				So(resp["message"], ShouldEqual, "Tag updated successfully")
				So(resp["tag"], ShouldEqual, "runner")
			})

			Convey("And a nearby query from the origin finds it to the north", func() {
				w := do(h, http.MethodGet, "/location/nearby?lat=0&lon=0&radius=51", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var users []map[string]any
				decode(w, &users)
				So(users, ShouldHaveLength, 1)
				So(users[0]["userId"], ShouldEqual, "u1")
				So(users[0]["distance"], ShouldEqual, 50.04)
				So(users[0]["angle"], ShouldEqual, 0.0)
			})

			Convey("And a smaller radius leaves it out", func() {
				w := do(h, http.MethodGet, "/location/nearby?lat=0&lon=0&radius=50.03", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})

			Convey("And the radar places it", func() {
				w := do(h, http.MethodGet, "/location/radar?lat=0&lon=0&radius=100&width=400", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var view model.RadarView
				decode(w, &view)
				So(view.DisplayRadius, ShouldEqual, 160)
				So(view.Users, ShouldHaveLength, 1)
				So(view.Points, ShouldHaveLength, 1)
				So(view.Points[0].ID, ShouldEqual, "u1")
			})
		})

		Convey("When a batch of updates is posted", func() {
			w := do(h, http.MethodPost, "/location/update",
				`[{"userId":"u1","username":"a","latitude":1,"longitude":1}]`)

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var body errorBody
				decode(w, &body)
				So(body.Error, ShouldEqual, "Batch updates are not allowed. Send one user at a time.")
				So(body.Code, ShouldEqual, "bad_request")
			})
		})

		Convey("When the update body is not JSON", func() {
			w := do(h, http.MethodPost, "/location/update", `{"userId":`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When required fields are missing", func() {
			w := do(h, http.MethodPost, "/location/update", `{"userId":"u1","latitude":1}`)

			Convey("Then the schema rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var body errorBody
				decode(w, &body)
				So(body.Code, ShouldEqual, "invalid_argument")
				So(body.Error, ShouldContainSubstring, "username")
			})
		})

		Convey("When the latitude is out of range", func() {
			w := do(h, http.MethodPost, "/location/update",
				`{"userId":"u1","username":"a","latitude":91,"longitude":0}`)

			Convey("Then the schema rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var body errorBody
				decode(w, &body)
				So(body.Error, ShouldContainSubstring, "/latitude")
			})
		})

		Convey("When tagging an unknown user", func() {
			w := do(h, http.MethodPost, "/location/tag", `{"userId":"ghost","tag":"x"}`)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				var body errorBody
				decode(w, &body)
				So(body.Error, ShouldEqual, "user not found")
			})
		})

		Convey("When the tag is missing", func() {
			w := do(h, http.MethodPost, "/location/tag", `{"userId":"u1"}`)

			Convey("Then it is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When reading an unknown user", func() {
			w := do(h, http.MethodGet, "/location/user/ghost", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When nearby is missing its reference", func() {
			w := do(h, http.MethodGet, "/location/nearby?lat=1", "")

			Convey("Then it is an invalid argument", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				var body errorBody
				decode(w, &body)
				So(body.Error, ShouldEqual, "Missing lat/lon query params")
			})
		})

		Convey("When nearby gets malformed numbers", func() {
			for _, target := range []string{
				"/location/nearby?lat=abc&lon=0",
				"/location/nearby?lat=0&lon=0&radius=-5",
				"/location/nearby?lat=95&lon=0",
				"/location/radar?lat=0&lon=0&width=wide",
			} {
				w := do(h, http.MethodGet, target, "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the radius exceeds the service maximum", func() {
			w := do(h, http.MethodGet, "/location/nearby?lat=0&lon=0&radius=1000000", "")

			Convey("Then it is an invalid argument", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a route is called with the wrong method", func() {
			w := do(h, http.MethodGet, "/location/update", "")

			Convey("Then it is not allowed", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestInternalErrors(t *testing.T) {
	Convey("Given dependencies that fail unexpectedly", t, func() {
		h := newHandler(&mockDependencies{err: errors.New("disk on fire")}, nil)

		Convey("When listing all locations", func() {
			w := do(h, http.MethodGet, "/location/all", "")

			Convey("Then a generic internal error is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				var body errorBody
				decode(w, &body)
				So(body.Code, ShouldEqual, "internal_error")
				So(body.Error, ShouldNotContainSubstring, "disk on fire")
			})
		})

		Convey("When stats have no provider", func() {
			w := do(h, http.MethodGet, "/stats", "")

			Convey("Then an empty object is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "{}")
			})
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("Given the wrapped API handler", t, func() {
		h := newHandler(&mockDependencies{}, &mockStatsProvider{stats: map[string]interface{}{"records": 3}})

		Convey("When a request has no id", func() {
			w := do(h, http.MethodGet, "/healthz", "")

			Convey("Then one is generated", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get(api.RequestIDHeader), ShouldHaveLength, 36)
			})
		})

		Convey("When a request carries an id", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then it is echoed back", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
				var stats map[string]any
				decode(w, &stats)
				So(stats["records"], ShouldEqual, 3.0)
			})
		})

		Convey("When a browser sends a preflight request", func() {
			w := do(h, http.MethodOptions, "/location/update", "")

			Convey("Then CORS headers are returned without a body", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			})
		})

		Convey("When metrics are scraped", func() {
			w := do(h, http.MethodGet, "/metrics", "")

			Convey("Then the prometheus exposition is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "loka_location_http_requests_total")
			})
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given API errors", t, func() {
		Convey("When wrapping a service not-found error", func() {
			err := api.Wrap("api.get_user", service.ErrNotFound)

			Convey("Then both the kind and the cause match", func() {
				So(errors.Is(err, api.ErrNotFound), ShouldBeTrue)
				So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
				So(err.Error(), ShouldEqual, "api.get_user: not found: user not found")
			})
		})

		Convey("When creating a bare kind", func() {
			err := api.NewKind("api.op", api.ErrBadRequest)

			Convey("Then it has no cause", func() {
				So(err.Error(), ShouldEqual, "api.op: bad request")
				So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			})
		})
	})
}
