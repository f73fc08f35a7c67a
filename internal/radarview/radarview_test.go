package radarview

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/internal/domain/radar"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func plain(s string) string { return ansi.ReplaceAllString(s, "") }

type fakeFetcher struct {
	users []model.NearbyUser
	err   error
	calls int
}

func (f *fakeFetcher) Nearby(_ context.Context, _ geo.Coordinate, _ float64) ([]model.NearbyUser, error) {
	f.calls++
	return f.users, f.err
}

func nearby(id, name string, distance, bearing float64) model.NearbyUser {
	return model.NearbyUser{
		LocationRecord: model.LocationRecord{UserID: id, Username: name},
		DistanceMeters: distance,
		BearingDegrees: bearing,
	}
}

func TestLayout(t *testing.T) {
	Convey("Given a 41x21 area", t, func() {
		cx, cy, r := Layout(41, 21)

		Convey("Then the radar is centred and limited by the height", func() {
			So(cx, ShouldEqual, 20)
			So(cy, ShouldEqual, 10)
			So(r, ShouldEqual, 18)
		})

		Convey("Then markers map onto the grid with the aspect correction", func() {
			col, row := MarkerCell(radar.PlacedPoint{X: 160}, 160, cx, cy, r)
			So(col, ShouldEqual, 38)
			So(row, ShouldEqual, 10)

			col, row = MarkerCell(radar.PlacedPoint{Y: 160}, 160, cx, cy, r)
			So(col, ShouldEqual, 20)
			So(row, ShouldEqual, 19)
		})
	})

	Convey("Given a tiny area", t, func() {
		_, _, r := Layout(4, 4)
		So(r, ShouldEqual, 3)
	})
}

func TestRender(t *testing.T) {
	Convey("Given a frame with one labelled marker", t, func() {
		f := Frame{
			DisplayRadius: 160,
			Points:        []radar.PlacedPoint{{ID: "a", X: 80}},
			Labels:        map[string]string{"a": "alice-in-wonderland"},
		}

		Convey("When it is rendered", func() {
			lines := strings.Split(plain(Render(41, 21, f)), "\n")

			Convey("Then every row is drawn", func() {
				So(lines, ShouldHaveLength, 21)
			})

			Convey("Then the centre, the marker and the truncated label are on the middle row", func() {
				So(lines[10][20:21], ShouldEqual, "+")
				So(lines[10][29:30], ShouldEqual, "*")
				So(lines[10][31:39], ShouldEqual, "alice-in")
			})
		})
	})

	Convey("Given a label with multi-byte runes", t, func() {
		f := Frame{
			DisplayRadius: 160,
			Points:        []radar.PlacedPoint{{ID: "a", X: 80}},
			Labels:        map[string]string{"a": "Ñandú-über-alles"},
		}
		lines := strings.Split(plain(Render(41, 21, f)), "\n")

		Convey("Then it is cut on rune boundaries", func() {
			So(lines[10], ShouldContainSubstring, "*-Ñandú-üb")
			So(lines[10], ShouldNotContainSubstring, "Ñandú-übe")
		})
	})

	Convey("Given an overlapping marker", t, func() {
		f := Frame{DisplayRadius: 160, Points: []radar.PlacedPoint{{ID: "a", Y: 160, Overlaps: true}}}
		lines := strings.Split(plain(Render(41, 21, f)), "\n")
		So(lines[19][20:21], ShouldEqual, "@")
	})

	Convey("Given an area too small or no display", t, func() {
		So(Render(5, 21, Frame{DisplayRadius: 160}), ShouldBeEmpty)
		So(Render(41, 21, Frame{}), ShouldBeEmpty)
	})
}

func TestModel(t *testing.T) {
	Convey("Given a model with a fake fetcher", t, func() {
		fetcher := &fakeFetcher{users: []model.NearbyUser{
			nearby("a", "alice", 25.02, 0),
			nearby("b", "bob", 25.02, 0),
		}}
		m := New(fetcher, Options{Center: geo.Coordinate{}, RadiusMeters: 50, ViewportWidth: 400})

		Convey("When the first poll runs", func() {
			msg := m.Init()()
			So(fetcher.calls, ShouldEqual, 1)

			next, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 22})
			So(cmd, ShouldBeNil)
			next, cmd = next.Update(msg)
			m = next.(Model)

			Convey("Then the users are projected on the configured viewport", func() {
				So(cmd, ShouldNotBeNil)
				So(m.DisplayRadius(), ShouldEqual, 160)
				f := m.Frame()
				So(f.Points, ShouldHaveLength, 2)
				So(f.Points[0].Radius, ShouldAlmostEqual, 80.064, 1e-9)
				So(f.Points[1].Attempts, ShouldBeGreaterThan, 1)
				So(f.Labels["b"], ShouldEqual, "bob")
			})

			Convey("Then the status line reports the count", func() {
				So(plain(m.View()), ShouldContainSubstring, "2 users within 50 m")
			})
		})

		Convey("When a poll fails", func() {
			next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 22})
			next, cmd := next.Update(NearbyMsg{Err: errors.New("connection refused"), Scheduled: true})
			m = next.(Model)

			Convey("Then the error is shown and polling continues", func() {
				So(cmd, ShouldNotBeNil)
				So(m.Err(), ShouldNotBeNil)
				So(plain(m.View()), ShouldContainSubstring, "error: connection refused")
			})
		})

		Convey("When the viewport width is derived from the terminal", func() {
			m := New(fetcher, Options{RadiusMeters: 50})
			next, _ := m.Update(tea.WindowSizeMsg{Width: 50, Height: 20})
			So(next.(Model).DisplayRadius(), ShouldEqual, 160)
		})

		Convey("When r is pressed repeatedly after start", func() {
			next, armed := m.Update(m.Init()())
			So(armed, ShouldNotBeNil)

			rearmed := 0
			for i := 0; i < 3; i++ {
				var refresh tea.Cmd
				next, refresh = next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
				So(refresh, ShouldNotBeNil)
				var cmd tea.Cmd
				next, cmd = next.Update(refresh())
				if cmd != nil {
					rearmed++
				}
			}

			Convey("Then each refresh polls once without starting another tick chain", func() {
				So(fetcher.calls, ShouldEqual, 4)
				So(rearmed, ShouldEqual, 0)
			})
		})

		Convey("When q is pressed", func() {
			_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
			So(cmd, ShouldNotBeNil)
			So(cmd(), ShouldHaveSameTypeAs, tea.QuitMsg{})
		})

		Convey("When the size is unknown", func() {
			So(m.View(), ShouldEqual, "Initializing radar...")
		})
	})
}
