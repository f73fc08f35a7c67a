package radarview

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/internal/domain/radar"
)

// Fetcher returns the users near a reference point.
type Fetcher interface {
	Nearby(ctx context.Context, ref geo.Coordinate, radiusMeters float64) ([]model.NearbyUser, error)
}

// Options configure the radar model.
type Options struct {
	Center       geo.Coordinate
	RadiusMeters float64
	Interval     time.Duration
	// ViewportWidth is the projection width in pixels. Zero derives it
	// from the terminal width.
	ViewportWidth float64
	Timeout       time.Duration
}

// TickMsg triggers the next poll.
type TickMsg time.Time

// NearbyMsg carries the result of one poll. Scheduled is set for polls of
// the tick chain, which arm the next tick; manual refreshes leave it unset.
type NearbyMsg struct {
	Users     []model.NearbyUser
	Err       error
	At        time.Time
	Scheduled bool
}

// Model is the Bubble Tea model of the terminal radar.
type Model struct {
	fetcher Fetcher
	opts    Options

	width  int
	height int

	users   []model.NearbyUser
	frame   Frame
	err     error
	updated time.Time
}

// New creates a radar model polling fetcher.
func New(fetcher Fetcher, opts Options) Model {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return Model{fetcher: fetcher, opts: opts}
}

func (m Model) Init() tea.Cmd {
	return m.fetchCmd(true)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.reproject()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r", "R":
			return m, m.fetchCmd(false)
		}
		return m, nil

	case TickMsg:
		return m, m.fetchCmd(true)

	case NearbyMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.users = msg.Users
			m.updated = msg.At
			m.reproject()
		}
		if !msg.Scheduled {
			return m, nil
		}
		return m, tickCmd(m.opts.Interval)
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing radar..."
	}
	bodyH := max(m.height-1, 5)
	return Render(m.width, bodyH, m.frame) + "\n" + m.statusLine()
}

func (m Model) statusLine() string {
	if m.err != nil {
		return styleStatusBar.Width(m.width).Render(styleError.Render("error: " + m.err.Error()))
	}
	text := fmt.Sprintf("%d users within %.0f m of %s", len(m.users), m.opts.RadiusMeters, m.opts.Center)
	if !m.updated.IsZero() {
		text += " | updated " + m.updated.Format(time.TimeOnly)
	}
	text += " | r refresh, q quit"
	return styleStatusBar.Width(m.width).Render(text)
}

// DisplayRadius returns the projection radius in pixels for the current
// terminal width.
func (m Model) DisplayRadius() float64 {
	width := m.opts.ViewportWidth
	if width <= 0 {
		width = float64(m.width) * CellPixels
	}
	return radar.DisplayRadiusForViewport(width, radar.DefaultDisplayRatio)
}

// Frame returns the picture drawn by the last View.
func (m Model) Frame() Frame { return m.frame }

// Err returns the error of the last poll.
func (m Model) Err() error { return m.err }

func (m *Model) reproject() {
	display := m.DisplayRadius()
	if display <= 0 {
		return
	}
	cfg := radar.DefaultConfig(display)
	if m.opts.RadiusMeters > 0 {
		cfg.MaxRangeMeters = m.opts.RadiusMeters
	}

	inputs := make([]radar.Input, len(m.users))
	labels := make(map[string]string, len(m.users))
	for i, u := range m.users {
		inputs[i] = radar.Input{ID: u.UserID, DistanceMeters: u.DistanceMeters, BearingDegrees: u.BearingDegrees}
		labels[u.UserID] = u.Username
	}
	points, err := radar.Project(inputs, cfg)
	if err != nil {
		m.err = err
		return
	}
	m.frame = Frame{DisplayRadius: display, Points: points, Labels: labels}
}

func (m Model) fetchCmd(scheduled bool) tea.Cmd {
	fetcher, opts := m.fetcher, m.opts
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()
		users, err := fetcher.Nearby(ctx, opts.Center, opts.RadiusMeters)
		return NearbyMsg{Users: users, Err: err, At: time.Now(), Scheduled: scheduled}
	}
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
