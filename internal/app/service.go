// Package service provides the location service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/loka/internal/adapters/repository"
	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/internal/domain/proximity"
	"github.com/okian/loka/internal/domain/radar"
	"github.com/okian/loka/pkg/logger"
	"github.com/okian/loka/pkg/metrics"
	"github.com/okian/loka/pkg/schedule"
)

// avatarBaseURL is the image service used to derive avatars from usernames.
const avatarBaseURL = "https://api.dicebear.com/7.x/adventurer/png?seed="

// Defaults used when no option overrides them.
const (
	DefaultRadiusMeters        = 1000.0
	DefaultMaxRadiusMeters     = 50000.0
	DefaultViewportWidthPixels = 400.0
	DefaultFlushInterval       = time.Second
	DefaultStatsInterval       = 5 * time.Second
)

// Service implements the API dependencies for the location system.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	backend string

	defaultRadius float64
	maxRadius     float64
	radarCfg      radar.Config
	displayRatio  float64
	viewportWidth float64
	flushInterval time.Duration
	statsInterval time.Duration

	clock     schedule.Clock
	scheduler *schedule.Scheduler
	started   bool
	stopped   bool

	queries atomic.Int64
	radars  atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the location store. The service closes it on Stop.
func WithStore(store repository.Store, backend string) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.backend = backend
		}
	}
}

// WithDefaultRadius sets the radius used when a query does not give one.
func WithDefaultRadius(meters float64) Option {
	return func(s *Service) {
		if meters > 0 {
			s.defaultRadius = meters
		}
	}
}

// WithMaxRadius sets the largest radius a query may ask for.
func WithMaxRadius(meters float64) Option {
	return func(s *Service) {
		if meters > 0 {
			s.maxRadius = meters
		}
	}
}

// WithRadarConfig sets the radar range and marker sizes. The display radius
// is derived per request from the viewport width.
func WithRadarConfig(cfg radar.Config) Option {
	return func(s *Service) {
		s.radarCfg = cfg
	}
}

// WithDisplayRatio sets the share of the viewport width used by the radar.
func WithDisplayRatio(ratio float64) Option {
	return func(s *Service) {
		if ratio > 0 && ratio <= 1 {
			s.displayRatio = ratio
		}
	}
}

// WithViewportWidth sets the viewport width assumed when a radar request does
// not give one.
func WithViewportWidth(pixels float64) Option {
	return func(s *Service) {
		if pixels > 0 {
			s.viewportWidth = pixels
		}
	}
}

// WithFlushInterval sets how often buffered stores are flushed.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithStatsInterval sets how often store gauges are refreshed.
func WithStatsInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.statsInterval = d
		}
	}
}

// WithClock sets the clock used for timestamps and background tasks.
func WithClock(c schedule.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// New constructs a new Service. Without WithStore an in-memory store is used.
func New(opts ...Option) *Service {
	s := &Service{
		defaultRadius: DefaultRadiusMeters,
		maxRadius:     DefaultMaxRadiusMeters,
		radarCfg:      radar.DefaultConfig(0),
		displayRatio:  radar.DefaultDisplayRatio,
		viewportWidth: DefaultViewportWidthPixels,
		flushInterval: DefaultFlushInterval,
		statsInterval: DefaultStatsInterval,
		clock:         schedule.RealClock{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(context.Background())
		s.backend = "memory"
	}
	return s
}

// Start launches the periodic store flush and gauge refresh tasks.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting location service...")

	s.scheduler = schedule.New(schedule.WithClock(s.clock), schedule.WithLogger(s.logger))
	if flusher, ok := s.store.(repository.Flusher); ok {
		if err := s.scheduler.Add(schedule.Task{
			Name:     "store-flush",
			Interval: s.flushInterval,
			Run:      flusher.Flush,
		}); err != nil {
			return err
		}
	}
	if err := s.scheduler.Add(schedule.Task{
		Name:      "store-stats",
		Interval:  s.statsInterval,
		Immediate: true,
		Run:       s.refreshStats,
	}); err != nil {
		return err
	}
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}

	s.started = true
	s.logger.Info(ctx, "location service started",
		logger.String("backend", s.backend),
		logger.Float64("defaultRadius", s.defaultRadius),
		logger.Float64("maxRadius", s.maxRadius),
	)
	return nil
}

// Stop halts the background tasks, flushes pending writes and closes the
// store. A stopped service cannot be started again.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	ctx := context.Background()
	s.logger.Info(ctx, "stopping location service...")

	// the store is owned even when Start never ran
	if s.started {
		s.scheduler.Stop()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "failed to close store", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "location service stopped")
}

// UpdateLocation records the latest position of a user. The tag of an
// existing user is kept. Returns the stored record and whether the user was new.
func (s *Service) UpdateLocation(ctx context.Context, u model.LocationUpdate) (model.LocationRecord, bool, error) {
	if err := validateUpdate(u); err != nil {
		metrics.RecordInvalidArgument("update")
		return model.LocationRecord{}, false, err
	}

	rec := model.LocationRecord{
		UserID:      u.UserID,
		Username:    u.Username,
		Avatar:      AvatarURL(u.Username),
		Latitude:    u.Latitude,
		Longitude:   u.Longitude,
		LastUpdated: s.clock.Now().UTC(),
	}
	created, err := s.store.Upsert(ctx, rec)
	if err != nil {
		return model.LocationRecord{}, false, fmt.Errorf("upsert %q: %w", u.UserID, err)
	}
	metrics.RecordLocationUpdate(created)

	stored, err := s.store.Get(ctx, u.UserID)
	if err != nil {
		return model.LocationRecord{}, false, fmt.Errorf("reload %q: %w", u.UserID, err)
	}

	s.logger.Debug(ctx, "location updated",
		logger.String("userId", u.UserID),
		logger.Bool("created", created),
	)
	return stored, created, nil
}

// UpdateTag sets the tag of a known user. Returns ErrNotFound when the user
// has never reported a location.
func (s *Service) UpdateTag(ctx context.Context, userID, tag string) (model.LocationRecord, error) {
	if userID == "" {
		metrics.RecordInvalidArgument("tag")
		return model.LocationRecord{}, fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	rec, err := s.store.UpdateTag(ctx, userID, tag)
	if err != nil {
		return model.LocationRecord{}, err
	}
	metrics.RecordTagUpdate()
	return rec, nil
}

// User returns the record of a single user.
func (s *Service) User(ctx context.Context, userID string) (model.LocationRecord, error) {
	return s.store.Get(ctx, userID)
}

// All returns every known record in first-seen order.
func (s *Service) All(ctx context.Context) ([]model.LocationRecord, error) {
	return s.store.List(ctx)
}

// Nearby returns the users within radiusMeters of ref. A zero radius selects
// the default radius.
func (s *Service) Nearby(ctx context.Context, ref geo.Coordinate, radiusMeters float64) ([]model.NearbyUser, error) {
	users, _, err := s.nearby(ctx, "nearby", ref, radiusMeters)
	return users, err
}

// Radar runs a nearby query and places the results on a radar drawn in a
// viewport of the given width. A zero width selects the default viewport.
func (s *Service) Radar(ctx context.Context, ref geo.Coordinate, radiusMeters, viewportWidth float64) (model.RadarView, error) {
	if viewportWidth == 0 {
		viewportWidth = s.viewportWidth
	}
	if !geo.IsFinite(viewportWidth) || viewportWidth < 0 {
		metrics.RecordInvalidArgument("radar")
		return model.RadarView{}, fmt.Errorf("%w: viewport width must be positive, got %v", ErrInvalidArgument, viewportWidth)
	}

	users, radius, err := s.nearby(ctx, "radar", ref, radiusMeters)
	if err != nil {
		return model.RadarView{}, err
	}

	cfg := s.radarCfg
	cfg.DisplayRadiusPixels = radar.DisplayRadiusForViewport(viewportWidth, s.displayRatio)

	inputs := make([]radar.Input, len(users))
	for i, u := range users {
		inputs[i] = radar.Input{ID: u.UserID, DistanceMeters: u.DistanceMeters, BearingDegrees: u.BearingDegrees}
	}
	points, err := radar.Project(inputs, cfg)
	if err != nil {
		metrics.RecordInvalidArgument("radar")
		return model.RadarView{}, err
	}

	s.radars.Add(1)
	metrics.RecordRadarProjection()
	for _, p := range points {
		metrics.RecordPlacement(p.Attempts, p.Overlaps)
	}

	return model.RadarView{
		Center:        ref,
		RadiusMeters:  radius,
		DisplayRadius: cfg.DisplayRadiusPixels,
		Users:         users,
		Points:        points,
	}, nil
}

func (s *Service) nearby(ctx context.Context, op string, ref geo.Coordinate, radiusMeters float64) ([]model.NearbyUser, float64, error) {
	if radiusMeters == 0 {
		radiusMeters = s.defaultRadius
	}
	if radiusMeters > s.maxRadius {
		metrics.RecordInvalidArgument(op)
		return nil, 0, fmt.Errorf("%w: radius %v exceeds the maximum of %v", ErrInvalidArgument, radiusMeters, s.maxRadius)
	}

	start := time.Now()
	candidates, err := s.store.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list locations: %w", err)
	}

	users, err := proximity.FindNearby(ref, candidates, radiusMeters)
	if err != nil {
		if errors.Is(err, ErrInvalidArgument) {
			metrics.RecordInvalidArgument(op)
		}
		return nil, 0, err
	}

	s.queries.Add(1)
	stats := proximity.Summarize(candidates, users)
	metrics.RecordNearbyQuery(stats.Scanned, stats.Matched, float64(time.Since(start).Microseconds())/1000)
	s.logger.Debug(ctx, "nearby query",
		logger.String("reference", ref.String()),
		logger.Float64("radius", radiusMeters),
		logger.Int("scanned", stats.Scanned),
		logger.Int("matched", stats.Matched),
	)
	return users, radiusMeters, nil
}

func (s *Service) refreshStats(ctx context.Context) error {
	metrics.UpdateStoreRecords(s.store.Count(ctx))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	records := s.store.Count(ctx)
	metrics.UpdateStoreRecords(records)

	return map[string]interface{}{
		"started":       s.started,
		"backend":       s.backend,
		"records":       records,
		"nearbyQueries": s.queries.Load(),
		"radarQueries":  s.radars.Load(),
		"defaultRadius": s.defaultRadius,
		"maxRadius":     s.maxRadius,
	}
}

// DefaultRadius returns the radius used when a query omits it.
func (s *Service) DefaultRadius() float64 { return s.defaultRadius }

// AvatarURL derives the avatar image URL for a username. Spaces are encoded
// as %20 so the seed survives a round trip through the image service.
func AvatarURL(username string) string {
	return avatarBaseURL + strings.ReplaceAll(url.QueryEscape(username), "+", "%20")
}

func validateUpdate(u model.LocationUpdate) error {
	if u.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	if u.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidArgument)
	}
	return geo.Coordinate{Latitude: u.Latitude, Longitude: u.Longitude}.Validate()
}
