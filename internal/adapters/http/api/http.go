// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Write operations.
	UpdateLocation(ctx context.Context, u model.LocationUpdate) (model.LocationRecord, bool, error)
	UpdateTag(ctx context.Context, userID, tag string) (model.LocationRecord, error)

	// Read operations.
	User(ctx context.Context, userID string) (model.LocationRecord, error)
	All(ctx context.Context) ([]model.LocationRecord, error)
	Nearby(ctx context.Context, ref geo.Coordinate, radiusMeters float64) ([]model.NearbyUser, error)
	Radar(ctx context.Context, ref geo.Coordinate, radiusMeters, viewportWidth float64) (model.RadarView, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	locationHandler *LocationHandler
	log             logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used by the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers. It fails only if the
// embedded request schemas do not compile.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) (*Server, error) {
	s := &Server{log: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.locationHandler = NewLocationHandler(deps, schemas, s.log)
	return s, nil
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	h := s.locationHandler
	mux.HandleFunc("POST /location/update", MetricsMiddleware(h.HandleUpdate, "update"))
	mux.HandleFunc("POST /location/tag", MetricsMiddleware(h.HandleTag, "tag"))
	mux.HandleFunc("GET /location/all", MetricsMiddleware(h.HandleAll, "all"))
	mux.HandleFunc("GET /location/nearby", MetricsMiddleware(h.HandleNearby, "nearby"))
	mux.HandleFunc("GET /location/radar", MetricsMiddleware(h.HandleRadar, "radar"))
	mux.HandleFunc("GET /location/user/{id}", MetricsMiddleware(h.HandleUser, "user"))
}

// Handler wraps next with the request-scoped middleware shared by every route.
func (s *Server) Handler(next http.Handler) http.Handler {
	return RequestID(CORS(next))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err using the status of its kind. Internal errors are logged
// and replaced by a generic message.
func fail(ctx context.Context, log logger.Logger, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed",
			logger.String("requestId", RequestIDFromContext(ctx)),
			logger.Error(err),
		)
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, errors.New(publicMessage(err)))
}

// publicMessage strips the operation and kind prefix from API errors.
func publicMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Err != nil {
			return apiErr.Err.Error()
		}
		return apiErr.Kind.Error()
	}
	return err.Error()
}
