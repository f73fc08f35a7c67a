package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
	"github.com/okian/loka/pkg/logger"
)

// maxBodyBytes bounds the size of a single update request.
const maxBodyBytes = 64 << 10

var errBatchUpdate = errors.New("Batch updates are not allowed. Send one user at a time.")

// LocationHandler serves the /location routes.
type LocationHandler struct {
	deps    Dependencies
	schemas requestSchemas
	log     logger.Logger
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(deps Dependencies, schemas requestSchemas, log logger.Logger) *LocationHandler {
	return &LocationHandler{deps: deps, schemas: schemas, log: log}
}

type updateResponse struct {
	Message string               `json:"message"`
	Created bool                 `json:"created"`
	User    model.LocationRecord `json:"user"`
}

type tagRequest struct {
	UserID string `json:"userId"`
	Tag    string `json:"tag"`
}

type tagResponse struct {
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

// HandleUpdate handles POST /location/update requests.
func (h *LocationHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_location"
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, err))
		return
	}

	doc, err := parseDocument(body)
	if err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if _, batch := doc.([]any); batch {
		fail(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, errBatchUpdate))
		return
	}

	var req model.LocationUpdate
	if err := h.schemas.decode(schemaLocationUpdate, body, &req); err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, kindOf(err), err))
		return
	}

	rec, created, err := h.deps.UpdateLocation(r.Context(), req)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{Message: "User location updated", Created: created, User: rec})
}

// HandleTag handles POST /location/tag requests.
func (h *LocationHandler) HandleTag(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_tag"
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, ErrBadRequest, err))
		return
	}

	var req tagRequest
	if err := h.schemas.decode(schemaTagUpdate, body, &req); err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, kindOf(err), err))
		return
	}

	rec, err := h.deps.UpdateTag(r.Context(), req.UserID, req.Tag)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, tagResponse{Message: "Tag updated successfully", Tag: rec.Tag})
}

// HandleAll handles GET /location/all requests.
func (h *LocationHandler) HandleAll(w http.ResponseWriter, r *http.Request) {
	const op = "api.all_locations"
	records, err := h.deps.All(r.Context())
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleUser handles GET /location/user/{id} requests.
func (h *LocationHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_user"
	id := r.PathValue("id")
	if id == "" {
		fail(r.Context(), h.log, w, NewKind(op, ErrBadRequest))
		return
	}
	rec, err := h.deps.User(r.Context(), id)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleNearby handles GET /location/nearby?lat=..&lon=..&radius=.. requests.
// A missing radius selects the service default.
func (h *LocationHandler) HandleNearby(w http.ResponseWriter, r *http.Request) {
	const op = "api.nearby"
	q := r.URL.Query()
	ref, err := referenceFromQuery(q.Get("lat"), q.Get("lon"))
	if err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, ErrInvalidArgument, err))
		return
	}
	radius, err := optionalFloat("radius", q.Get("radius"))
	if err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, ErrInvalidArgument, err))
		return
	}

	users, err := h.deps.Nearby(r.Context(), ref, radius)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleRadar handles GET /location/radar?lat=..&lon=..&radius=..&width=..
// requests. It returns the nearby users and their marker positions.
func (h *LocationHandler) HandleRadar(w http.ResponseWriter, r *http.Request) {
	const op = "api.radar"
	q := r.URL.Query()
	ref, err := referenceFromQuery(q.Get("lat"), q.Get("lon"))
	if err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, ErrInvalidArgument, err))
		return
	}
	radius, err := optionalFloat("radius", q.Get("radius"))
	if err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, ErrInvalidArgument, err))
		return
	}
	width, err := optionalFloat("width", q.Get("width"))
	if err != nil {
		fail(r.Context(), h.log, w, WrapKind(op, ErrInvalidArgument, err))
		return
	}

	view, err := h.deps.Radar(r.Context(), ref, radius, width)
	if err != nil {
		fail(r.Context(), h.log, w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func referenceFromQuery(lat, lon string) (geo.Coordinate, error) {
	if lat == "" || lon == "" {
		return geo.Coordinate{}, errors.New("Missing lat/lon query params")
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("lat %q is not a number", lat)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("lon %q is not a number", lon)
	}
	return geo.NewCoordinate(la, lo)
}

// optionalFloat parses a query value, returning zero when it is absent.
func optionalFloat(name, raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", name, raw)
	}
	if v <= 0 || !geo.IsFinite(v) {
		return 0, fmt.Errorf("%s must be a positive number, got %q", name, raw)
	}
	return v, nil
}

func kindOf(err error) error {
	if errors.Is(err, ErrInvalidArgument) {
		return ErrInvalidArgument
	}
	return ErrBadRequest
}
