// Package client is a small HTTP client for the location API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/loka/internal/domain/geo"
	"github.com/okian/loka/internal/domain/model"
)

// ErrUnexpectedStatus is returned for any non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError carries the status and message of a failed request.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v %d: %s", ErrUnexpectedStatus, e.Code, e.Message)
}

// Unwrap lets errors.Is match ErrUnexpectedStatus.
func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Client wraps http.Client with timeout
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks that the service answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil, nil)
}

// UpdateLocation reports one position. Returns true when the user was new.
func (c *Client) UpdateLocation(ctx context.Context, u model.LocationUpdate) (bool, error) {
	var resp struct {
		Created bool `json:"created"`
	}
	if err := c.post(ctx, "/location/update", u, &resp); err != nil {
		return false, err
	}
	return resp.Created, nil
}

// UpdateTag sets the tag of a known user.
func (c *Client) UpdateTag(ctx context.Context, userID, tag string) error {
	body := map[string]string{"userId": userID, "tag": tag}
	return c.post(ctx, "/location/tag", body, nil)
}

// All lists every known user.
func (c *Client) All(ctx context.Context) ([]model.LocationRecord, error) {
	var out []model.LocationRecord
	if err := c.get(ctx, "/location/all", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Nearby lists the users within radiusMeters of ref. Zero selects the
// server default.
func (c *Client) Nearby(ctx context.Context, ref geo.Coordinate, radiusMeters float64) ([]model.NearbyUser, error) {
	q := url.Values{}
	q.Set("lat", formatFloat(ref.Latitude))
	q.Set("lon", formatFloat(ref.Longitude))
	if radiusMeters > 0 {
		q.Set("radius", formatFloat(radiusMeters))
	}

	var out []model.NearbyUser
	if err := c.get(ctx, "/location/nearby", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, dst)
}

func (c *Client) post(ctx context.Context, path string, body, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
