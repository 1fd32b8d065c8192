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

	"github.com/dmitrijs2005/placesync/internal/client/models"
	"github.com/dmitrijs2005/placesync/internal/common"
)

// TokenSource yields the bearer token for the current user.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

type listResponse struct {
	Places []RemotePlace `json:"places"`
	Cursor int64         `json:"cursor"`
}

type acceptedResponse struct {
	AcceptedVersion int64 `json:"accepted_version"`
}

type conflictResponse struct {
	ServerVersion int64        `json:"server_version"`
	Place         *RemotePlace `json:"place"`
}

type pingResponse struct {
	Status string `json:"status"`
}

// HTTPClient talks to the places service over REST/JSON.
type HTTPClient struct {
	baseURL  string
	tokens   TokenSource
	http     *http.Client
	deviceID string
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

// WithDeviceID sends id with every request so the server can tell which
// install wrote last.
func WithDeviceID(id string) Option {
	return func(h *HTTPClient) { h.deviceID = id }
}

func NewHTTPClient(baseURL string, tokens TokenSource, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *HTTPClient) ListPlaces(ctx context.Context, since int64) ([]*models.PlaceRecord, int64, error) {
	var resp listResponse
	q := url.Values{"since": []string{strconv.FormatInt(since, 10)}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/places", q, nil, &resp); err != nil {
		return nil, 0, err
	}

	places := make([]*models.PlaceRecord, 0, len(resp.Places))
	for _, p := range resp.Places {
		places = append(places, p.ToRecord())
	}
	return places, resp.Cursor, nil
}

func (c *HTTPClient) GetPlace(ctx context.Context, id string) (*models.PlaceRecord, error) {
	var resp RemotePlace
	if err := c.do(ctx, http.MethodGet, placePath(id), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ToRecord(), nil
}

func (c *HTTPClient) CreateOrUpdatePlace(ctx context.Context, p *models.PlaceRecord) (int64, error) {
	var resp acceptedResponse
	if err := c.do(ctx, http.MethodPut, placePath(p.ID), nil, FromRecord(p), &resp); err != nil {
		return 0, err
	}
	return resp.AcceptedVersion, nil
}

func (c *HTTPClient) DeletePlace(ctx context.Context, id string, version int64, modifiedAt time.Time) (int64, error) {
	var resp acceptedResponse
	q := url.Values{"version": []string{strconv.FormatInt(version, 10)}}
	if !modifiedAt.IsZero() {
		q.Set("last_modified_at", modifiedAt.UTC().Format(time.RFC3339Nano))
	}
	if err := c.do(ctx, http.MethodDelete, placePath(id), q, nil, &resp); err != nil {
		return 0, err
	}
	return resp.AcceptedVersion, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp pingResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/ping", nil, nil, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	var resp SyncStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/sync/status", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func placePath(id string) string {
	return "/api/v1/places/" + url.PathEscape(id)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.deviceID != "" {
		req.Header.Set(common.DeviceIDHeaderName, c.deviceID)
	}

	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		if token != "" {
			req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			// a truncated body is a transport problem, retry later
			return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
		}
		return nil
	}

	return mapStatus(resp)
}

func (c *HTTPClient) mapTransportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func mapStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		var cr conflictResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			return fmt.Errorf("decode conflict: %w", err)
		}
		ce := &ConflictError{ServerVersion: cr.ServerVersion}
		if cr.Place != nil {
			ce.ServerRecord = cr.Place.ToRecord()
		}
		return ce
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}
