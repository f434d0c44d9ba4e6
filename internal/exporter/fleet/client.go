package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

const (
	// DataEndpoints are requested explicitly; location_data is only returned when asked for.
	DataEndpoints = "charge_state;climate_state;drive_state;location_data;vehicle_state;vehicle_config"

	// maxBody bounds how much of a response is read.
	maxBody = 4 << 20

	defaultUserAgent = "tesla-exporter"
)

// Client is a Fleet API client. Each call makes at most two requests: the second
// only after a 401 and a forced credential refresh.
type Client struct {
	base      *url.URL
	http      *http.Client
	creds     core.CredentialProvider
	userAgent string
	logger    log.Logger
}

var _ core.VehicleAPI = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// NewClient creates a client for the regional API at apiBase.
func NewClient(apiBase string, creds core.CredentialProvider, timeout time.Duration, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(apiBase, "/"))
	if err != nil {
		return nil, core.NewError(core.KindConfig, "fleet.new", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, core.NewError(core.KindConfig, "fleet.new", fmt.Errorf("api base %q is not absolute", apiBase))
	}

	c := &Client{
		base:      base,
		http:      &http.Client{Timeout: timeout},
		creds:     creds,
		userAgent: defaultUserAgent,
		logger:    log.WithName("fleet"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    string          `json:"error"`
}

// ListVehicles returns the vehicles of the account.
func (c *Client) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	const op = "fleet.vehicles"

	raw, err := c.do(ctx, op, http.MethodGet, "/api/1/vehicles", nil, nil)
	if err != nil {
		return nil, err
	}

	var entries []struct {
		ID          int64  `json:"id"`
		VIN         string `json:"vin"`
		DisplayName string `json:"display_name"`
		State       string `json:"state"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, core.NewError(core.KindMalformedPayload, op, err)
	}

	vehicles := make([]model.Vehicle, 0, len(entries))
	for _, e := range entries {
		vehicles = append(vehicles, model.Vehicle{
			ID:          e.ID,
			VIN:         e.VIN,
			DisplayName: e.DisplayName,
			State:       model.ParseVehicleState(e.State),
		})
	}
	return vehicles, nil
}

// VehicleData fetches the full state of vehicle id. The raw response object is
// returned alongside the decoded one.
func (c *Client) VehicleData(ctx context.Context, id int64) (*model.VehicleData, json.RawMessage, error) {
	const op = "fleet.vehicle_data"

	q := url.Values{"endpoints": {DataEndpoints}}
	raw, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/api/1/vehicles/%d/vehicle_data", id), q, nil)
	if err != nil {
		return nil, nil, err
	}

	var data model.VehicleData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, core.NewError(core.KindMalformedPayload, op, err)
	}
	if invalid := data.InvalidFields(); len(invalid) > 0 {
		c.logger.Warn("Ignoring vehicle data fields with unexpected types", "vehicle", id, "fields", invalid)
	}
	return &data, raw, nil
}

// WakeUp asks vehicle id to wake and returns the state it reports right away.
func (c *Client) WakeUp(ctx context.Context, id int64) (model.VehicleState, error) {
	const op = "fleet.wake_up"

	raw, err := c.do(ctx, op, http.MethodPost, fmt.Sprintf("/api/1/vehicles/%d/wake_up", id), nil, nil)
	if err != nil {
		return model.StateUnknown, err
	}

	var v struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return model.StateUnknown, core.NewError(core.KindMalformedPayload, op, err)
	}
	return model.ParseVehicleState(v.State), nil
}

// do sends one authenticated request and returns the response member of the envelope.
// A non-nil payload is sent as a JSON body.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte) (json.RawMessage, error) {
	cred, err := c.creds.Credential(ctx)
	if err != nil {
		return nil, err
	}

	status, body, header, err := c.send(ctx, op, method, path, query, payload, cred)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.logger.Info("Access token rejected, refreshing", "op", op)
		cred, err = c.creds.Refresh(ctx, cred.AccessToken)
		if err != nil {
			return nil, err
		}
		status, body, header, err = c.send(ctx, op, method, path, query, payload, cred)
		if err != nil {
			return nil, err
		}
	}

	if err := classifyStatus(op, status, header, body); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, core.NewError(core.KindMalformedPayload, op, err)
	}
	if len(env.Response) == 0 || string(env.Response) == "null" {
		if env.Error != "" {
			return nil, core.NewError(core.KindUnsupportedPayload, op, errors.New(env.Error))
		}
		return nil, core.NewError(core.KindMalformedPayload, op, errors.New("response member missing"))
	}
	return env.Response, nil
}

func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, payload []byte,
	cred *model.Credential) (int, []byte, http.Header, error) {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return 0, nil, nil, core.NewError(core.KindUnexpected, op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", cred.Type()+" "+cred.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, core.Classify(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, nil, core.Classify(op, err)
	}

	c.logger.Debug("Fleet API response", "op", op, "status", resp.StatusCode, "duration", time.Since(start))
	return resp.StatusCode, body, resp.Header, nil
}

// classifyStatus maps a response status onto the error taxonomy.
func classifyStatus(op string, status int, header http.Header, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return core.NewError(core.KindAuthRejected, op, statusError(status, body))
	case status == http.StatusRequestTimeout:
		// The vehicle did not answer the API in time, usually because it went offline.
		return core.NewError(core.KindTimeout, op, statusError(status, body))
	case status == http.StatusTooManyRequests:
		e := core.NewError(core.KindRateLimited, op, statusError(status, body))
		e.RetryAfter = core.ParseRetryAfter(header.Get("Retry-After"))
		return e
	case status >= 500:
		return core.NewError(core.KindServerError, op, statusError(status, body))
	default:
		return core.NewError(core.KindUnsupportedPayload, op, statusError(status, body))
	}
}

func statusError(status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if snippet == "" {
		return fmt.Errorf("status %d", status)
	}
	return fmt.Errorf("status %d: %s", status, snippet)
}
