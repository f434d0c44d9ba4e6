package fleet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

// fakeCreds hands out "token-N" and bumps N on every forced refresh.
type fakeCreds struct {
	mu        sync.Mutex
	n         int
	refreshes []string
}

func (f *fakeCreds) token() string {
	return "token-" + strconv.Itoa(f.n)
}

func (f *fakeCreds) Credential(context.Context) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.Credential{AccessToken: f.token(), TokenType: "Bearer"}, nil
}

func (f *fakeCreds) Refresh(_ context.Context, rejected string) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, rejected)
	f.n++
	return &model.Credential{AccessToken: f.token(), TokenType: "Bearer"}, nil
}

func newTestClient(t *testing.T, h http.Handler) (*Client, *fakeCreds) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	creds := &fakeCreds{}
	c, err := NewClient(srv.URL, creds, 2*time.Second, WithUserAgent("tesla-exporter/test"))
	if err != nil {
		t.Fatalf("NewClient() = %v", err)
	}
	return c, creds
}

func TestListVehicles(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/1/vehicles" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-0" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != "tesla-exporter/test" {
			t.Errorf("User-Agent = %q", got)
		}
		_, _ = w.Write([]byte(`{"response":[{"id":1001,"vin":"5YJ3E1EA7KF000001","display_name":"Roadrunner","state":"asleep"},{"id":1002,"vin":"5YJ3E1EA7KF000002","display_name":"","state":"shutdown"}],"count":2}`))
	}))

	got, err := c.ListVehicles(context.Background())
	if err != nil {
		t.Fatalf("ListVehicles() = %v", err)
	}
	want := []model.Vehicle{
		{ID: 1001, VIN: "5YJ3E1EA7KF000001", DisplayName: "Roadrunner", State: model.StateAsleep},
		{ID: 1002, VIN: "5YJ3E1EA7KF000002", State: model.StateUnknown},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListVehicles() mismatch (-want +got):\n%s", diff)
	}
}

func TestVehicleDataRequestsLocation(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/1/vehicles/1001/vehicle_data" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("endpoints"); got != DataEndpoints {
			t.Errorf("endpoints = %q", got)
		}
		_, _ = w.Write([]byte(`{"response":{"id":1001,"vin":"V","display_name":"Car","charge_state":{"battery_level":80,"charging_state":"Charging"},"drive_state":{"speed":null}}}`))
	}))

	data, raw, err := c.VehicleData(context.Background(), 1001)
	if err != nil {
		t.Fatalf("VehicleData() = %v", err)
	}
	if data.ChargeState == nil || *data.ChargeState.BatteryLevel != 80 {
		t.Errorf("ChargeState = %+v", data.ChargeState)
	}
	if data.DriveState == nil || data.DriveState.Speed != nil {
		t.Errorf("DriveState.Speed should decode as nil, got %+v", data.DriveState)
	}
	if data.ClimateState != nil {
		t.Errorf("ClimateState should be absent")
	}
	if len(raw) == 0 || raw[0] != '{' {
		t.Errorf("raw response = %q", raw)
	}
}

func TestVehicleDataSkipsMistypedFields(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"id":1001,"vin":"V","charge_state":{"battery_level":80},"vehicle_state":{"locked":true,"center_display_state":"on"}}}`))
	}))

	data, _, err := c.VehicleData(context.Background(), 1001)
	if err != nil {
		t.Fatalf("VehicleData() = %v", err)
	}
	if data.ChargeState == nil || data.ChargeState.BatteryLevel == nil || *data.ChargeState.BatteryLevel != 80 {
		t.Errorf("ChargeState = %+v", data.ChargeState)
	}
	vs := data.VehicleState
	if vs == nil || vs.Locked == nil || !*vs.Locked || vs.CenterDisplayState != nil {
		t.Errorf("VehicleState = %+v", vs)
	}
	if diff := cmp.Diff([]string{"vehicle_state.center_display_state"}, data.InvalidFields()); diff != "" {
		t.Errorf("InvalidFields() mismatch (-want +got):\n%s", diff)
	}
}

func TestVehicleDataNotAnObject(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"vehicle unavailable"}`))
	}))

	if _, _, err := c.VehicleData(context.Background(), 1001); core.KindOf(err) != core.KindMalformedPayload {
		t.Errorf("VehicleData() = %v, want malformed_payload", err)
	}
}

func TestUnauthorizedRefreshesOnceAndRetries(t *testing.T) {
	c, creds := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer token-0" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"response":{"state":"online"}}`))
	}))

	state, err := c.WakeUp(context.Background(), 7)
	if err != nil {
		t.Fatalf("WakeUp() = %v", err)
	}
	if state != model.StateOnline {
		t.Errorf("state = %s", state)
	}
	if diff := cmp.Diff([]string{"token-0"}, creds.refreshes); diff != "" {
		t.Errorf("refreshes mismatch (-want +got):\n%s", diff)
	}
}

func TestSecondUnauthorizedIsRejected(t *testing.T) {
	c, creds := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.ListVehicles(context.Background())
	if got := core.KindOf(err); got != core.KindAuthRejected {
		t.Fatalf("kind = %q (%v), want auth_rejected", got, err)
	}
	if len(creds.refreshes) != 1 {
		t.Errorf("refreshes = %d, want exactly 1", len(creds.refreshes))
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		header    map[string]string
		wantKind  core.Kind
		wantRetry time.Duration
	}{
		{name: "vehicle unavailable", status: http.StatusRequestTimeout, body: `{"error":"vehicle unavailable"}`, wantKind: core.KindTimeout},
		{name: "rate limited", status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "17"}, wantKind: core.KindRateLimited, wantRetry: 17 * time.Second},
		{name: "server error", status: http.StatusServiceUnavailable, wantKind: core.KindServerError},
		{name: "not found", status: http.StatusNotFound, wantKind: core.KindUnsupportedPayload},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantKind: core.KindMalformedPayload},
		{name: "null response", status: http.StatusOK, body: `{"response":null}`, wantKind: core.KindMalformedPayload},
		{name: "wrong shape", status: http.StatusOK, body: `{"response":{"id":1}}`, wantKind: core.KindMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := c.ListVehicles(context.Background())
			if got := core.KindOf(err); got != tt.wantKind {
				t.Fatalf("kind = %q (%v), want %q", got, err, tt.wantKind)
			}
			if got := core.RetryAfter(err); got != tt.wantRetry {
				t.Errorf("RetryAfter = %v, want %v", got, tt.wantRetry)
			}
		})
	}
}

func TestRequestTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewClient(srv.URL, &fakeCreds{}, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.ListVehicles(context.Background())
	if got := core.KindOf(err); got != core.KindTimeout {
		t.Errorf("kind = %q (%v), want timeout", got, err)
	}
}

func TestNewClientRejectsRelativeBase(t *testing.T) {
	if _, err := NewClient("fleet-api.local", &fakeCreds{}, time.Second); core.KindOf(err) != core.KindConfig {
		t.Errorf("NewClient() = %v, want config error", err)
	}
}

func TestRegisterPartner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/1/partner_accounts" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer partner-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["domain"] != "partner.example.com" {
			t.Errorf("body = %v, %v", body, err)
		}
		_, _ = w.Write([]byte(`{"response":{"domain":"partner.example.com"}}`))
	}))
	defer srv.Close()

	creds := &TokenSourceCredentials{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "partner-token"})}
	c, err := NewClient(srv.URL, creds, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := c.RegisterPartner(context.Background(), "partner.example.com")
	if err != nil {
		t.Fatalf("RegisterPartner() = %v", err)
	}
	if string(raw) != `{"domain":"partner.example.com"}` {
		t.Errorf("response = %s", raw)
	}
}

func TestRegisterPartnerMissingKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Public key download failed"}`))
	}))
	defer srv.Close()

	creds := &TokenSourceCredentials{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "partner-token"})}
	c, err := NewClient(srv.URL, creds, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.RegisterPartner(context.Background(), "partner.example.com"); core.KindOf(err) != core.KindUnsupportedPayload {
		t.Errorf("RegisterPartner() = %v, want unsupported_payload", err)
	}
}
