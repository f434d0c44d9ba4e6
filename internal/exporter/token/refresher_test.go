package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
)

func newTokenServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuth2RefresherSuccess(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "r0" {
			t.Errorf("refresh_token = %q", got)
		}
		if got := r.PostForm.Get("client_id"); got != "cid" {
			t.Errorf("client_id = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","token_type":"Bearer","expires_in":28800,"scope":"openid vehicle_device_data"}`))
	})

	now := time.Unix(1_700_000_000, 0)
	r := NewOAuth2Refresher("cid", "secret", srv.URL+"/oauth2/v3/token", srv.Client(), clocktesting.NewFakeClock(now))

	cred, err := r.Refresh(context.Background(), "r0")
	if err != nil {
		t.Fatalf("Refresh() = %v", err)
	}
	if cred.AccessToken != "a1" || cred.RefreshToken != "r1" || cred.Scope != "openid vehicle_device_data" {
		t.Errorf("Refresh() = %+v", cred)
	}
	if want := now.Add(8 * time.Hour); !cred.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want capture time + expires_in = %v", cred.ExpiresAt, want)
	}
}

func TestOAuth2RefresherClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		header    map[string]string
		wantKind  core.Kind
		wantRetry time.Duration
	}{
		{name: "invalid grant", status: http.StatusBadRequest, body: `{"error":"invalid_grant","error_description":"refresh token revoked"}`, wantKind: core.KindAuthRevoked},
		{name: "unauthorized client", status: http.StatusUnauthorized, body: `{"error":"unauthorized_client"}`, wantKind: core.KindAuthRevoked},
		{name: "request timeout", status: http.StatusRequestTimeout, body: `{}`, wantKind: core.KindTimeout},
		{name: "forbidden without error code", status: http.StatusForbidden, body: `<html>denied</html>`, wantKind: core.KindAuthRejected},
		{name: "bad request without error code", status: http.StatusBadRequest, body: `{}`, wantKind: core.KindAuthRejected},
		{name: "server error", status: http.StatusBadGateway, body: `{"error":"upstream"}`, wantKind: core.KindServerError},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, header: map[string]string{"Retry-After": "42"}, wantKind: core.KindRateLimited, wantRetry: 42 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			r := NewOAuth2Refresher("cid", "secret", srv.URL, srv.Client(), nil)
			_, err := r.Refresh(context.Background(), "r0")
			if got := core.KindOf(err); got != tt.wantKind {
				t.Fatalf("kind = %q (%v), want %q", got, err, tt.wantKind)
			}
			if got := core.RetryAfter(err); got != tt.wantRetry {
				t.Errorf("RetryAfter = %v, want %v", got, tt.wantRetry)
			}
		})
	}
}

func TestOAuth2RefresherNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := NewOAuth2Refresher("cid", "secret", url, &http.Client{Timeout: time.Second}, nil)
	_, err := r.Refresh(context.Background(), "r0")
	if got := core.KindOf(err); got.Class() != core.ClassTransient {
		t.Errorf("kind = %q (%v), want a transient kind", got, err)
	}
}

func TestOAuth2RefresherWithoutRefreshToken(t *testing.T) {
	r := NewOAuth2Refresher("cid", "secret", "http://127.0.0.1:1", nil, nil)
	if _, err := r.Refresh(context.Background(), ""); core.KindOf(err) != core.KindAuthRevoked {
		t.Errorf("Refresh(\"\") = %v, want auth_revoked", err)
	}
}
