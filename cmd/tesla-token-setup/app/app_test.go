package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/autopeer-io/tesla-exporter/cmd/tesla-token-setup/app/options"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/token"
)

func teslaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/v3/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "code-1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":28800}`))
	})
	mux.HandleFunc("/api/1/vehicles", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"response":[{"id":1,"vin":"5YJ3E1EA7KF000001","display_name":"Roadrunner","state":"online"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupOptions(t *testing.T, base string) *options.SetupOptions {
	t.Helper()
	opts := options.NewSetupOptions()
	opts.FleetOptions.ClientID = "client"
	opts.FleetOptions.ClientSecret = "secret"
	opts.FleetOptions.APIBase = base
	opts.FleetOptions.AuthBase = base
	opts.FleetOptions.TokenBase = base
	opts.TokenOptions.FilePath = filepath.Join(t.TempDir(), "tokens", "token.json")
	return opts
}

func TestSetupSavesCredentialAndListsVehicles(t *testing.T) {
	srv := teslaServer(t)
	opts := setupOptions(t, srv.URL)

	in := strings.NewReader("https://localhost/callback?code=code-1&state=pasted\n")
	var out bytes.Buffer
	if err := Setup(context.Background(), opts, in, &out); err != nil {
		t.Fatalf("Setup() = %v\n%s", err, out.String())
	}

	for _, want := range []string{"/oauth2/v3/authorize?", "state parameter mismatch", "5YJ3E1EA7KF000001", "Roadrunner"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output is missing %q:\n%s", want, out.String())
		}
	}

	cred, err := token.NewFileStore(opts.TokenOptions.FilePath).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cred.AccessToken != "access-1" || cred.RefreshToken != "refresh-1" {
		t.Errorf("stored credential = %+v", cred)
	}
}

func TestSetupRejectsEmptyInput(t *testing.T) {
	srv := teslaServer(t)
	opts := setupOptions(t, srv.URL)

	var out bytes.Buffer
	if err := Setup(context.Background(), opts, strings.NewReader("\n"), &out); err == nil {
		t.Fatal("Setup() accepted an empty redirect url")
	}
}

func TestSetupExchangeFailureLeavesNoFile(t *testing.T) {
	srv := teslaServer(t)
	opts := setupOptions(t, srv.URL)

	in := strings.NewReader("https://localhost/callback?code=wrong\n")
	var out bytes.Buffer
	if err := Setup(context.Background(), opts, in, &out); err == nil {
		t.Fatal("Setup() succeeded with a rejected code")
	}
	if _, err := token.NewFileStore(opts.TokenOptions.FilePath).Load(context.Background()); err == nil {
		t.Error("credential written after a failed exchange")
	}
}
