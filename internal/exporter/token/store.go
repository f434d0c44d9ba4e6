package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
)

const fileMode os.FileMode = 0o600

// record is the on-disk layout. Timestamps are unix seconds with a fractional part.
type record struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type,omitempty"`
	ExpiresAt    float64 `json:"expires_at"`
	Scope        string  `json:"scope,omitempty"`
	CreatedAt    float64 `json:"created_at,omitempty"`
}

// FileStore keeps the credential in a single JSON file.
type FileStore struct {
	path string

	// rename moves the finished temporary file into place.
	rename func(oldpath, newpath string) error
}

var _ core.TokenStore = (*FileStore)(nil)

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, rename: os.Rename}
}

// Path returns the file the store reads and writes.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the stored credential. A missing file yields core.ErrCredentialMissing.
func (s *FileStore) Load(_ context.Context) (*model.Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrCredentialMissing
	}
	if err != nil {
		return nil, core.NewError(core.KindConfig, "token.load", err)
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, core.NewError(core.KindConfig, "token.load", fmt.Errorf("decode %s: %w", s.path, err))
	}
	if r.AccessToken == "" && r.RefreshToken == "" {
		return nil, core.NewError(core.KindAuthMissing, "token.load", fmt.Errorf("%s holds no token", s.path))
	}

	return &model.Credential{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresAt:    fromUnix(r.ExpiresAt),
		Scope:        r.Scope,
		CreatedAt:    fromUnix(r.CreatedAt),
	}, nil
}

// Save replaces the stored credential. The record is written in full to a temporary
// file in the same directory, synced and renamed over the previous file, so the old
// record stays intact until the rename succeeds.
func (s *FileStore) Save(_ context.Context, cred *model.Credential) (err error) {
	if cred == nil {
		return fmt.Errorf("nil credential")
	}

	created := cred.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	data, err := json.MarshalIndent(record{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.Type(),
		ExpiresAt:    toUnix(cred.ExpiresAt),
		Scope:        cred.Scope,
		CreatedAt:    toUnix(created),
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary token file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temporary token file: %w", err)
	}
	if err = tmp.Chmod(fileMode); err != nil {
		return fmt.Errorf("chmod temporary token file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temporary token file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temporary token file: %w", err)
	}
	if err = s.rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

func toUnix(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnix(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
