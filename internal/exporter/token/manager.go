package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/tesla-exporter/internal/exporter/core"
	"github.com/autopeer-io/tesla-exporter/internal/exporter/core/model"
	"github.com/autopeer-io/tesla-exporter/pkg/log"
)

const (
	// DefaultRefreshMargin is the remaining lifetime below which a credential is refreshed.
	DefaultRefreshMargin = 5 * time.Minute

	// DefaultRefreshTimeout bounds a refresh call, including persisting the result.
	DefaultRefreshTimeout = 30 * time.Second

	refreshKey = "refresh"
)

// Manager hands out valid credentials, refreshing and persisting them as needed.
// At most one refresh is in flight; concurrent callers share its result.
type Manager struct {
	store     core.TokenStore
	refresher Refresher
	clock     clock.PassiveClock
	margin    time.Duration
	timeout   time.Duration
	observe   func(result string)
	logger    log.Logger

	group singleflight.Group

	mu   sync.RWMutex
	cred *model.Credential
	// revoked is the refresh token the issuer rejected. It is never sent again.
	revoked string
	// unsaved is set when a refreshed credential could not be persisted.
	unsaved bool
}

var _ core.CredentialProvider = (*Manager)(nil)

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock sets the clock used for expiry decisions.
func WithClock(clk clock.PassiveClock) ManagerOption {
	return func(m *Manager) {
		m.clock = clk
	}
}

// WithRefreshMargin sets the safety margin. Non-positive values are ignored.
func WithRefreshMargin(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.margin = d
		}
	}
}

// WithRefreshTimeout bounds each refresh.
func WithRefreshTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithRefreshObserver is called once per refresh call with "success" or the error kind.
func WithRefreshObserver(fn func(result string)) ManagerOption {
	return func(m *Manager) {
		m.observe = fn
	}
}

// NewManager creates a Manager. The store is read lazily on first demand.
func NewManager(store core.TokenStore, refresher Refresher, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		clock:     clock.RealClock{},
		margin:    DefaultRefreshMargin,
		timeout:   DefaultRefreshTimeout,
		observe:   func(string) {},
		logger:    log.WithName("token"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Credential returns a credential with more than the refresh margin left.
func (m *Manager) Credential(ctx context.Context) (*model.Credential, error) {
	cred, err := m.current(ctx)
	if err != nil {
		return nil, err
	}
	m.persistPending(ctx)

	if cred.Usable(m.clock.Now(), m.margin) {
		return cred, nil
	}
	return m.refresh(ctx, cred.AccessToken)
}

// Refresh forces a refresh after the server rejected the access token rejected.
func (m *Manager) Refresh(ctx context.Context, rejected string) (*model.Credential, error) {
	if _, err := m.current(ctx); err != nil {
		return nil, err
	}
	return m.refresh(ctx, rejected)
}

// Reload re-reads the store and adopts its credential when it supersedes the one held
// in memory. It is called when the token file changes on disk.
func (m *Manager) Reload(ctx context.Context) error {
	loaded, err := m.store.Load(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.adopt(loaded) {
		m.logger.Info("Loaded credential from store", "expiresAt", loaded.ExpiresAt)
	}
	return nil
}

// current returns the credential held in memory, loading it on first use. While the
// held refresh token is known to be revoked the store is consulted again on every call
// so that a credential written by the setup tool is picked up without a restart.
func (m *Manager) current(ctx context.Context) (*model.Credential, error) {
	m.mu.RLock()
	cred, revoked := m.cred, m.revoked
	m.mu.RUnlock()

	if cred != nil && (revoked == "" || cred.RefreshToken != revoked) {
		return cred, nil
	}

	loaded, err := m.store.Load(ctx)
	if err != nil {
		if cred == nil {
			return nil, err
		}
		return nil, m.revokedError()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.adopt(loaded)
	if m.revoked != "" && m.cred.RefreshToken == m.revoked {
		return nil, m.revokedError()
	}
	return m.cred, nil
}

// adopt replaces the held credential with loaded when nothing is held, when the held
// one is revoked or when loaded lives longer. Callers hold m.mu.
func (m *Manager) adopt(loaded *model.Credential) bool {
	cur := m.cred
	switch {
	case cur == nil:
	case m.revoked != "" && cur.RefreshToken == m.revoked && loaded.RefreshToken != m.revoked:
		m.logger.Info("Found a new refresh token, resuming")
	case loaded.AccessToken != cur.AccessToken && loaded.ExpiresAt.After(cur.ExpiresAt):
	default:
		return false
	}

	m.cred = loaded
	if loaded.RefreshToken != m.revoked {
		m.revoked = ""
	}
	m.unsaved = false
	return true
}

func (m *Manager) revokedError() error {
	return core.NewError(core.KindAuthRevoked, "token.credential",
		fmt.Errorf("refresh token was rejected by the issuer, run the token setup again"))
}

// refresh performs a single shared refresh. The refresh itself is detached from the
// caller's context so that one caller giving up does not fail the others.
func (m *Manager) refresh(ctx context.Context, rejected string) (*model.Credential, error) {
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		return m.doRefresh(context.WithoutCancel(ctx), rejected)
	})

	select {
	case <-ctx.Done():
		return nil, core.Classify("token.refresh", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.Credential), nil
	}
}

func (m *Manager) doRefresh(ctx context.Context, rejected string) (*model.Credential, error) {
	m.mu.RLock()
	cur, revoked := m.cred, m.revoked
	m.mu.RUnlock()

	// Another flight already replaced the rejected token.
	if cur.AccessToken != rejected && cur.Usable(m.clock.Now(), m.margin) {
		return cur, nil
	}
	if revoked != "" && cur.RefreshToken == revoked {
		return nil, m.revokedError()
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.logger.Debug("Refreshing access token", "remaining", cur.Remaining(m.clock.Now()).Round(time.Second))

	next, err := m.refresher.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		kind := core.KindOf(err)
		m.observe(string(kind))
		if kind == core.KindAuthRevoked {
			m.mu.Lock()
			m.revoked = cur.RefreshToken
			m.mu.Unlock()
			m.logger.Error(err, "Refresh token revoked, waiting for a new credential")
		} else {
			m.logger.Warn("Token refresh failed", "error", err, "errorType", kind)
		}
		return nil, err
	}
	m.observe("success")

	// Issuers that do not rotate refresh tokens omit it from the response.
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}
	if next.Scope == "" {
		next.Scope = cur.Scope
	}

	saveErr := m.store.Save(ctx, next)

	m.mu.Lock()
	m.cred = next
	m.revoked = ""
	m.unsaved = saveErr != nil
	m.mu.Unlock()

	if saveErr != nil {
		// The previous refresh token is likely invalid now; keep the new one in memory
		// and retry persisting on the next demand.
		m.logger.Error(saveErr, "Failed to persist refreshed credential")
	} else {
		m.logger.Info("Access token refreshed", "expiresAt", next.ExpiresAt)
	}
	return next, nil
}

// persistPending retries a failed save of the held credential.
func (m *Manager) persistPending(ctx context.Context) {
	m.mu.RLock()
	cred, unsaved := m.cred, m.unsaved
	m.mu.RUnlock()
	if !unsaved {
		return
	}

	if err := m.store.Save(ctx, cred); err != nil {
		m.logger.Warn("Credential still not persisted", "error", err)
		return
	}

	m.mu.Lock()
	if m.cred == cred {
		m.unsaved = false
	}
	m.mu.Unlock()
	m.logger.Info("Persisted refreshed credential")
}
