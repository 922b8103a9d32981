package partner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Authenticator obtains a fresh bearer token. Satisfied by *Client.
type Authenticator interface {
	Login(ctx context.Context) (string, error)
}

// TokenManager keeps a process-wide bearer token fresh on a fixed cadence.
// A failed refresh keeps serving the previous token: an actually-expired
// token surfaces as a partner error on the next submission and heals on the
// next tick.
type TokenManager struct {
	auth     Authenticator
	interval time.Duration
	log      zerolog.Logger

	mu       sync.RWMutex
	token    string
	issuedAt time.Time
}

func NewTokenManager(auth Authenticator, interval time.Duration, log zerolog.Logger) *TokenManager {
	return &TokenManager{
		auth:     auth,
		interval: interval,
		log:      log.With().Str("component", "token-manager").Logger(),
	}
}

// CurrentToken returns the last successfully obtained bearer string. Empty
// until the first refresh succeeds.
func (m *TokenManager) CurrentToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Start refreshes on every tick until ctx is cancelled. If no token was
// obtained yet (the caller did not refresh synchronously at startup), it
// refreshes once up front.
func (m *TokenManager) Start(ctx context.Context) {
	if m.CurrentToken() == "" {
		m.Refresh(ctx)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// Refresh requests a new token. On failure the stale token stays in place
// and the next attempt is the next fixed tick; there is no backoff.
func (m *TokenManager) Refresh(ctx context.Context) {
	token, err := m.auth.Login(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("token refresh failed, keeping previous token")
		return
	}

	m.mu.Lock()
	m.token = token
	m.issuedAt = time.Now()
	m.mu.Unlock()

	m.log.Info().Msg("partner token refreshed")
}
