package netatmo

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// TokenUpdater is notified after every successful token refresh so the new
// credential can be persisted outside the library. The callback runs
// synchronously while the manager's lock is held; it must not call back
// into the TokenManager.
type TokenUpdater interface {
	OnTokenRefreshed(cred *Credential)
}

// TokenUpdaterFunc adapts a function to the TokenUpdater interface.
type TokenUpdaterFunc func(cred *Credential)

// OnTokenRefreshed implements TokenUpdater.
func (f TokenUpdaterFunc) OnTokenRefreshed(cred *Credential) {
	f(cred)
}

// WithTokenUpdater registers the updater a TokenManager notifies after each
// successful refresh. It has no effect on a static-token Client.
func WithTokenUpdater(updater TokenUpdater) Option {
	return func(c *Client) {
		c.tokenUpdater = updater
	}
}

// TokenManager wraps a Client and owns exactly one Credential, keeping it
// valid across API calls. Before each call it checks the margin-adjusted
// expiry and performs at most one refresh; the original call then proceeds
// with the new token. A failed refresh latches the manager: every
// subsequent call fails fast with an AuthError until the caller
// re-authenticates.
type TokenManager struct {
	*Client
	config *OAuthConfig

	mu      sync.RWMutex
	cred    *Credential
	invalid bool

	// now is the manager's clock, replaceable in tests.
	now func() time.Time
}

// NewTokenManager creates a manager with no credential attached. Obtain one
// with Authenticate or ExchangeCode, or install a previously persisted one
// with SetCredential.
func NewTokenManager(config *OAuthConfig, opts ...Option) (*TokenManager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &TokenManager{
		Client: newBaseClient(opts...),
		config: config,
		now:    time.Now,
	}, nil
}

// Authenticate exchanges a username and password for a credential
// (resource-owner password grant).
func (m *TokenManager) Authenticate(ctx context.Context, username, password string) error {
	if username == "" {
		return &AuthError{Op: "authenticate", Err: ErrEmptyUsername}
	}

	cred, err := m.Client.exchangePassword(ctx, m.config, username, password)
	if err != nil {
		return err
	}

	m.install(cred)
	return nil
}

// ExchangeCode exchanges an authorization code, obtained by sending the
// user to AuthorizationURL, for a credential.
func (m *TokenManager) ExchangeCode(ctx context.Context, code string) error {
	if code == "" {
		return &AuthError{Op: "exchange", Err: ErrEmptyCode}
	}

	cred, err := m.Client.exchangeAuthCode(ctx, m.config, code)
	if err != nil {
		return err
	}

	m.install(cred)
	return nil
}

// AuthorizationURL returns the URL to send a user to for OAuth consent,
// built against this manager's base URL.
func (m *TokenManager) AuthorizationURL(state string) string {
	return buildAuthorizationURL(m.Client.authorizeURL(), m.config, state)
}

// SetCredential installs a credential obtained elsewhere, typically loaded
// from storage. It clears any previous refresh failure. A nil credential
// returns the manager to its unauthenticated state.
func (m *TokenManager) SetCredential(cred *Credential) {
	m.install(cred.clone())
}

// install makes cred the manager's current credential.
func (m *TokenManager) install(cred *Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.installLocked(cred)
}

func (m *TokenManager) installLocked(cred *Credential) {
	m.cred = cred
	m.invalid = false

	token := ""
	if cred != nil {
		token = cred.AccessToken
	}
	m.Client.SetToken(token)
}

// Credential returns a copy of the current credential, or nil before any
// grant has completed.
func (m *TokenManager) Credential() *Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred.clone()
}

// Valid reports whether an API call right now would proceed without a
// refresh.
func (m *TokenManager) Valid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.invalid && m.cred.ValidAt(m.now())
}

// NeedsReauthentication reports whether the manager can no longer help
// itself: no credential, no refresh token, or a refresh already failed.
func (m *TokenManager) NeedsReauthentication() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.invalid || !m.cred.HasRefreshToken()
}

// EnsureValidToken checks the credential and refreshes it if its
// margin-adjusted expiry has passed. It is called automatically before
// every API call issued through the manager.
func (m *TokenManager) EnsureValidToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureValidTokenLocked(ctx)
}

func (m *TokenManager) ensureValidTokenLocked(ctx context.Context) error {
	if m.invalid {
		return &AuthError{Op: "call", Err: ErrReauthRequired}
	}
	if m.cred == nil || m.cred.AccessToken == "" {
		return &AuthError{Op: "call", Err: ErrNotAuthenticated}
	}
	if m.cred.ValidAt(m.now()) {
		return nil
	}
	if !m.cred.HasRefreshToken() {
		return &AuthError{Op: "call", Err: ErrNoRefreshToken}
	}
	return m.refreshLocked(ctx)
}

// Refresh exchanges the current refresh token for a new credential,
// replacing every field and notifying the TokenUpdater. Callers normally
// never need this; EnsureValidToken refreshes on demand.
func (m *TokenManager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.invalid {
		return &AuthError{Op: "refresh", Err: ErrReauthRequired}
	}
	if m.cred == nil || m.cred.AccessToken == "" {
		return &AuthError{Op: "refresh", Err: ErrNotAuthenticated}
	}
	if !m.cred.HasRefreshToken() {
		return &AuthError{Op: "refresh", Err: ErrNoRefreshToken}
	}
	return m.refreshLocked(ctx)
}

// refreshLocked performs the refresh grant while holding the write lock, so
// concurrent callers cannot double-refresh or clobber a newer token with an
// older one. A failure latches the manager invalid.
func (m *TokenManager) refreshLocked(ctx context.Context) error {
	if m.logger != nil {
		m.logger.LogAttrs(ctx, slog.LevelDebug, "refreshing_token")
	}

	cred, err := m.Client.refreshCredential(ctx, m.config, m.cred.RefreshToken)
	if err != nil {
		m.invalid = true
		if m.logger != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "token_refresh_failed",
				slog.String("error", err.Error()),
			)
		}
		return err
	}

	m.installLocked(cred)

	if m.logger != nil {
		m.logger.LogAttrs(ctx, slog.LevelDebug, "token_refreshed",
			slog.Time("expires_at", cred.ExpiresAt),
		)
	}

	if m.tokenUpdater != nil {
		m.tokenUpdater.OnTokenRefreshed(cred.clone())
	}

	return nil
}

// AuthorizedPost issues an authenticated POST, refreshing the credential
// first when needed.
func (m *TokenManager) AuthorizedPost(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	if err := m.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return m.Client.AuthorizedPost(ctx, endpoint, params)
}

// --- Override Client methods to ensure a valid token before requests ---

// GetStationsData returns weather station data, refreshing the token first
// if needed.
func (m *TokenManager) GetStationsData(ctx context.Context, deviceID string) (*StationsData, error) {
	if err := m.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return m.Client.GetStationsData(ctx, deviceID)
}

// GetMeasure returns raw measurements, refreshing the token first if needed.
func (m *TokenManager) GetMeasure(ctx context.Context, req *MeasureRequest) (*MeasureData, error) {
	if err := m.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return m.Client.GetMeasure(ctx, req)
}

// GetHomeData returns camera home data, refreshing the token first if needed.
func (m *TokenManager) GetHomeData(ctx context.Context, homeID string, size int) (*HomeData, error) {
	if err := m.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return m.Client.GetHomeData(ctx, homeID, size)
}

// GetCameraPicture returns a camera snapshot, refreshing the token first if
// needed.
func (m *TokenManager) GetCameraPicture(ctx context.Context, imageID, key string) ([]byte, error) {
	if err := m.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return m.Client.GetCameraPicture(ctx, imageID, key)
}

// GetEventsUntil returns home events, refreshing the token first if needed.
func (m *TokenManager) GetEventsUntil(ctx context.Context, homeID, eventID string) ([]*CameraEvent, error) {
	if err := m.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return m.Client.GetEventsUntil(ctx, homeID, eventID)
}

// SetPersonsAway marks a person away, refreshing the token first if needed.
func (m *TokenManager) SetPersonsAway(ctx context.Context, homeID, personID string) error {
	if err := m.EnsureValidToken(ctx); err != nil {
		return err
	}
	return m.Client.SetPersonsAway(ctx, homeID, personID)
}

// SetPersonsHome marks persons at home, refreshing the token first if needed.
func (m *TokenManager) SetPersonsHome(ctx context.Context, homeID string, personIDs []string) error {
	if err := m.EnsureValidToken(ctx); err != nil {
		return err
	}
	return m.Client.SetPersonsHome(ctx, homeID, personIDs)
}

// GetThermostatsData returns thermostat data, refreshing the token first if
// needed.
func (m *TokenManager) GetThermostatsData(ctx context.Context, deviceID string) (*ThermostatsData, error) {
	if err := m.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return m.Client.GetThermostatsData(ctx, deviceID)
}

// SetThermPoint changes a thermostat setpoint, refreshing the token first
// if needed.
func (m *TokenManager) SetThermPoint(ctx context.Context, req *ThermPointRequest) error {
	if err := m.EnsureValidToken(ctx); err != nil {
		return err
	}
	return m.Client.SetThermPoint(ctx, req)
}

// SyncSchedule pushes a thermostat schedule, refreshing the token first if
// needed.
func (m *TokenManager) SyncSchedule(ctx context.Context, req *ScheduleRequest) error {
	if err := m.EnsureValidToken(ctx); err != nil {
		return err
	}
	return m.Client.SyncSchedule(ctx, req)
}

// GetHomeCoachData returns home coach data, refreshing the token first if
// needed.
func (m *TokenManager) GetHomeCoachData(ctx context.Context, deviceID string) (*HomeCoachData, error) {
	if err := m.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	return m.Client.GetHomeCoachData(ctx, deviceID)
}

// AddWebhook registers a webhook URL, refreshing the token first if needed.
func (m *TokenManager) AddWebhook(ctx context.Context, webhookURL string) error {
	if err := m.EnsureValidToken(ctx); err != nil {
		return err
	}
	return m.Client.AddWebhook(ctx, webhookURL)
}

// DropWebhook removes the registered webhook, refreshing the token first if
// needed.
func (m *TokenManager) DropWebhook(ctx context.Context) error {
	if err := m.EnsureValidToken(ctx); err != nil {
		return err
	}
	return m.Client.DropWebhook(ctx)
}
