package netatmo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeBackend serves both the token endpoint and the API surface, counting
// requests to each so tests can assert how many refreshes happened.
type fakeBackend struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	tokenRequests int
	apiRequests   int
	apiTokens     []string

	rejectTokens bool
	nextAccess   string
	nextRefresh  string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{t: t, nextAccess: "A2", nextRefresh: "R2"}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing token form: %v", err)
		}

		b.mu.Lock()
		b.tokenRequests++
		reject := b.rejectTokens
		access, refresh := b.nextAccess, b.nextRefresh
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if reject {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error":             "invalid_grant",
				"error_description": "Refresh token revoked",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"refresh_token": refresh,
			"expires_in":    10800,
			"scope":         []string{"read_station"},
		})
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing api form: %v", err)
		}

		b.mu.Lock()
		b.apiRequests++
		b.apiTokens = append(b.apiTokens, r.PostForm.Get("access_token"))
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"body":{},"status":"ok"}`))
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) counts() (tokenRequests, apiRequests int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokenRequests, b.apiRequests
}

func (b *fakeBackend) tokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.apiTokens...)
}

func (b *fakeBackend) reject() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectTokens = true
}

// newTestManager builds a manager against the fake backend with a seeded
// credential and a frozen clock.
func newTestManager(t *testing.T, b *fakeBackend, cred *Credential, now time.Time, opts ...Option) *TokenManager {
	t.Helper()

	opts = append([]Option{WithBaseURL(b.server.URL)}, opts...)
	m, err := NewTokenManager(&OAuthConfig{ClientID: "id", ClientSecret: "secret"}, opts...)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	m.now = func() time.Time { return now }
	if cred != nil {
		m.SetCredential(cred)
	}
	return m
}

func TestNewTokenManager(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		m, err := NewTokenManager(&OAuthConfig{ClientID: "id", ClientSecret: "secret"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Credential() != nil {
			t.Error("fresh manager should have no credential")
		}
		if m.Valid() {
			t.Error("fresh manager should not be valid")
		}
		if !m.NeedsReauthentication() {
			t.Error("fresh manager should need authentication")
		}
	})

	t.Run("nil config", func(t *testing.T) {
		if _, err := NewTokenManager(nil); err != ErrNilConfig {
			t.Errorf("error = %v, want ErrNilConfig", err)
		}
	})

	t.Run("missing client secret", func(t *testing.T) {
		if _, err := NewTokenManager(&OAuthConfig{ClientID: "id"}); err != ErrEmptyClientSecret {
			t.Errorf("error = %v, want ErrEmptyClientSecret", err)
		}
	})
}

func TestTokenManager_Authenticate(t *testing.T) {
	t.Run("installs the credential", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, nil, time.Now())

		if err := m.Authenticate(context.Background(), "user@example.com", "hunter2"); err != nil {
			t.Fatalf("Authenticate: %v", err)
		}

		cred := m.Credential()
		if cred == nil {
			t.Fatal("no credential after Authenticate")
		}
		if cred.AccessToken != "A2" || cred.RefreshToken != "R2" {
			t.Errorf("credential = %+v", cred)
		}
		if got := m.Client.Token(); got != "A2" {
			t.Errorf("client token = %q, want A2", got)
		}
		if !m.Valid() {
			t.Error("manager should be valid after Authenticate")
		}
	})

	t.Run("empty username fails before any request", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, nil, time.Now())

		err := m.Authenticate(context.Background(), "", "hunter2")
		if !errors.Is(err, ErrEmptyUsername) {
			t.Errorf("error = %v, want ErrEmptyUsername", err)
		}
		if tokenReqs, _ := b.counts(); tokenReqs != 0 {
			t.Errorf("token requests = %d, want 0", tokenReqs)
		}
	})

	t.Run("does not notify the updater", func(t *testing.T) {
		b := newFakeBackend(t)
		var notified int
		m := newTestManager(t, b, nil, time.Now(), WithTokenUpdater(TokenUpdaterFunc(func(*Credential) {
			notified++
		})))

		if err := m.Authenticate(context.Background(), "user@example.com", "hunter2"); err != nil {
			t.Fatalf("Authenticate: %v", err)
		}
		if notified != 0 {
			t.Errorf("updater notified %d times on initial grant, want 0", notified)
		}
	})
}

func TestTokenManager_ExchangeCode(t *testing.T) {
	t.Run("installs the credential", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, nil, time.Now())

		if err := m.ExchangeCode(context.Background(), "code-123"); err != nil {
			t.Fatalf("ExchangeCode: %v", err)
		}
		if got := m.Client.Token(); got != "A2" {
			t.Errorf("client token = %q, want A2", got)
		}
	})

	t.Run("empty code fails before any request", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, nil, time.Now())

		err := m.ExchangeCode(context.Background(), "")
		if !errors.Is(err, ErrEmptyCode) {
			t.Errorf("error = %v, want ErrEmptyCode", err)
		}
		if tokenReqs, _ := b.counts(); tokenReqs != 0 {
			t.Errorf("token requests = %d, want 0", tokenReqs)
		}
	})
}

func TestTokenManager_EnsureValidToken(t *testing.T) {
	seed := &Credential{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Unix(2800, 0),
	}

	t.Run("no credential", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, nil, time.Unix(1000, 0))

		err := m.EnsureValidToken(context.Background())
		if !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("error = %v, want ErrNotAuthenticated", err)
		}
		if !IsAuthError(err) {
			t.Errorf("error should be an AuthError, got %T", err)
		}
	})

	t.Run("valid credential issues no refresh", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, seed, time.Unix(1000, 0))

		if err := m.EnsureValidToken(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tokenReqs, _ := b.counts()
		if tokenReqs != 0 {
			t.Errorf("token requests = %d, want 0", tokenReqs)
		}
		if got := m.Client.Token(); got != "A1" {
			t.Errorf("token = %q, want the original A1", got)
		}
	})

	t.Run("expired credential refreshes once and the call proceeds", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, seed, time.Unix(2900, 0))

		resp, err := m.AuthorizedPost(context.Background(), "getstationsdata", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp == nil || !GetStringEquals(resp.Data, "ok", "status") {
			t.Errorf("unexpected response: %+v", resp)
		}

		tokenReqs, apiReqs := b.counts()
		if tokenReqs != 1 {
			t.Errorf("token requests = %d, want exactly 1", tokenReqs)
		}
		if apiReqs != 1 {
			t.Errorf("api requests = %d, want 1", apiReqs)
		}
		if tokens := b.tokens(); len(tokens) != 1 || tokens[0] != "A2" {
			t.Errorf("api call used tokens %v, want the refreshed A2", tokens)
		}

		cred := m.Credential()
		if cred.AccessToken != "A2" || cred.RefreshToken != "R2" {
			t.Errorf("credential = %+v, want all fields replaced", cred)
		}
	})

	t.Run("expiry boundary is inclusive", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, seed, time.Unix(2800, 0))

		if err := m.EnsureValidToken(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tokenReqs, _ := b.counts(); tokenReqs != 1 {
			t.Errorf("token requests = %d, want a refresh exactly at expiry", tokenReqs)
		}
	})

	t.Run("missing refresh token", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, &Credential{
			AccessToken: "A1",
			ExpiresAt:   time.Unix(2800, 0),
		}, time.Unix(2900, 0))

		err := m.EnsureValidToken(context.Background())
		if !errors.Is(err, ErrNoRefreshToken) {
			t.Errorf("error = %v, want ErrNoRefreshToken", err)
		}
		if tokenReqs, _ := b.counts(); tokenReqs != 0 {
			t.Errorf("token requests = %d, want 0", tokenReqs)
		}
	})

	t.Run("refresh failure latches the manager", func(t *testing.T) {
		b := newFakeBackend(t)
		b.reject()
		m := newTestManager(t, b, seed, time.Unix(2900, 0))

		_, err := m.AuthorizedPost(context.Background(), "getstationsdata", nil)
		if !IsAuthError(err) {
			t.Fatalf("expected auth error, got %T: %v", err, err)
		}
		if !strings.Contains(err.Error(), "Refresh token revoked") {
			t.Errorf("error should carry the provider description, got: %v", err)
		}

		// Subsequent calls must fail fast without touching the network.
		_, err = m.AuthorizedPost(context.Background(), "getstationsdata", nil)
		if !errors.Is(err, ErrReauthRequired) {
			t.Errorf("error = %v, want ErrReauthRequired", err)
		}

		tokenReqs, apiReqs := b.counts()
		if tokenReqs != 1 {
			t.Errorf("token requests = %d, want 1 (no retry after failure)", tokenReqs)
		}
		if apiReqs != 0 {
			t.Errorf("api requests = %d, want 0", apiReqs)
		}

		if !m.NeedsReauthentication() {
			t.Error("NeedsReauthentication() = false after failed refresh")
		}
	})

	t.Run("re-authentication clears the latch", func(t *testing.T) {
		b := newFakeBackend(t)
		b.reject()
		m := newTestManager(t, b, seed, time.Unix(2900, 0))

		if err := m.EnsureValidToken(context.Background()); err == nil {
			t.Fatal("expected refresh failure")
		}

		m.SetCredential(&Credential{
			AccessToken:  "A3",
			RefreshToken: "R3",
			ExpiresAt:    time.Unix(4000, 0),
		})

		if err := m.EnsureValidToken(context.Background()); err != nil {
			t.Errorf("unexpected error after SetCredential: %v", err)
		}
		if got := m.Client.Token(); got != "A3" {
			t.Errorf("token = %q, want A3", got)
		}
	})
}

func TestTokenManager_Refresh(t *testing.T) {
	seed := &Credential{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Unix(2800, 0),
		Scope:        []Scope{ScopeReadStation},
	}

	t.Run("replaces every field and notifies the updater", func(t *testing.T) {
		b := newFakeBackend(t)
		var got []*Credential
		m := newTestManager(t, b, seed, time.Unix(1000, 0), WithTokenUpdater(TokenUpdaterFunc(func(cred *Credential) {
			got = append(got, cred)
		})))

		if err := m.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}

		cred := m.Credential()
		if cred.AccessToken != "A2" || cred.RefreshToken != "R2" {
			t.Errorf("credential = %+v", cred)
		}
		if cred.ExpiresAt.Equal(seed.ExpiresAt) {
			t.Error("ExpiresAt was not replaced")
		}

		if len(got) != 1 {
			t.Fatalf("updater notified %d times, want 1", len(got))
		}
		if got[0].AccessToken != "A2" {
			t.Errorf("updater saw token %q, want A2", got[0].AccessToken)
		}
	})

	t.Run("without credential", func(t *testing.T) {
		b := newFakeBackend(t)
		m := newTestManager(t, b, nil, time.Unix(1000, 0))

		err := m.Refresh(context.Background())
		if !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("error = %v, want ErrNotAuthenticated", err)
		}
	})

	t.Run("after latched failure", func(t *testing.T) {
		b := newFakeBackend(t)
		b.reject()
		m := newTestManager(t, b, seed, time.Unix(1000, 0))

		if err := m.Refresh(context.Background()); err == nil {
			t.Fatal("expected refresh failure")
		}
		err := m.Refresh(context.Background())
		if !errors.Is(err, ErrReauthRequired) {
			t.Errorf("error = %v, want ErrReauthRequired", err)
		}
		if tokenReqs, _ := b.counts(); tokenReqs != 1 {
			t.Errorf("token requests = %d, want 1", tokenReqs)
		}
	})
}

func TestTokenManager_ConcurrentCalls(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b, &Credential{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Unix(2800, 0),
	}, time.Unix(2900, 0))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.AuthorizedPost(context.Background(), "getstationsdata", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent call failed: %v", err)
		}
	}

	tokenReqs, apiReqs := b.counts()
	if tokenReqs != 1 {
		t.Errorf("token requests = %d, want exactly 1 despite %d concurrent calls", tokenReqs, workers)
	}
	if apiReqs != workers {
		t.Errorf("api requests = %d, want %d", apiReqs, workers)
	}
	for _, tok := range b.tokens() {
		if tok != "A2" {
			t.Errorf("api call used token %q, want A2", tok)
		}
	}
}

func TestTokenManager_SetCredential(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b, nil, time.Unix(1000, 0))

	cred := &Credential{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Unix(2800, 0),
		Scope:        []Scope{ScopeReadStation},
	}
	m.SetCredential(cred)

	// The manager must hold its own copy.
	cred.AccessToken = "tampered"
	if got := m.Credential().AccessToken; got != "A1" {
		t.Errorf("AccessToken = %q, want A1", got)
	}

	// And hand out copies.
	m.Credential().AccessToken = "tampered again"
	if got := m.Credential().AccessToken; got != "A1" {
		t.Errorf("AccessToken = %q after mutating a copy, want A1", got)
	}
}

func TestTokenManager_SetCredential_Nil(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b, &Credential{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Unix(2800, 0),
	}, time.Unix(1000, 0))

	m.SetCredential(nil)

	if m.Credential() != nil {
		t.Error("credential should be cleared")
	}
	if m.Valid() {
		t.Error("cleared manager should not be valid")
	}

	_, err := m.AuthorizedPost(context.Background(), "getstationsdata", nil)
	var authErr *AuthError
	if !errors.As(err, &authErr) || !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("error = %v, want AuthError wrapping ErrNotAuthenticated", err)
	}

	if _, apiCalls := b.counts(); apiCalls != 0 {
		t.Errorf("api requests = %d, want 0", apiCalls)
	}
}

func TestTokenManager_Valid(t *testing.T) {
	b := newFakeBackend(t)

	tests := []struct {
		name string
		cred *Credential
		now  time.Time
		want bool
	}{
		{
			name: "before expiry",
			cred: &Credential{AccessToken: "A1", ExpiresAt: time.Unix(2800, 0)},
			now:  time.Unix(1000, 0),
			want: true,
		},
		{
			name: "at expiry",
			cred: &Credential{AccessToken: "A1", ExpiresAt: time.Unix(2800, 0)},
			now:  time.Unix(2800, 0),
			want: false,
		},
		{
			name: "no credential",
			cred: nil,
			now:  time.Unix(1000, 0),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, b, tt.cred, tt.now)
			if got := m.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenManager_AuthorizationURL(t *testing.T) {
	b := newFakeBackend(t)
	m := newTestManager(t, b, nil, time.Now())

	raw := m.AuthorizationURL("xyz")
	if !strings.HasPrefix(raw, b.server.URL+"/oauth2/authorize?") {
		t.Errorf("AuthorizationURL() = %q, want it built on the manager's base URL", raw)
	}
	if !strings.Contains(raw, "state=xyz") {
		t.Errorf("AuthorizationURL() = %q, missing state", raw)
	}
}

func TestTokenManager_ProductOverride(t *testing.T) {
	// The typed helpers must run the expiry check before issuing the call.
	b := newFakeBackend(t)
	m := newTestManager(t, b, &Credential{
		AccessToken:  "A1",
		RefreshToken: "R1",
		ExpiresAt:    time.Unix(2800, 0),
	}, time.Unix(2900, 0))

	if _, err := m.GetStationsData(context.Background(), ""); err != nil {
		t.Fatalf("GetStationsData: %v", err)
	}

	tokenReqs, _ := b.counts()
	if tokenReqs != 1 {
		t.Errorf("token requests = %d, want 1", tokenReqs)
	}
	if tokens := b.tokens(); len(tokens) != 1 || tokens[0] != "A2" {
		t.Errorf("api tokens = %v, want [A2]", tokens)
	}
}
