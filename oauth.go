package netatmo

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// tokenExpiryMargin is subtracted from the lifetime the token endpoint
// reports, so refresh happens before the provider actually cuts the token
// off.
const tokenExpiryMargin = 30 * time.Minute

// Scope is a Netatmo OAuth permission string.
type Scope string

// The fixed set of scopes the API recognizes.
const (
	// ScopeReadStation retrieves weather station data (Getstationsdata, Getmeasure).
	ScopeReadStation Scope = "read_station"
	// ScopeReadCamera retrieves Welcome camera data (Gethomedata, Getcamerapicture).
	ScopeReadCamera Scope = "read_camera"
	// ScopeAccessCamera accesses the camera, the videos and the live stream.
	ScopeAccessCamera Scope = "access_camera"
	// ScopeWriteCamera sets home/away status of persons (Setpersonsaway, Setpersonshome).
	ScopeWriteCamera Scope = "write_camera"
	// ScopeReadPresence retrieves Presence camera data.
	ScopeReadPresence Scope = "read_presence"
	// ScopeAccessPresence accesses the Presence live stream and stored videos.
	ScopeAccessPresence Scope = "access_presence"
	// ScopeReadHomecoach retrieves Home Coach data (Gethomecoachsdata).
	ScopeReadHomecoach Scope = "read_homecoach"
	// ScopeReadSmokedetector retrieves smoke detector status (Gethomedata).
	ScopeReadSmokedetector Scope = "read_smokedetector"
	// ScopeReadThermostat retrieves thermostat data (Getmeasure, Getthermostatsdata).
	ScopeReadThermostat Scope = "read_thermostat"
	// ScopeWriteThermostat configures the thermostat (Syncschedule, Setthermpoint).
	ScopeWriteThermostat Scope = "write_thermostat"
)

// AllScopes returns every scope the API recognizes.
func AllScopes() []Scope {
	return []Scope{
		ScopeReadStation,
		ScopeReadCamera,
		ScopeAccessCamera,
		ScopeWriteCamera,
		ScopeReadPresence,
		ScopeAccessPresence,
		ScopeReadHomecoach,
		ScopeReadSmokedetector,
		ScopeReadThermostat,
		ScopeWriteThermostat,
	}
}

// DefaultScopes returns the scopes requested when none are configured.
func DefaultScopes() []Scope {
	return []Scope{ScopeReadStation}
}

// ValidScope reports whether s is one of the recognized scopes.
func ValidScope(s Scope) bool {
	for _, known := range AllScopes() {
		if s == known {
			return true
		}
	}
	return false
}

// scopeStrings converts scopes to their wire form.
func scopeStrings(scopes []Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}

// joinScopes renders scopes as the space-separated wire format.
func joinScopes(scopes []Scope) string {
	return strings.Join(scopeStrings(scopes), " ")
}

// parseScopeList converts wire-form scope strings back to Scopes. Unknown
// values are kept verbatim so newer provider scopes survive a round trip.
func parseScopeList(values []string) []Scope {
	if len(values) == 0 {
		return nil
	}
	out := make([]Scope, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		out = append(out, Scope(v))
	}
	return out
}

// OAuthConfig holds the configuration for OAuth authentication.
type OAuthConfig struct {
	// ClientID and ClientSecret are issued on dev.netatmo.com.
	ClientID     string
	ClientSecret string

	// RedirectURL is required for the authorization-code flow only.
	RedirectURL string

	// Scopes to request. Empty means DefaultScopes().
	Scopes []Scope
}

// Validate checks the config for the fields every grant needs.
func (cfg *OAuthConfig) Validate() error {
	if cfg == nil {
		return ErrNilConfig
	}
	if cfg.ClientID == "" {
		return ErrEmptyClientID
	}
	if cfg.ClientSecret == "" {
		return ErrEmptyClientSecret
	}
	for _, s := range cfg.Scopes {
		if !ValidScope(s) {
			return ErrInvalidScope
		}
	}
	return nil
}

// scopesOrDefault returns the configured scopes, or the default set.
func (cfg *OAuthConfig) scopesOrDefault() []Scope {
	if len(cfg.Scopes) == 0 {
		return DefaultScopes()
	}
	return cfg.Scopes
}

// Credential is the token material obtained from a grant exchange. It is
// replaced wholesale on every refresh and round-trips through JSON so
// callers can persist and restore it.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        []Scope   `json:"scope,omitempty"`
}

// IsValid reports whether the credential holds an access token that has not
// reached its margin-adjusted expiry.
func (c *Credential) IsValid() bool {
	return c.ValidAt(time.Now())
}

// ValidAt is IsValid against an explicit clock.
func (c *Credential) ValidAt(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return now.Before(c.ExpiresAt)
}

// HasRefreshToken reports whether a refresh is possible at all.
func (c *Credential) HasRefreshToken() bool {
	return c != nil && c.RefreshToken != ""
}

// clone returns a copy so callers cannot mutate the manager's credential.
func (c *Credential) clone() *Credential {
	if c == nil {
		return nil
	}
	out := *c
	out.Scope = append([]Scope(nil), c.Scope...)
	return &out
}

// newCredential derives a Credential from raw token material, applying the
// expiry margin to the reported lifetime.
func newCredential(accessToken, refreshToken string, expiresIn int64, scopes []Scope, issued time.Time) *Credential {
	cred := &Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Scope:        scopes,
	}
	if expiresIn > 0 {
		cred.ExpiresAt = issued.Add(time.Duration(expiresIn)*time.Second - tokenExpiryMargin)
	}
	return cred
}

// credentialFromToken converts an oauth2 token, preferring the raw
// expires_in lifetime so the margin arithmetic uses our clock.
func credentialFromToken(tok *oauth2.Token, issued time.Time) (*Credential, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}

	cred := newCredential(tok.AccessToken, tok.RefreshToken, tok.ExpiresIn, scopesFromToken(tok), issued)
	if cred.ExpiresAt.IsZero() && !tok.Expiry.IsZero() {
		cred.ExpiresAt = tok.Expiry.Add(-tokenExpiryMargin)
	}
	return cred, nil
}

// scopesFromToken extracts the granted scopes from a token response. The
// token endpoint documents a space-separated string but actually returns a
// JSON array, so both shapes are accepted.
func scopesFromToken(tok *oauth2.Token) []Scope {
	switch v := tok.Extra("scope").(type) {
	case string:
		return parseScopeList(strings.Fields(v))
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
		return parseScopeList(values)
	}
	return nil
}

// oauth2Config builds the x/oauth2 config for this client's base URL.
// Netatmo wants client credentials in the form body, not basic auth.
func (c *Client) oauth2Config(cfg *OAuthConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopeStrings(cfg.scopesOrDefault()),
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.authorizeURL(),
			TokenURL:  c.tokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// oauthContext routes x/oauth2's internal HTTP through this client's
// http.Client so timeouts, transports and test servers apply to token
// requests too.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// exchangePassword performs the resource-owner password grant.
func (c *Client) exchangePassword(ctx context.Context, cfg *OAuthConfig, username, password string) (*Credential, error) {
	tok, err := c.oauth2Config(cfg).PasswordCredentialsToken(c.oauthContext(ctx), username, password)
	if err != nil {
		return nil, authError("authenticate", err)
	}

	cred, err := credentialFromToken(tok, time.Now())
	if err != nil {
		return nil, &AuthError{Op: "authenticate", Err: err}
	}
	return cred, nil
}

// exchangeAuthCode performs the authorization-code grant.
func (c *Client) exchangeAuthCode(ctx context.Context, cfg *OAuthConfig, code string) (*Credential, error) {
	tok, err := c.oauth2Config(cfg).Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, authError("exchange", err)
	}

	cred, err := credentialFromToken(tok, time.Now())
	if err != nil {
		return nil, &AuthError{Op: "exchange", Err: err}
	}
	return cred, nil
}

// refreshCredential performs the refresh-token grant and returns the
// replacement credential.
func (c *Client) refreshCredential(ctx context.Context, cfg *OAuthConfig, refreshToken string) (*Credential, error) {
	seed := &oauth2.Token{RefreshToken: refreshToken}
	tok, err := c.oauth2Config(cfg).TokenSource(c.oauthContext(ctx), seed).Token()
	if err != nil {
		return nil, authError("refresh", err)
	}

	cred, err := credentialFromToken(tok, time.Now())
	if err != nil {
		return nil, &AuthError{Op: "refresh", Err: err}
	}
	// Providers may omit the refresh token from a refresh response; keep
	// the one we have so the next refresh still works.
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}

// authError wraps a token-endpoint failure, lifting the provider's error
// description out of the oauth2 retrieve error when present.
func authError(op string, err error) *AuthError {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		desc := rErr.ErrorDescription
		if desc == "" {
			desc = rErr.ErrorCode
		}
		return &AuthError{Op: op, Description: desc, Err: err}
	}
	return &AuthError{Op: op, Err: err}
}

// AuthorizationURL returns the URL to send a user to for OAuth consent,
// against the default base URL. Use TokenManager.AuthorizationURL when the
// base URL was overridden.
func AuthorizationURL(cfg *OAuthConfig, state string) string {
	return buildAuthorizationURL(strings.TrimSuffix(DefaultBaseURL, "/")+"/oauth2/authorize", cfg, state)
}

func buildAuthorizationURL(endpoint string, cfg *OAuthConfig, state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", cfg.ClientID)
	params.Set("redirect_uri", cfg.RedirectURL)
	params.Set("scope", joinScopes(cfg.scopesOrDefault()))
	if state != "" {
		params.Set("state", state)
	}

	return endpoint + "?" + params.Encode()
}
