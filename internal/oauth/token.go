package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/poolside-scheduler/internal/store"
	"github.com/rs/zerolog"
)

// userAgent mirrors the club's mobile app; the identity provider rejects
// unrecognized clients.
const userAgent = "DigitalHouse/8.129 (com.sohohouse.houseseven; build:17190; iOS 18.5.0)"

const defaultExpiresIn = 7200

// TokenClient exchanges authorization codes and refresh tokens for bearer
// credentials and keeps the persisted record current.
type TokenClient struct {
	hc              *http.Client
	identityBaseURL string
	clientID        string
	redirectURI     string

	store *store.Store
	now   func() time.Time
	log   zerolog.Logger
}

func NewTokenClient(identityBaseURL, clientID, redirectURI string, st *store.Store, log zerolog.Logger) *TokenClient {
	return &TokenClient{
		hc:              &http.Client{Timeout: 30 * time.Second},
		identityBaseURL: identityBaseURL,
		clientID:        clientID,
		redirectURI:     redirectURI,
		store:           st,
		now:             time.Now,
		log:             log,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// ExchangeCode redeems an authorization code (bound to its PKCE verifier) for
// a credential and persists it. A persist failure does not fail the exchange;
// it is surfaced through the saved flag.
func (c *TokenClient) ExchangeCode(ctx context.Context, code, verifier string) (store.Credential, bool, error) {
	body := map[string]string{
		"redirect_uri":  c.redirectURI,
		"client_id":     c.clientID,
		"grant_type":    "authorization_code",
		"code":          code,
		"code_verifier": verifier,
	}
	return c.grant(ctx, body)
}

// Refresh redeems the stored refresh token for a new credential, overwriting
// the persisted record.
func (c *TokenClient) Refresh(ctx context.Context) (store.Credential, bool, error) {
	cred, ok := c.store.LoadCredential()
	if !ok || cred.RefreshToken == "" {
		return store.Credential{}, false, ErrUnauthenticated
	}
	body := map[string]string{
		"client_id":     c.clientID,
		"grant_type":    "refresh_token",
		"refresh_token": cred.RefreshToken,
	}
	return c.grant(ctx, body)
}

// EnsureFresh returns an access token that is safe to book with: the stored
// one if it has more than the staleness buffer left, otherwise the result of
// a refresh. A failed refresh is ErrReauthRequired, never a possibly-expired
// token.
func (c *TokenClient) EnsureFresh(ctx context.Context) (string, error) {
	cred, ok := c.store.LoadCredential()
	if !ok {
		return "", ErrUnauthenticated
	}
	if !cred.Stale(c.now()) {
		return cred.AccessToken, nil
	}

	c.log.Info().Time("expires_at", cred.ExpiresAt()).Msg("credential stale, refreshing")
	fresh, _, err := c.Refresh(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("refresh failed")
		return "", ErrReauthRequired
	}
	return fresh.AccessToken, nil
}

func (c *TokenClient) grant(ctx context.Context, body map[string]string) (store.Credential, bool, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return store.Credential{}, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.identityBaseURL+"/oauth/token", bytes.NewReader(b))
	if err != nil {
		return store.Credential{}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", userAgent)

	res, err := c.hc.Do(req)
	if err != nil {
		return store.Credential{}, false, fmt.Errorf("token endpoint: %w", err)
	}
	defer res.Body.Close()
	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return store.Credential{}, false, err
	}

	if res.StatusCode != http.StatusOK {
		return store.Credential{}, false, &TokenExchangeError{Status: res.StatusCode, Body: string(respBody)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return store.Credential{}, false, fmt.Errorf("token response: %w", err)
	}

	cred := store.Credential{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		CreatedAt:    tr.CreatedAt,
		ExpiresIn:    tr.ExpiresIn,
		TokenType:    tr.TokenType,
	}
	if cred.CreatedAt == 0 {
		cred.CreatedAt = c.now().Unix()
	}
	if cred.ExpiresIn == 0 {
		cred.ExpiresIn = defaultExpiresIn
	}

	saved := c.store.SaveCredential(cred)
	if !saved {
		c.log.Error().Msg("credential obtained but could not be persisted")
	}
	return cred, saved, nil
}
