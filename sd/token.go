package sd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/eikrem/stravadump/strava"
)

// ErrAuthFailed signals an unrecoverable authentication failure. The
// run must abort: there is deliberately no fallback from a failed
// refresh to a new browser authorization, since unattended runs must
// never pop browser windows.
var ErrAuthFailed = errors.New("authentication failed")

// expiryLeeway is how close to expiry a token is still treated as
// expired, so it cannot lapse mid-call.
const expiryLeeway = 60 * time.Second

// TokenService owns the credential lifecycle. It is the only
// component that mutates or persists the token.
type TokenService struct {
	client     StravaClient
	store      Store
	authorizer Authorizer
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(client StravaClient, store Store, authorizer Authorizer, logger Logger) *TokenService {
	return &TokenService{
		client:     client,
		store:      store,
		authorizer: authorizer,
		logger:     logger,
		now:        time.Now,
	}
}

// Acquire loads the persisted token, or runs the one-time
// authorization flow when none exists yet.
func (s *TokenService) Acquire() (strava.Token, error) {
	data, err := s.store.Read(tokenKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.authorize()
		}
		return strava.Token{}, fmt.Errorf("failed to read token: %w", err)
	}

	var token strava.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return strava.Token{}, fmt.Errorf("failed to decode stored token: %w", err)
	}

	s.logger.Info("loaded existing access token")
	return token, nil
}

// authorize captures an authorization code and exchanges it for a token.
func (s *TokenService) authorize() (strava.Token, error) {
	s.logger.Info("no stored token, starting authorization flow")

	code, err := s.authorizer.AuthorizationCode()
	if err != nil {
		return strava.Token{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	token, err := s.client.ExchangeCode(code)
	if err != nil {
		return strava.Token{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	if err := s.persist(token); err != nil {
		return strava.Token{}, err
	}

	s.logger.Info("received new access token")
	return token, nil
}

// EnsureFresh refreshes the token if it is expired or within the
// expiry leeway, persisting the result before returning it. Calling
// it on a fresh token is a no-op.
func (s *TokenService) EnsureFresh(token strava.Token) (strava.Token, error) {
	if time.Unix(token.ExpiresAt, 0).Add(-expiryLeeway).After(s.now()) {
		return token, nil
	}

	update, err := s.client.Refresh(token.RefreshToken)
	if err != nil {
		return strava.Token{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	token.Apply(update)

	// Persist before the token is used for anything else; a crash
	// after refresh must not lose the new refresh token.
	if err := s.persist(token); err != nil {
		return strava.Token{}, err
	}

	s.logger.Info("refreshed existing access token", "expires_at", token.ExpiresAt)
	return token, nil
}

// persist writes the token synchronously. Failure is fatal for the
// run: continuing with undurable credentials corrupts future runs.
func (s *TokenService) persist(token strava.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.store.Write(tokenKey, data); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}
