package sd

import (
	"encoding/json"

	"github.com/eikrem/stravadump/strava"
)

// StravaClient interface abstracts the Strava client for testing
type StravaClient interface {
	ListActivities(page, perPage int) ([]strava.ActivitySummary, error)
	GetActivity(id int64) (json.RawMessage, error)
	ListPhotos(id int64) ([]strava.Photo, error)
	ExchangeCode(code string) (strava.Token, error)
	Refresh(refreshToken string) (strava.TokenUpdate, error)
	Download(assetURL string) ([]byte, error)
	RateLimitFraction() float64
	SetAccessToken(token string)
	AuthorizationURL(redirectURI string) string
}

// Store is the durable blob store under the export root. Keys are
// slash-separated logical names. Read on an absent key returns an
// error satisfying errors.Is(err, os.ErrNotExist); that is expected
// control flow, not a failure.
type Store interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Exists(key string) bool
	List(dir string) ([]string, error)
}

// Gate abstracts the rate-limit policy for testing
type Gate interface {
	// Wait blocks for the cooldown period when the remote quota is
	// nearly consumed, then lets the caller proceed.
	Wait()
	// Jitter sleeps a randomized delay after a binary download.
	Jitter()
}

// Authorizer produces a one-time OAuth authorization code.
type Authorizer interface {
	AuthorizationCode() (string, error)
}

// Logger interface abstracts logging for testing
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// ActivityResult represents the outcome of resolving one activity's assets
type ActivityResult struct {
	ActivityID    int64
	DetailCached  bool // detail blob already existed
	PhotosCached  bool // photo metadata already existed
	Downloaded    int  // binaries fetched this run
	AlreadyOnDisk int  // binaries that already existed
	Skipped       int  // photos with missing or placeholder URLs
	Err           error
}

// SyncSummary represents the overall run results
type SyncSummary struct {
	Activities int
	Downloaded int
	Skipped    int
	Errors     int
	Results    []ActivityResult
}
