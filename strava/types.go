package strava

import (
	"encoding/json"
	"strconv"
)

// Token holds the OAuth credentials for the Strava API. ExpiresAt is
// unix seconds, as returned by the token endpoint.
type Token struct {
	TokenType    string `json:"token_type,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// TokenUpdate is the partial payload a refresh response may contain.
// The provider may omit fields that did not change, so updates are
// applied field by field instead of replacing the whole token.
type TokenUpdate struct {
	TokenType    string `json:"token_type"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Apply merges the non-empty fields of a refresh response into the token.
func (t *Token) Apply(u TokenUpdate) {
	if u.TokenType != "" {
		t.TokenType = u.TokenType
	}
	if u.AccessToken != "" {
		t.AccessToken = u.AccessToken
	}
	if u.RefreshToken != "" {
		t.RefreshToken = u.RefreshToken
	}
	if u.ExpiresAt != 0 {
		t.ExpiresAt = u.ExpiresAt
	}
}

// ActivitySummary is one entry of the athlete's activity list. Only
// the fields the sync engine needs are decoded; the raw provider JSON
// is retained so that persisting the catalog never loses fields.
type ActivitySummary struct {
	ID              int64
	TotalPhotoCount int

	raw json.RawMessage
}

type activitySummaryWire struct {
	ID              int64 `json:"id"`
	TotalPhotoCount int   `json:"total_photo_count"`
}

func (a *ActivitySummary) UnmarshalJSON(data []byte) error {
	var w activitySummaryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	a.ID = w.ID
	a.TotalPhotoCount = w.TotalPhotoCount
	a.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (a ActivitySummary) MarshalJSON() ([]byte, error) {
	if a.raw != nil {
		return a.raw, nil
	}
	return json.Marshal(activitySummaryWire{ID: a.ID, TotalPhotoCount: a.TotalPhotoCount})
}

// Photo is the metadata record for one activity photo. URLs maps a
// size label (pixel count, e.g. "5000") to a download URL.
type Photo struct {
	UniqueID string            `json:"unique_id"`
	Source   int               `json:"source"`
	URLs     map[string]string `json:"urls"`
}

// LargestURL returns the URL for the numerically largest size label,
// or "" if the photo carries no usable URL.
func (p Photo) LargestURL() string {
	best := ""
	bestSize := -1
	for label, u := range p.URLs {
		if u == "" {
			continue
		}
		size, err := strconv.Atoi(label)
		if err != nil {
			// Unrecognized label; only use it if nothing better exists.
			size = 0
		}
		if size > bestSize {
			bestSize = size
			best = u
		}
	}
	return best
}
