package strava

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	baseURL = "https://www.strava.com"

	// Scopes requested during the one-time authorization.
	authScope = "read,read_all,profile:read_all,activity:read,activity:read_all"
)

// Client is a Strava v3 API client. It tracks the provider's
// rate-limit headers across responses so callers can check how much
// of the current quota window is already consumed.
type Client struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	accessToken  string
	logger       *log.Logger
	logLevel     string

	// Consumed fraction of the rate-limit window, per the most
	// recent API response. The sync loop is single-threaded, so
	// plain fields suffice.
	shortFraction float64
	dailyFraction float64
}

// New creates a new Strava client for the given application credentials.
func New(clientID, clientSecret string) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}

	return &Client{
		httpClient:   httpClient,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       log.New(os.Stderr, "[strava] ", log.LstdFlags),
		logLevel:     viper.GetString("log_level"),
	}
}

// SetAccessToken sets the bearer token used for API calls.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// AuthorizationURL returns the URL the user must visit to authorize
// the application.
func (c *Client) AuthorizationURL(redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("approval_prompt", "auto")
	q.Set("scope", authScope)
	return baseURL + "/oauth/authorize?" + q.Encode()
}

// shouldLog returns true if the given log level should be logged based
// on the configured log level.
func (c *Client) shouldLog(level string) bool {
	levels := map[string]int{
		"trace": 0,
		"debug": 1,
		"info":  2,
		"warn":  3,
		"error": 4,
	}

	configuredLevel := c.logLevel
	if configuredLevel == "" {
		configuredLevel = "info"
	}

	return levels[level] >= levels[configuredLevel]
}

// doRequest performs an HTTP request, records rate-limit headers, and
// returns the response body.
func (c *Client) doRequest(req *http.Request) (*http.Response, []byte, error) {
	if c.shouldLog("debug") {
		c.logger.Printf("Request: %s %s", req.Method, req.URL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if c.shouldLog("debug") {
		c.logger.Printf("Response: %s %s", resp.Status, req.URL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.recordRateLimit(resp)

	if c.shouldLog("trace") && len(body) > 0 {
		preview := string(body)
		if len(preview) > 512 {
			preview = preview[:512]
		}
		c.logger.Printf("Response Body Preview: %s", preview)
	}

	return resp, body, nil
}

// recordRateLimit updates the consumed-quota fractions from the
// X-RateLimit-Limit / X-RateLimit-Usage header pairs. Each header
// holds "15min,daily" counts. Responses without the headers (e.g.
// CDN downloads) leave the previous state untouched.
func (c *Client) recordRateLimit(resp *http.Response) {
	limits := splitPair(resp.Header.Get("X-RateLimit-Limit"))
	usage := splitPair(resp.Header.Get("X-RateLimit-Usage"))
	if limits == nil || usage == nil {
		return
	}

	if limits[0] > 0 {
		c.shortFraction = float64(usage[0]) / float64(limits[0])
	}
	if limits[1] > 0 {
		c.dailyFraction = float64(usage[1]) / float64(limits[1])
	}

	if c.shouldLog("debug") {
		c.logger.Printf("Rate limit usage: 15min=%.2f daily=%.2f", c.shortFraction, c.dailyFraction)
	}
}

func splitPair(header string) []int {
	parts := strings.SplitN(header, ",", 2)
	if len(parts) != 2 {
		return nil
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return nil
	}
	return []int{a, b}
}

// RateLimitFraction returns the consumed fraction of the current
// rate-limit window, taking the worse of the 15-minute and daily
// windows. Returns 0 before the first API response.
func (c *Client) RateLimitFraction() float64 {
	if c.dailyFraction > c.shortFraction {
		return c.dailyFraction
	}
	return c.shortFraction
}

// apiGet performs an authenticated GET against an API path.
func (c *Client) apiGet(path string) ([]byte, error) {
	req, err := http.NewRequest("GET", baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return body, nil
}

// ListActivities returns one page of the athlete's activity summaries.
func (c *Client) ListActivities(page, perPage int) ([]ActivitySummary, error) {
	path := fmt.Sprintf("/api/v3/athlete/activities?page=%d&per_page=%d", page, perPage)
	body, err := c.apiGet(path)
	if err != nil {
		return nil, err
	}

	var activities []ActivitySummary
	if err := json.Unmarshal(body, &activities); err != nil {
		return nil, fmt.Errorf("failed to decode activity list: %w", err)
	}

	return activities, nil
}

// GetActivity returns the full detail record for one activity, as raw
// JSON. The sync engine persists it verbatim.
func (c *Client) GetActivity(id int64) (json.RawMessage, error) {
	body, err := c.apiGet(fmt.Sprintf("/api/v3/activities/%d", id))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// ListPhotos returns the photo metadata for one activity, requesting
// the largest available size.
func (c *Client) ListPhotos(id int64) ([]Photo, error) {
	path := fmt.Sprintf("/api/v3/activities/%d/photos?photo_sources=true&size=5000", id)
	body, err := c.apiGet(path)
	if err != nil {
		return nil, err
	}

	var photos []Photo
	if err := json.Unmarshal(body, &photos); err != nil {
		return nil, fmt.Errorf("failed to decode photo list: %w", err)
	}

	return photos, nil
}

// postToken performs a POST against the OAuth token endpoint.
func (c *Client) postToken(data url.Values) ([]byte, error) {
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)

	req, err := http.NewRequest("POST", baseURL+"/oauth/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return body, nil
}

// ExchangeCode exchanges a one-time authorization code for a token.
func (c *Client) ExchangeCode(code string) (Token, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)

	body, err := c.postToken(data)
	if err != nil {
		return Token{}, fmt.Errorf("code exchange failed: %w", err)
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return Token{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	return token, nil
}

// Refresh trades a refresh token for fresh credentials. The response
// is returned as a partial update; the caller merges it into its token.
func (c *Client) Refresh(refreshToken string) (TokenUpdate, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	body, err := c.postToken(data)
	if err != nil {
		return TokenUpdate{}, fmt.Errorf("token refresh failed: %w", err)
	}

	var update TokenUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return TokenUpdate{}, fmt.Errorf("failed to decode refresh response: %w", err)
	}

	return update, nil
}

// Download fetches a binary asset from its (pre-signed) URL. No bearer
// token is attached; photo URLs point at a CDN, not the API.
func (c *Client) Download(assetURL string) ([]byte, error) {
	req, err := http.NewRequest("GET", assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, body, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return body, nil
}
