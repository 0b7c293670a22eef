package sd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/eikrem/stravadump/strava"
)

// MockStravaClient implements StravaClient for testing
type MockStravaClient struct {
	Pages         [][]strava.ActivitySummary // per-page responses, 1-based
	ListErr       error
	ListErrOnPage int // page the error fires on; 0 means every page
	ListCalls     []ListCall

	DetailData       map[int64]json.RawMessage
	DetailErr        map[int64]error
	GetActivityCalls []int64

	PhotosData     map[int64][]strava.Photo
	PhotosErr      map[int64]error
	ListPhotosCall []int64

	DownloadData  map[string][]byte
	DownloadErr   error
	DownloadCalls []string

	ExchangeToken strava.Token
	ExchangeErr   error
	ExchangeCalls []string

	RefreshUpdate strava.TokenUpdate
	RefreshErr    error
	RefreshCalls  []string

	Fraction     float64
	AccessTokens []string
}

type ListCall struct {
	Page    int
	PerPage int
}

func (m *MockStravaClient) ListActivities(page, perPage int) ([]strava.ActivitySummary, error) {
	m.ListCalls = append(m.ListCalls, ListCall{Page: page, PerPage: perPage})
	if m.ListErr != nil && (m.ListErrOnPage == 0 || m.ListErrOnPage == page) {
		return nil, m.ListErr
	}
	if page <= len(m.Pages) {
		return m.Pages[page-1], nil
	}
	return nil, nil
}

func (m *MockStravaClient) GetActivity(id int64) (json.RawMessage, error) {
	m.GetActivityCalls = append(m.GetActivityCalls, id)
	if err := m.DetailErr[id]; err != nil {
		return nil, err
	}
	if data, ok := m.DetailData[id]; ok {
		return data, nil
	}
	return json.RawMessage(fmt.Sprintf(`{"id":%d}`, id)), nil
}

func (m *MockStravaClient) ListPhotos(id int64) ([]strava.Photo, error) {
	m.ListPhotosCall = append(m.ListPhotosCall, id)
	if err := m.PhotosErr[id]; err != nil {
		return nil, err
	}
	return m.PhotosData[id], nil
}

func (m *MockStravaClient) Download(assetURL string) ([]byte, error) {
	m.DownloadCalls = append(m.DownloadCalls, assetURL)
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	if data, ok := m.DownloadData[assetURL]; ok {
		return data, nil
	}
	return []byte("binary data"), nil
}

func (m *MockStravaClient) ExchangeCode(code string) (strava.Token, error) {
	m.ExchangeCalls = append(m.ExchangeCalls, code)
	if m.ExchangeErr != nil {
		return strava.Token{}, m.ExchangeErr
	}
	return m.ExchangeToken, nil
}

func (m *MockStravaClient) Refresh(refreshToken string) (strava.TokenUpdate, error) {
	m.RefreshCalls = append(m.RefreshCalls, refreshToken)
	if m.RefreshErr != nil {
		return strava.TokenUpdate{}, m.RefreshErr
	}
	return m.RefreshUpdate, nil
}

func (m *MockStravaClient) RateLimitFraction() float64 {
	return m.Fraction
}

func (m *MockStravaClient) SetAccessToken(token string) {
	m.AccessTokens = append(m.AccessTokens, token)
}

func (m *MockStravaClient) AuthorizationURL(redirectURI string) string {
	return "https://example.test/authorize?redirect_uri=" + redirectURI
}

// MemStore implements Store for testing
type MemStore struct {
	Files      map[string][]byte
	ReadErr    error
	WriteErr   error
	WriteCalls []StoreWrite
}

type StoreWrite struct {
	Key  string
	Data []byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		Files: make(map[string][]byte),
	}
}

func (m *MemStore) Read(key string) ([]byte, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	data, ok := m.Files[key]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", key, os.ErrNotExist)
	}
	return data, nil
}

func (m *MemStore) Write(key string, data []byte) error {
	m.WriteCalls = append(m.WriteCalls, StoreWrite{Key: key, Data: data})
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Files[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemStore) Exists(key string) bool {
	_, ok := m.Files[key]
	return ok
}

func (m *MemStore) List(dir string) ([]string, error) {
	prefix := dir + "/"
	var names []string
	for key := range m.Files {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

// MockGate implements Gate for testing
type MockGate struct {
	WaitCalls   int
	JitterCalls int
}

func (g *MockGate) Wait()   { g.WaitCalls++ }
func (g *MockGate) Jitter() { g.JitterCalls++ }

// MockAuthorizer implements Authorizer for testing
type MockAuthorizer struct {
	Code   string
	Err    error
	Called bool
}

func (a *MockAuthorizer) AuthorizationCode() (string, error) {
	a.Called = true
	return a.Code, a.Err
}

// MockLogger implements Logger for testing
type MockLogger struct {
	InfoCalls  []LogCall
	DebugCalls []LogCall
	WarnCalls  []LogCall
}

type LogCall struct {
	Message string
	Args    []any
}

func (m *MockLogger) Info(msg string, args ...any) {
	m.InfoCalls = append(m.InfoCalls, LogCall{Message: msg, Args: args})
}

func (m *MockLogger) Debug(msg string, args ...any) {
	m.DebugCalls = append(m.DebugCalls, LogCall{Message: msg, Args: args})
}

func (m *MockLogger) Warn(msg string, args ...any) {
	m.WarnCalls = append(m.WarnCalls, LogCall{Message: msg, Args: args})
}

// makeSummary builds an ActivitySummary through JSON so the raw
// provider payload is populated, as in real responses.
func makeSummary(id int64, photoCount int) strava.ActivitySummary {
	var a strava.ActivitySummary
	data := fmt.Sprintf(`{"id":%d,"total_photo_count":%d}`, id, photoCount)
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		panic(err)
	}
	return a
}
