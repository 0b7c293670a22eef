package sd

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/eikrem/stravadump/strava"
)

func newCatalogService(client *MockStravaClient, store *MemStore, gate *MockGate) *CatalogService {
	return NewCatalogService(client, store, gate, &MockLogger{})
}

func catalogIDs(catalog []strava.ActivitySummary) []int64 {
	ids := make([]int64, len(catalog))
	for i, a := range catalog {
		ids[i] = a.ID
	}
	return ids
}

func TestSync_MergesNewEntriesWithoutDuplicates(t *testing.T) {
	// Arrange - cached catalog {1,2,3}; remote returns a full page
	// {2,3,4} (the provider resurfaces known records near page
	// boundaries) and then a short page {5}.
	store := NewMemStore()
	existing := []strava.ActivitySummary{makeSummary(1, 0), makeSummary(2, 0), makeSummary(3, 0)}
	service := newCatalogService(&MockStravaClient{}, store, &MockGate{})
	if err := service.persist(existing); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}

	mockClient := &MockStravaClient{
		Pages: [][]strava.ActivitySummary{
			{makeSummary(2, 0), makeSummary(3, 0), makeSummary(4, 0)},
			{makeSummary(5, 0)},
		},
	}
	service = newCatalogService(mockClient, store, &MockGate{})
	service.incrementalPerPage = 3

	// Act
	catalog, err := service.Sync()

	// Assert
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	got := catalogIDs(catalog)
	want := []int64{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("catalog ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("catalog ids = %v, want %v", got, want)
			break
		}
	}
}

func TestSync_FirstRunUsesLargePages(t *testing.T) {
	// Arrange - empty local catalog
	mockClient := &MockStravaClient{}
	service := newCatalogService(mockClient, NewMemStore(), &MockGate{})

	// Act
	_, err := service.Sync()

	// Assert
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if len(mockClient.ListCalls) != 1 {
		t.Fatalf("Expected 1 page fetch, got %d", len(mockClient.ListCalls))
	}
	if mockClient.ListCalls[0].PerPage != firstRunPageSize {
		t.Errorf("PerPage = %d, want %d", mockClient.ListCalls[0].PerPage, firstRunPageSize)
	}
}

func TestSync_IncrementalRunUsesSmallPages(t *testing.T) {
	// Arrange - non-empty local catalog
	store := NewMemStore()
	service := newCatalogService(&MockStravaClient{}, store, &MockGate{})
	if err := service.persist([]strava.ActivitySummary{makeSummary(1, 0)}); err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}

	mockClient := &MockStravaClient{}
	service = newCatalogService(mockClient, store, &MockGate{})

	// Act
	_, err := service.Sync()

	// Assert
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if mockClient.ListCalls[0].PerPage != incrementalPageSize {
		t.Errorf("PerPage = %d, want %d", mockClient.ListCalls[0].PerPage, incrementalPageSize)
	}
}

func TestSync_ExactMultipleFetchesOneExtraPage(t *testing.T) {
	// Arrange - remote collection of exactly perPage items: one full
	// page, then one confirming-empty page.
	mockClient := &MockStravaClient{
		Pages: [][]strava.ActivitySummary{
			{makeSummary(1, 0), makeSummary(2, 0)},
		},
	}
	service := newCatalogService(mockClient, NewMemStore(), &MockGate{})
	service.firstRunPerPage = 2

	// Act
	catalog, err := service.Sync()

	// Assert
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if len(mockClient.ListCalls) != 2 {
		t.Errorf("Expected exactly 2 page fetches, got %d", len(mockClient.ListCalls))
	}
	if len(catalog) != 2 {
		t.Errorf("Expected 2 catalog entries, got %d", len(catalog))
	}
}

func TestSync_IsIdempotent(t *testing.T) {
	// Arrange - unchanged remote collection across two runs
	pages := [][]strava.ActivitySummary{
		{makeSummary(1, 0), makeSummary(2, 0), makeSummary(3, 0)},
	}
	store := NewMemStore()

	// Act - first run
	client1 := &MockStravaClient{Pages: pages}
	service := newCatalogService(client1, store, &MockGate{})
	if _, err := service.Sync(); err != nil {
		t.Fatalf("first Sync() error: %v", err)
	}
	first := append([]byte(nil), store.Files[catalogKey]...)

	// Act - second run
	client2 := &MockStravaClient{Pages: pages}
	service = newCatalogService(client2, store, &MockGate{})
	if _, err := service.Sync(); err != nil {
		t.Fatalf("second Sync() error: %v", err)
	}
	second := store.Files[catalogKey]

	// Assert - requests were issued again, but the merge reached a
	// fixed point: byte-identical persisted catalogs.
	if len(client2.ListCalls) == 0 {
		t.Error("Expected the second run to issue requests")
	}
	if !bytes.Equal(first, second) {
		t.Errorf("persisted catalogs differ:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestSync_RemoteFailurePersistsNothing(t *testing.T) {
	// Arrange - page 2 fails mid-pagination
	mockClient := &MockStravaClient{
		Pages: [][]strava.ActivitySummary{
			{makeSummary(1, 0), makeSummary(2, 0)},
		},
		ListErr:       fmt.Errorf("server error"),
		ListErrOnPage: 2,
	}
	store := NewMemStore()
	service := newCatalogService(mockClient, store, &MockGate{})
	service.firstRunPerPage = 2

	// Act
	_, err := service.Sync()

	// Assert
	if err == nil {
		t.Fatal("Expected error from failed pagination")
	}
	if store.Exists(catalogKey) {
		t.Error("Expected no catalog persisted after a mid-pagination failure")
	}
}

func TestSync_GatesEveryPageFetch(t *testing.T) {
	// Arrange
	mockClient := &MockStravaClient{
		Pages: [][]strava.ActivitySummary{
			{makeSummary(1, 0), makeSummary(2, 0)},
			{makeSummary(3, 0)},
		},
	}
	gate := &MockGate{}
	service := newCatalogService(mockClient, NewMemStore(), gate)
	service.firstRunPerPage = 2

	// Act
	if _, err := service.Sync(); err != nil {
		t.Fatalf("Sync() error: %v", err)
	}

	// Assert
	if gate.WaitCalls != len(mockClient.ListCalls) {
		t.Errorf("Expected %d gate waits, got %d", len(mockClient.ListCalls), gate.WaitCalls)
	}
}
