package sd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/eikrem/stravadump/strava"
)

const (
	// A first run fetches big pages to minimize round-trips over the
	// whole backlog; steady-state incremental syncs fetch small ones.
	firstRunPageSize    = 200
	incrementalPageSize = 30
)

// CatalogService fetches the remote activity list page by page and
// merges it into the locally cached catalog.
type CatalogService struct {
	client StravaClient
	store  Store
	gate   Gate
	logger Logger

	firstRunPerPage    int
	incrementalPerPage int
}

// NewCatalogService creates a new catalog service
func NewCatalogService(client StravaClient, store Store, gate Gate, logger Logger) *CatalogService {
	return &CatalogService{
		client:             client,
		store:              store,
		gate:               gate,
		logger:             logger,
		firstRunPerPage:    firstRunPageSize,
		incrementalPerPage: incrementalPageSize,
	}
}

// Sync fetches all activity summaries not yet in the catalog, persists
// the merged catalog, and returns it. Pagination stops at the first
// page shorter than the requested size; a collection that is an exact
// multiple of the page size costs one extra empty page, which is fine.
//
// On a remote failure mid-pagination nothing is persisted; the cached
// catalog on disk stays as it was.
func (s *CatalogService) Sync() ([]strava.ActivitySummary, error) {
	existing, err := s.load()
	if err != nil {
		return nil, err
	}

	perPage := s.incrementalPerPage
	if len(existing) == 0 {
		perPage = s.firstRunPerPage
	}

	known := make(map[int64]bool, len(existing))
	for _, a := range existing {
		known[a.ID] = true
	}

	merged := existing
	added := 0
	for page := 1; ; page++ {
		s.gate.Wait()

		fetched, err := s.client.ListActivities(page, perPage)
		if err != nil {
			return nil, fmt.Errorf("failed to list activities (page %d): %w", page, err)
		}

		s.logger.Debug("fetched activity page", "page", page, "count", len(fetched))

		// The provider may resurface known records near page
		// boundaries; keep only genuinely new entries.
		for _, a := range fetched {
			if known[a.ID] {
				continue
			}
			known[a.ID] = true
			merged = append(merged, a)
			added++
		}

		if len(fetched) < perPage {
			break
		}
	}

	if err := s.persist(merged); err != nil {
		return nil, err
	}

	s.logger.Info("catalog synced", "total", len(merged), "new", added)
	return merged, nil
}

func (s *CatalogService) load() ([]strava.ActivitySummary, error) {
	data, err := s.store.Read(catalogKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var catalog []strava.ActivitySummary
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return catalog, nil
}

func (s *CatalogService) persist(catalog []strava.ActivitySummary) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := s.store.Write(catalogKey, data); err != nil {
		return fmt.Errorf("failed to persist catalog: %w", err)
	}
	return nil
}
