package sd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/eikrem/stravadump/strava"
)

// Strava serves a stock placeholder image for photos whose original
// upload is gone; those are not worth downloading.
const placeholderURLFragment = "placeholder"

// AssetService ensures that for each catalog entry the activity
// detail, photo metadata, and photo binaries exist locally, fetching
// only what is missing. Everything is cache-first: a present blob is
// never re-fetched.
type AssetService struct {
	client StravaClient
	store  Store
	gate   Gate
	logger Logger
}

// NewAssetService creates a new asset service
func NewAssetService(client StravaClient, store Store, gate Gate, logger Logger) *AssetService {
	return &AssetService{
		client: client,
		store:  store,
		gate:   gate,
		logger: logger,
	}
}

func activityDir(id int64) string {
	return fmt.Sprintf("activities/%d", id)
}

func detailKey(id int64) string {
	return activityDir(id) + "/detail.json"
}

func photosKey(id int64) string {
	return activityDir(id) + "/photos.json"
}

// ResolveAll processes every catalog entry in order. A failure inside
// one activity is recorded and the run continues with the next; a
// single bad activity must not block the backlog. onResult, when
// non-nil, is invoked with each result as it completes.
func (s *AssetService) ResolveAll(catalog []strava.ActivitySummary, onResult func(ActivityResult)) *SyncSummary {
	summary := &SyncSummary{Activities: len(catalog)}

	for _, activity := range catalog {
		result := s.resolveActivity(activity)
		summary.Results = append(summary.Results, result)

		summary.Downloaded += result.Downloaded
		summary.Skipped += result.Skipped
		if result.Err != nil {
			summary.Errors++
			s.logger.Warn("activity processing failed",
				"activity_id", result.ActivityID, "error", result.Err)
		}

		if onResult != nil {
			onResult(result)
		}
	}

	return summary
}

// resolveActivity resolves one activity: detail, then photo metadata,
// then binaries, strictly in that order.
func (s *AssetService) resolveActivity(activity strava.ActivitySummary) ActivityResult {
	result := ActivityResult{ActivityID: activity.ID}

	detail, err := s.resolveDetail(activity.ID, &result)
	if err != nil {
		result.Err = err
		return result
	}

	photoCount := activity.TotalPhotoCount
	if detail.TotalPhotoCount > photoCount {
		photoCount = detail.TotalPhotoCount
	}
	if photoCount == 0 {
		return result
	}

	photos, err := s.resolvePhotos(activity.ID, &result)
	if err != nil {
		result.Err = err
		return result
	}

	if err := s.downloadBinaries(activity.ID, photos, &result); err != nil {
		result.Err = err
	}
	return result
}

// activityDetail is the slice of the detail blob the resolver needs;
// the blob itself is persisted verbatim.
type activityDetail struct {
	TotalPhotoCount int `json:"total_photo_count"`
}

func (s *AssetService) resolveDetail(id int64, result *ActivityResult) (activityDetail, error) {
	var detail activityDetail

	key := detailKey(id)
	data, err := s.store.Read(key)
	if err == nil {
		result.DetailCached = true
		s.decodeDetail(id, data, &detail)
		return detail, nil
	}
	// Only an absent blob is a cache miss; any other read failure is
	// a store fault and must not silently turn into a remote re-fetch.
	if !errors.Is(err, os.ErrNotExist) {
		return detail, fmt.Errorf("failed to read cached detail for activity %d: %w", id, err)
	}

	s.gate.Wait()
	raw, err := s.client.GetActivity(id)
	if err != nil {
		return detail, fmt.Errorf("failed to fetch detail for activity %d: %w", id, err)
	}
	if err := s.store.Write(key, raw); err != nil {
		return detail, fmt.Errorf("failed to persist detail for activity %d: %w", id, err)
	}

	s.logger.Debug("fetched activity detail", "activity_id", id)
	s.decodeDetail(id, raw, &detail)
	return detail, nil
}

// decodeDetail extracts the fields the resolver needs from a detail
// blob. The blob is provider JSON persisted verbatim; a blob that does
// not decode is treated as having no photos, with a diagnostic.
func (s *AssetService) decodeDetail(id int64, data []byte, detail *activityDetail) {
	if err := json.Unmarshal(data, detail); err != nil {
		s.logger.Debug("failed to decode detail blob", "activity_id", id, "error", err)
	}
}

func (s *AssetService) resolvePhotos(id int64, result *ActivityResult) ([]strava.Photo, error) {
	key := photosKey(id)
	data, err := s.store.Read(key)
	if err == nil {
		var photos []strava.Photo
		if err := json.Unmarshal(data, &photos); err != nil {
			return nil, fmt.Errorf("failed to decode cached photos for activity %d: %w", id, err)
		}
		result.PhotosCached = true
		return photos, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read cached photos for activity %d: %w", id, err)
	}

	s.gate.Wait()
	photos, err := s.client.ListPhotos(id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch photos for activity %d: %w", id, err)
	}

	data, err = json.Marshal(photos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode photos for activity %d: %w", id, err)
	}
	if err := s.store.Write(key, data); err != nil {
		return nil, fmt.Errorf("failed to persist photos for activity %d: %w", id, err)
	}

	s.logger.Debug("fetched photo metadata", "activity_id", id, "photos", len(photos))
	return photos, nil
}

// downloadBinaries fetches every photo binary not already on disk.
// The filename itself is the cache marker; there is no separate
// completion record.
func (s *AssetService) downloadBinaries(id int64, photos []strava.Photo, result *ActivityResult) error {
	existing, err := s.store.List(activityDir(id))
	if err != nil {
		return fmt.Errorf("failed to list assets for activity %d: %w", id, err)
	}
	present := make(map[string]bool, len(existing))
	for _, name := range existing {
		present[name] = true
	}

	for _, photo := range photos {
		photoURL := photo.LargestURL()
		if photoURL == "" || isPlaceholderURL(photoURL) {
			result.Skipped++
			s.logger.Warn("photo has no downloadable url, skipping",
				"activity_id", id, "photo_id", photo.UniqueID)
			continue
		}

		filename := photo.UniqueID + extFromURL(photoURL)
		if present[filename] {
			result.AlreadyOnDisk++
			continue
		}

		data, err := s.client.Download(photoURL)
		if err != nil {
			return fmt.Errorf("failed to download photo %s for activity %d: %w", photo.UniqueID, id, err)
		}
		if err := s.store.Write(activityDir(id)+"/"+filename, data); err != nil {
			return fmt.Errorf("failed to save photo %s for activity %d: %w", photo.UniqueID, id, err)
		}

		result.Downloaded++
		s.logger.Debug("downloaded photo", "activity_id", id, "file", filename)
		s.gate.Jitter()
	}

	return nil
}

func isPlaceholderURL(photoURL string) bool {
	return strings.Contains(photoURL, placeholderURLFragment)
}

// extFromURL derives a file extension from the URL path, with the
// query string stripped first. CDN photo URLs are jpegs, so an
// extensionless path falls back to ".jpg".
func extFromURL(photoURL string) string {
	u, err := url.Parse(photoURL)
	if err != nil {
		return ".jpg"
	}
	ext := path.Ext(u.Path)
	if ext == "" {
		return ".jpg"
	}
	return ext
}
