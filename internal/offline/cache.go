package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Bonniface/TeachTap/internal/feed"
	"github.com/Bonniface/TeachTap/internal/store"
)

// DownloadLimit is the maximum number of videos kept offline. Enforced by
// the cache manager, not by the store itself.
const DownloadLimit = 10

// ErrCapacityExceeded is returned by SaveVideo when the cache is full.
// The caller must remove a video before retrying.
var ErrCapacityExceeded = errors.New("offline: download limit reached")

// ErrFetchFailed is returned when the poster media could not be fetched.
// No partial state is left behind; the caller may retry.
var ErrFetchFailed = errors.New("offline: media fetch failed")

// CacheConfig contains offline cache configuration.
type CacheConfig struct {
	// Limit caps the number of stored videos. Defaults to DownloadLimit.
	Limit int

	// FetchTimeout bounds the poster media fetch.
	FetchTimeout time.Duration

	// LocalDir is where transient local copies are materialized.
	// Defaults to the OS temp directory.
	LocalDir string
}

// CacheManager enforces the capacity bound on downloaded videos and owns
// fetching and persisting their media payloads.
type CacheManager struct {
	store      *store.Store
	httpClient *http.Client
	logger     *slog.Logger
	limit      int
	localDir   string
}

// DownloadedVideo is a stored record annotated with a transient local
// copy of its media payload. The local file lives for the process
// lifetime at most; callers release it when no longer displayed.
type DownloadedVideo struct {
	feed.VideoRecord

	// LocalPath points at the materialized media file.
	LocalPath string `json:"local_path"`

	// Downloaded is always true for records returned by the cache.
	Downloaded bool `json:"downloaded"`
}

// Release removes the transient local copy. Safe to call more than once.
func (v *DownloadedVideo) Release() error {
	if v.LocalPath == "" {
		return nil
	}

	err := os.Remove(v.LocalPath)
	v.LocalPath = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release local copy for %s: %w", v.ID, err)
	}

	return nil
}

// NewCacheManager creates a cache manager over the given store.
func NewCacheManager(st *store.Store, logger *slog.Logger, cfg CacheConfig) *CacheManager {
	if cfg.Limit <= 0 {
		cfg.Limit = DownloadLimit
	}

	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}

	if cfg.LocalDir == "" {
		cfg.LocalDir = os.TempDir()
	}

	return &CacheManager{
		store:      st,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		logger:     logger,
		limit:      cfg.Limit,
		localDir:   cfg.LocalDir,
	}
}

// SaveVideo fetches the item's poster media and persists it as an offline
// record. Fails with ErrCapacityExceeded when the cache is full and with
// ErrFetchFailed when the fetch fails; neither leaves a partial write.
// Re-saving an already stored id replaces the record.
func (m *CacheManager) SaveVideo(ctx context.Context, item feed.Item) (*feed.VideoRecord, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	// Capacity precheck before the expensive fetch. The store re-checks
	// inside the write transaction, so concurrent saves cannot jointly
	// exceed the limit.
	count, err := m.store.CountVideos()
	if err != nil {
		return nil, err
	}
	if count >= m.limit {
		_, exists, err := m.store.GetVideo(item.ID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %d of %d videos saved", ErrCapacityExceeded, count, m.limit)
		}
	}

	blob, err := m.fetchPoster(ctx, item.VideoPosterURL)
	if err != nil {
		m.logger.Warn("Poster fetch failed",
			slog.String("item_id", item.ID),
			slog.String("url", item.VideoPosterURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	rec := &feed.VideoRecord{
		Item:    item,
		Blob:    blob,
		SavedAt: time.Now(),
	}

	if err := m.store.PutVideoCapped(rec, m.limit); err != nil {
		if errors.Is(err, store.ErrCapacityExceeded) {
			return nil, fmt.Errorf("%w: limit is %d videos", ErrCapacityExceeded, m.limit)
		}
		return nil, err
	}

	m.logger.Info("Video saved for offline playback",
		slog.String("item_id", item.ID),
		slog.String("title", item.Title),
		slog.Int("blob_bytes", len(blob)),
	)

	return rec, nil
}

// RemoveVideo deletes the stored record with the given id. Removing an
// absent id succeeds without error.
func (m *CacheManager) RemoveVideo(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.store.DeleteVideo(id); err != nil {
		return err
	}

	m.logger.Info("Offline video removed", slog.String("item_id", id))
	return nil
}

// GetDownloadedCount returns the number of stored videos.
func (m *CacheManager) GetDownloadedCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return m.store.CountVideos()
}

// GetAllDownloadedVideos returns every stored record, each materialized
// with a fresh transient local media file. Local files are created per
// call and are never persisted; callers release them via Release.
func (m *CacheManager) GetAllDownloadedVideos(ctx context.Context) ([]*DownloadedVideo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := m.store.ListVideos()
	if err != nil {
		return nil, err
	}

	videos := make([]*DownloadedVideo, 0, len(records))
	for _, rec := range records {
		localPath, err := m.materialize(rec)
		if err != nil {
			// Release anything already materialized; no partial result.
			for _, v := range videos {
				v.Release()
			}
			return nil, err
		}

		videos = append(videos, &DownloadedVideo{
			VideoRecord: *rec,
			LocalPath:   localPath,
			Downloaded:  true,
		})
	}

	return videos, nil
}

// fetchPoster downloads the poster media payload.
func (m *CacheManager) fetchPoster(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create fetch request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media payload: %w", err)
	}

	return blob, nil
}

// materialize writes the record's blob into a fresh local file.
func (m *CacheManager) materialize(rec *feed.VideoRecord) (string, error) {
	f, err := os.CreateTemp(m.localDir, "teachtap-media-"+rec.ID+"-*")
	if err != nil {
		return "", fmt.Errorf("create local copy for %s: %w", rec.ID, err)
	}

	if _, err := f.Write(rec.Blob); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write local copy for %s: %w", rec.ID, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close local copy for %s: %w", rec.ID, err)
	}

	return filepath.Clean(f.Name()), nil
}
