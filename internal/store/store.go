package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Bonniface/TeachTap/internal/feed"
)

// Bucket names. The two collections share one physical database handle but
// every operation runs in a transaction scoped to its own bucket.
var (
	bucketVideos    = []byte("videos")
	bucketSyncQueue = []byte("syncQueue")
)

// ErrCapacityExceeded is returned by PutVideoCapped when the videos
// collection is already at its limit.
var ErrCapacityExceeded = errors.New("store: video capacity exceeded")

// ErrUnavailable wraps failures to open the database or run a transaction.
var ErrUnavailable = errors.New("store: unavailable")

// Store is a bbolt-backed persistent store with two collections:
// downloaded video records and the pending sync-action queue.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %v", ErrUnavailable, err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketVideos, bucketSyncQueue} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create buckets: %v", ErrUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutVideoCapped writes rec keyed by its item id, failing with
// ErrCapacityExceeded when the collection already holds limit records.
// The count check and the insert run in one transaction, so concurrent
// callers cannot jointly exceed the limit. Overwriting an existing id is
// always allowed and does not count against the limit.
func (s *Store) PutVideoCapped(rec *feed.VideoRecord, limit int) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal video record %s: %w", rec.ID, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketVideos)
		key := []byte(rec.ID)

		if b.Get(key) == nil && b.Stats().KeyN >= limit {
			return ErrCapacityExceeded
		}

		return b.Put(key, data)
	})
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			return err
		}
		return fmt.Errorf("%w: put video %s: %v", ErrUnavailable, rec.ID, err)
	}

	return nil
}

// GetVideo returns the record with the given id, or found=false if absent.
func (s *Store) GetVideo(id string) (*feed.VideoRecord, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketVideos).Get([]byte(id)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: get video %s: %v", ErrUnavailable, id, err)
	}

	if data == nil {
		return nil, false, nil
	}

	var rec feed.VideoRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal video record %s: %w", id, err)
	}

	return &rec, true, nil
}

// DeleteVideo removes the record with the given id. Deleting a missing id
// is not an error.
func (s *Store) DeleteVideo(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVideos).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("%w: delete video %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

// ListVideos returns every stored video record in key order.
func (s *Store) ListVideos() ([]*feed.VideoRecord, error) {
	var records []*feed.VideoRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVideos).ForEach(func(k, v []byte) error {
			var rec feed.VideoRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal video record %s: %w", k, err)
			}
			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list videos: %v", ErrUnavailable, err)
	}

	return records, nil
}

// CountVideos returns the number of stored video records.
func (s *Store) CountVideos() (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketVideos).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count videos: %v", ErrUnavailable, err)
	}
	return count, nil
}

// PutSyncAction appends a pending action keyed by its id.
func (s *Store) PutSyncAction(action *feed.SyncAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshal sync action %s: %w", action.ID, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSyncQueue).Put([]byte(action.ID), data)
	})
	if err != nil {
		return fmt.Errorf("%w: put sync action %s: %v", ErrUnavailable, action.ID, err)
	}

	return nil
}

// ListSyncActions returns every pending action. Order follows the store's
// key ordering and is best-effort, not a replay guarantee.
func (s *Store) ListSyncActions() ([]*feed.SyncAction, error) {
	var actions []*feed.SyncAction

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSyncQueue).ForEach(func(k, v []byte) error {
			var action feed.SyncAction
			if err := json.Unmarshal(v, &action); err != nil {
				return fmt.Errorf("unmarshal sync action %s: %w", k, err)
			}
			actions = append(actions, &action)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list sync actions: %v", ErrUnavailable, err)
	}

	return actions, nil
}

// DeleteSyncAction removes a single pending action by id.
func (s *Store) DeleteSyncAction(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSyncQueue).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("%w: delete sync action %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

// CountSyncActions returns the number of pending actions.
func (s *Store) CountSyncActions() (int, error) {
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketSyncQueue).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count sync actions: %v", ErrUnavailable, err)
	}
	return count, nil
}
