package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/Bonniface/TeachTap/internal/feed"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "teachtap.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func testRecord(id string) *feed.VideoRecord {
	return &feed.VideoRecord{
		Item: feed.Item{
			ID:             id,
			Topic:          "Physics",
			Title:          "Relativity Basics",
			VideoPosterURL: "https://cdn.example.com/" + id + ".jpg",
		},
		Blob:    []byte("poster-bytes-" + id),
		SavedAt: time.Now(),
	}
}

func TestPutVideoCappedEnforcesLimit(t *testing.T) {
	s := openTestStore(t)
	limit := 3

	for i := 0; i < limit; i++ {
		if err := s.PutVideoCapped(testRecord(fmt.Sprintf("v%d", i)), limit); err != nil {
			t.Fatalf("put %d failed: %v", i, err)
		}
	}

	err := s.PutVideoCapped(testRecord("overflow"), limit)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	count, err := s.CountVideos()
	if err != nil {
		t.Fatalf("CountVideos failed: %v", err)
	}
	if count != limit {
		t.Errorf("expected %d records after rejected put, got %d", limit, count)
	}
}

func TestPutVideoCappedOverwriteAtLimit(t *testing.T) {
	s := openTestStore(t)
	limit := 2

	if err := s.PutVideoCapped(testRecord("a"), limit); err != nil {
		t.Fatalf("put a failed: %v", err)
	}
	if err := s.PutVideoCapped(testRecord("b"), limit); err != nil {
		t.Fatalf("put b failed: %v", err)
	}

	// Re-saving an existing id must succeed even at the limit.
	updated := testRecord("a")
	updated.Blob = []byte("replacement")
	if err := s.PutVideoCapped(updated, limit); err != nil {
		t.Fatalf("overwrite at limit failed: %v", err)
	}

	count, _ := s.CountVideos()
	if count != limit {
		t.Errorf("expected %d records after overwrite, got %d", limit, count)
	}

	rec, found, err := s.GetVideo("a")
	if err != nil || !found {
		t.Fatalf("GetVideo failed: found=%v err=%v", found, err)
	}
	if string(rec.Blob) != "replacement" {
		t.Errorf("expected second write to supersede the first, got %q", rec.Blob)
	}
}

func TestDeleteVideoMissingIsNoop(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutVideoCapped(testRecord("keep"), 10); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if err := s.DeleteVideo("never-existed"); err != nil {
		t.Fatalf("delete of missing id should be a no-op, got %v", err)
	}

	count, _ := s.CountVideos()
	if count != 1 {
		t.Errorf("expected 1 record, got %d", count)
	}
}

func TestListVideosRoundTrip(t *testing.T) {
	s := openTestStore(t)

	want := testRecord("v1")
	want.Transcript = []string{"line one", "line two"}
	if err := s.PutVideoCapped(want, 10); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	records, err := s.ListVideos()
	if err != nil {
		t.Fatalf("ListVideos failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0]
	if got.ID != want.ID || got.Title != want.Title {
		t.Errorf("metadata mismatch: got %q/%q", got.ID, got.Title)
	}
	if string(got.Blob) != string(want.Blob) {
		t.Errorf("blob mismatch: got %q", got.Blob)
	}
	if len(got.Transcript) != 2 {
		t.Errorf("expected transcript to survive storage, got %v", got.Transcript)
	}
}

func TestSyncActionLifecycle(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		action := &feed.SyncAction{
			ID:        fmt.Sprintf("a%d", i),
			Type:      feed.ActionXPGain,
			Payload:   json.RawMessage(`{"amount":100}`),
			Timestamp: time.Now(),
		}
		if err := s.PutSyncAction(action); err != nil {
			t.Fatalf("put action %d failed: %v", i, err)
		}
	}

	actions, err := s.ListSyncActions()
	if err != nil {
		t.Fatalf("ListSyncActions failed: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 pending actions, got %d", len(actions))
	}

	for _, action := range actions {
		if err := s.DeleteSyncAction(action.ID); err != nil {
			t.Fatalf("delete action %s failed: %v", action.ID, err)
		}
	}

	count, err := s.CountSyncActions()
	if err != nil {
		t.Fatalf("CountSyncActions failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty queue, got %d", count)
	}
}
