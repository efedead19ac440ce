package offline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Bonniface/TeachTap/internal/feed"
)

func TestProcessQueueReplaysEachActionOnce(t *testing.T) {
	q := NewQueueManager(openTestStore(t), testLogger())

	for i := 0; i < 3; i++ {
		if _, err := q.QueueAction(context.Background(), feed.ActionXPGain, json.RawMessage(`{"amount":100}`)); err != nil {
			t.Fatalf("queue %d failed: %v", i, err)
		}
	}

	var handled []string
	err := q.ProcessQueue(context.Background(), func(action *feed.SyncAction) error {
		handled = append(handled, action.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}

	if len(handled) != 3 {
		t.Errorf("expected handler invoked exactly 3 times, got %d", len(handled))
	}

	seen := make(map[string]bool)
	for _, id := range handled {
		if seen[id] {
			t.Errorf("action %s handled more than once", id)
		}
		seen[id] = true
	}

	pending, err := q.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("PendingCount failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("expected empty queue after processing, got %d pending", pending)
	}
}

func TestProcessQueueEmptyIsNoop(t *testing.T) {
	q := NewQueueManager(openTestStore(t), testLogger())

	err := q.ProcessQueue(context.Background(), func(action *feed.SyncAction) error {
		t.Error("handler must not run for an empty queue")
		return nil
	})
	if err != nil {
		t.Fatalf("ProcessQueue on empty queue failed: %v", err)
	}
}

func TestProcessQueueHandlerFailureKeepsRemainder(t *testing.T) {
	q := NewQueueManager(openTestStore(t), testLogger())

	for i := 0; i < 3; i++ {
		if _, err := q.QueueAction(context.Background(), feed.ActionQuizComplete, json.RawMessage(`{"video_id":"v1"}`)); err != nil {
			t.Fatalf("queue %d failed: %v", i, err)
		}
	}

	failErr := errors.New("backend down")
	calls := 0
	err := q.ProcessQueue(context.Background(), func(action *feed.SyncAction) error {
		calls++
		if calls == 2 {
			return failErr
		}
		return nil
	})
	if !errors.Is(err, failErr) {
		t.Fatalf("expected handler error to propagate, got %v", err)
	}

	// The first action was acknowledged; the failed one and the one
	// after it stay queued for the next attempt.
	pending, _ := q.PendingCount(context.Background())
	if pending != 2 {
		t.Errorf("expected 2 actions still queued, got %d", pending)
	}
}

func TestQueueActionRejectsUnknownType(t *testing.T) {
	q := NewQueueManager(openTestStore(t), testLogger())

	if _, err := q.QueueAction(context.Background(), "DELETE_EVERYTHING", nil); !errors.Is(err, feed.ErrInvalidActionType) {
		t.Fatalf("expected ErrInvalidActionType, got %v", err)
	}

	pending, _ := q.PendingCount(context.Background())
	if pending != 0 {
		t.Errorf("rejected action must not be stored, got %d pending", pending)
	}
}
