package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Bonniface/TeachTap/internal/feed"
	"github.com/Bonniface/TeachTap/internal/store"
)

// Handler replays a single pending action against the live backend. A
// returned error aborts processing and leaves the remaining actions
// queued for the next attempt.
type Handler func(action *feed.SyncAction) error

// QueueManager records state-changing actions while offline and replays
// them exactly once on reconnect.
type QueueManager struct {
	store  *store.Store
	logger *slog.Logger

	// Serializes the read-process-delete sequence against concurrent
	// ProcessQueue callers.
	mu sync.Mutex
}

// NewQueueManager creates a queue manager over the given store.
func NewQueueManager(st *store.Store, logger *slog.Logger) *QueueManager {
	return &QueueManager{
		store:  st,
		logger: logger,
	}
}

// QueueAction appends an action of the given type with an opaque payload.
// The action receives a fresh id and the current timestamp.
func (q *QueueManager) QueueAction(ctx context.Context, actionType string, payload json.RawMessage) (*feed.SyncAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !feed.ValidActionType(actionType) {
		return nil, fmt.Errorf("%w: %q", feed.ErrInvalidActionType, actionType)
	}

	action := &feed.SyncAction{
		ID:        uuid.NewString(),
		Type:      actionType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	if err := q.store.PutSyncAction(action); err != nil {
		return nil, err
	}

	q.logger.Info("Sync action queued",
		slog.String("action_id", action.ID),
		slog.String("type", action.Type),
	)

	return action, nil
}

// ProcessQueue replays every pending action through handler. Each action
// is deleted from the queue immediately after its handler call succeeds,
// so an aborted run never replays already-applied actions. A handler
// error stops processing; the failed action and everything after it stay
// queued. Calling with an empty queue is a no-op.
func (q *QueueManager) ProcessQueue(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	actions, err := q.store.ListSyncActions()
	if err != nil {
		return err
	}

	if len(actions) == 0 {
		return nil
	}

	q.logger.Info("Replaying offline sync actions", slog.Int("pending", len(actions)))

	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := handler(action); err != nil {
			return fmt.Errorf("replay sync action %s (%s): %w", action.ID, action.Type, err)
		}

		if err := q.store.DeleteSyncAction(action.ID); err != nil {
			return err
		}
	}

	q.logger.Info("Sync queue drained", slog.Int("processed", len(actions)))
	return nil
}

// PendingCount returns the number of queued actions.
func (q *QueueManager) PendingCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return q.store.CountSyncActions()
}
