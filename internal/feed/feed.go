package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidItem marks a feed item missing fields the offline cache
	// depends on.
	ErrInvalidItem = errors.New("feed: invalid item")

	// ErrInvalidActionType marks a sync action type outside the closed set.
	ErrInvalidActionType = errors.New("feed: invalid action type")
)

// Author identifies the educator behind a feed item.
type Author struct {
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url"`
	IsVerified bool   `json:"is_verified"`
}

// Stats holds display counters for a feed item.
type Stats struct {
	Likes    string `json:"likes"`
	Comments string `json:"comments"`
	Shares   string `json:"shares"`
}

// Item is a single lesson video in the learning feed.
type Item struct {
	ID             string   `json:"id"`
	Topic          string   `json:"topic"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	VideoPosterURL string   `json:"video_poster_url"`
	Author         Author   `json:"author"`
	Stats          Stats    `json:"stats"`
	Transcript     []string `json:"transcript"`
}

// Validate checks the fields the offline cache depends on.
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidItem)
	}

	if i.VideoPosterURL == "" {
		return fmt.Errorf("%w: item %s has no poster URL", ErrInvalidItem, i.ID)
	}

	return nil
}

// VideoRecord is a feed item persisted for offline playback. Records are
// immutable once written; a re-save with the same id replaces the record.
type VideoRecord struct {
	Item

	// Blob holds the fetched poster media payload.
	Blob []byte `json:"blob"`

	// SavedAt is the time the record was written.
	SavedAt time.Time `json:"saved_at"`
}

// Sync action types accepted by the queue. The set is closed; the payload
// is opaque to the queue and interpreted only by the replay handler.
const (
	ActionXPGain       = "XP_GAIN"
	ActionQuizComplete = "QUIZ_COMPLETE"
)

// SyncAction is a state-changing action recorded while offline and
// replayed once connectivity returns.
type SyncAction struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// ValidActionType reports whether t is a member of the closed action set.
func ValidActionType(t string) bool {
	switch t {
	case ActionXPGain, ActionQuizComplete:
		return true
	}
	return false
}
