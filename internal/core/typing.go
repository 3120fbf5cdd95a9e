package core

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/supportchat-server/internal/store"
)

// DefaultTypingTTL is how long a typing marker lives without a refresh.
const DefaultTypingTTL = 10 * time.Second

// TypingTracker manages expiring typing markers. It never emits a stop when
// a marker expires; readers treat expired markers as not typing.
type TypingTracker struct {
	store store.TypingStore
	ttl   time.Duration
	now   func() time.Time
}

// NewTypingTracker builds a tracker. ttl <= 0 uses DefaultTypingTTL and a nil
// now uses time.Now.
func NewTypingTracker(st store.TypingStore, ttl time.Duration, now func() time.Time) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TypingTracker{store: st, ttl: ttl, now: now}
}

// Start upserts the marker for (roomID, userID) with a fresh expiry.
func (t *TypingTracker) Start(ctx context.Context, roomID, userID string) (time.Time, error) {
	at := t.now().UTC()
	err := t.store.UpsertTyping(ctx, &store.TypingMarker{
		RoomID:    roomID,
		UserID:    userID,
		IsTyping:  true,
		ExpiresAt: at.Add(t.ttl),
	})
	return at, err
}

// Stop deletes the marker.
func (t *TypingTracker) Stop(ctx context.Context, roomID, userID string) (time.Time, error) {
	at := t.now().UTC()
	return at, t.store.DeleteTyping(ctx, roomID, userID)
}

// IsTyping reports whether a live, unexpired marker exists.
func (t *TypingTracker) IsTyping(ctx context.Context, roomID, userID string) (bool, error) {
	marker, err := t.store.GetTyping(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return marker.Live(t.now()), nil
}

// Typers returns the users with live markers in roomID.
func (t *TypingTracker) Typers(ctx context.Context, roomID string) ([]string, error) {
	markers, err := t.store.ListTyping(ctx, roomID)
	if err != nil {
		return nil, err
	}

	now := t.now()
	users := make([]string, 0, len(markers))
	for _, m := range markers {
		if m.Live(now) {
			users = append(users, m.UserID)
		}
	}
	return users, nil
}

type typingPurger interface {
	PurgeExpiredTyping(ctx context.Context, now time.Time) (int64, error)
}

// Purge drops expired markers if the store supports it. Readers never rely
// on this.
func (t *TypingTracker) Purge(ctx context.Context) (int64, error) {
	p, ok := t.store.(typingPurger)
	if !ok {
		return 0, nil
	}
	return p.PurgeExpiredTyping(ctx, t.now())
}
