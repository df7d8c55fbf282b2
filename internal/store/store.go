package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fluffyriot/lunchsync/internal/classify"
	"github.com/fluffyriot/lunchsync/internal/fetcher"
)

var (
	ErrNotFound               = errors.New("synchronized post not found")
	ErrConcurrentModification = errors.New("synchronized post was modified concurrently")
	ErrDuplicateExternalID    = errors.New("a post with this external id already exists")
)

// Store persists synchronized posts. Updates are conditional on the
// caller's expected version; the store never retries a lost race on the
// caller's behalf.
type Store interface {
	// Store creates a row at version 1, or fails with
	// ErrDuplicateExternalID.
	Store(ctx context.Context, data NewSynchronizedPost) (SynchronizedPost, error)

	// UpdateRepost replaces only the repost state of the row, bumping
	// the version by one. ErrNotFound / ErrConcurrentModification.
	UpdateRepost(ctx context.Context, id uuid.UUID, expectedVersion int, repost Repost) error

	// UpdateContent replaces the post payload and classification,
	// leaving the repost state untouched. Same failure modes.
	UpdateContent(ctx context.Context, id uuid.UUID, expectedVersion int, post fetcher.Post, classification classify.Classification) error

	// FindByID fails with ErrNotFound when the row is absent.
	FindByID(ctx context.Context, id uuid.UUID) (SynchronizedPost, error)

	// FindByExternalID returns nil when no row carries the id.
	FindByExternalID(ctx context.Context, externalID string) (*SynchronizedPost, error)

	// FindLastSeen returns the page's row with the greatest publish
	// time, or nil when the page has none.
	FindLastSeen(ctx context.Context, pageKey string) (*SynchronizedPost, error)

	// GetLastSeen returns up to limit rows, newest-published first.
	GetLastSeen(ctx context.Context, limit int) ([]SynchronizedPost, error)

	// StreamRetryable visits every failed row whose next attempt is due
	// at now, in ascending publish order. It mutates nothing.
	StreamRetryable(ctx context.Context, now time.Time, visit func(SynchronizedPost) error) error
}
