package repost

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fluffyriot/lunchsync/internal/store"
)

// Sink delivers one post to the messaging endpoint and returns the id
// of the message it created.
type Sink interface {
	Repost(ctx context.Context, post store.SynchronizedPost, pageName string) (string, error)
}

// Reposter drives a post's repost state machine: one delivery attempt
// per call, exponential backoff on failure, idempotent terminal states.
type Reposter struct {
	store       store.Store
	sink        Sink
	baseDelay   time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewReposter(s store.Store, sink Sink, baseDelay time.Duration, maxAttempts int) *Reposter {
	return &Reposter{
		store:       s,
		sink:        sink,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Repost attempts delivery for a Pending or Failed post and persists
// the outcome. Skip and Success are no-ops. A lost version race on the
// state update surfaces to the caller unretried.
func (r *Reposter) Repost(ctx context.Context, sp store.SynchronizedPost) error {
	switch sp.Repost.Status {
	case store.RepostSkip, store.RepostSuccess:
		log.Printf("Reposter: post %s is already %s, nothing to do", sp.ID, sp.Repost.Status)
		return nil
	case store.RepostPending, store.RepostFailed:
		// fall through to the attempt
	default:
		return fmt.Errorf("post %s has unknown repost status %q", sp.ID, sp.Repost.Status)
	}

	messageID, err := r.sink.Repost(ctx, sp, sp.PageName)
	now := r.now()

	if err != nil {
		attempt := 1
		if sp.Repost.Status == store.RepostFailed {
			attempt = sp.Repost.Attempts + 1
		}

		var next *time.Time
		if attempt < r.maxAttempts {
			t := now.Add(Backoff(r.baseDelay, attempt))
			next = &t
		}

		if next == nil {
			log.Printf("Reposter: delivery of post %s failed on attempt %d/%d, giving up: %v", sp.ID, attempt, r.maxAttempts, err)
		} else {
			log.Printf("Reposter: delivery of post %s failed on attempt %d/%d, next try at %s: %v", sp.ID, attempt, r.maxAttempts, next.Format(time.RFC3339), err)
		}
		return r.store.UpdateRepost(ctx, sp.ID, sp.Version, store.FailedRepost(attempt, now, next))
	}

	log.Printf("Reposter: post %s delivered as message %s", sp.ID, messageID)
	return r.store.UpdateRepost(ctx, sp.ID, sp.Version, store.SuccessRepost(now))
}

// RetrySweep gives every due failed post exactly one new attempt.
func (r *Reposter) RetrySweep(ctx context.Context) {
	count := 0
	err := r.store.StreamRetryable(ctx, r.now(), func(sp store.SynchronizedPost) error {
		count++
		if err := r.Repost(ctx, sp); err != nil {
			log.Printf("Reposter: retry of post %s failed: %v", sp.ID, err)
		}
		return nil
	})
	if err != nil {
		log.Printf("Reposter: retry sweep aborted: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Reposter: retry sweep attempted %d posts", count)
	}
}

// Backoff is the delay before the attempt after this one:
// baseDelay * 2^(attempt-1).
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	return baseDelay << (attempt - 1)
}
