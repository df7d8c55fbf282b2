package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/fluffyriot/lunchsync/internal/classify"
	"github.com/fluffyriot/lunchsync/internal/fetcher"
)

type RepostStatus string

const (
	RepostSkip    RepostStatus = "skip"
	RepostPending RepostStatus = "pending"
	RepostSuccess RepostStatus = "success"
	RepostFailed  RepostStatus = "failed"
)

// Repost is a tagged value: only the fields of the active status are
// meaningful. A Failed repost with a nil NextAttemptAt has exhausted
// its retries.
type Repost struct {
	Status        RepostStatus
	RepostedAt    *time.Time
	Attempts      int
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
}

func SkipRepost() Repost {
	return Repost{Status: RepostSkip}
}

func PendingRepost() Repost {
	return Repost{Status: RepostPending}
}

func SuccessRepost(at time.Time) Repost {
	return Repost{Status: RepostSuccess, RepostedAt: &at}
}

func FailedRepost(attempts int, lastAttempt time.Time, nextAttempt *time.Time) Repost {
	return Repost{
		Status:        RepostFailed,
		Attempts:      attempts,
		LastAttemptAt: &lastAttempt,
		NextAttemptAt: nextAttempt,
	}
}

// Terminal reports whether no further delivery attempt will ever be
// made for this repost state.
func (r Repost) Terminal() bool {
	switch r.Status {
	case RepostSkip, RepostSuccess:
		return true
	case RepostFailed:
		return r.NextAttemptAt == nil
	default:
		return false
	}
}

// SynchronizedPost is the durable record of one observed post. Rows are
// only ever mutated through a current-version precondition.
type SynchronizedPost struct {
	ID             uuid.UUID
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	PageKey        string
	PageName       string
	Post           fetcher.Post
	Classification classify.Classification
	Repost         Repost
}

// NewSynchronizedPost is the input for creating a row at version 1.
type NewSynchronizedPost struct {
	PageKey        string
	PageName       string
	Post           fetcher.Post
	Classification classify.Classification
	Repost         Repost
}
