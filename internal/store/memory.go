package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluffyriot/lunchsync/internal/classify"
	"github.com/fluffyriot/lunchsync/internal/fetcher"
)

// Memory is an in-process Store with the same version-precondition
// semantics as the Postgres one. It backs the tests and the dev storage
// backend.
type Memory struct {
	mu           sync.Mutex
	posts        map[uuid.UUID]SynchronizedPost
	byExternalID map[string]uuid.UUID
}

func NewMemory() *Memory {
	return &Memory{
		posts:        make(map[uuid.UUID]SynchronizedPost),
		byExternalID: make(map[string]uuid.UUID),
	}
}

func (m *Memory) Store(_ context.Context, data NewSynchronizedPost) (SynchronizedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byExternalID[data.Post.ExternalID]; exists {
		return SynchronizedPost{}, ErrDuplicateExternalID
	}

	now := time.Now()
	sp := SynchronizedPost{
		ID:             uuid.New(),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		PageKey:        data.PageKey,
		PageName:       data.PageName,
		Post:           data.Post,
		Classification: data.Classification,
		Repost:         data.Repost,
	}

	m.posts[sp.ID] = sp
	m.byExternalID[sp.Post.ExternalID] = sp.ID
	return sp, nil
}

func (m *Memory) UpdateRepost(_ context.Context, id uuid.UUID, expectedVersion int, repost Repost) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	if sp.Version != expectedVersion {
		return ErrConcurrentModification
	}

	sp.Repost = repost
	sp.Version++
	sp.UpdatedAt = time.Now()
	m.posts[id] = sp
	return nil
}

func (m *Memory) UpdateContent(_ context.Context, id uuid.UUID, expectedVersion int, post fetcher.Post, classification classify.Classification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.posts[id]
	if !ok {
		return ErrNotFound
	}
	if sp.Version != expectedVersion {
		return ErrConcurrentModification
	}

	delete(m.byExternalID, sp.Post.ExternalID)
	sp.Post = post
	sp.Classification = classification
	sp.Version++
	sp.UpdatedAt = time.Now()
	m.posts[id] = sp
	m.byExternalID[post.ExternalID] = id
	return nil
}

func (m *Memory) FindByID(_ context.Context, id uuid.UUID) (SynchronizedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.posts[id]
	if !ok {
		return SynchronizedPost{}, ErrNotFound
	}
	return sp, nil
}

func (m *Memory) FindByExternalID(_ context.Context, externalID string) (*SynchronizedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byExternalID[externalID]
	if !ok {
		return nil, nil
	}
	sp := m.posts[id]
	return &sp, nil
}

func (m *Memory) FindLastSeen(_ context.Context, pageKey string) (*SynchronizedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var last *SynchronizedPost
	for _, sp := range m.posts {
		if sp.PageKey != pageKey {
			continue
		}
		if last == nil || sp.Post.PublishedAt.After(last.Post.PublishedAt) {
			cp := sp
			last = &cp
		}
	}
	return last, nil
}

func (m *Memory) GetLastSeen(_ context.Context, limit int) ([]SynchronizedPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SynchronizedPost, 0, len(m.posts))
	for _, sp := range m.posts {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Post.PublishedAt.After(out[j].Post.PublishedAt)
	})

	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) StreamRetryable(_ context.Context, now time.Time, visit func(SynchronizedPost) error) error {
	m.mu.Lock()
	var due []SynchronizedPost
	for _, sp := range m.posts {
		r := sp.Repost
		if r.Status == RepostFailed && r.NextAttemptAt != nil && !r.NextAttemptAt.After(now) {
			due = append(due, sp)
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		return due[i].Post.PublishedAt.Before(due[j].Post.PublishedAt)
	})

	for _, sp := range due {
		if err := visit(sp); err != nil {
			return err
		}
	}
	return nil
}
