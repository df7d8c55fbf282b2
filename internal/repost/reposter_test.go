package repost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluffyriot/lunchsync/internal/classify"
	"github.com/fluffyriot/lunchsync/internal/fetcher"
	"github.com/fluffyriot/lunchsync/internal/store"
)

type fakeSink struct {
	calls int
	fail  bool
}

func (f *fakeSink) Repost(context.Context, store.SynchronizedPost, string) (string, error) {
	f.calls++
	if f.fail {
		return "", errors.New("webhook down")
	}
	return "msg-1", nil
}

func storePending(t *testing.T, m *store.Memory) store.SynchronizedPost {
	t.Helper()
	sp, err := m.Store(context.Background(), store.NewSynchronizedPost{
		PageKey:  "bona",
		PageName: "Cafe Bona",
		Post: fetcher.Post{
			ExternalID:  "p1",
			URL:         "https://www.example.com/bona/posts/1",
			PublishedAt: time.Now(),
			Content:     "lounas",
		},
		Classification: classify.LunchPost,
		Repost:         store.PendingRepost(),
	})
	require.NoError(t, err)
	return sp
}

func TestBackoffSchedule(t *testing.T) {
	assert.Equal(t, time.Minute, Backoff(time.Minute, 1))
	assert.Equal(t, 2*time.Minute, Backoff(time.Minute, 2))
	assert.Equal(t, 4*time.Minute, Backoff(time.Minute, 3))
	assert.Equal(t, 8*time.Second, Backoff(time.Second, 4))
}

func TestRepostPendingSucceeds(t *testing.T) {
	m := store.NewMemory()
	sink := &fakeSink{}
	r := NewReposter(m, sink, time.Minute, 5)

	sp := storePending(t, m)
	require.NoError(t, r.Repost(context.Background(), sp))

	got, err := m.FindByID(context.Background(), sp.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RepostSuccess, got.Repost.Status)
	assert.NotNil(t, got.Repost.RepostedAt)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 1, sink.calls)
}

func TestRepostPendingFailureSchedulesFirstRetry(t *testing.T) {
	m := store.NewMemory()
	r := NewReposter(m, &fakeSink{fail: true}, time.Minute, 5)
	now := time.Now()
	r.now = func() time.Time { return now }

	sp := storePending(t, m)
	require.NoError(t, r.Repost(context.Background(), sp))

	got, err := m.FindByID(context.Background(), sp.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RepostFailed, got.Repost.Status)
	assert.Equal(t, 1, got.Repost.Attempts)
	require.NotNil(t, got.Repost.NextAttemptAt)
	assert.Equal(t, now.Add(time.Minute), *got.Repost.NextAttemptAt)
}

func TestRepostFailureBacksOffExponentially(t *testing.T) {
	m := store.NewMemory()
	r := NewReposter(m, &fakeSink{fail: true}, time.Minute, 5)
	now := time.Now()
	r.now = func() time.Time { return now }

	sp := storePending(t, m)
	prior := now.Add(-2 * time.Minute)
	next := now.Add(-time.Minute)
	require.NoError(t, m.UpdateRepost(context.Background(), sp.ID, 1, store.FailedRepost(2, prior, &next)))

	sp, err := m.FindByID(context.Background(), sp.ID)
	require.NoError(t, err)
	require.NoError(t, r.Repost(context.Background(), sp))

	got, err := m.FindByID(context.Background(), sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Repost.Attempts)
	require.NotNil(t, got.Repost.NextAttemptAt)
	assert.Equal(t, now.Add(4*time.Minute), *got.Repost.NextAttemptAt)
}

func TestRepostExhaustsRetries(t *testing.T) {
	m := store.NewMemory()
	r := NewReposter(m, &fakeSink{fail: true}, time.Minute, 3)
	now := time.Now()
	r.now = func() time.Time { return now }

	sp := storePending(t, m)
	prior := now.Add(-time.Minute)
	next := now.Add(-time.Second)
	require.NoError(t, m.UpdateRepost(context.Background(), sp.ID, 1, store.FailedRepost(2, prior, &next)))

	sp, err := m.FindByID(context.Background(), sp.ID)
	require.NoError(t, err)
	require.NoError(t, r.Repost(context.Background(), sp))

	got, err := m.FindByID(context.Background(), sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Repost.Attempts)
	assert.Nil(t, got.Repost.NextAttemptAt, "reaching max attempts is terminal")
	assert.True(t, got.Repost.Terminal())
}

func TestRepostTerminalStatesAreNoOps(t *testing.T) {
	m := store.NewMemory()
	sink := &fakeSink{}
	r := NewReposter(m, sink, time.Minute, 5)

	sp := storePending(t, m)
	require.NoError(t, m.UpdateRepost(context.Background(), sp.ID, 1, store.SkipRepost()))

	sp, err := m.FindByID(context.Background(), sp.ID)
	require.NoError(t, err)
	require.NoError(t, r.Repost(context.Background(), sp))
	assert.Equal(t, 0, sink.calls)

	require.NoError(t, m.UpdateRepost(context.Background(), sp.ID, 2, store.SuccessRepost(time.Now())))
	sp, err = m.FindByID(context.Background(), sp.ID)
	require.NoError(t, err)
	require.NoError(t, r.Repost(context.Background(), sp))
	assert.Equal(t, 0, sink.calls)

	got, err := m.FindByID(context.Background(), sp.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version, "no-op attempts do not bump the version")
}

func TestRepostStaleVersionSurfaces(t *testing.T) {
	m := store.NewMemory()
	r := NewReposter(m, &fakeSink{}, time.Minute, 5)

	sp := storePending(t, m)

	// Another writer wins the race before our attempt lands.
	require.NoError(t, m.UpdateRepost(context.Background(), sp.ID, 1, store.PendingRepost()))

	err := r.Repost(context.Background(), sp)
	assert.ErrorIs(t, err, store.ErrConcurrentModification)
}

func TestRetrySweepAttemptsOnlyDuePosts(t *testing.T) {
	m := store.NewMemory()
	sink := &fakeSink{}
	r := NewReposter(m, sink, time.Minute, 5)
	now := time.Now()
	r.now = func() time.Time { return now }

	due := storePending(t, m)
	past := now.Add(-time.Minute)
	next := now.Add(-time.Second)
	require.NoError(t, m.UpdateRepost(context.Background(), due.ID, 1, store.FailedRepost(1, past, &next)))

	_, err := m.Store(context.Background(), store.NewSynchronizedPost{
		PageKey:  "bona",
		PageName: "Cafe Bona",
		Post: fetcher.Post{
			ExternalID:  "p2",
			URL:         "https://www.example.com/bona/posts/2",
			PublishedAt: now,
			Content:     "lounas",
		},
		Classification: classify.LunchPost,
		Repost:         store.PendingRepost(),
	})
	require.NoError(t, err)

	r.RetrySweep(context.Background())

	assert.Equal(t, 1, sink.calls, "pending posts are not the retry sweep's business")

	got, err := m.FindByID(context.Background(), due.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RepostSuccess, got.Repost.Status)
}
