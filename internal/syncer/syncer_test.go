package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/fluffyriot/lunchsync/internal/classify"
	"github.com/fluffyriot/lunchsync/internal/config"
	"github.com/fluffyriot/lunchsync/internal/fetcher"
	"github.com/fluffyriot/lunchsync/internal/repost"
	"github.com/fluffyriot/lunchsync/internal/store"
)

type stubPageClient struct {
	results map[string]fetcher.PageResult
	errs    map[string]error
	fetches []string
}

func (s *stubPageClient) Fetch(_ context.Context, pageKey, _ string) (fetcher.PageResult, error) {
	s.fetches = append(s.fetches, pageKey)
	if err := s.errs[pageKey]; err != nil {
		return fetcher.PageResult{}, err
	}
	return s.results[pageKey], nil
}

type recordingSink struct {
	delivered []string
	fail      bool
}

func (r *recordingSink) Repost(_ context.Context, sp store.SynchronizedPost, _ string) (string, error) {
	if r.fail {
		return "", errors.New("sink down")
	}
	r.delivered = append(r.delivered, sp.Post.ExternalID)
	return "msg-" + sp.Post.ExternalID, nil
}

func testClassifier() *classify.Classifier {
	return classify.NewClassifier(language.Finnish, []classify.Keyword{{Text: "lounas", EditDistance: 1}})
}

func post(id string, at time.Time, content string) fetcher.Post {
	return fetcher.Post{
		ExternalID:  id,
		URL:         "https://www.example.com/bona/posts/" + id,
		PublishedAt: at,
		Content:     content,
	}
}

func TestSynchronizeEndToEnd(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := store.NewMemory()
	sink := &recordingSink{}
	pages := []config.PageConfig{{Key: "bona", URL: "https://www.example.com/bona"}}
	client := &stubPageClient{results: map[string]fetcher.PageResult{
		"bona": {PageName: "Cafe Bona", Posts: []fetcher.Post{
			post("t3", base.Add(2*time.Hour), "aukioloajat"),
			post("t1", base, "tervetuloa"),
			post("t2", base.Add(time.Hour), "päivän lounas klo 11"),
		}},
	}}

	s := New(pages, client, testClassifier(), m, repost.NewReposter(m, sink, time.Minute, 5))
	require.NoError(t, s.Synchronize(context.Background(), pages[0]))

	rows, err := m.GetLastSeen(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// Newest-published first from the store.
	assert.Equal(t, "t3", rows[0].Post.ExternalID)
	assert.Equal(t, store.RepostSkip, rows[0].Repost.Status)
	assert.Equal(t, store.RepostSkip, rows[2].Repost.Status)

	// The only lunch post was delivered right away.
	assert.Equal(t, []string{"t2"}, sink.delivered)
	assert.Equal(t, store.RepostSuccess, rows[1].Repost.Status)
	assert.Equal(t, 2, rows[1].Version)
}

func TestSynchronizeCutoffIsStrict(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := store.NewMemory()

	_, err := m.Store(context.Background(), store.NewSynchronizedPost{
		PageKey:        "bona",
		PageName:       "Cafe Bona",
		Post:           post("t100", base, "vanha lounas"),
		Classification: classify.LunchPost,
		Repost:         store.SkipRepost(),
	})
	require.NoError(t, err)

	client := &stubPageClient{results: map[string]fetcher.PageResult{
		"bona": {PageName: "Cafe Bona", Posts: []fetcher.Post{
			post("t99", base.Add(-time.Minute), "lounas a"),
			post("t100b", base, "lounas b"),
			post("t101", base.Add(time.Minute), "lounas c"),
		}},
	}}
	pages := []config.PageConfig{{Key: "bona", URL: "https://www.example.com/bona"}}
	sink := &recordingSink{}

	s := New(pages, client, testClassifier(), m, repost.NewReposter(m, sink, time.Minute, 5))
	require.NoError(t, s.Synchronize(context.Background(), pages[0]))

	got, err := m.FindByExternalID(context.Background(), "t101")
	require.NoError(t, err)
	assert.NotNil(t, got, "only the strictly newer post is recorded")

	for _, absent := range []string{"t99", "t100b"} {
		got, err := m.FindByExternalID(context.Background(), absent)
		require.NoError(t, err)
		assert.Nil(t, got, "%s is at or before the cutoff", absent)
	}
}

func TestSynchronizeAllIsolatesPageFailures(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := store.NewMemory()
	client := &stubPageClient{
		errs: map[string]error{"broken": errors.New("fetch exploded")},
		results: map[string]fetcher.PageResult{
			"bona": {PageName: "Cafe Bona", Posts: []fetcher.Post{post("ok1", base, "lounas")}},
		},
	}
	pages := []config.PageConfig{
		{Key: "broken", URL: "https://www.example.com/broken"},
		{Key: "bona", URL: "https://www.example.com/bona"},
	}
	sink := &recordingSink{}

	s := New(pages, client, testClassifier(), m, repost.NewReposter(m, sink, time.Minute, 5))
	s.SynchronizeAll(context.Background())

	assert.Equal(t, []string{"broken", "bona"}, client.fetches)

	got, err := m.FindByExternalID(context.Background(), "ok1")
	require.NoError(t, err)
	assert.NotNil(t, got, "the healthy page still synchronized")
}

func TestSynchronizeFailedDeliveryKeepsPageGoing(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := store.NewMemory()
	client := &stubPageClient{results: map[string]fetcher.PageResult{
		"bona": {PageName: "Cafe Bona", Posts: []fetcher.Post{
			post("l1", base, "lounas yksi"),
			post("l2", base.Add(time.Minute), "lounas kaksi"),
		}},
	}}
	pages := []config.PageConfig{{Key: "bona", URL: "https://www.example.com/bona"}}
	sink := &recordingSink{fail: true}

	s := New(pages, client, testClassifier(), m, repost.NewReposter(m, sink, time.Minute, 5))
	require.NoError(t, s.Synchronize(context.Background(), pages[0]))

	for _, id := range []string{"l1", "l2"} {
		got, err := m.FindByExternalID(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, store.RepostFailed, got.Repost.Status)
		assert.Equal(t, 1, got.Repost.Attempts)
	}
}

func TestRecordPostContentChangeRequeuesSkippedRow(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := store.NewMemory()

	// Seen earlier without keywords; also the page's newest post, so a
	// same-timestamp refetch needs an equal-or-newer edit to reappear.
	_, err := m.Store(context.Background(), store.NewSynchronizedPost{
		PageKey:        "bona",
		PageName:       "Cafe Bona",
		Post:           post("e1", base, "tulossa jotain"),
		Classification: classify.MissingKeywords,
		Repost:         store.SkipRepost(),
	})
	require.NoError(t, err)

	client := &stubPageClient{results: map[string]fetcher.PageResult{
		"bona": {PageName: "Cafe Bona", Posts: []fetcher.Post{
			post("e1", base.Add(time.Minute), "nyt on lounas tarjolla"),
		}},
	}}
	pages := []config.PageConfig{{Key: "bona", URL: "https://www.example.com/bona"}}
	sink := &recordingSink{}

	s := New(pages, client, testClassifier(), m, repost.NewReposter(m, sink, time.Minute, 5))
	require.NoError(t, s.Synchronize(context.Background(), pages[0]))

	got, err := m.FindByExternalID(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, classify.LunchPost, got.Classification)
	assert.Equal(t, store.RepostSuccess, got.Repost.Status, "re-queued and delivered")
	assert.Equal(t, []string{"e1"}, sink.delivered)
}
