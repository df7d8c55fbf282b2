package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/fluffyriot/lunchsync/internal/classify"
	"github.com/fluffyriot/lunchsync/internal/config"
	"github.com/fluffyriot/lunchsync/internal/fetcher"
	"github.com/fluffyriot/lunchsync/internal/store"
)

// PageFetcher is what the synchronizer needs from the page client.
type PageFetcher interface {
	Fetch(ctx context.Context, pageKey, pageURL string) (fetcher.PageResult, error)
}

// Reposter receives every row whose repost state ends up Pending.
type Reposter interface {
	Repost(ctx context.Context, sp store.SynchronizedPost) error
}

// Synchronizer pulls configured pages, records the strictly-new posts
// and hands lunch posts to the reposter in publish order.
type Synchronizer struct {
	pages      []config.PageConfig
	pageClient PageFetcher
	classifier *classify.Classifier
	store      store.Store
	reposter   Reposter
	mu         sync.Mutex
}

func New(pages []config.PageConfig, pageClient PageFetcher, classifier *classify.Classifier, s store.Store, reposter Reposter) *Synchronizer {
	return &Synchronizer{
		pages:      pages,
		pageClient: pageClient,
		classifier: classifier,
		store:      s,
		reposter:   reposter,
	}
}

// SynchronizeAll sweeps every configured page. At most one sweep runs
// at a time; a concurrent caller logs and returns instead of
// interleaving. A failing page does not stop the rest.
func (s *Synchronizer) SynchronizeAll(ctx context.Context) {
	if !s.mu.TryLock() {
		log.Println("Sync: already in progress, skipping")
		return
	}
	defer s.mu.Unlock()

	log.Printf("Sync: starting sweep over %d pages", len(s.pages))
	for _, page := range s.pages {
		if err := s.Synchronize(ctx, page); err != nil {
			log.Printf("Sync: page %s failed: %v", page.Key, err)
		}
	}
	log.Println("Sync: sweep complete")
}

// Synchronize fetches one page and records every post published
// strictly after the page's cutoff, oldest first.
func (s *Synchronizer) Synchronize(ctx context.Context, page config.PageConfig) error {
	var cutoff time.Time
	last, err := s.store.FindLastSeen(ctx, page.Key)
	if err != nil {
		return fmt.Errorf("last seen post for page %s: %w", page.Key, err)
	}
	if last != nil {
		cutoff = last.Post.PublishedAt
	}

	result, err := s.pageClient.Fetch(ctx, page.Key, page.URL)
	if err != nil {
		return fmt.Errorf("fetch page %s: %w", page.Key, err)
	}

	fresh := make([]fetcher.Post, 0, len(result.Posts))
	for _, p := range result.Posts {
		if p.PublishedAt.After(cutoff) {
			fresh = append(fresh, p)
		}
	}
	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].PublishedAt.Before(fresh[j].PublishedAt)
	})

	for _, p := range fresh {
		sp, err := s.recordPost(ctx, page.Key, result.PageName, p)
		if err != nil {
			return fmt.Errorf("record post %s on page %s: %w", p.ExternalID, page.Key, err)
		}
		if sp == nil || sp.Repost.Status != store.RepostPending {
			continue
		}
		if err := s.reposter.Repost(ctx, *sp); err != nil {
			log.Printf("Sync: repost of %s failed: %v", sp.ID, err)
		}
	}

	return nil
}

// recordPost stores a new row, or refreshes an existing one whose
// content changed. Refreshing leaves the repost state alone, with one
// exception: a row still sitting on Skip whose edit turns it into a
// lunch post is re-queued as Pending.
func (s *Synchronizer) recordPost(ctx context.Context, pageKey, pageName string, p fetcher.Post) (*store.SynchronizedPost, error) {
	classification := s.classifier.Classify(p.Content)

	repost := store.SkipRepost()
	if classification == classify.LunchPost {
		repost = store.PendingRepost()
	}

	created, err := s.store.Store(ctx, store.NewSynchronizedPost{
		PageKey:        pageKey,
		PageName:       pageName,
		Post:           p,
		Classification: classification,
		Repost:         repost,
	})
	if err == nil {
		log.Printf("Sync: recorded post %s (%s) from page %s", p.ExternalID, classification, pageKey)
		return &created, nil
	}
	if !errors.Is(err, store.ErrDuplicateExternalID) {
		return nil, err
	}

	existing, err := s.store.FindByExternalID(ctx, p.ExternalID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, store.ErrNotFound
	}
	if existing.Post.Content == p.Content {
		return nil, nil
	}

	if err := s.store.UpdateContent(ctx, existing.ID, existing.Version, p, classification); err != nil {
		return nil, err
	}
	log.Printf("Sync: refreshed changed post %s on page %s", p.ExternalID, pageKey)

	if existing.Repost.Status == store.RepostSkip && classification == classify.LunchPost {
		if err := s.store.UpdateRepost(ctx, existing.ID, existing.Version+1, store.PendingRepost()); err != nil {
			return nil, err
		}
		log.Printf("Sync: post %s became a lunch post after an edit, queueing repost", p.ExternalID)
	}

	updated, err := s.store.FindByID(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}
