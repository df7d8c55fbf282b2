package fetcher

import (
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Post is one post recovered from a page, keyed by the id the network
// itself assigned to it. Values are rebuilt on every fetch.
type Post struct {
	ExternalID  string
	URL         string
	PublishedAt time.Time
	Content     string
}

// PageResult is what a page fetch produces: the resolved display name
// and the extracted posts.
type PageResult struct {
	PageName string
	Posts    []Post
}

// ExtractionStrategy recovers posts from a fetched document. Strategies
// skip malformed items individually instead of failing the page.
type ExtractionStrategy interface {
	Name() string
	ExtractPosts(doc *goquery.Document) []Post
}
