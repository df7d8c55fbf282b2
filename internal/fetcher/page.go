package fetcher

import (
	"context"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageClient fetches one page and turns it into a PageResult using the
// configured strategies in order.
type PageClient struct {
	client     *Client
	strategies []ExtractionStrategy
}

func NewPageClient(client *Client, strategies ...ExtractionStrategy) *PageClient {
	if len(strategies) == 0 {
		strategies = []ExtractionStrategy{ScriptStrategy{}, DOMStrategy{}}
	}
	return &PageClient{
		client:     client,
		strategies: strategies,
	}
}

// Fetch retrieves the page and returns the first non-empty strategy
// result. A page whose name cannot be resolved falls back to its
// configured key.
func (p *PageClient) Fetch(ctx context.Context, pageKey, pageURL string) (PageResult, error) {
	doc, err := p.client.FetchDocument(ctx, pageURL)
	if err != nil {
		return PageResult{}, err
	}

	name := resolvePageName(doc)
	if name == "" {
		log.Printf("PageClient: no page name found on %s, falling back to key %q", pageURL, pageKey)
		name = pageKey
	}

	for _, strategy := range p.strategies {
		if posts := strategy.ExtractPosts(doc); len(posts) > 0 {
			return PageResult{PageName: name, Posts: posts}, nil
		}
	}

	log.Printf("PageClient: no strategy extracted posts from %s, the page structure may have changed", pageURL)
	return PageResult{PageName: name}, nil
}

// resolvePageName tries og:title, then twitter:title, then the first
// heading; the first non-empty candidate wins.
func resolvePageName(doc *goquery.Document) string {
	if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if title, ok := doc.Find(`meta[name="twitter:title"]`).Attr("content"); ok {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	if heading := strings.TrimSpace(doc.Find("h1").First().Text()); heading != "" {
		return heading
	}
	return ""
}
