package fetcher

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Client retrieves page documents over plain HTTP with a bounded
// per-attempt timeout and a jittered retry loop.
type Client struct {
	httpClient http.Client
	userAgent  string
	retryCount int
	jitterMin  time.Duration
	jitterMax  time.Duration
}

func NewClient(userAgent string, timeout time.Duration, retryCount int, jitterMin, jitterMax time.Duration) *Client {
	if jitterMax < jitterMin {
		jitterMax = jitterMin
	}
	return &Client{
		httpClient: http.Client{
			Timeout: timeout,
		},
		userAgent:  userAgent,
		retryCount: retryCount,
		jitterMin:  jitterMin,
		jitterMax:  jitterMax,
	}
}

// FetchDocument GETs pageURL and parses the response body. Failed
// attempts before the last one sleep a uniform jitter and retry; the
// last attempt's error is returned as-is. A retry count of zero means
// exactly one attempt and no sleeping.
func (c *Client) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	attempts := c.retryCount + 1

	for attempt := 1; ; attempt++ {
		doc, err := c.fetchOnce(ctx, pageURL)
		if err == nil {
			return doc, nil
		}
		if attempt >= attempts {
			return nil, err
		}

		delay := c.jitter()
		log.Printf("Fetcher: attempt %d/%d for %s failed, retrying in %s: %v", attempt, attempts, pageURL, delay, err)
		time.Sleep(delay)
	}
}

func (c *Client) fetchOnce(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	c.setBrowserHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: parse document: %w", pageURL, err)
	}
	return doc, nil
}

func (c *Client) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,fi;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")
}

func (c *Client) jitter() time.Duration {
	span := c.jitterMax - c.jitterMin
	if span <= 0 {
		return c.jitterMin
	}
	return c.jitterMin + time.Duration(rand.Int63n(int64(span)+1))
}
