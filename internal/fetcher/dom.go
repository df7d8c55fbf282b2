package fetcher

import (
	"html"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Markers of the legacy server-rendered layout.
const (
	contentWrapperClass = "userContentWrapper"
	contentClass        = "userContent"
	timestampAttr       = "data-utime"
)

var (
	lineBreakTags = regexp.MustCompile(`(?i)<br\s*/?>|</?p[^>]*>|</?div[^>]*>`)
	anyTag        = regexp.MustCompile(`<[^>]*>`)
)

// DOMStrategy recovers posts from the legacy server-rendered layout:
// each content wrapper's ancestors carry the publish timestamp and the
// permalink the external id is derived from.
type DOMStrategy struct{}

func (DOMStrategy) Name() string { return "dom" }

func (DOMStrategy) ExtractPosts(doc *goquery.Document) []Post {
	var posts []Post

	doc.Find("div." + contentWrapperClass).Each(func(_ int, wrapper *goquery.Selection) {
		publishedAt, ok := ancestorTimestamp(wrapper)
		if !ok {
			log.Printf("DOM: skipping a post without a %s ancestor", timestampAttr)
			return
		}

		postURL, ok := ancestorPermalink(wrapper)
		if !ok {
			log.Printf("DOM: skipping a post without an absolute permalink ancestor")
			return
		}

		externalID, ok := ExternalIDFromURL(postURL)
		if !ok {
			log.Printf("DOM: skipping a post with an underivable external id: %s", postURL)
			return
		}

		content := extractContent(wrapper)
		if content == "" {
			log.Printf("DOM: skipping post %s without content", externalID)
			return
		}

		posts = append(posts, Post{
			ExternalID:  externalID,
			URL:         postURL,
			PublishedAt: publishedAt,
			Content:     content,
		})
	})

	sort.Slice(posts, func(i, j int) bool {
		return posts[i].PublishedAt.Before(posts[j].PublishedAt)
	})
	return posts
}

func ancestorTimestamp(wrapper *goquery.Selection) (time.Time, bool) {
	node := wrapper.Closest("[" + timestampAttr + "]")
	if node.Length() == 0 {
		return time.Time{}, false
	}

	raw, _ := node.Attr(timestampAttr)
	epoch, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(epoch, 0).UTC(), true
}

func ancestorPermalink(wrapper *goquery.Selection) (string, bool) {
	var found string
	wrapper.Parents().EachWithBreak(func(_ int, anc *goquery.Selection) bool {
		if !anc.Is("a") {
			return true
		}
		href, ok := anc.Attr("href")
		if !ok {
			return true
		}
		if u, err := url.Parse(href); err == nil && u.IsAbs() {
			found = href
			return false
		}
		return true
	})
	return found, found != ""
}

// ExternalIDFromURL derives the structured post id from a permalink by
// trying the known URL shapes in a fixed order.
func ExternalIDFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	query := u.Query()
	if id := query.Get("story_fbid"); id != "" {
		return id, true
	}

	segments := splitPath(u.Path)
	for i, seg := range segments {
		switch seg {
		case "posts":
			if i+1 < len(segments) {
				return segments[i+1], true
			}
		case "photos":
			if len(segments) > i+1 {
				return segments[len(segments)-1], true
			}
		case "photo", "photo.php":
			if id := query.Get("fbid"); id != "" {
				return id, true
			}
		case "watch":
			if id := query.Get("v"); id != "" {
				return id, true
			}
		case "reel":
			if i+1 < len(segments) {
				return segments[i+1], true
			}
		}
	}
	return "", false
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// extractContent pulls the post body out of the designated content
// element, drops the "see more" affordances, turns block boundaries
// into newlines and strips the remaining markup.
func extractContent(wrapper *goquery.Selection) string {
	content := wrapper.Find("div." + contentClass).First()
	if content.Length() == 0 {
		return ""
	}

	clone := content.Clone()
	clone.Find(".text_exposed_hide, .see_more_link").Remove()

	markup, err := goquery.OuterHtml(clone)
	if err != nil {
		return ""
	}

	text := lineBreakTags.ReplaceAllString(markup, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
