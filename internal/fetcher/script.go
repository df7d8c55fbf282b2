package fetcher

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// The discriminant the embedded payloads tag post objects with.
const storyTypename = "Story"

// ScriptStrategy recovers posts from the JSON payloads the current page
// layout embeds in its inline scripts. Output order is not guaranteed;
// the caller sorts.
type ScriptStrategy struct{}

func (ScriptStrategy) Name() string { return "script" }

func (ScriptStrategy) ExtractPosts(doc *goquery.Document) []Post {
	seen := make(map[string]struct{})
	var posts []Post

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		body := s.Text()
		if strings.TrimSpace(body) == "" {
			return
		}

		for _, obj := range ExtractObjectLiterals(body) {
			for _, story := range collectStories(obj) {
				post, err := postFromStory(story)
				if err != nil {
					log.Printf("Script: dropping a story candidate: %v", err)
					continue
				}
				if _, dup := seen[post.ExternalID]; dup {
					continue
				}
				seen[post.ExternalID] = struct{}{}
				posts = append(posts, post)
			}
		}
	})

	return posts
}

// collectStories deep-scans a decoded JSON value for sub-objects whose
// __typename is the story marker.
func collectStories(v any) []map[string]any {
	var stories []map[string]any

	switch val := v.(type) {
	case map[string]any:
		if tn, ok := val["__typename"].(string); ok && tn == storyTypename {
			stories = append(stories, val)
		}
		for _, child := range val {
			stories = append(stories, collectStories(child)...)
		}
	case []any:
		for _, child := range val {
			stories = append(stories, collectStories(child)...)
		}
	}

	return stories
}

// postFromStory validates the four required fields one by one; any
// missing or wrong-typed field rejects this candidate only.
func postFromStory(story map[string]any) (Post, error) {
	id, ok := story["id"].(string)
	if !ok || id == "" {
		return Post{}, fmt.Errorf("story id is missing or not a string")
	}

	content, ok := story["content"].(map[string]any)
	if !ok {
		return Post{}, fmt.Errorf("story %s has no content object", id)
	}

	meta := findNestedObject(content, "creation_time", "url")
	if meta == nil {
		return Post{}, fmt.Errorf("story %s has no creation_time/url object", id)
	}
	epoch, ok := meta["creation_time"].(float64)
	if !ok {
		return Post{}, fmt.Errorf("story %s creation_time is not a number", id)
	}
	postURL, ok := meta["url"].(string)
	if !ok || postURL == "" {
		return Post{}, fmt.Errorf("story %s url is missing or not a string", id)
	}

	message := findNestedObject(content, "text")
	if message == nil {
		return Post{}, fmt.Errorf("story %s has no text object", id)
	}
	text, ok := message["text"].(string)
	if !ok {
		return Post{}, fmt.Errorf("story %s text is not a string", id)
	}

	return Post{
		ExternalID:  id,
		URL:         postURL,
		PublishedAt: time.Unix(int64(epoch), 0).UTC(),
		Content:     sanitizeScriptText(text),
	}, nil
}

// findNestedObject returns the first object, depth-first, that carries
// all of the given keys.
func findNestedObject(v any, keys ...string) map[string]any {
	switch val := v.(type) {
	case map[string]any:
		if hasAllKeys(val, keys) {
			return val
		}
		for _, child := range val {
			if found := findNestedObject(child, keys...); found != nil {
				return found
			}
		}
	case []any:
		for _, child := range val {
			if found := findNestedObject(child, keys...); found != nil {
				return found
			}
		}
	}
	return nil
}

func hasAllKeys(obj map[string]any, keys []string) bool {
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			return false
		}
	}
	return true
}

func sanitizeScriptText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.Join(lines, "\n")
}
