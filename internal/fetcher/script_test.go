package fetcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storyScript = `
<html><head>
<script>
window.__data = {
  "require": [{
    "feed": [
      {
        "__typename": "Story",
        "id": "story-1",
        "content": {
          "metadata": {"creation_time": 1700001000, "url": "https://www.example.com/page/posts/1001"},
          "message": {"text": "Lounaslista viikolle 45   \nKeittoa ja pastaa"}
        }
      },
      {
        "__typename": "Story",
        "id": "story-2",
        "content": {
          "metadata": {"creation_time": "not-a-number", "url": "https://www.example.com/page/posts/1002"},
          "message": {"text": "rikkinäinen"}
        }
      },
      {
        "__typename": "Story",
        "id": "story-3",
        "content": {
          "metadata": {"creation_time": 1700002000, "url": "https://www.example.com/page/posts/1003"}
        }
      },
      {"__typename": "Comment", "id": "not-a-story"}
    ]
  }]
};
</script>
</head><body></body></html>`

func TestScriptStrategyExtractsValidStories(t *testing.T) {
	doc := docFromHTML(t, storyScript)

	posts := ScriptStrategy{}.ExtractPosts(doc)

	require.Len(t, posts, 1, "candidates with a bad or missing field are dropped one by one")
	assert.Equal(t, "story-1", posts[0].ExternalID)
	assert.Equal(t, "https://www.example.com/page/posts/1001", posts[0].URL)
	assert.Equal(t, time.Unix(1700001000, 0).UTC(), posts[0].PublishedAt)
	assert.Equal(t, "Lounaslista viikolle 45\nKeittoa ja pastaa", posts[0].Content)
}

func TestScriptStrategyDeduplicatesByExternalID(t *testing.T) {
	story := `{
	  "__typename": "Story",
	  "id": "dup-1",
	  "content": {
	    "metadata": {"creation_time": 1700003000, "url": "https://www.example.com/page/posts/2001"},
	    "message": {"text": "sama tarina"}
	  }
	}`
	doc := docFromHTML(t, `<html><head>
	  <script>var a = `+story+`;</script>
	  <script>var b = `+story+`;</script>
	</head><body></body></html>`)

	posts := ScriptStrategy{}.ExtractPosts(doc)

	require.Len(t, posts, 1)
	assert.Equal(t, "dup-1", posts[0].ExternalID)
}

func TestScriptStrategyIgnoresNonJSONScripts(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
	  <script>this is << not javascript at all</script>
	  <script>console.log("no objects here");</script>
	</head><body></body></html>`)

	assert.Empty(t, ScriptStrategy{}.ExtractPosts(doc))
}
