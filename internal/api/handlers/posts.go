package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fluffyriot/lunchsync/internal/classify"
	"github.com/fluffyriot/lunchsync/internal/store"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
	previewRunes       = 80
)

// RecentActivityHandler renders the latest synchronized posts as a
// plain-text transcript, one line per post, newest first.
func (h *Handler) RecentActivityHandler(c *gin.Context) {
	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = min(n, maxRecentLimit)
	}

	posts, err := h.Store.GetLastSeen(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": fmt.Sprintf("Failed to load recent posts: %v", err),
		})
		return
	}

	var b strings.Builder
	for _, sp := range posts {
		b.WriteString(transcriptLine(sp))
		b.WriteByte('\n')
	}
	c.String(http.StatusOK, b.String())
}

func transcriptLine(sp store.SynchronizedPost) string {
	return fmt.Sprintf("[%s] %s %s %s %s",
		sp.PageKey,
		sp.Post.PublishedAt.Format("2006-01-02 15:04"),
		classificationGlyph(sp.Classification),
		repostGlyph(sp.Repost),
		contentPreview(sp.Post.Content),
	)
}

func classificationGlyph(c classify.Classification) string {
	if c == classify.LunchPost {
		return "🍽"
	}
	return "·"
}

func repostGlyph(r store.Repost) string {
	switch r.Status {
	case store.RepostSkip:
		return "skip"
	case store.RepostPending:
		return "⏳ pending"
	case store.RepostSuccess:
		return "✅ " + r.RepostedAt.Format("2006-01-02 15:04")
	case store.RepostFailed:
		if r.NextAttemptAt == nil {
			return fmt.Sprintf("❌ gave up after %d attempts (last %s)",
				r.Attempts, r.LastAttemptAt.Format("2006-01-02 15:04"))
		}
		return fmt.Sprintf("❌ attempt %d failed at %s, next %s",
			r.Attempts,
			r.LastAttemptAt.Format("2006-01-02 15:04"),
			r.NextAttemptAt.Format("2006-01-02 15:04"))
	default:
		return string(r.Status)
	}
}

func contentPreview(content string) string {
	oneLine := strings.Join(strings.Fields(content), " ")
	runes := []rune(oneLine)
	if len(runes) > previewRunes {
		return string(runes[:previewRunes]) + "…"
	}
	return oneLine
}
