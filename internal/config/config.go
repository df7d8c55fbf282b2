package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/fluffyriot/lunchsync/internal/classify"
)

// PageConfig is one page feed to watch.
type PageConfig struct {
	Key string
	URL string
}

type AppConfig struct {
	Pages    []PageConfig
	Locale   language.Tag
	Keywords []classify.Keyword

	UserAgent      string
	FetchTimeout   time.Duration
	RetryCount     int
	RetryJitterMin time.Duration
	RetryJitterMax time.Duration

	RepostBaseDelay   time.Duration
	RepostMaxAttempts int

	SyncInterval  time.Duration
	RetryInterval time.Duration

	DiscordBotToken  string
	DiscordChannelID string

	StorageBackend string
	ListenAddr     string
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads the configuration from the environment, with an optional
// .env file for local runs.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	pages, err := parsePages(os.Getenv("LUNCHSYNC_PAGES"))
	if err != nil {
		return nil, err
	}

	keywords, err := parseKeywords(getEnv("LUNCHSYNC_KEYWORDS", "lounas:1,lunch:1"))
	if err != nil {
		return nil, err
	}

	locale, err := language.Parse(getEnv("LUNCHSYNC_LOCALE", "fi"))
	if err != nil {
		return nil, fmt.Errorf("invalid LUNCHSYNC_LOCALE: %v", err)
	}

	cfg := &AppConfig{
		Pages:    pages,
		Locale:   locale,
		Keywords: keywords,

		UserAgent: getEnv("LUNCHSYNC_USER_AGENT", defaultUserAgent),

		DiscordBotToken:  os.Getenv("LUNCHSYNC_DISCORD_BOT_TOKEN"),
		DiscordChannelID: os.Getenv("LUNCHSYNC_DISCORD_CHANNEL_ID"),

		StorageBackend: getEnv("LUNCHSYNC_STORAGE", "postgres"),
		ListenAddr:     getEnv("LUNCHSYNC_LISTEN_ADDR", ":8080"),
	}

	if cfg.FetchTimeout, err = getDurationEnv("LUNCHSYNC_FETCH_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryCount, err = getIntEnv("LUNCHSYNC_FETCH_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.RetryJitterMin, err = getDurationEnv("LUNCHSYNC_FETCH_JITTER_MIN", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryJitterMax, err = getDurationEnv("LUNCHSYNC_FETCH_JITTER_MAX", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RepostBaseDelay, err = getDurationEnv("LUNCHSYNC_REPOST_BASE_DELAY", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RepostMaxAttempts, err = getIntEnv("LUNCHSYNC_REPOST_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.SyncInterval, err = getDurationEnv("LUNCHSYNC_SYNC_INTERVAL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetryInterval, err = getDurationEnv("LUNCHSYNC_RETRY_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	if cfg.DiscordBotToken == "" || cfg.DiscordChannelID == "" {
		return nil, fmt.Errorf("LUNCHSYNC_DISCORD_BOT_TOKEN and LUNCHSYNC_DISCORD_CHANNEL_ID are required")
	}

	return cfg, nil
}

// parsePages reads "key=url,key=url".
func parsePages(raw string) ([]PageConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("LUNCHSYNC_PAGES is required, format: key=url,key=url")
	}

	var pages []PageConfig
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, url, found := strings.Cut(entry, "=")
		if !found || key == "" || url == "" {
			return nil, fmt.Errorf("invalid page entry %q, expected key=url", entry)
		}
		pages = append(pages, PageConfig{Key: strings.TrimSpace(key), URL: strings.TrimSpace(url)})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("LUNCHSYNC_PAGES contains no pages")
	}
	return pages, nil
}

// parseKeywords reads "text:editDistance,text:editDistance".
func parseKeywords(raw string) ([]classify.Keyword, error) {
	var keywords []classify.Keyword
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		text, budget, found := strings.Cut(entry, ":")
		if !found {
			keywords = append(keywords, classify.Keyword{Text: entry})
			continue
		}

		distance, err := strconv.Atoi(budget)
		if err != nil || distance < 0 {
			return nil, fmt.Errorf("invalid keyword entry %q, expected text:editDistance", entry)
		}
		keywords = append(keywords, classify.Keyword{Text: text, EditDistance: distance})
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("LUNCHSYNC_KEYWORDS contains no keywords")
	}
	return keywords, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return d, nil
}

func getIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: expected a non-negative integer", key)
	}
	return n, nil
}
