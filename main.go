package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/fluffyriot/lunchsync/internal/api/handlers"
	"github.com/fluffyriot/lunchsync/internal/classify"
	"github.com/fluffyriot/lunchsync/internal/config"
	"github.com/fluffyriot/lunchsync/internal/fetcher"
	"github.com/fluffyriot/lunchsync/internal/middleware"
	"github.com/fluffyriot/lunchsync/internal/repost"
	"github.com/fluffyriot/lunchsync/internal/store"
	"github.com/fluffyriot/lunchsync/internal/syncer"
	"github.com/fluffyriot/lunchsync/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln(err)
	}

	var st store.Store
	switch cfg.StorageBackend {
	case "memory":
		log.Println("Using in-memory storage, posts will not survive a restart")
		st = store.NewMemory()
	case "postgres":
		db, err := config.LoadDatabase()
		if err != nil {
			log.Fatalln(err)
		}
		defer db.Close()
		st = store.NewPostgres(db)
	default:
		log.Fatalf("unknown storage backend %q", cfg.StorageBackend)
	}

	sink, err := repost.NewDiscordSink(cfg.DiscordBotToken, cfg.DiscordChannelID)
	if err != nil {
		log.Fatalln(err)
	}

	client := fetcher.NewClient(cfg.UserAgent, cfg.FetchTimeout, cfg.RetryCount, cfg.RetryJitterMin, cfg.RetryJitterMax)
	pageClient := fetcher.NewPageClient(client)
	classifier := classify.NewClassifier(cfg.Locale, cfg.Keywords)
	reposter := repost.NewReposter(st, sink, cfg.RepostBaseDelay, cfg.RepostMaxAttempts)
	sync := syncer.New(cfg.Pages, pageClient, classifier, st, reposter)

	w := worker.NewWorker(
		func() { sync.SynchronizeAll(context.Background()) },
		func() { reposter.RetrySweep(context.Background()) },
		cfg.SyncInterval,
		cfg.RetryInterval,
	)
	w.Start()
	defer w.Stop()

	h := handlers.NewHandler(st, sync, w)

	r := gin.Default()
	r.Use(middleware.SecurityHeadersMiddleware())

	r.POST("/api/sync", h.TriggerSyncHandler)
	r.GET("/api/posts/recent", h.RecentActivityHandler)
	r.GET("/api/health", h.HealthHandler)

	log.Printf("Listening on %s", cfg.ListenAddr)
	if err := r.Run(cfg.ListenAddr); err != nil {
		log.Fatalln(err)
	}
}
