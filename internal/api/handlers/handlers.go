package handlers

import (
	"context"

	"github.com/fluffyriot/lunchsync/internal/store"
	"github.com/fluffyriot/lunchsync/internal/worker"
)

// SyncTrigger is the manual entry point into the sweep.
type SyncTrigger interface {
	SynchronizeAll(ctx context.Context)
}

type Handler struct {
	Store  store.Store
	Syncer SyncTrigger
	Worker *worker.Worker
}

func NewHandler(s store.Store, syncer SyncTrigger, w *worker.Worker) *Handler {
	return &Handler{
		Store:  s,
		Syncer: syncer,
		Worker: w,
	}
}
