package worker

import (
	"log"
	"sync"
	"time"
)

// Worker runs the two periodic jobs: the page sync sweep and the
// repost retry sweep. Each job is a fixed-delay loop measured from the
// completion of the previous run, so a slow run self-throttles instead
// of overlapping itself.
type Worker struct {
	syncJob       func()
	retryJob      func()
	syncInterval  time.Duration
	retryInterval time.Duration

	mu     sync.Mutex
	active bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewWorker(syncJob, retryJob func(), syncInterval, retryInterval time.Duration) *Worker {
	return &Worker{
		syncJob:       syncJob,
		retryJob:      retryJob,
		syncInterval:  syncInterval,
		retryInterval: retryInterval,
	}
}

func (w *Worker) Start() {
	w.mu.Lock()
	if w.active {
		w.mu.Unlock()
		log.Println("Worker: already active")
		return
	}
	w.active = true
	w.stop = make(chan struct{})
	w.mu.Unlock()

	if w.syncInterval > 0 {
		w.wg.Add(1)
		go w.runLoop("sync", w.syncInterval, w.syncJob)
	} else {
		log.Println("Worker: sync job disabled")
	}

	if w.retryInterval > 0 {
		w.wg.Add(1)
		go w.runLoop("retry", w.retryInterval, w.retryJob)
	} else {
		log.Println("Worker: retry job disabled")
	}

	log.Printf("Background worker started (sync: %v, retry: %v)", w.syncInterval, w.retryInterval)
}

func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.active {
		w.mu.Unlock()
		log.Println("Worker: not active")
		return
	}
	stop := w.stop
	w.mu.Unlock()

	close(stop)
	w.wg.Wait()

	w.mu.Lock()
	w.active = false
	w.mu.Unlock()
	log.Println("Background worker stopped")
}

func (w *Worker) IsActive() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

func (w *Worker) runLoop(name string, interval time.Duration, job func()) {
	defer w.wg.Done()

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("Worker: panic in %s job: %v", name, r)
					}
				}()
				job()
			}()
			// Next delay starts only after the run finished.
			timer.Reset(interval)
		case <-w.stop:
			return
		}
	}
}
