package workers

import (
	"context"
	"log"
	"time"
)

// JanitorStore is the slice of the store the janitor writes.
type JanitorStore interface {
	FailStuckExecutions(ctx context.Context, olderThan time.Duration) (int, error)
}

// Janitor sweeps executions left in the running state by a crashed or killed
// process and marks them failed so they stop polluting dedupe history and
// status views.
type Janitor struct {
	store      JanitorStore
	stuckAfter time.Duration
	triggerCh  chan struct{}
}

func NewJanitor(store JanitorStore, stuckAfter time.Duration) *Janitor {
	return &Janitor{
		store:      store,
		stuckAfter: stuckAfter,
		triggerCh:  make(chan struct{}, 1),
	}
}

// Trigger causes the janitor to sweep immediately.
func (j *Janitor) Trigger() {
	select {
	case j.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the sweep loop. One sweep runs at startup so a restart cleans up
// after the previous process right away.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	j.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Janitor stopping")
			return
		case <-ticker.C:
			j.sweep(ctx)
		case <-j.triggerCh:
			log.Println("Janitor triggered manually")
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	n, err := j.store.FailStuckExecutions(ctx, j.stuckAfter)
	if err != nil {
		log.Printf("Janitor sweep error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Janitor: marked %d stuck executions as failed", n)
	}
}
