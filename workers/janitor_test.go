package workers

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeJanitorStore struct {
	mu     sync.Mutex
	calls  int
	ages   []time.Duration
	result int
}

func (s *fakeJanitorStore) FailStuckExecutions(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.ages = append(s.ages, olderThan)
	return s.result, nil
}

func (s *fakeJanitorStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestJanitor_SweepsOnStartAndTrigger(t *testing.T) {
	store := &fakeJanitorStore{result: 2}
	j := NewJanitor(store, 2*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx, time.Hour)
		close(done)
	}()

	// The startup sweep runs before the ticker loop.
	waitFor(t, func() bool { return store.callCount() >= 1 })

	j.Trigger()
	waitFor(t, func() bool { return store.callCount() >= 2 })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop on context cancel")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, age := range store.ages {
		if age != 2*time.Hour {
			t.Fatalf("unexpected stuck-after threshold %v", age)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
