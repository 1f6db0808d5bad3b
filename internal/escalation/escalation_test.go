package escalation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/action"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/escalation"
	"github.com/rhamenator/ai-scraping-defense-sub001/internal/reqmeta"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	events []action.Event
}

func (f *fakeSubmitter) Submit(ctx context.Context, ev action.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestEngine_AboveThresholdSubmitsActionEvent(t *testing.T) {
	sub := &fakeSubmitter{}
	eng := escalation.New(escalation.Config{Workers: 1, QueueSize: 4, Threshold: 0.70}, nil, nil, nil, sub)
	eng.Start(context.Background())

	ok := eng.Submit(escalation.Job{
		Metadata: reqmeta.Metadata{ClientIdentity: "3.3.3.3"},
		Features: map[string]float64{"hostile_ua": 1},
	})
	if !ok {
		t.Fatalf("expected Submit to accept the job")
	}

	waitFor(t, func() bool { return sub.count() == 1 })
}

func TestEngine_BelowThresholdDoesNotSubmit(t *testing.T) {
	sub := &fakeSubmitter{}
	eng := escalation.New(escalation.Config{Workers: 1, QueueSize: 4, Threshold: 0.70}, nil, nil, nil, sub)
	eng.Start(context.Background())

	eng.Submit(escalation.Job{
		Metadata: reqmeta.Metadata{ClientIdentity: "4.4.4.4"},
		Features: map[string]float64{},
	})

	time.Sleep(100 * time.Millisecond)
	if sub.count() != 0 {
		t.Fatalf("expected no action event for a below-threshold score, got %d", sub.count())
	}
}

func TestEngine_FullQueueDropsAndCountsInsteadOfBlocking(t *testing.T) {
	sub := &fakeSubmitter{}
	eng := escalation.New(escalation.Config{Workers: 0, QueueSize: 1, Threshold: 0.70}, nil, nil, nil, sub)
	// Deliberately do not Start workers, so the queue never drains.

	first := eng.Submit(escalation.Job{Metadata: reqmeta.Metadata{ClientIdentity: "a"}})
	second := eng.Submit(escalation.Job{Metadata: reqmeta.Metadata{ClientIdentity: "b"}})

	if !first {
		t.Fatalf("expected first submission to be accepted")
	}
	if second {
		t.Fatalf("expected second submission to be dropped once the queue is full")
	}
	if eng.Dropped() != 1 {
		t.Fatalf("expected dropped counter to be 1, got %d", eng.Dropped())
	}
}
