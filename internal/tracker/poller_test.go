package tracker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type applyRecorder struct {
	mu   sync.Mutex
	recs []StatusRecord
}

func (a *applyRecorder) apply(_ string, rec StatusRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
}

func (a *applyRecorder) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.recs)
}

func (a *applyRecorder) last() StatusRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recs[len(a.recs)-1]
}

func TestPollWorkerImmediateLookup(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.setSequence(lookupResult{rec: StatusRecord{Status: StatusPending, Message: "processing"}})
	rec := &applyRecorder{}

	w := NewPollWorker("R1", "order-1", time.Hour, lookup, rec.apply, zap.NewNop().Sugar())
	w.Start()
	defer w.Stop()

	if !waitFor(time.Second, func() bool { return rec.count() == 1 }) {
		t.Fatal("expected an immediate lookup before the first tick")
	}
	got := rec.last()
	if got.Status != StatusPending || got.Source != SourcePoll {
		t.Errorf("expected PENDING tagged as poll, got %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("worker should stamp records that carry no timestamp")
	}
}

func TestPollWorkerRetriesAfterError(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.setSequence(
		lookupResult{err: errors.New("gateway timeout")},
		lookupResult{err: errors.New("gateway timeout")},
		lookupResult{rec: StatusRecord{Status: StatusSuccessful, Message: "completed"}},
	)
	rec := &applyRecorder{}

	w := NewPollWorker("R1", "order-1", 20*time.Millisecond, lookup, rec.apply, zap.NewNop().Sugar())
	w.Start()
	defer w.Stop()

	if !waitFor(2*time.Second, func() bool { return rec.count() == 1 }) {
		t.Fatal("worker should keep polling through errors")
	}
	if got := rec.last(); got.Status != StatusSuccessful {
		t.Errorf("expected the eventual SUCCESSFUL record, got %+v", got)
	}
	if lookup.callCount() < 3 {
		t.Errorf("expected at least three lookups, got %d", lookup.callCount())
	}
}

func TestPollWorkerStopHaltsTicks(t *testing.T) {
	lookup := &fakeLookup{}
	lookup.setSequence(lookupResult{rec: StatusRecord{Status: StatusPending}})
	rec := &applyRecorder{}

	w := NewPollWorker("R1", "order-1", 20*time.Millisecond, lookup, rec.apply, zap.NewNop().Sugar())
	w.Start()
	waitFor(time.Second, func() bool { return lookup.callCount() >= 2 })

	w.Stop()
	w.Stop() // idempotent

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker loop did not exit after Stop")
	}

	settled := lookup.callCount()
	time.Sleep(100 * time.Millisecond)
	if got := lookup.callCount(); got != settled {
		t.Errorf("lookups continued after Stop: %d -> %d", settled, got)
	}
}

func TestClampPollInterval(t *testing.T) {
	cases := []struct {
		in, want time.Duration
	}{
		{0, DefaultPollInterval},
		{-time.Second, DefaultPollInterval},
		{time.Second, MinPollInterval},
		{10 * time.Second, 10 * time.Second},
		{5 * time.Minute, MaxPollInterval},
	}
	for _, c := range cases {
		if got := ClampPollInterval(c.in); got != c.want {
			t.Errorf("ClampPollInterval(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
