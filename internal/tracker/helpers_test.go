package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fakeLookup serves a scripted sequence of records (the last one repeats)
// and counts calls. With no script it fails, which keeps push-driven tests
// deterministic: the poll worker then never feeds records into Apply.
type fakeLookup struct {
	mu    sync.Mutex
	seq   []lookupResult
	calls int
}

type lookupResult struct {
	rec StatusRecord
	err error
}

func (f *fakeLookup) LookupStatus(_ context.Context, _ string) (StatusRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.seq) == 0 {
		return StatusRecord{}, errors.New("status backend unavailable")
	}
	res := f.seq[0]
	if len(f.seq) > 1 {
		f.seq = f.seq[1:]
	}
	return res.rec, res.err
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLookup) setSequence(seq ...lookupResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq = seq
}

// fakeSubscriber records subscription traffic.
type fakeSubscriber struct {
	mu           sync.Mutex
	subscribes   map[string][]Observer
	unsubscribes map[string]int
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		subscribes:   make(map[string][]Observer),
		unsubscribes: make(map[string]int),
	}
}

func (f *fakeSubscriber) Subscribe(reference string, obs Observer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes[reference] = append(f.subscribes[reference], obs)
	return nil
}

func (f *fakeSubscriber) Unsubscribe(reference string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes[reference]++
	return nil
}

func (f *fakeSubscriber) subscribeCount(reference string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribes[reference])
}

func (f *fakeSubscriber) unsubscribeCount(reference string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribes[reference]
}

func (f *fakeSubscriber) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = make(map[string][]Observer)
	f.unsubscribes = make(map[string]int)
}

// fakeEmitter counts events per reference, synchronously.
type fakeEmitter struct {
	mu       sync.Mutex
	changed  map[string][]StatusRecord
	resolved map[string][]StatusRecord
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{
		changed:  make(map[string][]StatusRecord),
		resolved: make(map[string][]StatusRecord),
	}
}

func (f *fakeEmitter) StatusChanged(reference string, rec StatusRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed[reference] = append(f.changed[reference], rec)
}

func (f *fakeEmitter) Resolved(reference string, rec StatusRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved[reference] = append(f.resolved[reference], rec)
}

func (f *fakeEmitter) changedCount(reference string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.changed[reference])
}

func (f *fakeEmitter) resolvedCount(reference string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resolved[reference])
}

// gateEmitter blocks inside StatusChanged until released, which pins an
// Apply mid-flight while it holds the entry lock.
type gateEmitter struct {
	entered chan struct{}
	release chan struct{}
}

func newGateEmitter() *gateEmitter {
	return &gateEmitter{
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (g *gateEmitter) StatusChanged(string, StatusRecord) {
	g.entered <- struct{}{}
	<-g.release
}

func (g *gateEmitter) Resolved(string, StatusRecord) {}

type testRig struct {
	registry   *Registry
	lookup     *fakeLookup
	subscriber *fakeSubscriber
	emitter    *fakeEmitter
}

func newTestRig(pollInterval, grace time.Duration) *testRig {
	lookup := &fakeLookup{}
	subscriber := newFakeSubscriber()
	emitter := newFakeEmitter()

	r := NewRegistry(Config{
		Lookup:       lookup,
		Subscriber:   subscriber,
		Emitter:      emitter,
		Logger:       zap.NewNop().Sugar(),
		ResolveGrace: grace,
	})
	// Production clamping would slow the suite down to multi-second polls.
	r.interval = pollInterval

	return &testRig{registry: r, lookup: lookup, subscriber: subscriber, emitter: emitter}
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func record(status Status, source Source, msg string) StatusRecord {
	return StatusRecord{Status: status, Message: msg, Timestamp: time.Now(), Source: source}
}
