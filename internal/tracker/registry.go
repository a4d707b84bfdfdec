package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Subscriber is the push-channel side of tracking: the registry asks it to
// start and stop delivering events for a reference. Both calls are
// best-effort; polling alone must be able to resolve a payment.
type Subscriber interface {
	Subscribe(reference string, obs Observer) error
	Unsubscribe(reference string) error
}

// NopSubscriber satisfies Subscriber when no push channel is configured.
type NopSubscriber struct{}

func (NopSubscriber) Subscribe(string, Observer) error { return nil }
func (NopSubscriber) Unsubscribe(string) error         { return nil }

const DefaultResolveGrace = 2 * time.Second

type Config struct {
	Lookup       StatusLookup
	Subscriber   Subscriber
	Emitter      Emitter
	Logger       *zap.SugaredLogger
	PollInterval time.Duration
	// ResolveGrace is how long a terminal entry lingers before teardown, so
	// an in-flight sibling event is discarded by the sticky-terminal check
	// instead of racing the removal.
	ResolveGrace time.Duration
}

// entry holds one tracked payment plus the lock that serializes every Apply
// for its reference. Entries for different references never contend.
type entry struct {
	mu      sync.Mutex
	payment TrackedPayment
	worker  *PollWorker

	// stopped is set (under mu) when the entry leaves the registry, so an
	// Apply that grabbed the entry pointer before removal cannot write the
	// cache back after StopTracking has evicted it.
	stopped bool
}

// Registry owns the set of tracked payment references and the lifecycle of
// their poll workers and push subscriptions.
type Registry struct {
	lookup   StatusLookup
	subs     Subscriber
	emitter  Emitter
	logger   *zap.SugaredLogger
	interval time.Duration
	grace    time.Duration

	mu         sync.Mutex
	entries    map[string]*entry
	cache      *StatusCache
	closed     bool
	stopTimers map[string]*time.Timer
}

func NewRegistry(cfg Config) *Registry {
	subs := cfg.Subscriber
	if subs == nil {
		subs = NopSubscriber{}
	}
	grace := cfg.ResolveGrace
	if grace <= 0 {
		grace = DefaultResolveGrace
	}
	return &Registry{
		lookup:     cfg.Lookup,
		subs:       subs,
		emitter:    cfg.Emitter,
		logger:     cfg.Logger,
		interval:   ClampPollInterval(cfg.PollInterval),
		grace:      grace,
		entries:    make(map[string]*entry),
		cache:      NewStatusCache(),
		stopTimers: make(map[string]*time.Timer),
	}
}

// StartTracking registers interest in a payment reference, starts its poll
// worker and requests a push subscription. Idempotent: a reference that is
// already tracked keeps its single worker and subscription.
//
// The bool result reports whether tracking is in place once bookkeeping is
// committed; the push subscription itself is best-effort.
func (r *Registry) StartTracking(reference, orderID string, obs Observer) bool {
	if reference == "" {
		return false
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	if _, ok := r.entries[reference]; ok {
		r.mu.Unlock()
		r.logger.Debugw("already tracking payment", "reference", reference)
		return true
	}

	init := StatusRecord{
		Status:    StatusPending,
		Message:   "Payment tracking started",
		Timestamp: time.Now(),
		Source:    SourceInit,
	}
	e := &entry{
		payment: TrackedPayment{
			Reference:  reference,
			OrderID:    orderID,
			Observer:   obs,
			CreatedAt:  time.Now(),
			LastStatus: init,
		},
	}
	e.worker = NewPollWorker(reference, orderID, r.interval, r.lookup, r.Apply, r.logger)
	r.entries[reference] = e
	r.cache.Set(reference, init)
	r.mu.Unlock()

	e.worker.Start()

	if err := r.subs.Subscribe(reference, obs); err != nil {
		// Polling still covers this reference; the subscription is replayed
		// on the next reconnect anyway.
		r.logger.Warnw("push subscribe failed", "reference", reference, "error", err)
	}

	r.logger.Infow("tracking payment", "reference", reference, "order_id", orderID)
	return true
}

// StopTracking tears down the poll worker and push subscription for a
// reference and removes it from the registry and the cache. No-op when the
// reference is not tracked.
func (r *Registry) StopTracking(reference string) {
	r.mu.Lock()
	e, ok := r.entries[reference]
	if ok {
		delete(r.entries, reference)
	}
	if t, pending := r.stopTimers[reference]; pending {
		t.Stop()
		delete(r.stopTimers, reference)
	}
	r.mu.Unlock()

	if !ok {
		r.cache.Delete(reference)
		return
	}

	// The stopped flag and the final cache eviction share one critical
	// section: an Apply parked on the entry lock either wrote before this
	// (and its record is evicted here) or runs after and discards itself.
	e.mu.Lock()
	e.stopped = true
	r.cache.Delete(reference)
	e.mu.Unlock()

	e.worker.Stop()
	if err := r.subs.Unsubscribe(reference); err != nil {
		// Worst case is a stale server-side subscription; the connection's
		// session lifecycle cleans those up.
		r.logger.Warnw("push unsubscribe failed", "reference", reference, "error", err)
	}

	r.logger.Infow("stopped tracking payment", "reference", reference)
}

func (r *Registry) IsTracking(reference string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[reference]
	return ok
}

// ListTracked returns every currently tracked reference.
func (r *Registry) ListTracked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := make([]string, 0, len(r.entries))
	for ref := range r.entries {
		refs = append(refs, ref)
	}
	return refs
}

// GetStatus returns the latest cached record for a reference.
func (r *Registry) GetStatus(reference string) (StatusRecord, bool) {
	return r.cache.Get(reference)
}

// TrackedPayment returns a snapshot of the bookkeeping for a reference, for
// diagnostics and for observers that need the owning user or session.
func (r *Registry) TrackedPayment(reference string) (TrackedPayment, bool) {
	e := r.entry(reference)
	if e == nil {
		return TrackedPayment{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.payment, true
}

// CheckNow performs a single on-demand lookup outside the regular poll
// cadence and feeds the result through Apply. This backs the manual
// "check now" action when both channels look degraded.
func (r *Registry) CheckNow(ctx context.Context, reference string) (StatusRecord, error) {
	e := r.entry(reference)
	if e == nil {
		return StatusRecord{}, ErrNotTracked
	}
	e.mu.Lock()
	orderID := e.payment.OrderID
	e.mu.Unlock()

	rec, err := r.lookup.LookupStatus(ctx, orderID)
	if err != nil {
		return StatusRecord{}, err
	}
	rec.Source = SourcePoll
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	r.Apply(reference, rec)

	// Return what actually stuck, not what the lookup said: a terminal
	// record already in place wins.
	cur, _ := r.cache.Get(reference)
	return cur, nil
}

// Resubscribe replays the push subscription for every tracked reference.
// Subscriptions do not survive a transport reconnect, so the push listener
// calls this each time the connection comes back up. The observer identity
// is re-sent with every subscription.
func (r *Registry) Resubscribe() {
	r.mu.Lock()
	type sub struct {
		ref string
		obs Observer
	}
	subs := make([]sub, 0, len(r.entries))
	for ref, e := range r.entries {
		subs = append(subs, sub{ref, e.payment.Observer})
	}
	r.mu.Unlock()

	for _, s := range subs {
		if err := r.subs.Subscribe(s.ref, s.obs); err != nil {
			r.logger.Warnw("push resubscribe failed", "reference", s.ref, "error", err)
		}
	}
	if len(subs) > 0 {
		r.logger.Infow("replayed push subscriptions", "count", len(subs))
	}
}

// Shutdown cancels pending teardown timers and stops every poll worker.
// The registry accepts no new references afterwards.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	entries := make(map[string]*entry, len(r.entries))
	for ref, e := range r.entries {
		entries[ref] = e
	}
	r.entries = make(map[string]*entry)
	timers := r.stopTimers
	r.stopTimers = make(map[string]*time.Timer)
	r.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}

	for ref, e := range entries {
		e.mu.Lock()
		e.stopped = true
		r.cache.Delete(ref)
		e.mu.Unlock()
		e.worker.Stop()
	}
	for _, e := range entries {
		<-e.worker.Done()
	}
	r.logger.Infow("payment tracking stopped", "workers", len(entries))
}

func (r *Registry) entry(reference string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[reference]
}
