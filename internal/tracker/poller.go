package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StatusLookup asks the order backend for the current state of a payment.
// Implementations normalize the processor's status vocabulary into the
// four-value Status enum.
type StatusLookup interface {
	LookupStatus(ctx context.Context, orderID string) (StatusRecord, error)
}

const (
	DefaultPollInterval = 10 * time.Second
	MinPollInterval     = 3 * time.Second
	MaxPollInterval     = 30 * time.Second

	lookupTimeout = 15 * time.Second
)

// ClampPollInterval keeps the poll cadence inside the allowed window: fast
// enough that the UI never goes stale for long, slow enough that the lookup
// backend isn't hammered.
func ClampPollInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultPollInterval
	}
	if d < MinPollInterval {
		return MinPollInterval
	}
	if d > MaxPollInterval {
		return MaxPollInterval
	}
	return d
}

// PollWorker repeatedly looks up one payment's status and feeds results into
// the reconciler. One worker runs per tracked reference. Lookup errors never
// stop the loop; the next tick retries unconditionally.
type PollWorker struct {
	reference string
	orderID   string
	interval  time.Duration
	lookup    StatusLookup
	apply     func(reference string, rec StatusRecord)
	logger    *zap.SugaredLogger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPollWorker takes the interval as given; the registry clamps its
// configured cadence before handing it down.
func NewPollWorker(reference, orderID string, interval time.Duration, lookup StatusLookup, apply func(string, StatusRecord), logger *zap.SugaredLogger) *PollWorker {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollWorker{
		reference: reference,
		orderID:   orderID,
		interval:  interval,
		lookup:    lookup,
		apply:     apply,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the worker loop: one immediate lookup, then one per interval
// until Stop is called.
func (w *PollWorker) Start() {
	go w.loop()
}

func (w *PollWorker) loop() {
	defer close(w.done)

	w.poll()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *PollWorker) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	rec, err := w.lookup.LookupStatus(ctx, w.orderID)
	if err != nil {
		// Transient failures are expected; the UI must never get stuck on
		// PENDING because one request flaked.
		w.logger.Errorw("status lookup failed", "reference", w.reference, "order_id", w.orderID, "error", err)
		return
	}

	rec.Source = SourcePoll
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	// An in-flight lookup may deliver after Stop; the reconciler discards
	// records for untracked references, so no coordination is needed here.
	w.apply(w.reference, rec)
}

// Stop cancels the recurring timer. In-flight lookups are allowed to finish.
// Safe to call more than once.
func (w *PollWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// Done is closed once the worker loop has exited.
func (w *PollWorker) Done() <-chan struct{} {
	return w.done
}
