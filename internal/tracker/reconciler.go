package tracker

import "time"

// Apply is the single entry point for status records from both the poll
// workers and the push listener. It is the correctness core of the engine:
//
//   - records for untracked references are discarded (stop-race guard)
//   - terminal states are sticky: once set they are never overwritten
//   - among non-terminal records, last write wins regardless of source
//   - every applied record emits one status-changed event
//   - the first terminal record emits exactly one resolved event and
//     schedules teardown after the resolve grace period
//
// Calls for the same reference serialize on the entry lock; calls for
// different references proceed independently. The lock covers only the
// in-memory decision and the (non-blocking) emitter calls, never I/O.
func (r *Registry) Apply(reference string, rec StatusRecord) {
	e := r.entry(reference)
	if e == nil {
		r.logger.Debugw("discarding record for untracked payment", "reference", reference, "status", rec.Status)
		return
	}

	e.mu.Lock()
	if e.stopped {
		// StopTracking won the race while this call was parked on the lock.
		e.mu.Unlock()
		r.logger.Debugw("discarding record for untracked payment", "reference", reference, "status", rec.Status)
		return
	}
	if e.payment.Terminal {
		// Late or duplicate terminal events from the sibling channel land
		// here in normal operation; nothing to do.
		e.mu.Unlock()
		r.logger.Debugw("discarding record for resolved payment", "reference", reference, "status", rec.Status)
		return
	}

	e.payment.LastStatus = rec
	r.cache.Set(reference, rec)

	resolved := rec.Status.Terminal()
	if resolved {
		// The flag flip is the dedupe: only the Apply that transitions
		// Terminal false -> true may emit the resolved event.
		e.payment.Terminal = true
	}

	r.emitter.StatusChanged(reference, rec)
	if resolved {
		r.emitter.Resolved(reference, rec)
	}
	e.mu.Unlock()

	r.logger.Infow("payment status applied",
		"reference", reference,
		"status", rec.Status,
		"source", rec.Source,
		"terminal", resolved,
	)

	if resolved {
		r.scheduleStop(reference)
	}
}

// NoteStopHint records a push-channel assertion that no more updates are
// coming. The hint alone never stops polling: a misbehaving or premature
// signal must not strand a payment in PENDING. Terminal status travels
// through Apply as usual.
func (r *Registry) NoteStopHint(reference, reason string) {
	e := r.entry(reference)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.payment.StopHint = reason
	e.mu.Unlock()
	r.logger.Infow("push channel hinted stop", "reference", reference, "reason", reason)
}

// scheduleStop tears the reference down after the grace period, leaving the
// sticky-terminal check to absorb any event already in flight. The timer is
// retained so Shutdown and an early StopTracking can cancel it instead of
// waiting the grace out.
func (r *Registry) scheduleStop(reference string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.stopTimers[reference] = time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		delete(r.stopTimers, reference)
		r.mu.Unlock()
		r.StopTracking(reference)
	})
}
