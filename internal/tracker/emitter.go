package tracker

import (
	"go.uber.org/zap"
)

// Emitter receives status events from the reconciler. StatusChanged fires for
// every applied record and may fire many times per reference; Resolved fires
// exactly once, when the reference reaches a terminal status.
//
// Implementations must not block: the reconciler calls the emitter while
// holding the per-reference lock, so anything slow (push notification, email,
// network) has to hand off to its own goroutine.
type Emitter interface {
	StatusChanged(reference string, rec StatusRecord)
	Resolved(reference string, rec StatusRecord)
}

// FanoutEmitter relays events to every registered observer. Each observer is
// invoked on its own goroutine and a panicking observer is logged and
// swallowed, so observer failures can never reach the reconciliation path.
type FanoutEmitter struct {
	logger    *zap.SugaredLogger
	observers []Emitter
}

func NewFanoutEmitter(logger *zap.SugaredLogger, observers ...Emitter) *FanoutEmitter {
	return &FanoutEmitter{logger: logger, observers: observers}
}

func (f *FanoutEmitter) StatusChanged(reference string, rec StatusRecord) {
	for _, obs := range f.observers {
		go f.dispatch(reference, func() { obs.StatusChanged(reference, rec) })
	}
}

func (f *FanoutEmitter) Resolved(reference string, rec StatusRecord) {
	for _, obs := range f.observers {
		go f.dispatch(reference, func() { obs.Resolved(reference, rec) })
	}
}

func (f *FanoutEmitter) dispatch(reference string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Errorw("status observer panicked", "reference", reference, "panic", r)
		}
	}()
	fn()
}
