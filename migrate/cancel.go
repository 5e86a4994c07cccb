package migrate

import (
	"os"
	"os/signal"
	"sync"
)

// Canceller is asked whether the run should stop, at the top of each batch and after each call to a server.
// It's called from the goroutine running the session, so it can block to ask the operator.
type Canceller interface {
	Cancelled() bool
}

// CancellerFunc is a function used as a Canceller
type CancellerFunc func() bool

func (f CancellerFunc) Cancelled() bool {
	return f()
}

// ConfirmFunc asks the operator a yes/no question
type ConfirmFunc func(question string) bool

const cancelQuestion = "Do you really want to cancel the migration? Messages already committed are kept"

// InterruptHandler catches the interrupt signal. The next time it's checked, it asks the operator to confirm.
// Once confirmed, it keeps returning true.
type InterruptHandler struct {
	signals   chan os.Signal
	confirm   ConfirmFunc
	mu        sync.Mutex
	confirmed bool
	stop      func()
}

// NewInterruptHandler starts catching os.Interrupt. Stop must be called to restore the default behaviour.
func NewInterruptHandler(confirm ConfirmFunc) *InterruptHandler {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	handler := newInterruptHandler(signals, confirm)
	handler.stop = func() {
		signal.Stop(signals)
	}
	return handler
}

func newInterruptHandler(signals chan os.Signal, confirm ConfirmFunc) *InterruptHandler {
	return &InterruptHandler{
		signals: signals,
		confirm: confirm,
		stop:    func() {},
	}
}

// Cancelled returns true once the operator confirmed. It never blocks when no signal is pending.
func (h *InterruptHandler) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.confirmed {
		return true
	}
	select {
	case <-h.signals:
		if h.confirm == nil {
			h.confirmed = true
		} else {
			h.confirmed = h.confirm(cancelQuestion)
		}
	default:
	}
	return h.confirmed
}

// Stop listening to the interrupt signal
func (h *InterruptHandler) Stop() {
	h.stop()
}
