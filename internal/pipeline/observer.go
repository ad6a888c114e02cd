// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pdiddy/evidence-engine/internal/retry"
)

// Phase names a pipeline stage.
type Phase string

const (
	PhaseRewrite  Phase = "rewrite"
	PhaseRetrieve Phase = "retrieve"
	PhaseCurate   Phase = "curate"
	PhaseAnalyze  Phase = "analyze"
	PhaseDetect   Phase = "detect"
)

// EventKind distinguishes observer events.
type EventKind string

const (
	EventPhaseStart   EventKind = "phase_start"
	EventPhaseEnd     EventKind = "phase_end"
	EventRetryAttempt EventKind = "retry_attempt"
)

// Event is one progress notification for a query.
type Event struct {
	QueryID string
	Kind    EventKind
	Phase   Phase
	Time    time.Time

	// Elapsed is set on phase_end.
	Elapsed time.Duration

	// Err is set on a phase_end that failed and on a failed retry_attempt.
	Err error

	// Attempt is set on retry_attempt.
	Attempt *retry.Attempt
}

// Observer receives progress events. Events for one query arrive in order
// except during the analyze and detect phases, which run concurrently.
// Implementations must be safe for concurrent use.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent calls f(ev).
func (f ObserverFunc) OnEvent(ev Event) { f(ev) }

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}

// ProgressWriter is an Observer that prints one line per event to w.
type ProgressWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewProgressWriter returns an Observer writing progress lines to w.
func NewProgressWriter(w io.Writer) *ProgressWriter {
	return &ProgressWriter{w: w}
}

// OnEvent writes ev.
func (p *ProgressWriter) OnEvent(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case EventPhaseStart:
		fmt.Fprintf(p.w, "%-8s started\n", ev.Phase)
	case EventPhaseEnd:
		if ev.Err != nil {
			fmt.Fprintf(p.w, "%-8s failed after %s: %v\n", ev.Phase, ev.Elapsed.Round(time.Millisecond), ev.Err)
			return
		}
		fmt.Fprintf(p.w, "%-8s done in %s\n", ev.Phase, ev.Elapsed.Round(time.Millisecond))
	case EventRetryAttempt:
		if ev.Attempt == nil || ev.Attempt.Err == nil {
			return
		}
		fmt.Fprintf(p.w, "%-8s attempt %d failed (%s): %v\n",
			ev.Phase, ev.Attempt.Number, ev.Attempt.Kind, ev.Attempt.Err)
	}
}
