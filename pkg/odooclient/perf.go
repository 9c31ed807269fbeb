// perf.go — a bracketed timing helper around execute_kw calls. Grounded on
// the bridge's design notes: a lightweight hook for a future metrics sink
// that must never influence control flow, so a nil or slow sink can never
// fail or delay a call.
package odooclient

import "time"

// PerfSample is one timed execute_kw invocation.
type PerfSample struct {
	Model    string
	Method   string
	Duration time.Duration
	Err      error
}

// PerfSink receives a PerfSample after each execute_kw call completes. It
// must not block meaningfully; PerfTracker calls it synchronously.
type PerfSink func(PerfSample)

// PerfTracker wraps a call with timing and forwards the sample to sink, if
// any. A nil sink makes Track a no-op wrapper.
type PerfTracker struct {
	sink PerfSink
}

// NewPerfTracker builds a PerfTracker. sink may be nil.
func NewPerfTracker(sink PerfSink) *PerfTracker {
	return &PerfTracker{sink: sink}
}

// Track runs fn, timing it, and reports the sample. fn's error is returned
// unchanged; timing/reporting never alters it.
func (t *PerfTracker) Track(model, method string, fn func() error) error {
	start := time.Now()
	err := fn()
	if t.sink != nil {
		t.sink(PerfSample{Model: model, Method: method, Duration: time.Since(start), Err: err})
	}
	return err
}
