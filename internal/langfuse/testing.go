package langfuse

import (
	"context"
	"fmt"
	"sync"
)

// RecorderClient is an in-memory Client for tests. It records every call it
// receives; setting Err makes every call fail with that error.
type RecorderClient struct {
	mu sync.Mutex

	Err error

	Traces      []TraceParams
	Spans       []SpanParams
	Generations []GenerationParams
	Events      []EventParams
	Updates     []TraceUpdate
	Scores      []ScoreParams

	FlushCalls    int
	ShutdownCalls int

	nextID int
}

// NewRecorderClient creates an empty recorder.
func NewRecorderClient() *RecorderClient {
	return &RecorderClient{}
}

func (r *RecorderClient) CreateTrace(_ context.Context, p TraceParams) (*Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.Traces = append(r.Traces, p)
	r.nextID++
	return &Trace{ID: fmt.Sprintf("trace-%d", r.nextID)}, nil
}

func (r *RecorderClient) CreateSpan(_ context.Context, trace *Trace, p SpanParams) (*Span, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.Spans = append(r.Spans, p)
	r.nextID++
	return &Span{ID: fmt.Sprintf("span-%d", r.nextID), TraceID: trace.ID}, nil
}

func (r *RecorderClient) CreateGeneration(_ context.Context, trace *Trace, p GenerationParams) (*Generation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.Generations = append(r.Generations, p)
	r.nextID++
	return &Generation{ID: fmt.Sprintf("gen-%d", r.nextID), TraceID: trace.ID}, nil
}

func (r *RecorderClient) CreateEvent(_ context.Context, _ *Trace, p EventParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, p)
	return nil
}

func (r *RecorderClient) UpdateTrace(_ context.Context, _ *Trace, u TraceUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Updates = append(r.Updates, u)
	return nil
}

func (r *RecorderClient) CreateScore(_ context.Context, p ScoreParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Scores = append(r.Scores, p)
	return nil
}

func (r *RecorderClient) Flush(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FlushCalls++
	return r.Err
}

func (r *RecorderClient) Shutdown(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ShutdownCalls++
	return r.Err
}

// Calls returns the total number of delegate calls received, flush and
// shutdown included.
func (r *RecorderClient) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Traces) + len(r.Spans) + len(r.Generations) +
		len(r.Events) + len(r.Updates) + len(r.Scores) +
		r.FlushCalls + r.ShutdownCalls
}
