package langfuse

import (
	"context"
	"time"
)

// Level classifies an observation, mirroring Langfuse observation levels.
type Level string

// Observation levels.
const (
	LevelDefault Level = "DEFAULT"
	LevelDebug   Level = "DEBUG"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
)

// Usage carries token counts for one model invocation.
type Usage struct {
	PromptTokens     int `json:"input,omitempty"`
	CompletionTokens int `json:"output,omitempty"`
	TotalTokens      int `json:"total,omitempty"`
}

// TraceParams describes a new trace: the top-level record grouping all
// observability events for one conversation turn.
type TraceParams struct {
	Name      string
	UserID    string
	SessionID string
	Tags      []string
	Input     any
	Metadata  map[string]any
}

// TraceUpdate carries terminal metadata for a trace: the final output and a
// success or failure marker.
type TraceUpdate struct {
	Output        any
	Level         Level
	StatusMessage string
	Metadata      map[string]any
}

// SpanParams describes a timed sub-operation nested under a trace.
type SpanParams struct {
	Name          string
	Input         any
	Output        any
	Metadata      map[string]any
	Level         Level
	StatusMessage string
	StartTime     time.Time
	EndTime       time.Time
}

// GenerationParams describes one model invocation with prompt, response,
// token and latency data.
type GenerationParams struct {
	Name                string
	Model               string
	ModelParameters     map[string]any
	Input               any
	Output              any
	Usage               Usage
	Metadata            map[string]any
	Level               Level
	StatusMessage       string
	StartTime           time.Time
	CompletionStartTime time.Time
	EndTime             time.Time
}

// EventParams describes a point-in-time occurrence within a trace.
type EventParams struct {
	Name     string
	Input    any
	Output   any
	Metadata map[string]any
	Level    Level
}

// ScoreParams describes a feedback or quality score, recorded independently
// of any live trace handle.
type ScoreParams struct {
	TraceID string
	Name    string
	Value   float64
	Comment string
}

// Trace is an opaque handle to a delegate-owned trace. The wrapped state is
// meaningful only to the client that created it.
type Trace struct {
	ID  string
	rec any
}

// Span is an opaque handle to a recorded sub-operation.
type Span struct {
	ID      string
	TraceID string
}

// Generation is an opaque handle to a recorded model invocation.
type Generation struct {
	ID      string
	TraceID string
}

// Client is the delegate that performs actual transport and batching to the
// Langfuse backend. Implementations must be safe for concurrent use.
type Client interface {
	CreateTrace(ctx context.Context, p TraceParams) (*Trace, error)
	CreateSpan(ctx context.Context, trace *Trace, p SpanParams) (*Span, error)
	CreateGeneration(ctx context.Context, trace *Trace, p GenerationParams) (*Generation, error)
	CreateEvent(ctx context.Context, trace *Trace, p EventParams) error
	UpdateTrace(ctx context.Context, trace *Trace, u TraceUpdate) error
	CreateScore(ctx context.Context, p ScoreParams) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
