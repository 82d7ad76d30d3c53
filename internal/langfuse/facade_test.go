package langfuse

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/chattrace/internal/logging"
)

func enabledConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.PublicKey = "pk-lf-test"
	cfg.SecretKey = "sk-lf-test"
	cfg.FlushOnShutdown = false
	return cfg
}

func newEnabledFacade(t *testing.T, rec *RecorderClient) *Facade {
	t.Helper()
	f := New(enabledConfig(), zap.NewNop(), WithClient(rec))
	f.Initialize(context.Background())
	require.True(t, f.Enabled())
	return f
}

func TestFacade_UninitializedIsInert(t *testing.T) {
	rec := NewRecorderClient()
	f := New(enabledConfig(), zap.NewNop(), WithClient(rec))

	ctx := context.Background()
	assert.False(t, f.Enabled())
	assert.False(t, f.ShouldTrace())
	assert.Nil(t, f.Trace(ctx, TraceParams{Name: "turn"}))
	require.NoError(t, f.Flush(ctx))
	assert.Zero(t, rec.Calls())
}

func TestFacade_DisabledMakesNoDelegateCalls(t *testing.T) {
	rec := NewRecorderClient()
	cfg := NewDefaultConfig() // Enabled: false
	f := New(cfg, zap.NewNop(), WithClient(rec))
	f.Initialize(context.Background())

	ctx := context.Background()
	trace := f.Trace(ctx, TraceParams{Name: "turn"})
	assert.Nil(t, trace)
	assert.Nil(t, f.Span(ctx, trace, SpanParams{Name: "step"}))
	assert.Nil(t, f.Generation(ctx, trace, GenerationParams{Model: "gpt-4o-mini"}))
	f.Event(ctx, trace, EventParams{Name: "note"})
	f.UpdateTrace(ctx, trace, TraceUpdate{Output: "x"})
	f.Score(ctx, ScoreParams{Name: "helpfulness", Value: 1})
	require.NoError(t, f.Flush(ctx))
	require.NoError(t, f.Shutdown(ctx))

	assert.Zero(t, rec.Calls())
}

func TestFacade_MissingCredentialsDisables(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"no public key", func(c *Config) { c.PublicKey = "" }},
		{"no secret key", func(c *Config) { c.SecretKey = "" }},
		{"no keys at all", func(c *Config) { c.PublicKey = ""; c.SecretKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enabledConfig()
			tt.mut(cfg)

			log := logging.NewTestLogger()
			f := New(cfg, log.Logger)
			f.Initialize(context.Background())

			assert.False(t, f.Enabled())
			log.AssertLogged(t, zapcore.WarnLevel, "missing credentials")
		})
	}
}

func TestFacade_ClientConstructionFailureDisables(t *testing.T) {
	log := logging.NewTestLogger()
	f := New(enabledConfig(), log.Logger, WithClientFactory(
		func(context.Context, *Config, *zap.Logger) (Client, error) {
			return nil, errors.New("connection refused")
		}))
	f.Initialize(context.Background())

	assert.False(t, f.Enabled())
	assert.Nil(t, f.Trace(context.Background(), TraceParams{Name: "turn"}))
	log.AssertLogged(t, zapcore.ErrorLevel, "client construction failed")
}

func TestFacade_InitializeIsIdempotent(t *testing.T) {
	var factoryCalls int
	rec := NewRecorderClient()
	f := New(enabledConfig(), zap.NewNop(), WithClientFactory(
		func(context.Context, *Config, *zap.Logger) (Client, error) {
			factoryCalls++
			return rec, nil
		}))

	for range 3 {
		f.Initialize(context.Background())
	}

	assert.Equal(t, 1, factoryCalls)
	assert.True(t, f.Enabled())
}

func TestShouldTrace_RateOne(t *testing.T) {
	f := newEnabledFacade(t, NewRecorderClient())
	for range 1000 {
		require.True(t, f.ShouldTrace())
	}
}

func TestShouldTrace_RateZero(t *testing.T) {
	cfg := enabledConfig()
	cfg.SampleRate = 0
	f := New(cfg, zap.NewNop(), WithClient(NewRecorderClient()))
	f.Initialize(context.Background())

	for range 1000 {
		require.False(t, f.ShouldTrace())
	}
}

func TestShouldTrace_RateHalfIsStatistical(t *testing.T) {
	cfg := enabledConfig()
	cfg.SampleRate = 0.5
	f := New(cfg, zap.NewNop(), WithClient(NewRecorderClient()))
	f.Initialize(context.Background())

	const n = 10000
	sampled := 0
	for range n {
		if f.ShouldTrace() {
			sampled++
		}
	}
	ratio := float64(sampled) / n
	assert.InDelta(t, 0.5, ratio, 0.05, "sampled ratio %f out of tolerance", ratio)
}

func TestTrace_DelegateErrorDegradesToNilHandle(t *testing.T) {
	rec := NewRecorderClient()
	rec.Err = errors.New("ingestion unavailable")

	log := logging.NewTestLogger()
	f := New(enabledConfig(), log.Logger, WithClient(rec))
	f.Initialize(context.Background())

	trace := f.Trace(context.Background(), TraceParams{Name: "turn"})
	assert.Nil(t, trace)
	assert.Equal(t, 1, log.CountLevel(zapcore.WarnLevel))
	log.AssertLogged(t, zapcore.WarnLevel, "create trace failed")
}

func TestOperations_NilParentIsNoOp(t *testing.T) {
	rec := NewRecorderClient()
	f := newEnabledFacade(t, rec)

	ctx := context.Background()
	assert.Nil(t, f.Span(ctx, nil, SpanParams{Name: "step"}))
	assert.Nil(t, f.Generation(ctx, nil, GenerationParams{Model: "gpt-4o-mini"}))
	f.Event(ctx, nil, EventParams{Name: "note"})
	f.UpdateTrace(ctx, nil, TraceUpdate{Output: "x"})
	assert.Zero(t, rec.Calls())
}

func TestOperations_DelegateForwarding(t *testing.T) {
	rec := NewRecorderClient()
	f := newEnabledFacade(t, rec)
	ctx := context.Background()

	trace := f.Trace(ctx, TraceParams{
		Name:      "chat.turn",
		SessionID: "conv-1",
		UserID:    "user-1",
	})
	require.NotNil(t, trace)

	span := f.Span(ctx, trace, SpanParams{Name: "retrieval"})
	require.NotNil(t, span)
	assert.Equal(t, trace.ID, span.TraceID)

	gen := f.Generation(ctx, trace, GenerationParams{
		Model: "gpt-4o-mini",
		Usage: Usage{PromptTokens: 12, CompletionTokens: 34, TotalTokens: 46},
	})
	require.NotNil(t, gen)

	f.Event(ctx, trace, EventParams{Name: "tool.call"})
	f.UpdateTrace(ctx, trace, TraceUpdate{Output: "done"})
	f.Score(ctx, ScoreParams{TraceID: trace.ID, Name: "helpfulness", Value: 0.9})

	assert.Len(t, rec.Traces, 1)
	assert.Len(t, rec.Spans, 1)
	assert.Len(t, rec.Generations, 1)
	assert.Len(t, rec.Events, 1)
	assert.Len(t, rec.Updates, 1)
	assert.Len(t, rec.Scores, 1)
	assert.Equal(t, "conv-1", rec.Traces[0].SessionID)
	assert.Equal(t, 46, rec.Generations[0].Usage.TotalTokens)
}

func TestOperations_DelegateErrorsNeverPropagate(t *testing.T) {
	rec := NewRecorderClient()
	f := newEnabledFacade(t, rec)
	ctx := context.Background()

	trace := f.Trace(ctx, TraceParams{Name: "turn"})
	require.NotNil(t, trace)

	rec.Err = errors.New("delegate down")
	assert.NotPanics(t, func() {
		assert.Nil(t, f.Span(ctx, trace, SpanParams{Name: "step"}))
		assert.Nil(t, f.Generation(ctx, trace, GenerationParams{Model: "m"}))
		f.Event(ctx, trace, EventParams{Name: "e"})
		f.UpdateTrace(ctx, trace, TraceUpdate{Output: "x"})
		f.Score(ctx, ScoreParams{Name: "s", Value: 1})
	})
}

func TestFlush_SurfacesDelegateFailure(t *testing.T) {
	rec := NewRecorderClient()
	log := logging.NewTestLogger()
	f := New(enabledConfig(), log.Logger, WithClient(rec))
	f.Initialize(context.Background())

	require.NoError(t, f.Flush(context.Background()))

	rec.Err = errors.New("export timeout")
	err := f.Flush(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "export timeout")
	log.AssertLogged(t, zapcore.ErrorLevel, "flush failed")
}

func TestShutdown_SurfacesDelegateFailureAndDisables(t *testing.T) {
	rec := NewRecorderClient()
	f := newEnabledFacade(t, rec)

	require.NoError(t, f.Shutdown(context.Background()))
	assert.False(t, f.Enabled())
	assert.Equal(t, 1, rec.ShutdownCalls)

	// Further operations are inert after shutdown.
	assert.Nil(t, f.Trace(context.Background(), TraceParams{Name: "turn"}))
	assert.Equal(t, 1, rec.ShutdownCalls)
}

func TestShutdown_FailureReturned(t *testing.T) {
	rec := NewRecorderClient()
	rec.Err = errors.New("hang")
	cfg := enabledConfig()
	f := New(cfg, zap.NewNop(), WithClient(rec))
	f.Initialize(context.Background())
	// Clear the error so Initialize-time state is sane, then fail shutdown.
	rec.Err = errors.New("shutdown deadline exceeded")

	err := f.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "shutdown deadline exceeded")
}

func TestFacade_ConcurrentOperations(t *testing.T) {
	rec := NewRecorderClient()
	f := newEnabledFacade(t, rec)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				trace := f.Trace(ctx, TraceParams{Name: "turn"})
				f.Generation(ctx, trace, GenerationParams{Model: "m"})
				f.UpdateTrace(ctx, trace, TraceUpdate{Output: "ok"})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, rec.Traces, 16*50)
	assert.Len(t, rec.Generations, 16*50)
}
