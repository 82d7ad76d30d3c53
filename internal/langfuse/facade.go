package langfuse

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

// Facade is the fail-open entry point for Langfuse tracing.
//
// Construct one at application startup with New, call Initialize once, and
// inject it into components that record traces. All per-request operations
// degrade to no-ops when tracing is disabled, unconfigured, or when the
// delegate fails; instrumentation must never take down the application it
// observes. Flush and Shutdown are the only operations that surface delegate
// errors, since their callers explicitly depend on the outcome.
//
// All methods are safe for concurrent use after Initialize returns.
type Facade struct {
	cfg    *Config
	logger *zap.Logger
	client Client

	newClient func(ctx context.Context, cfg *Config, logger *zap.Logger) (Client, error)

	initOnce sync.Once
	enabled  atomic.Bool
	signalCh chan os.Signal
}

// Option configures a Facade.
type Option func(*Facade)

// WithClient injects a pre-built delegate client, bypassing the default
// OTLP-based client construction. Used by tests and embedders that manage
// their own delegate.
func WithClient(c Client) Option {
	return func(f *Facade) {
		f.client = c
	}
}

// WithClientFactory overrides how the delegate client is constructed during
// Initialize.
func WithClientFactory(factory func(ctx context.Context, cfg *Config, logger *zap.Logger) (Client, error)) Option {
	return func(f *Facade) {
		f.newClient = factory
	}
}

// New creates a facade in the uninitialized state. A nil cfg uses defaults
// (tracing disabled); a nil logger logs nowhere.
func New(cfg *Config, logger *zap.Logger, opts ...Option) *Facade {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Facade{
		cfg:       cfg,
		logger:    logger,
		newClient: NewOTELClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Initialize transitions the facade from uninitialized to enabled or
// disabled. It is idempotent: repeated calls are no-ops.
//
// Disabled config, missing credentials, and delegate construction failures
// all resolve to the disabled state with a log line, never an error; the
// host process keeps running untraced.
func (f *Facade) Initialize(ctx context.Context) {
	f.initOnce.Do(func() {
		f.initialize(ctx)
	})
}

func (f *Facade) initialize(ctx context.Context) {
	f.cfg.Normalize()

	if !f.cfg.Enabled {
		f.logger.Debug("langfuse tracing disabled by config")
		return
	}
	if !f.cfg.HasCredentials() {
		f.logger.Warn("langfuse tracing disabled: missing credentials",
			zap.Bool("public_key_set", f.cfg.PublicKey != ""),
			zap.Bool("secret_key_set", f.cfg.SecretKey.IsSet()))
		return
	}

	if f.client == nil {
		client, err := f.newClient(ctx, f.cfg, f.logger)
		if err != nil {
			f.logger.Error("langfuse client construction failed, tracing disabled",
				zap.String("host", f.cfg.Host),
				zap.Error(err))
			return
		}
		f.client = client
	}

	f.enabled.Store(true)

	if f.cfg.FlushOnShutdown {
		f.registerSignalFlush()
	}

	f.logger.Info("langfuse tracing enabled",
		zap.String("host", f.cfg.Host),
		zap.Float64("sample_rate", f.cfg.SampleRate),
		zap.Int("flush_at", f.cfg.FlushAt),
		zap.Duration("flush_interval", f.cfg.FlushInterval.Duration()))
}

// registerSignalFlush flushes buffered traces best-effort when the process
// receives a termination signal. The wait is bounded by ShutdownTimeout so a
// hung delegate cannot block process exit. Called at most once, from within
// the initOnce body.
func (f *Facade) registerSignalFlush() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	f.signalCh = ch

	go func() {
		sig, ok := <-ch
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), f.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := f.Flush(ctx); err != nil {
			f.logger.Warn("flush on termination signal failed",
				zap.String("signal", sig.String()),
				zap.Error(err))
			return
		}
		f.logger.Info("flushed traces on termination signal",
			zap.String("signal", sig.String()))
	}()
}

// Enabled reports whether the facade is initialized and tracing.
func (f *Facade) Enabled() bool {
	return f != nil && f.enabled.Load()
}

// ShouldTrace decides whether the current conversation turn is recorded.
//
// Returns false when disabled or uninitialized. Otherwise applies the sample
// rate with an independent uniform draw per call; rates at or above 1 always
// trace, at or below 0 never do.
func (f *Facade) ShouldTrace() bool {
	if !f.Enabled() {
		return false
	}
	rate := f.cfg.SampleRate
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return rand.Float64() < rate
}

// Trace starts a trace for one conversation turn. Returns nil when the turn
// is not sampled, tracing is disabled, or the delegate fails; callers must
// treat a nil handle as "do not record under this trace" and carry on.
func (f *Facade) Trace(ctx context.Context, p TraceParams) *Trace {
	if !f.ShouldTrace() {
		return nil
	}
	trace, err := f.client.CreateTrace(ctx, p)
	if err != nil {
		f.observeErr("create trace", p.Name, err)
		return nil
	}
	if f.cfg.Debug {
		f.logger.Debug("langfuse trace created",
			zap.String("trace_id", trace.ID),
			zap.String("name", p.Name))
	}
	return trace
}

// Span records a timed sub-operation under trace. No-op when disabled or
// when the parent handle is absent.
func (f *Facade) Span(ctx context.Context, trace *Trace, p SpanParams) *Span {
	if !f.Enabled() || trace == nil {
		return nil
	}
	span, err := f.client.CreateSpan(ctx, trace, p)
	if err != nil {
		f.observeErr("create span", p.Name, err)
		return nil
	}
	return span
}

// Generation records one model invocation under trace. No-op when disabled
// or when the parent handle is absent.
func (f *Facade) Generation(ctx context.Context, trace *Trace, p GenerationParams) *Generation {
	if !f.Enabled() || trace == nil {
		return nil
	}
	gen, err := f.client.CreateGeneration(ctx, trace, p)
	if err != nil {
		f.observeErr("create generation", p.Name, err)
		return nil
	}
	if f.cfg.Debug {
		f.logger.Debug("langfuse generation recorded",
			zap.String("trace_id", trace.ID),
			zap.String("model", p.Model),
			zap.Int("total_tokens", p.Usage.TotalTokens))
	}
	return gen
}

// Event records a fire-and-forget occurrence under trace.
func (f *Facade) Event(ctx context.Context, trace *Trace, p EventParams) {
	if !f.Enabled() || trace == nil {
		return
	}
	if err := f.client.CreateEvent(ctx, trace, p); err != nil {
		f.observeErr("create event", p.Name, err)
	}
}

// UpdateTrace forwards terminal metadata for a trace, typically the final
// output and a success or failure marker.
func (f *Facade) UpdateTrace(ctx context.Context, trace *Trace, u TraceUpdate) {
	if !f.Enabled() || trace == nil {
		return
	}
	if err := f.client.UpdateTrace(ctx, trace, u); err != nil {
		f.observeErr("update trace", trace.ID, err)
	}
}

// Score records a feedback or quality score. Unlike the other operations it
// needs no live trace handle, only a trace ID the caller retained.
func (f *Facade) Score(ctx context.Context, p ScoreParams) {
	if !f.Enabled() {
		return
	}
	if err := f.client.CreateScore(ctx, p); err != nil {
		f.observeErr("create score", p.Name, err)
	}
}

// Flush exports all buffered traces. No-op when disabled. A delegate failure
// is logged and returned: callers asking for a flush guarantee must learn it
// did not complete.
func (f *Facade) Flush(ctx context.Context) error {
	if !f.Enabled() {
		return nil
	}
	if err := f.client.Flush(ctx); err != nil {
		f.logger.Error("langfuse flush failed", zap.Error(err))
		return fmt.Errorf("flushing langfuse client: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the delegate, then disables the facade. No-op
// when disabled. Mirrors Flush: the delegate error is logged and returned.
func (f *Facade) Shutdown(ctx context.Context) error {
	if f.signalCh != nil {
		signal.Stop(f.signalCh)
		close(f.signalCh)
		f.signalCh = nil
	}
	if !f.Enabled() {
		return nil
	}
	f.enabled.Store(false)
	if err := f.client.Shutdown(ctx); err != nil {
		f.logger.Error("langfuse shutdown failed", zap.Error(err))
		return fmt.Errorf("shutting down langfuse client: %w", err)
	}
	f.logger.Info("langfuse client shut down")
	return nil
}

// observeErr applies the uniform catch-log-degrade policy for delegate
// failures: one warning, no propagation.
func (f *Facade) observeErr(op, name string, err error) {
	f.logger.Warn("langfuse "+op+" failed",
		zap.String("name", name),
		zap.Error(err))
}
