package langfuse

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "github.com/fyrsmithlabs/chattrace/internal/langfuse"
	otlpPath   = "/api/public/otel/v1/traces"
)

// otelClient implements Client on the OpenTelemetry SDK. Spans are exported
// over OTLP/HTTP to the Langfuse backend, which maps langfuse.* attributes
// onto its trace/observation model. Batching, retry, and transport belong to
// the SDK's batch processor and exporter, not to this package.
type otelClient struct {
	cfg      *Config
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
	scores   *scoreClient
}

// otelTrace is the delegate-private state behind a Trace handle.
type otelTrace struct {
	ctx  context.Context
	span oteltrace.Span

	mu   sync.Mutex
	done bool
}

// NewOTELClient constructs the production delegate client for the given
// config. The returned client owns a private TracerProvider; it never
// touches the process-global OTel state.
func NewOTELClient(ctx context.Context, cfg *Config, logger *zap.Logger) (Client, error) {
	endpoint, insecure, err := endpointFromHost(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("resolving langfuse host: %w", err)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithURLPath(otlpPath),
		otlptracehttp.WithHeaders(map[string]string{
			"Authorization": basicAuth(cfg.PublicKey, cfg.SecretKey.Value()),
		}),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	res := newClientResource(cfg)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithMaxExportBatchSize(cfg.FlushAt),
			sdktrace.WithBatchTimeout(cfg.FlushInterval.Duration()),
		)),
	)

	if logger != nil && cfg.Debug {
		logger.Debug("langfuse otlp exporter configured",
			zap.String("endpoint", endpoint),
			zap.String("path", otlpPath),
			zap.Bool("insecure", insecure))
	}

	return &otelClient{
		cfg:      cfg,
		provider: provider,
		tracer:   provider.Tracer(tracerName),
		scores:   newScoreClient(cfg),
	}, nil
}

// newClientResource describes the service emitting the traces.
func newClientResource(cfg *Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName("chattrace"),
	}
	if cfg.Release != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Release))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func (c *otelClient) CreateTrace(ctx context.Context, p TraceParams) (*Trace, error) {
	name := p.Name
	if name == "" {
		name = "trace"
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTraceName, name),
	}
	if p.UserID != "" {
		attrs = append(attrs, attribute.String(attrUserID, p.UserID))
	}
	if p.SessionID != "" {
		attrs = append(attrs, attribute.String(attrSessionID, p.SessionID))
	}
	if len(p.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice(attrTraceTags, p.Tags))
	}
	if p.Input != nil {
		attrs = append(attrs, attribute.String(attrTraceInput, toJSON(p.Input)))
	}
	if len(p.Metadata) > 0 {
		attrs = append(attrs, attribute.String(attrTraceMetadata, toJSON(p.Metadata)))
	}
	if c.cfg.Environment != "" {
		attrs = append(attrs, attribute.String(attrEnvironment, c.cfg.Environment))
	}
	if c.cfg.Release != "" {
		attrs = append(attrs, attribute.String(attrRelease, c.cfg.Release))
	}

	// Each conversation turn becomes its own Langfuse trace, regardless of
	// any surrounding span the caller's context carries.
	spanCtx, span := c.tracer.Start(ctx, name,
		oteltrace.WithNewRoot(),
		oteltrace.WithAttributes(attrs...),
	)

	return &Trace{
		ID:  span.SpanContext().TraceID().String(),
		rec: &otelTrace{ctx: spanCtx, span: span},
	}, nil
}

func (c *otelClient) CreateSpan(ctx context.Context, trace *Trace, p SpanParams) (*Span, error) {
	rec, err := c.traceRec(trace)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrObservationType, observationSpan),
	}
	attrs = appendObservationAttrs(attrs, p.Input, p.Output, p.Metadata, p.Level, p.StatusMessage)

	span := c.startObservation(rec.ctx, p.Name, p.StartTime, attrs)
	endObservation(span, p.EndTime, p.Level)

	return &Span{
		ID:      span.SpanContext().SpanID().String(),
		TraceID: trace.ID,
	}, nil
}

func (c *otelClient) CreateGeneration(ctx context.Context, trace *Trace, p GenerationParams) (*Generation, error) {
	rec, err := c.traceRec(trace)
	if err != nil {
		return nil, err
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrObservationType, observationGeneration),
	}
	if p.Model != "" {
		attrs = append(attrs, attribute.String(attrModel, p.Model))
	}
	if len(p.ModelParameters) > 0 {
		attrs = append(attrs, attribute.String(attrModelParameters, toJSON(p.ModelParameters)))
	}
	if p.Usage != (Usage{}) {
		attrs = append(attrs, attribute.String(attrUsageDetails, toJSON(p.Usage)))
	}
	if !p.CompletionStartTime.IsZero() {
		attrs = append(attrs, attribute.String(attrCompletionStartTime, p.CompletionStartTime.UTC().Format(time.RFC3339Nano)))
	}
	attrs = appendObservationAttrs(attrs, p.Input, p.Output, p.Metadata, p.Level, p.StatusMessage)

	span := c.startObservation(rec.ctx, p.Name, p.StartTime, attrs)
	endObservation(span, p.EndTime, p.Level)

	return &Generation{
		ID:      span.SpanContext().SpanID().String(),
		TraceID: trace.ID,
	}, nil
}

func (c *otelClient) CreateEvent(ctx context.Context, trace *Trace, p EventParams) error {
	rec, err := c.traceRec(trace)
	if err != nil {
		return err
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrObservationType, observationEvent),
	}
	attrs = appendObservationAttrs(attrs, p.Input, p.Output, p.Metadata, p.Level, "")

	now := time.Now()
	span := c.startObservation(rec.ctx, p.Name, now, attrs)
	endObservation(span, now, p.Level)
	return nil
}

func (c *otelClient) UpdateTrace(ctx context.Context, trace *Trace, u TraceUpdate) error {
	rec, err := c.traceRec(trace)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.done {
		return fmt.Errorf("trace %s already completed", trace.ID)
	}

	if u.Output != nil {
		rec.span.SetAttributes(attribute.String(attrTraceOutput, toJSON(u.Output)))
	}
	if len(u.Metadata) > 0 {
		rec.span.SetAttributes(attribute.String(attrTraceMetadata, toJSON(u.Metadata)))
	}
	if u.Level != "" {
		rec.span.SetAttributes(attribute.String(attrObservationLevel, string(u.Level)))
	}
	if u.StatusMessage != "" {
		rec.span.SetAttributes(attribute.String(attrObservationStatusMessage, u.StatusMessage))
	}
	if u.Level == LevelError {
		rec.span.SetStatus(codes.Error, u.StatusMessage)
	}

	rec.span.End()
	rec.done = true
	return nil
}

func (c *otelClient) CreateScore(ctx context.Context, p ScoreParams) error {
	return c.scores.Create(ctx, p)
}

// Flush exports all buffered spans, blocking until done or ctx expires.
func (c *otelClient) Flush(ctx context.Context) error {
	return c.provider.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider.
func (c *otelClient) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}

// traceRec unwraps the delegate-private state behind a handle.
func (c *otelClient) traceRec(trace *Trace) (*otelTrace, error) {
	if trace == nil {
		return nil, errors.New("nil trace handle")
	}
	rec, ok := trace.rec.(*otelTrace)
	if !ok {
		return nil, errors.New("trace handle was not created by this client")
	}
	return rec, nil
}

// startObservation starts a child span at the given time (or now).
func (c *otelClient) startObservation(parent context.Context, name string, start time.Time, attrs []attribute.KeyValue) oteltrace.Span {
	if name == "" {
		name = "observation"
	}
	if start.IsZero() {
		start = time.Now()
	}
	_, span := c.tracer.Start(parent, name,
		oteltrace.WithTimestamp(start),
		oteltrace.WithAttributes(attrs...),
	)
	return span
}

// endObservation closes a span at the given time (or now), flagging errors.
func endObservation(span oteltrace.Span, end time.Time, level Level) {
	if level == LevelError {
		span.SetStatus(codes.Error, "")
	}
	if end.IsZero() {
		end = time.Now()
	}
	span.End(oteltrace.WithTimestamp(end))
}

// appendObservationAttrs adds the attributes shared by all observation kinds.
func appendObservationAttrs(attrs []attribute.KeyValue, input, output any, metadata map[string]any, level Level, statusMessage string) []attribute.KeyValue {
	if input != nil {
		attrs = append(attrs, attribute.String(attrObservationInput, toJSON(input)))
	}
	if output != nil {
		attrs = append(attrs, attribute.String(attrObservationOutput, toJSON(output)))
	}
	if len(metadata) > 0 {
		attrs = append(attrs, attribute.String(attrObservationMetadata, toJSON(metadata)))
	}
	if level != "" {
		attrs = append(attrs, attribute.String(attrObservationLevel, string(level)))
	}
	if statusMessage != "" {
		attrs = append(attrs, attribute.String(attrObservationStatusMessage, statusMessage))
	}
	return attrs
}

// endpointFromHost splits a host URL into the exporter's host:port form and
// an insecure flag. Hosts without a scheme default to HTTPS.
func endpointFromHost(host string) (endpoint string, insecure bool, err error) {
	if !strings.Contains(host, "://") {
		return host, false, nil
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", false, err
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("host %q has no authority", host)
	}
	return u.Host, u.Scheme == "http", nil
}

// basicAuth builds the Authorization header value for the key pair.
func basicAuth(publicKey, secretKey string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(publicKey+":"+secretKey))
}

// toJSON renders an attribute payload. Strings pass through; values that
// cannot marshal fall back to their fmt representation rather than failing
// the observation.
func toJSON(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
