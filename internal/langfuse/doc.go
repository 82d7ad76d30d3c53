// Package langfuse provides fail-open Langfuse tracing for chat turns.
//
// # Overview
//
// The package centers on Facade: an environment-configured instrumentation
// layer that records one trace per conversation turn, one generation per
// model call, and feedback scores. The facade delegates all transport and
// batching to a Client; the production client exports spans over OTLP/HTTP
// to the Langfuse backend.
//
// # Usage
//
// Create and initialize the facade once at startup:
//
//	cfg, err := langfuse.ConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tracer := langfuse.New(cfg, logger)
//	tracer.Initialize(ctx)
//	defer tracer.Shutdown(ctx)
//
// Record a turn:
//
//	trace := tracer.Trace(ctx, langfuse.TraceParams{
//	    Name:      "chat.turn",
//	    SessionID: conversationID,
//	})
//	tracer.Generation(ctx, trace, langfuse.GenerationParams{Model: model, Usage: usage})
//	tracer.UpdateTrace(ctx, trace, langfuse.TraceUpdate{Output: reply})
//
// A nil trace handle means the turn is not being recorded (tracing disabled,
// turn not sampled, or delegate failure); every operation accepts it and
// does nothing.
//
// # Error Handling
//
// Tracing failures never crash or error the application. Missing
// credentials, delegate construction failures, and per-call delegate errors
// all degrade to logged no-ops. Flush and Shutdown are the exception: they
// return the delegate error after logging it, because their callers
// explicitly depend on the outcome.
//
// # Testing
//
// Use RecorderClient as the delegate:
//
//	rec := langfuse.NewRecorderClient()
//	tracer := langfuse.New(cfg, logger, langfuse.WithClient(rec))
//	tracer.Initialize(ctx)
package langfuse
