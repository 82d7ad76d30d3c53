// Package chat implements the conversation pipeline: it sends turns to a
// model backend and records each turn as a Langfuse trace with one
// generation per model call.
//
// The pipeline degrades gracefully: tracing failures never fail a turn, and
// a disabled tracer reduces the service to a plain model proxy.
package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chattrace/internal/langfuse"
)

// Completion is a model backend's reply to one turn.
type Completion struct {
	Content string
	Model   string
	Usage   langfuse.Usage
}

// Completer produces a model completion for a conversation turn.
// Implementations must be safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// Service orchestrates conversation turns: validate, complete, trace.
type Service struct {
	completer Completer
	tracer    *langfuse.Facade
	logger    *zap.Logger
}

// NewService creates a chat service. A nil tracer disables tracing; a nil
// logger logs nowhere.
func NewService(completer Completer, tracer *langfuse.Facade, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		completer: completer,
		tracer:    tracer,
		logger:    logger,
	}
}

// Respond handles one conversation turn. The model error, if any, is
// returned after the failure is recorded on the trace; tracing errors are
// never surfaced.
func (s *Service) Respond(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat request: %w", err)
	}

	trace := s.tracer.Trace(ctx, langfuse.TraceParams{
		Name:      "chat.turn",
		UserID:    req.UserID,
		SessionID: req.ConversationID,
		Tags:      []string{"chat"},
		Input:     req.Messages,
	})

	start := time.Now()
	completion, err := s.completer.Complete(ctx, req.Messages)
	end := time.Now()

	if err != nil {
		s.recordFailure(ctx, trace, req, err, start, end)
		s.logger.Error("chat completion failed",
			zap.String("conversation_id", req.ConversationID),
			zap.Duration("elapsed", end.Sub(start)),
			zap.Error(err))
		return nil, fmt.Errorf("completing chat turn: %w", err)
	}

	s.tracer.Generation(ctx, trace, langfuse.GenerationParams{
		Name:      "chat.completion",
		Model:     completion.Model,
		Input:     req.Messages,
		Output:    completion.Content,
		Usage:     completion.Usage,
		StartTime: start,
		EndTime:   end,
	})
	s.tracer.UpdateTrace(ctx, trace, langfuse.TraceUpdate{
		Output: completion.Content,
	})

	s.logger.Info("chat turn completed",
		zap.String("conversation_id", req.ConversationID),
		zap.String("model", completion.Model),
		zap.Int("total_tokens", completion.Usage.TotalTokens),
		zap.Duration("elapsed", end.Sub(start)))

	resp := &Response{
		Message: Message{Role: RoleAssistant, Content: completion.Content},
		Model:   completion.Model,
		Usage:   completion.Usage,
	}
	if trace != nil {
		resp.TraceID = trace.ID
	}
	return resp, nil
}

// recordFailure attributes a failed model call to the trace: an error-level
// generation for the call itself, an event naming the failure, and an
// error-level terminal update.
func (s *Service) recordFailure(ctx context.Context, trace *langfuse.Trace, req Request, err error, start, end time.Time) {
	s.tracer.Generation(ctx, trace, langfuse.GenerationParams{
		Name:          "chat.completion",
		Input:         req.Messages,
		Level:         langfuse.LevelError,
		StatusMessage: err.Error(),
		StartTime:     start,
		EndTime:       end,
	})
	s.tracer.Event(ctx, trace, langfuse.EventParams{
		Name:  "chat.completion.error",
		Level: langfuse.LevelError,
		Metadata: map[string]any{
			"error": err.Error(),
		},
	})
	s.tracer.UpdateTrace(ctx, trace, langfuse.TraceUpdate{
		Level:         langfuse.LevelError,
		StatusMessage: err.Error(),
	})
}

// RecordFeedback attaches a user score to a previously traced turn.
func (s *Service) RecordFeedback(ctx context.Context, fb Feedback) error {
	if err := fb.Validate(); err != nil {
		return fmt.Errorf("invalid feedback: %w", err)
	}
	name := fb.Name
	if name == "" {
		name = "user-feedback"
	}
	s.tracer.Score(ctx, langfuse.ScoreParams{
		TraceID: fb.TraceID,
		Name:    name,
		Value:   fb.Value,
		Comment: fb.Comment,
	})
	s.logger.Debug("feedback recorded",
		zap.String("trace_id", fb.TraceID),
		zap.String("name", name),
		zap.Float64("value", fb.Value))
	return nil
}
