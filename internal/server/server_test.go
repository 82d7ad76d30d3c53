package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/chattrace/internal/chat"
	"github.com/fyrsmithlabs/chattrace/internal/langfuse"
)

type stubCompleter struct {
	completion *chat.Completion
	err        error
}

func (s *stubCompleter) Complete(context.Context, []chat.Message) (*chat.Completion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.completion, nil
}

func newTestServer(t *testing.T, completer chat.Completer) *Server {
	t.Helper()

	cfg := langfuse.NewDefaultConfig()
	cfg.Enabled = true
	cfg.PublicKey = "pk-lf-test"
	cfg.SecretKey = "sk-lf-test"
	cfg.FlushOnShutdown = false
	tracer := langfuse.New(cfg, zap.NewNop(), langfuse.WithClient(langfuse.NewRecorderClient()))
	tracer.Initialize(context.Background())

	svc := chat.NewService(completer, tracer, zap.NewNop())
	srv, err := NewServer(svc, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv
}

func doJSON(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServer_Validation(t *testing.T) {
	svc := chat.NewService(&stubCompleter{}, nil, nil)

	_, err := NewServer(nil, zap.NewNop(), nil)
	require.Error(t, err)

	_, err = NewServer(svc, nil, nil)
	require.Error(t, err)

	srv, err := NewServer(svc, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{})

	rec := doJSON(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleChat(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{completion: &chat.Completion{
		Content: "Paris",
		Model:   "gpt-4o-mini",
		Usage:   langfuse.Usage{PromptTokens: 9, CompletionTokens: 1, TotalTokens: 10},
	}})

	rec := doJSON(srv, http.MethodPost, "/v1/chat",
		`{"conversation_id":"conv-1","messages":[{"role":"user","content":"capital of France?"}]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp chat.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Paris", resp.Message.Content)
	assert.Equal(t, "assistant", resp.Message.Role)
	assert.Equal(t, 10, resp.Usage.TotalTokens)
	assert.NotEmpty(t, resp.TraceID)
}

func TestHandleChat_InvalidBody(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"messages": [`},
		{"no messages", `{}`},
		{"empty content", `{"messages":[{"role":"user","content":""}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(srv, http.MethodPost, "/v1/chat", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleChat_CompleterFailure(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{err: errors.New("model unavailable")})

	rec := doJSON(srv, http.MethodPost, "/v1/chat",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleFeedback(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{})

	rec := doJSON(srv, http.MethodPost, "/v1/feedback",
		`{"trace_id":"abc123","value":1,"comment":"helpful"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleFeedback_RequiresTraceID(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{})

	rec := doJSON(srv, http.MethodPost, "/v1/feedback", `{"value":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMetrics(t *testing.T) {
	srv := newTestServer(t, &stubCompleter{completion: &chat.Completion{
		Content: "hi", Model: "m",
		Usage: langfuse.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5},
	}})

	doJSON(srv, http.MethodPost, "/v1/chat", `{"messages":[{"role":"user","content":"hi"}]}`)

	rec := doJSON(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `chattrace_chat_turns_total{outcome="ok"} 1`)
	assert.Contains(t, body, `chattrace_chat_tokens_total{direction="input"} 2`)
	assert.Contains(t, body, `chattrace_chat_tokens_total{direction="output"} 3`)
}
