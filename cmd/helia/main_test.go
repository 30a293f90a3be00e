package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/adapter/ollama"
	"github.com/xiaot623/helia/internal/config"
	"github.com/xiaot623/helia/internal/domain"
	"github.com/xiaot623/helia/internal/hub"
	"github.com/xiaot623/helia/internal/service"
	"github.com/xiaot623/helia/internal/session"
	httpserver "github.com/xiaot623/helia/internal/transport/http"
	"github.com/xiaot623/helia/internal/transport/ws"
)

type scriptedGenerator struct {
	events []domain.StreamEvent
	models []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, model, prompt string, sink ollama.Sink) {
	for _, ev := range g.events {
		sink(ev)
	}
}

func (g *scriptedGenerator) ListModels(ctx context.Context) []string {
	return g.models
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HELIA_MODE", ollama.ModeMock)
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAskCommand(t *testing.T) {
	out, err := execute(t, "ask", "why", "is", "the", "sky", "blue?")
	require.NoError(t, err)
	assert.Contains(t, out, `Received your message: "why is the sky blue?"`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestAskRequiresQuestion(t *testing.T) {
	_, err := execute(t, "ask")
	assert.Error(t, err)
}

func TestModelsCommand(t *testing.T) {
	out, err := execute(t, "models", "--model", "mock-llama")
	require.NoError(t, err)
	assert.Equal(t, "* mock-llama\n  mock-codellama\n", out)
}

func TestAskPrintsStreamedTokensOnce(t *testing.T) {
	gen := &scriptedGenerator{events: []domain.StreamEvent{
		domain.Token("Hel"),
		domain.Token("lo"),
		domain.Complete(""),
	}}

	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), gen, "codellama:7b", "hi", &out))
	assert.Equal(t, "Hello\n", out.String())
}

func TestAskPrintsFailure(t *testing.T) {
	gen := &scriptedGenerator{events: []domain.StreamEvent{
		domain.Token("partial"),
		domain.Failed(ollama.UnreachableMessage),
	}}

	var out bytes.Buffer
	require.NoError(t, ask(context.Background(), gen, "codellama:7b", "hi", &out))
	assert.Equal(t, "partial\n"+ollama.UnreachableMessage+"\n", out.String())
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	var out bytes.Buffer
	err := ask(context.Background(), &scriptedGenerator{}, "codellama:7b", "   ", &out)
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
	assert.Empty(t, out.String())
}

func TestPrintModelsEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printModels(context.Background(), &scriptedGenerator{}, "codellama:7b", &out))
	assert.Equal(t, "no models available\n", out.String())
}

// startServer runs the full serve stack against the mock generator and
// returns its websocket address.
func startServer(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	logger := zap.NewNop()

	h := hub.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(hubDone)
	}()

	svc := service.New(session.NewStore(), ollama.NewMockClient(), nil, h, cfg.Model, logger)
	require.NoError(t, svc.Load(context.Background()))
	srv := httptest.NewServer(httpserver.NewServer(svc, ws.NewServer(cfg, h, svc, logger), logger))

	t.Cleanup(func() {
		svc.Close()
		cancel()
		<-hubDone
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestChatSession(t *testing.T) {
	client, err := ws.Dial(startServer(t))
	require.NoError(t, err)
	defer client.Close()

	var out bytes.Buffer
	in := strings.NewReader("hello there\n/new\n/list\n/quit\nnever sent\n")
	require.NoError(t, chat(client, in, &out))

	assert.Contains(t, out.String(), `Received your message: "hello there"`)
	assert.Contains(t, out.String(), "* 2. Chat 2 (0 messages)")
	assert.NotContains(t, out.String(), "never sent")
}

func TestChatReportsErrors(t *testing.T) {
	client, err := ws.Dial(startServer(t))
	require.NoError(t, err)
	defer client.Close()

	var out bytes.Buffer
	in := strings.NewReader("/delete\n/delete\n/select 9\n")
	require.NoError(t, chat(client, in, &out))

	assert.Contains(t, out.String(), "no sessions, /new creates one")
	assert.Contains(t, out.String(), "error: no active session")
	assert.Contains(t, out.String(), "usage: /select <n>")
}
