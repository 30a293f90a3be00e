package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiaot623/helia/internal/adapter/ollama"
	"github.com/xiaot623/helia/internal/config"
	"github.com/xiaot623/helia/internal/domain"
	"github.com/xiaot623/helia/internal/hub"
	"github.com/xiaot623/helia/internal/service"
	"github.com/xiaot623/helia/internal/session"
)

type testServer struct {
	svc *service.Service
	url string
}

func newTestServer(t *testing.T) *testServer {
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

	e := echo.New()
	e.GET("/ws", NewServer(cfg, h, svc, logger).HandleWebSocket)
	srv := httptest.NewServer(e)

	t.Cleanup(func() {
		svc.Close()
		cancel()
		<-hubDone
		srv.Close()
	})
	return &testServer{svc: svc, url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first frame of the given type, skipping others.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == typ {
			return f
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, cmd Command) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
}

func TestConnectReceivesSessions(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	f := readUntil(t, conn, hub.TypeSessions)
	require.Len(t, f.Sessions, 1)
	assert.Equal(t, "Chat 1", f.Sessions[0].Name)
	assert.Equal(t, ts.svc.ActiveID(), f.ActiveID)
	assert.Empty(t, f.History)
}

func TestAskStreamsReply(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	readUntil(t, conn, hub.TypeSessions)

	send(t, conn, Command{Type: TypeAsk, Text: "hello"})

	delta := readUntil(t, conn, hub.TypeDelta)
	assert.Equal(t, ts.svc.ActiveID(), delta.SessionID)
	assert.NotEmpty(t, delta.Text)

	done := readUntil(t, conn, hub.TypeDone)
	assert.Contains(t, done.Text, `Received your message: "hello"`)
	assert.True(t, strings.HasPrefix(done.Text, delta.Text))

	send(t, conn, Command{Type: TypeListSessions})
	f := readUntil(t, conn, hub.TypeSessions)
	require.Len(t, f.History, 2)
	assert.Equal(t, domain.UserMessage("hello"), f.History[0])
	assert.Equal(t, domain.AssistantMessage(done.Text), f.History[1])
	assert.Equal(t, 2, f.Sessions[0].MessageCount)
}

func TestAskRejectsEmptyText(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	readUntil(t, conn, hub.TypeSessions)

	send(t, conn, Command{Type: TypeAsk, Text: "   "})

	f := readUntil(t, conn, hub.TypeError)
	assert.Equal(t, ErrorCodeEmptyMessage, f.Code)
}

func TestSessionCommands(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	first := readUntil(t, conn, hub.TypeSessions).ActiveID

	send(t, conn, Command{Type: TypeNewSession})
	f := readUntil(t, conn, hub.TypeSessions)
	require.Len(t, f.Sessions, 2)
	second := f.ActiveID
	assert.NotEqual(t, first, second)
	assert.Equal(t, "Chat 2", f.Sessions[1].Name)

	send(t, conn, Command{Type: TypeSelectSession, SessionID: first})
	f = readUntil(t, conn, hub.TypeSessions)
	assert.Equal(t, first, f.ActiveID)

	send(t, conn, Command{Type: TypeDeleteSession})
	f = readUntil(t, conn, hub.TypeSessions)
	require.Len(t, f.Sessions, 1)
	assert.Equal(t, second, f.ActiveID)

	send(t, conn, Command{Type: TypeDeleteSession})
	f = readUntil(t, conn, hub.TypeSessions)
	assert.Empty(t, f.Sessions)
	assert.Empty(t, f.ActiveID)

	send(t, conn, Command{Type: TypeDeleteSession})
	assert.Equal(t, ErrorCodeNoActiveSession, readUntil(t, conn, hub.TypeError).Code)

	send(t, conn, Command{Type: TypeAsk, Text: "anyone?"})
	assert.Equal(t, ErrorCodeNoActiveSession, readUntil(t, conn, hub.TypeError).Code)
}

func TestSelectSessionErrors(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	readUntil(t, conn, hub.TypeSessions)

	send(t, conn, Command{Type: TypeSelectSession})
	assert.Equal(t, ErrorCodeInvalidMessage, readUntil(t, conn, hub.TypeError).Code)

	send(t, conn, Command{Type: TypeSelectSession, SessionID: "missing"})
	assert.Equal(t, ErrorCodeNotFound, readUntil(t, conn, hub.TypeError).Code)
}

func TestInvalidMessages(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	readUntil(t, conn, hub.TypeSessions)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, ErrorCodeInvalidMessage, readUntil(t, conn, hub.TypeError).Code)

	send(t, conn, Command{Type: "shout"})
	f := readUntil(t, conn, hub.TypeError)
	assert.Equal(t, ErrorCodeInvalidMessage, f.Code)
	assert.Contains(t, f.Message, "shout")
}

func TestSessionChangesReachEveryView(t *testing.T) {
	ts := newTestServer(t)
	a := ts.dial(t)
	b := ts.dial(t)
	readUntil(t, a, hub.TypeSessions)
	readUntil(t, b, hub.TypeSessions)

	send(t, a, Command{Type: TypeNewSession})

	fa := readUntil(t, a, hub.TypeSessions)
	fb := readUntil(t, b, hub.TypeSessions)
	assert.Len(t, fb.Sessions, 2)
	assert.Equal(t, fa.ActiveID, fb.ActiveID)
}
