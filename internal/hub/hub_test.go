package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xiaot623/helia/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h, cancel
}

func receive(t *testing.T, conn *Connection) Event {
	t.Helper()
	select {
	case data, ok := <-conn.Send:
		require.True(t, ok, "send channel closed")
		var ev Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestNotifyFansOutInOrder(t *testing.T) {
	h, _ := startHub(t)
	a := h.NewConnection(nil)
	b := h.NewConnection(nil)
	require.True(t, h.Register(a))
	require.True(t, h.Register(b))
	assert.Equal(t, 2, h.GetConnectionCount())

	h.Notify(domain.Notification{SessionID: "s1", Text: "He", Streaming: true})
	h.Notify(domain.Notification{SessionID: "s1", Text: "Hello", Streaming: false})

	for _, conn := range []*Connection{a, b} {
		first := receive(t, conn)
		assert.Equal(t, TypeDelta, first.Type)
		assert.Equal(t, "He", first.Text)
		assert.Equal(t, "s1", first.SessionID)

		second := receive(t, conn)
		assert.Equal(t, TypeDone, second.Type)
		assert.Equal(t, "Hello", second.Text)
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h, _ := startHub(t)
	conn := h.NewConnection(nil)
	require.True(t, h.Register(conn))

	h.Unregister(conn)
	_, ok := <-conn.Send
	assert.False(t, ok)
	assert.Equal(t, 0, h.GetConnectionCount())
	assert.ErrorIs(t, h.SendToConnection(conn, []byte("x")), ErrNotRegistered)

	// A second unregister is a no-op.
	h.Unregister(conn)
}

func TestSlowConnectionIsDropped(t *testing.T) {
	h, _ := startHub(t)
	conn := h.NewConnection(nil)
	require.True(t, h.Register(conn))

	for i := 0; i < cap(conn.Send); i++ {
		require.NoError(t, h.SendToConnection(conn, []byte("{}")))
	}
	assert.ErrorIs(t, h.SendToConnection(conn, []byte("{}")), ErrBufferFull)

	h.Notify(domain.Notification{Text: "overflow"})
	require.Eventually(t, func() bool { return h.GetConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStopClosesConnectionsAndRejectsRegister(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	conn := h.NewConnection(nil)
	require.True(t, h.Register(conn))
	cancel()
	<-h.done

	_, ok := <-conn.Send
	assert.False(t, ok)
	assert.False(t, h.Register(h.NewConnection(nil)))

	// Notify after stop must not block.
	h.Notify(domain.Notification{Text: "late"})
}
