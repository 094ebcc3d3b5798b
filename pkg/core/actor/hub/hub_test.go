package hub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/actor"
	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBridge(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := New(context.Background(), &Config{Console: "test"})
	router := gin.New()
	router.GET("/ws", h.Connect)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?name=unit"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		h.Close(context.Background())
	})
	require.Eventually(t, h.Connected, 2*time.Second, 5*time.Millisecond)
	return h, conn
}

func readCommand(t *testing.T, conn *websocket.Conn) actor.CommandData {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	msg := &actor.Data[actor.CommandData]{}
	require.NoError(t, conn.ReadJSON(msg))
	require.Equal(t, actor.ActionCommand, msg.Action)
	return msg.Data
}

func writeReply(t *testing.T, conn *websocket.Conn, data actor.ReplyData) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(&actor.Data[actor.ReplyData]{
		Msg:  actor.Msg{Action: actor.ActionReply},
		Data: data,
	}))
}

func nextReply(t *testing.T, ch <-chan *sequence.Reply) *sequence.Reply {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no reply delivered")
		return nil
	}
}

func TestHubSendNotConnected(t *testing.T) {
	h := New(context.Background(), &Config{Console: "test"})
	err := h.Send(context.Background(), &schedule.Command{Actor: "iic", CmdStr: "bias"}, func(*sequence.Reply) {})
	require.ErrorIs(t, err, code.ActorNotConnectedErr)
	assert.False(t, h.Connected())
}

func TestHubRoundTrip(t *testing.T) {
	h, conn := newBridge(t)
	replies := make(chan *sequence.Reply, 4)

	err := h.Send(context.Background(), &schedule.Command{
		Actor: "iic", CmdStr: `bias duplicate=3 name="a"`, TimeLimit: time.Hour,
	}, func(r *sequence.Reply) { replies <- r })
	require.NoError(t, err)

	cmd := readCommand(t, conn)
	assert.Equal(t, "iic", cmd.Actor)
	assert.Equal(t, `bias duplicate=3 name="a"`, cmd.CmdStr)
	assert.EqualValues(t, 3600, cmd.TimeLimit)

	writeReply(t, conn, actor.ReplyData{CmdID: cmd.CmdID, Code: sequence.CodeInform, Keywords: sequence.Keywords{
		{Name: sequence.KeySequence, Values: []string{"17", "biases", "bias", "a", ""}},
	}})
	r := nextReply(t, replies)
	assert.Equal(t, sequence.CodeInform, r.Code)
	assert.Equal(t, "iic", r.Actor)
	require.Len(t, r.Keywords, 1)
	assert.EqualValues(t, 1, h.pending.Len())

	writeReply(t, conn, actor.ReplyData{CmdID: cmd.CmdID, Actor: "iic", Code: sequence.CodeFinished})
	r = nextReply(t, replies)
	assert.Equal(t, sequence.CodeFinished, r.Code)
	assert.EqualValues(t, 0, h.pending.Len())

	// late replies are dropped
	writeReply(t, conn, actor.ReplyData{CmdID: cmd.CmdID, Code: sequence.CodeFailed})
	select {
	case r := <-replies:
		t.Fatalf("unexpected reply %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPing(t *testing.T) {
	_, conn := newBridge(t)
	require.NoError(t, conn.WriteJSON(&actor.Msg{Action: actor.ActionPing}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	msg := &actor.Msg{}
	require.NoError(t, json.Unmarshal(b, msg))
	assert.Equal(t, actor.ActionPong, msg.Action)
}

func TestHubTimeout(t *testing.T) {
	h, conn := newBridge(t)
	replies := make(chan *sequence.Reply, 2)
	require.NoError(t, h.Send(context.Background(), &schedule.Command{
		Actor: "iic", CmdStr: "abortExposure", TimeLimit: 30 * time.Millisecond,
	}, func(r *sequence.Reply) { replies <- r }))
	cmd := readCommand(t, conn)

	r := nextReply(t, replies)
	assert.Equal(t, sequence.CodeTimeout, r.Code)
	assert.Equal(t, "iic", r.Actor)
	assert.EqualValues(t, 0, h.pending.Len())

	writeReply(t, conn, actor.ReplyData{CmdID: cmd.CmdID, Code: sequence.CodeFinished})
	select {
	case r := <-replies:
		t.Fatalf("unexpected reply %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDisconnectFailsPending(t *testing.T) {
	h, conn := newBridge(t)
	replies := make(chan *sequence.Reply, 2)
	require.NoError(t, h.Send(context.Background(), &schedule.Command{
		Actor: "iic", CmdStr: "bias", TimeLimit: time.Hour,
	}, func(r *sequence.Reply) { replies <- r }))
	readCommand(t, conn)

	require.NoError(t, conn.Close())
	r := nextReply(t, replies)
	assert.Equal(t, sequence.CodeFailed, r.Code)
	assert.Equal(t, "iic", r.Actor)
	assert.Contains(t, r.Keywords.Canonical(";"), "bridge disconnected")
	assert.EqualValues(t, 0, h.pending.Len())
	require.Eventually(t, func() bool { return !h.Connected() }, 2*time.Second, 5*time.Millisecond)
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 0, actor.Level(sequence.CodeDebug))
	assert.Equal(t, 1, actor.Level(sequence.CodeFinished))
	assert.Equal(t, 2, actor.Level(sequence.CodeWarning))
	assert.Equal(t, 3, actor.Level(sequence.CodeTimeout))
	assert.Equal(t, 4, actor.Level(sequence.CodeFatal))
}
