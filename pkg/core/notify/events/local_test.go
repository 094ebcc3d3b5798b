package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	var got []notify.SendMsg
	require.NoError(t, l.Registry(ctx, notify.ActorLog, func(_ context.Context, msg string) error {
		m := notify.SendMsg{}
		require.NoError(t, json.Unmarshal([]byte(msg), &m))
		got = append(got, m)
		return nil
	}))
	err := l.Registry(ctx, notify.ActorLog, func(context.Context, string) error { return nil })
	require.ErrorIs(t, err, code.NotifyActionAlreadyRegistryErr)

	require.NoError(t, l.Broadcast(ctx, &notify.SendMsg{Channel: notify.ActorLog, Console: "sps", Data: "hello"}))
	require.NoError(t, l.Broadcast(ctx, &notify.SendMsg{Channel: notify.QueueChanged, Console: "sps"}))

	require.Len(t, got, 1)
	assert.Equal(t, "sps", got[0].Console)
	assert.Equal(t, "hello", got[0].Data)
	assert.NotZero(t, got[0].Timestamp)

	require.NoError(t, l.Close(ctx))
	require.NoError(t, l.Broadcast(ctx, &notify.SendMsg{Channel: notify.ActorLog}))
	assert.Len(t, got, 1)
}
