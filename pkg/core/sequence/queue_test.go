package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, names ...string) (*Queue, []*Sequence, *int) {
	t.Helper()
	q := NewQueue()
	seqs := make([]*Sequence, 0, len(names))
	for _, n := range names {
		seqs = append(seqs, New(Info{Name: n, CmdStr: "iic " + n}))
	}
	q.Append(seqs...)
	fired := 0
	q.OnChange(func() { fired++ })
	return q, seqs, &fired
}

func names(q *Queue) []string {
	var res []string
	for _, s := range q.All() {
		res = append(res, s.Name)
	}
	return res
}

func TestQueueMoveClamp(t *testing.T) {
	q, seqs, fired := newTestQueue(t, "a", "b", "c")

	assert.False(t, q.MoveUp(seqs[0]))
	assert.False(t, q.MoveDown(seqs[2]))
	assert.Equal(t, []string{"a", "b", "c"}, names(q))
	assert.Zero(t, *fired)

	assert.True(t, q.MoveDown(seqs[0]))
	assert.Equal(t, []string{"b", "a", "c"}, names(q))
	assert.True(t, q.MoveUp(seqs[2]))
	assert.Equal(t, []string{"b", "c", "a"}, names(q))
	assert.Equal(t, 2, *fired)

	assert.False(t, q.MoveUp(New(Info{CmdStr: "iic x"})))
}

func TestQueueInsertAt(t *testing.T) {
	q, seqs, _ := newTestQueue(t, "a", "b")
	q.InsertAt(1, New(Info{Name: "x", CmdStr: "iic x"}))
	q.InsertAt(-3, New(Info{Name: "first", CmdStr: "iic f"}))
	q.InsertAt(99, New(Info{Name: "last", CmdStr: "iic l"}))
	q.Append(seqs[0])
	assert.Equal(t, []string{"first", "a", "x", "b", "last"}, names(q))
}

func TestQueueRemove(t *testing.T) {
	q, seqs, fired := newTestQueue(t, "a", "b", "c")
	require.NoError(t, seqs[1].Validate(true))
	require.NoError(t, seqs[1].Activate(func(string, string) error { return nil }))
	*fired = 0

	removed := q.Remove(seqs[0], seqs[1], New(Info{CmdStr: "iic absent"}))
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"b", "c"}, names(q))
	assert.Equal(t, 1, *fired)

	// detached sequences no longer notify the queue
	require.NoError(t, seqs[0].Validate(true))
	assert.Equal(t, 1, *fired)

	assert.Zero(t, q.Remove(seqs[1]))
}

func TestQueueFilters(t *testing.T) {
	q, seqs, _ := newTestQueue(t, "a", "b", "c", "d")
	assert.Empty(t, q.Valid())
	assert.Nil(t, q.Active())

	require.NoError(t, seqs[3].Validate(true))
	require.NoError(t, seqs[1].Validate(true))
	require.NoError(t, seqs[2].Validate(true))
	assert.Equal(t, []*Sequence{seqs[1], seqs[2], seqs[3]}, q.Valid())

	require.NoError(t, seqs[1].Activate(func(string, string) error { return nil }))
	assert.Equal(t, seqs[1], q.Active())
	assert.Equal(t, []*Sequence{seqs[2], seqs[3]}, q.Valid())
	assert.Equal(t, seqs[2], q.Get(seqs[2].UUID))
}

func TestQueueClearDone(t *testing.T) {
	q, seqs, _ := newTestQueue(t, "a", "b", "c")
	for _, s := range seqs[:2] {
		require.NoError(t, s.Validate(true))
		require.NoError(t, s.Activate(func(string, string) error { return nil }))
	}
	_, err := seqs[0].ApplyReply(&Reply{Code: CodeFinished})
	require.NoError(t, err)

	assert.Equal(t, 1, q.ClearDone())
	assert.Equal(t, []string{"b", "c"}, names(q))
}

func TestQueueBatch(t *testing.T) {
	q, seqs, fired := newTestQueue(t, "a", "b")
	q.Batch(func() {
		for _, s := range seqs {
			require.NoError(t, s.Validate(true))
		}
		q.Load([]Info{{Name: "c", CmdStr: "iic c"}})
		q.MoveUp(seqs[1])
	})
	assert.Equal(t, 1, *fired)
	assert.Equal(t, []string{"b", "a", "c"}, names(q))

	q.Batch(func() {})
	assert.Equal(t, 1, *fired)
}

func TestQueueSnapshotLoad(t *testing.T) {
	q, _, _ := newTestQueue(t, "a", "b")
	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, Info{Name: "a", CmdStr: "iic a"}, snap[0])

	other := NewQueue()
	loaded := other.Load(snap)
	require.Len(t, loaded, 2)
	assert.Equal(t, snap, other.Snapshot())
	for _, s := range loaded {
		assert.Equal(t, StatusInit, s.Status)
		assert.Equal(t, Unregistered, s.ID)
	}
}
