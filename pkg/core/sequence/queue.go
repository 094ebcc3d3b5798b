package sequence

import (
	"slices"

	"github.com/scienceol/seqpanel/pkg/common/uuid"
)

// Queue is the ordered list of sequences the scheduler works through.
// Every mutation, including state changes of the sequences it holds, fires
// the change callback; inside Batch the callback fires once at the end.
// Like Sequence it belongs to a single goroutine.
type Queue struct {
	seqs     []*Sequence
	onChange func()
	batch    int
	dirty    bool
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) OnChange(f func()) {
	q.onChange = f
}

func (q *Queue) Batch(f func()) {
	q.batch++
	defer func() {
		q.batch--
		if q.batch == 0 && q.dirty {
			q.dirty = false
			q.fire()
		}
	}()
	f()
}

func (q *Queue) changed() {
	if q.batch > 0 {
		q.dirty = true
		return
	}
	q.fire()
}

func (q *Queue) fire() {
	if q.onChange != nil {
		q.onChange()
	}
}

func (q *Queue) attach(s *Sequence) {
	s.onChange = func(*Sequence) { q.changed() }
}

func (q *Queue) Len() int {
	return len(q.seqs)
}

// All returns the sequences in queue order.
func (q *Queue) All() []*Sequence {
	return slices.Clone(q.seqs)
}

func (q *Queue) Index(s *Sequence) int {
	return slices.Index(q.seqs, s)
}

func (q *Queue) Get(id uuid.UUID) *Sequence {
	for _, s := range q.seqs {
		if s.UUID == id {
			return s
		}
	}
	return nil
}

func (q *Queue) Append(seqs ...*Sequence) {
	q.InsertAt(len(q.seqs), seqs...)
}

// InsertAt inserts before position index, clamped to the queue bounds.
// Sequences already queued are skipped.
func (q *Queue) InsertAt(index int, seqs ...*Sequence) {
	index = max(0, min(index, len(q.seqs)))
	fresh := make([]*Sequence, 0, len(seqs))
	for _, s := range seqs {
		if s == nil || q.Index(s) >= 0 || slices.Contains(fresh, s) {
			continue
		}
		q.attach(s)
		fresh = append(fresh, s)
	}
	if len(fresh) == 0 {
		return
	}
	q.seqs = slices.Insert(q.seqs, index, fresh...)
	q.changed()
}

// Remove drops the given sequences, leaving active ones in place.
// It returns how many were removed.
func (q *Queue) Remove(seqs ...*Sequence) int {
	removed := 0
	for _, s := range seqs {
		i := q.Index(s)
		if i < 0 || s.IsActive() {
			continue
		}
		s.onChange = nil
		q.seqs = slices.Delete(q.seqs, i, i+1)
		removed++
	}
	if removed > 0 {
		q.changed()
	}
	return removed
}

func (q *Queue) MoveUp(s *Sequence) bool {
	i := q.Index(s)
	if i <= 0 {
		return false
	}
	q.seqs[i-1], q.seqs[i] = q.seqs[i], q.seqs[i-1]
	q.changed()
	return true
}

func (q *Queue) MoveDown(s *Sequence) bool {
	i := q.Index(s)
	if i < 0 || i >= len(q.seqs)-1 {
		return false
	}
	q.seqs[i+1], q.seqs[i] = q.seqs[i], q.seqs[i+1]
	q.changed()
	return true
}

func (q *Queue) filter(status Status) []*Sequence {
	var res []*Sequence
	for _, s := range q.seqs {
		if s.Status == status {
			res = append(res, s)
		}
	}
	return res
}

// Valid returns the sequences eligible for scheduling, in queue order.
func (q *Queue) Valid() []*Sequence {
	return q.filter(StatusValid)
}

// Active returns the running sequence, nil when idle.
func (q *Queue) Active() *Sequence {
	for _, s := range q.seqs {
		if s.IsActive() {
			return s
		}
	}
	return nil
}

// ClearDone removes finished and failed sequences.
func (q *Queue) ClearDone() int {
	var done []*Sequence
	for _, s := range q.seqs {
		if s.Status.IsTerminal() {
			done = append(done, s)
		}
	}
	return q.Remove(done...)
}

// Snapshot lists the user supplied part of every queued sequence.
func (q *Queue) Snapshot() []Info {
	infos := make([]Info, 0, len(q.seqs))
	for _, s := range q.seqs {
		infos = append(infos, s.Info())
	}
	return infos
}

// Load appends a fresh sequence for each info and returns them.
func (q *Queue) Load(infos []Info) []*Sequence {
	seqs := make([]*Sequence, 0, len(infos))
	for _, info := range infos {
		seqs = append(seqs, New(info))
	}
	q.Append(seqs...)
	return seqs
}

func (q *Queue) Views() []*View {
	views := make([]*View, 0, len(q.seqs))
	for _, s := range q.seqs {
		views = append(views, s.View())
	}
	return views
}
