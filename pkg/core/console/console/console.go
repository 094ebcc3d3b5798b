package console

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/olahol/melody"
	"github.com/panjf2000/ants/v2"
	r "github.com/redis/go-redis/v9"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/common/uuid"
	"github.com/scienceol/seqpanel/pkg/core/actor"
	"github.com/scienceol/seqpanel/pkg/core/console"
	"github.com/scienceol/seqpanel/pkg/core/notify"
	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/schedule/scheduler"
	"github.com/scienceol/seqpanel/pkg/core/script"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/scienceol/seqpanel/pkg/core/template"
	"github.com/scienceol/seqpanel/pkg/middleware/auth"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/repo"
	"github.com/scienceol/seqpanel/pkg/utils"
)

type Config struct {
	Name      string
	PoolSize  int
	Scheduler *scheduler.Options
	Bridge    actor.Bridge
	WSClient  *melody.Melody    // operator UI sessions
	RClient   *r.Client         // 可为空, 剪贴板退化为内存
	Board     notify.MsgCenter  // 广播给所有进程的 UI
	Store     repo.SequenceRepo // 可为空, 不记录历史
}

type consoleImpl struct {
	name      string
	sched     *scheduler.Scheduler
	bridge    actor.Bridge
	wsClient  *melody.Melody
	board     notify.MsgCenter
	store     repo.SequenceRepo
	pools     *ants.Pool
	clipboard *clipboard
	version   atomic.Uint64
}

func New(ctx context.Context, conf *Config) (console.Service, error) {
	poolSize := conf.PoolSize
	if poolSize <= 0 {
		poolSize = ants.DefaultAntsPoolSize
	}
	pools, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	c := &consoleImpl{
		name:      conf.Name,
		bridge:    conf.Bridge,
		wsClient:  conf.WSClient,
		board:     conf.Board,
		store:     conf.Store,
		pools:     pools,
		clipboard: newClipboard(conf.Name, conf.RClient),
	}
	c.sched = scheduler.New(sequence.NewQueue(), conf.Bridge, c, conf.Scheduler, scheduler.WithObserver(c))

	for _, action := range []notify.Action{notify.QueueChanged, notify.SequenceEvent, notify.ActorLog, notify.OperatorMsg} {
		if err := c.board.Registry(ctx, action, c.onNotify); err != nil {
			logger.Errorf(ctx, "console.New Registry %s err: %+v", action, err)
			return nil, err
		}
	}
	return c, nil
}

// Run drives the scheduler loop until ctx is done.
func (c *consoleImpl) Run(ctx context.Context) error {
	return c.sched.Run(ctx)
}

func (c *consoleImpl) Close(ctx context.Context) {
	c.pools.Release()
	if c.wsClient != nil {
		if err := c.wsClient.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
			logger.Warnf(ctx, "console.Close ws err: %+v", err)
		}
	}
}

func (c *consoleImpl) UpdateOptions(ctx context.Context, f func(o *scheduler.Options)) error {
	return c.sched.UpdateOptions(ctx, f)
}

func (c *consoleImpl) Snapshot(ctx context.Context) (*schedule.Snapshot, error) {
	return c.sched.Snapshot(ctx)
}

func (c *consoleImpl) AddSequence(ctx context.Context, req *console.AddReq) ([]*sequence.View, error) {
	info, err := c.newInfo(ctx, req)
	if err != nil {
		return nil, err
	}
	seq := sequence.New(info)
	var view *sequence.View
	err = c.sched.Do(ctx, func(_ context.Context, q *sequence.Queue) error {
		if req.Valid {
			if err := seq.Validate(true); err != nil {
				return err
			}
		}
		if req.Index != nil {
			q.InsertAt(*req.Index, seq)
		} else {
			q.Append(seq)
		}
		view = seq.View()
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof(ctx, "console.AddSequence operator: %s type: %s cmd: %s", auth.OperatorName(ctx), info.SeqType, info.CmdStr)
	return []*sequence.View{view}, nil
}

func (c *consoleImpl) newInfo(ctx context.Context, req *console.AddReq) (sequence.Info, error) {
	if req.PreviousID > 0 {
		prev, err := c.Previous(ctx, &console.PreviousReq{SequenceID: req.PreviousID})
		if err != nil {
			return sequence.Info{}, err
		}
		return sequence.Info{
			Name:     prev.Name,
			Comments: prev.Comments,
			CmdStr:   prev.CmdStr,
			SeqType:  prev.SeqType,
		}, nil
	}

	seqType := req.SeqType
	if seqType == "" {
		seqType = template.Command
	}
	tpl, err := template.Get(seqType)
	if err != nil {
		return sequence.Info{}, err
	}
	return tpl.Info(req.Name, req.Comments, req.CmdStr, req.Values)
}

func (c *consoleImpl) lookup(q *sequence.Queue, ids []uuid.UUID) ([]*sequence.Sequence, error) {
	seqs := make([]*sequence.Sequence, 0, len(ids))
	for _, id := range ids {
		seq := q.Get(id)
		if seq == nil {
			return nil, code.SequenceNotFoundErr.WithMsg(id.String())
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

func (c *consoleImpl) Validate(ctx context.Context, req *console.ValidateReq) (*console.CountResp, error) {
	resp := &console.CountResp{}
	err := c.sched.Do(ctx, func(_ context.Context, q *sequence.Queue) error {
		seqs, err := c.lookup(q, req.UUIDs)
		if err != nil {
			return err
		}
		var errs []error
		q.Batch(func() {
			for _, seq := range seqs {
				if err := seq.Validate(req.Valid); err != nil {
					errs = append(errs, err)
					continue
				}
				resp.Count++
			}
		})
		return errors.Join(errs...)
	})
	return resp, err
}

func (c *consoleImpl) Move(ctx context.Context, req *console.MoveReq) error {
	return c.sched.Do(ctx, func(_ context.Context, q *sequence.Queue) error {
		seq := q.Get(req.UUID)
		if seq == nil {
			return code.SequenceNotFoundErr.WithMsg(req.UUID.String())
		}
		if req.Up {
			q.MoveUp(seq)
		} else {
			q.MoveDown(seq)
		}
		return nil
	})
}

func (c *consoleImpl) Remove(ctx context.Context, req *console.UUIDsReq) (*console.CountResp, error) {
	resp := &console.CountResp{}
	err := c.sched.Do(ctx, func(_ context.Context, q *sequence.Queue) error {
		seqs := make([]*sequence.Sequence, 0, len(req.UUIDs))
		for _, id := range req.UUIDs {
			if seq := q.Get(id); seq != nil {
				seqs = append(seqs, seq)
			}
		}
		q.Batch(func() {
			resp.Count = q.Remove(seqs...)
		})
		return nil
	})
	return resp, err
}

func (c *consoleImpl) ClearDone(ctx context.Context) (*console.CountResp, error) {
	resp := &console.CountResp{}
	err := c.sched.Do(ctx, func(_ context.Context, q *sequence.Queue) error {
		q.Batch(func() {
			resp.Count = q.ClearDone()
		})
		return nil
	})
	return resp, err
}

func (c *consoleImpl) Copy(ctx context.Context, req *console.UUIDsReq) (*console.CountResp, error) {
	var infos []sequence.Info
	err := c.sched.Do(ctx, func(_ context.Context, q *sequence.Queue) error {
		want := utils.Slice2Map(req.UUIDs, func(id uuid.UUID) uuid.UUID { return id })
		// 按队列顺序复制
		picked := utils.FilterSlice(q.All(), func(seq *sequence.Sequence) bool {
			_, ok := want[seq.UUID]
			return ok
		})
		infos = utils.MapSlice(picked, (*sequence.Sequence).Info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, code.SequenceNotFoundErr.WithMsg("nothing to copy")
	}
	if err := c.clipboard.Set(ctx, auth.OperatorName(ctx), infos); err != nil {
		logger.Errorf(ctx, "console.Copy set clipboard err: %+v", err)
		return nil, err
	}
	return &console.CountResp{Count: len(infos)}, nil
}

func (c *consoleImpl) Paste(ctx context.Context, req *console.PasteReq) ([]*sequence.View, error) {
	infos, err := c.clipboard.Get(ctx, auth.OperatorName(ctx))
	if err != nil {
		return nil, err
	}
	var views []*sequence.View
	err = c.sched.Do(ctx, func(_ context.Context, q *sequence.Queue) error {
		seqs := make([]*sequence.Sequence, 0, len(infos))
		for _, info := range infos {
			seqs = append(seqs, sequence.New(info))
		}
		index := q.Len()
		if req.Index != nil {
			index = *req.Index
		}
		q.InsertAt(index, seqs...)
		for _, seq := range seqs {
			views = append(views, seq.View())
		}
		return nil
	})
	return views, err
}

func (c *consoleImpl) LoadScript(ctx context.Context, req *console.ScriptReq) (*console.CountResp, error) {
	infos, err := script.Decode([]byte(req.Content))
	if err != nil {
		return nil, err
	}
	resp := &console.CountResp{}
	err = c.sched.Do(ctx, func(_ context.Context, q *sequence.Queue) error {
		resp.Count = len(q.Load(infos))
		return nil
	})
	return resp, err
}

func (c *consoleImpl) SaveScript(ctx context.Context) ([]byte, error) {
	var infos []sequence.Info
	if err := c.sched.Do(ctx, func(_ context.Context, q *sequence.Queue) error {
		infos = q.Snapshot()
		return nil
	}); err != nil {
		return nil, err
	}
	return script.Encode(infos)
}

func (c *consoleImpl) Start(ctx context.Context) error {
	return c.sched.Start(ctx)
}

func (c *consoleImpl) Stop(ctx context.Context) error {
	return c.sched.Stop(ctx)
}

func (c *consoleImpl) Abort(ctx context.Context) error {
	return c.sched.Abort(ctx)
}

func (c *consoleImpl) Finish(ctx context.Context) error {
	return c.sched.Finish(ctx)
}

func (c *consoleImpl) FinishNow(ctx context.Context) error {
	return c.sched.FinishNow(ctx)
}

func (c *consoleImpl) SetDelay(ctx context.Context, req *console.DelayReq) error {
	return c.sched.SetDelay(ctx, req.Minutes)
}

func (c *consoleImpl) Status(ctx context.Context) (*schedule.Status, error) {
	return c.sched.Status(ctx)
}

func (c *consoleImpl) Templates(_ context.Context) []*template.Template {
	return template.List()
}

func (c *consoleImpl) OnWSConnect(ctx context.Context, s *melody.Session) error {
	return c.sendSnapshot(ctx, s)
}

func (c *consoleImpl) sendSnapshot(ctx context.Context, s *melody.Session) error {
	snap, err := c.sched.Snapshot(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(&notify.SendMsg{
		Channel: notify.QueueChanged,
		Console: c.name,
		Data:    &console.QueueMsg{Version: c.version.Load(), Snapshot: snap},
	})
	if err != nil {
		return err
	}
	return s.Write(data)
}

func (c *consoleImpl) OnWSMsg(ctx context.Context, s *melody.Session, b []byte) error {
	msg := &console.WSMsg{}
	if err := json.Unmarshal(b, msg); err != nil {
		return code.ParamErr.WithErr(err)
	}
	switch msg.Action {
	case console.FetchSnapshot:
		return c.sendSnapshot(ctx, s)
	case console.Ping:
		data, _ := json.Marshal(&console.WSMsg{Action: console.Pong})
		return s.Write(data)
	default:
		return code.ParamErr.WithMsgf("unknown ws action: %s", msg.Action)
	}
}
