package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/olahol/melody"
	r "github.com/redis/go-redis/v9"
	"github.com/scienceol/seqpanel/pkg/common"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/common/constant"
	"github.com/scienceol/seqpanel/pkg/core/actor"
	"github.com/scienceol/seqpanel/pkg/core/notify"
	"github.com/scienceol/seqpanel/pkg/core/schedule"
	"github.com/scienceol/seqpanel/pkg/core/sequence"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/utils"
)

/*
 actor bridge 通过 websocket 连接到控制台, 控制台下发命令, bridge 回传 actor 的回复
*/

const BridgeHeader = "X-Bridge-Name"

type Config struct {
	Console string
	RClient *r.Client        // 可为空, 为空时不做单连接互斥
	Board   notify.MsgCenter // 可为空, 为空时不广播日志
}

type pending struct {
	id      int64
	cmd     *schedule.Command
	onReply schedule.ReplyFunc
	timer   *time.Timer
}

type Hub struct {
	wsClient   *melody.Melody
	console    string
	session    atomic.Pointer[melody.Session] // 当前 bridge 连接
	pending    *haxmap.Map[int64, *pending]   // 等待回复的命令
	nextID     atomic.Int64
	rClient    *r.Client
	boardEvent notify.MsgCenter
}

func New(ctx context.Context, conf *Config) *Hub {
	wsClient := melody.New()
	wsClient.Config.MaxMessageSize = constant.MaxMessageSize
	wsClient.Config.PingPeriod = constant.WSPingPeriod

	h := &Hub{
		wsClient:   wsClient,
		console:    conf.Console,
		pending:    haxmap.New[int64, *pending](),
		rClient:    conf.RClient,
		boardEvent: conf.Board,
	}
	h.initWebSocket(ctx)
	return h
}

// Connect upgrades the request to the bridge websocket and blocks until
// the bridge disconnects.
func (h *Hub) Connect(ctx *gin.Context) {
	bridge := utils.Or(ctx.GetHeader(BridgeHeader), ctx.Query("name"), "bridge")

	if h.rClient != nil {
		heartName := utils.ActorHeartName(h.console)
		ok, err := h.rClient.SetNX(ctx, heartName, bridge, utils.ConsoleHeartTime+time.Second).Result()
		if err != nil {
			logger.Errorf(ctx, "Hub.Connect set bridge heart fail console: %s, err: %+v", h.console, err)
			common.ReplyErr(ctx, code.ActorSendErr.WithErr(err))
			return
		}
		if !ok {
			logger.Warnf(ctx, "Hub.Connect bridge already connected console: %s", h.console)
			common.ReplyErr(ctx, code.ActorAlreadyConnectedErr)
			return
		}
		heartCtx, cancel := context.WithCancel(context.Background())
		h.startHeart(heartCtx, heartName, bridge)
		defer func() {
			cancel()
			if err := h.rClient.Del(context.Background(), heartName).Err(); err != nil {
				logger.Errorf(ctx, "Hub.Connect del bridge heart console: %s err: %+v", h.console, err)
			}
		}()
	}

	if err := h.wsClient.HandleRequestWithKeys(ctx.Writer, ctx.Request, map[string]any{
		"ctx":    context.WithoutCancel(ctx),
		"bridge": bridge,
	}); err != nil {
		logger.Errorf(ctx, "Hub.Connect HandleRequestWithKeys fail err: %+v", err)
	}
}

// 保持 bridge 在线标记
func (h *Hub) startHeart(ctx context.Context, heartName, bridge string) {
	utils.SafelyGo(func() {
		ticker := time.NewTicker(utils.ConsoleHeartTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := h.rClient.SetEx(ctx, heartName, bridge, utils.ConsoleHeartTime+time.Second).Err(); err != nil &&
					!errors.Is(err, context.Canceled) {
					logger.Errorf(ctx, "Hub.startHeart set heart err: %+v", err)
				}
			}
		}
	}, func(err error) {
		logger.Errorf(ctx, "Hub.startHeart SafelyGo err: %+v", err)
	})
}

func sessionCtx(s *melody.Session) context.Context {
	if v, ok := s.Get("ctx"); ok {
		if ctx, ok := v.(context.Context); ok {
			return ctx
		}
	}
	return context.Background()
}

func (h *Hub) initWebSocket(_ context.Context) {
	h.wsClient.HandleConnect(func(s *melody.Session) {
		ctx := sessionCtx(s)
		if old := h.session.Swap(s); old != nil && old != s && !old.IsClosed() {
			logger.Warnf(ctx, "Hub replace bridge session")
			_ = old.CloseWithMsg(melody.FormatCloseMessage(websocket.CloseNormalClosure, "replaced"))
		}
		logger.Infof(ctx, "Hub bridge connected: %v", s.MustGet("bridge"))
	})

	h.wsClient.HandleDisconnect(func(s *melody.Session) {
		ctx := sessionCtx(s)
		logger.Infof(ctx, "Hub bridge disconnected: %v, pending commands: %d", s.MustGet("bridge"), h.pending.Len())
		// 被新连接替换时保留, 否则等待中的命令不会再有回复
		if h.session.CompareAndSwap(s, nil) {
			h.abandon(ctx, "bridge disconnected")
		}
	})

	h.wsClient.HandleError(func(s *melody.Session, err error) {
		// 读或写或写 buf 满了出错
		if errors.Is(err, melody.ErrMessageBufferFull) {
			return
		}
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseGoingAway {
			return
		}
		logger.Warnf(sessionCtx(s), "Hub websocket err keys: %+v, err: %+v", s.Keys, err)
	})

	h.wsClient.HandleMessage(func(s *melody.Session, b []byte) {
		ctx := sessionCtx(s)
		if err := utils.SafelyRun(func() { h.onMessage(ctx, s, b) }); err != nil {
			logger.Errorf(ctx, "Hub.onMessage err: %+v", err)
		}
	})
}

func (h *Hub) onMessage(ctx context.Context, s *melody.Session, b []byte) {
	msg := &actor.Msg{}
	if err := json.Unmarshal(b, msg); err != nil {
		logger.Errorf(ctx, "Hub.onMessage unmarshal err: %+v, msg: %s", err, string(b))
		return
	}

	switch msg.Action {
	case actor.ActionReply:
		reply := &actor.Data[actor.ReplyData]{}
		if err := json.Unmarshal(b, reply); err != nil {
			logger.Errorf(ctx, "Hub.onMessage reply unmarshal err: %+v", err)
			return
		}
		h.onReply(ctx, &reply.Data)
	case actor.ActionPing:
		data, _ := json.Marshal(&actor.Msg{Action: actor.ActionPong})
		if err := s.Write(data); err != nil {
			logger.Warnf(ctx, "Hub.onMessage pong err: %+v", err)
		}
	case actor.ActionPong:
	default:
		logger.Warnf(ctx, "Hub.onMessage unknown action: %s", msg.Action)
	}
}

func (h *Hub) Connected() bool {
	s := h.session.Load()
	return s != nil && !s.IsClosed()
}

// Send writes cmd to the bridge. Its replies go to onReply; with no
// terminal reply within cmd.TimeLimit a CodeTimeout reply is synthesised.
func (h *Hub) Send(ctx context.Context, cmd *schedule.Command, onReply schedule.ReplyFunc) error {
	s := h.session.Load()
	if s == nil || s.IsClosed() {
		return code.ActorNotConnectedErr.WithMsgf("cannot send %s %s", cmd.Actor, cmd.CmdStr)
	}

	p := h.track(cmd, onReply)
	data, _ := json.Marshal(&actor.Data[actor.CommandData]{
		Msg: actor.Msg{Action: actor.ActionCommand},
		Data: actor.CommandData{
			CmdID:     p.id,
			Actor:     cmd.Actor,
			CmdStr:    cmd.CmdStr,
			TimeLimit: int64(cmd.TimeLimit / time.Second),
		},
	})
	if err := s.Write(data); err != nil {
		h.untrack(p.id)
		return code.ActorSendErr.WithErr(err)
	}

	logger.Infof(ctx, "cmdIn=%d %s %s", p.id, cmd.Actor, cmd.CmdStr)
	h.broadcast(ctx, &actor.LogLine{
		CmdID:  p.id,
		Actor:  cmd.Actor,
		Code:   sequence.CodeQueued,
		Level:  actor.Level(sequence.CodeQueued),
		CmdStr: cmd.CmdStr,
	})
	return nil
}

func (h *Hub) track(cmd *schedule.Command, onReply schedule.ReplyFunc) *pending {
	p := &pending{id: h.nextID.Add(1), cmd: cmd, onReply: onReply}
	h.pending.Set(p.id, p)
	if cmd.TimeLimit > 0 {
		id := p.id
		p.timer = time.AfterFunc(cmd.TimeLimit, func() { h.expire(id) })
	}
	return p
}

func (h *Hub) untrack(id int64) (*pending, bool) {
	p, ok := h.pending.GetAndDel(id)
	if ok && p.timer != nil {
		p.timer.Stop()
	}
	return p, ok
}

func (h *Hub) onReply(ctx context.Context, data *actor.ReplyData) {
	var (
		p  *pending
		ok bool
	)
	if data.Code.IsTerminal() {
		p, ok = h.untrack(data.CmdID)
	} else {
		p, ok = h.pending.Get(data.CmdID)
	}

	reply := &sequence.Reply{Actor: data.Actor, Code: data.Code, Keywords: data.Keywords}
	h.logReply(ctx, data.CmdID, reply)
	if !ok {
		logger.Warnf(ctx, "Hub.onReply unknown or expired command id: %d", data.CmdID)
		return
	}
	if reply.Actor == "" {
		reply.Actor = p.cmd.Actor
	}
	p.onReply(reply)
}

func (h *Hub) expire(id int64) {
	p, ok := h.untrack(id)
	if !ok {
		return
	}
	h.synthesize(context.Background(), p, sequence.CodeTimeout,
		fmt.Sprintf("no reply to %q within %s", p.cmd.CmdStr, p.cmd.TimeLimit))
}

// abandon fails every pending command with a synthesised CodeFailed reply.
func (h *Hub) abandon(ctx context.Context, reason string) {
	h.pending.ForEach(func(id int64, _ *pending) bool {
		if p, ok := h.untrack(id); ok {
			h.synthesize(ctx, p, sequence.CodeFailed, fmt.Sprintf("%s before %q finished", reason, p.cmd.CmdStr))
		}
		return true
	})
}

func (h *Hub) synthesize(ctx context.Context, p *pending, c sequence.Code, text string) {
	reply := &sequence.Reply{
		Actor:    p.cmd.Actor,
		Code:     c,
		Keywords: sequence.Keywords{{Name: "text", Values: []string{text}}},
	}
	h.logReply(ctx, p.id, reply)
	p.onReply(reply)
}

func (h *Hub) logReply(ctx context.Context, id int64, reply *sequence.Reply) {
	text := reply.Keywords.Canonical(";")
	switch level := actor.Level(reply.Code); {
	case level == 0:
		logger.Debugf(ctx, "cmdOut=%d %s %s %s", id, reply.Actor, reply.Code, text)
	case level == 1:
		logger.Infof(ctx, "cmdOut=%d %s %s %s", id, reply.Actor, reply.Code, text)
	case level == 2:
		logger.Warnf(ctx, "cmdOut=%d %s %s %s", id, reply.Actor, reply.Code, text)
	default:
		logger.Errorf(ctx, "cmdOut=%d %s %s %s", id, reply.Actor, reply.Code, text)
	}
	h.broadcast(ctx, &actor.LogLine{
		CmdID: id,
		Actor: reply.Actor,
		Code:  reply.Code,
		Level: actor.Level(reply.Code),
		Text:  text,
	})
}

func (h *Hub) broadcast(ctx context.Context, line *actor.LogLine) {
	if h.boardEvent == nil {
		return
	}
	if err := h.boardEvent.Broadcast(ctx, &notify.SendMsg{
		Channel: notify.ActorLog,
		Console: h.console,
		Data:    line,
	}); err != nil {
		logger.Warnf(ctx, "Hub.broadcast log line err: %+v", err)
	}
}

// Close forgets pending commands and drops the bridge connection.
func (h *Hub) Close(ctx context.Context) {
	h.pending.ForEach(func(id int64, _ *pending) bool {
		h.untrack(id)
		return true
	})
	if err := h.wsClient.CloseWithMsg(melody.FormatCloseMessage(websocket.CloseGoingAway, "console shutdown")); err != nil {
		logger.Errorf(ctx, "Hub.Close CloseWithMsg err: %+v", err)
	}
}

var _ actor.Bridge = (*Hub)(nil)
