package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/olahol/melody"
	"github.com/scienceol/seqpanel/pkg/common"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/core/console"
	"github.com/scienceol/seqpanel/pkg/middleware/auth"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
)

const (
	ConfirmHeader = "X-Confirm"
	operatorKey   = "operator"
)

type Handle struct {
	svc      console.Service
	wsClient *melody.Melody
}

// NewHandle serves svc over http. wsClient must be the melody the console
// was built with, it carries the operator UI sessions.
func NewHandle(svc console.Service, wsClient *melody.Melody) *Handle {
	h := &Handle{svc: svc, wsClient: wsClient}
	h.initWebSocket()
	return h
}

// Confirm marks the request as confirmed by the operator when it carries
// ?confirm=true or the X-Confirm header.
func Confirm() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		v := ctx.Query("confirm")
		if v == "" {
			v = ctx.GetHeader(ConfirmHeader)
		}
		if ok, _ := strconv.ParseBool(v); ok {
			ctx.Request = ctx.Request.WithContext(console.WithConfirm(ctx.Request.Context(), true))
		}
		ctx.Next()
	}
}

// Snapshot godoc
// @Summary  queue and scheduler state
// @Tags     console
// @Produce  json
// @Success  200 {object} common.Resp{data=schedule.Snapshot}
// @Router   /v1/console/snapshot [get]
func (h *Handle) Snapshot(ctx *gin.Context) {
	resp, err := h.svc.Snapshot(ctx)
	common.Reply(ctx, err, resp)
}

func (h *Handle) Status(ctx *gin.Context) {
	resp, err := h.svc.Status(ctx)
	common.Reply(ctx, err, resp)
}

// AddSequence godoc
// @Summary  add a sequence built from a template, a command line or a recorded sequence
// @Tags     console
// @Accept   json
// @Produce  json
// @Param    req body console.AddReq true "sequence"
// @Success  200 {object} common.Resp{data=[]sequence.View}
// @Router   /v1/console/sequence [post]
func (h *Handle) AddSequence(ctx *gin.Context) {
	req := &console.AddReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse AddSequence param err: %+v", err.Error())
		common.ReplyErr(ctx, code.ParamErr, err.Error())
		return
	}
	resp, err := h.svc.AddSequence(ctx, req)
	common.Reply(ctx, err, resp)
}

func (h *Handle) Validate(ctx *gin.Context) {
	req := &console.ValidateReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse Validate param err: %+v", err.Error())
		common.ReplyErr(ctx, code.ParamErr, err.Error())
		return
	}
	resp, err := h.svc.Validate(ctx, req)
	common.Reply(ctx, err, resp)
}

func (h *Handle) Move(ctx *gin.Context) {
	req := &console.MoveReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse Move param err: %+v", err.Error())
		common.ReplyErr(ctx, code.ParamErr, err.Error())
		return
	}
	common.Reply(ctx, h.svc.Move(ctx, req))
}

func (h *Handle) Remove(ctx *gin.Context) {
	req := &console.UUIDsReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse Remove param err: %+v", err.Error())
		common.ReplyErr(ctx, code.ParamErr, err.Error())
		return
	}
	resp, err := h.svc.Remove(ctx, req)
	common.Reply(ctx, err, resp)
}

func (h *Handle) ClearDone(ctx *gin.Context) {
	resp, err := h.svc.ClearDone(ctx)
	common.Reply(ctx, err, resp)
}

func (h *Handle) Copy(ctx *gin.Context) {
	req := &console.UUIDsReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse Copy param err: %+v", err.Error())
		common.ReplyErr(ctx, code.ParamErr, err.Error())
		return
	}
	resp, err := h.svc.Copy(ctx, req)
	common.Reply(ctx, err, resp)
}

func (h *Handle) Paste(ctx *gin.Context) {
	req := &console.PasteReq{}
	if err := ctx.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		logger.Errorf(ctx, "parse Paste param err: %+v", err.Error())
		common.ReplyErr(ctx, code.ParamErr, err.Error())
		return
	}
	resp, err := h.svc.Paste(ctx, req)
	common.Reply(ctx, err, resp)
}

// LoadScript accepts the script either as json content or as the "file"
// field of a multipart form.
func (h *Handle) LoadScript(ctx *gin.Context) {
	req := &console.ScriptReq{}
	if fh, err := ctx.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			common.ReplyErr(ctx, code.ParamErr.WithErr(err))
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			common.ReplyErr(ctx, code.ParamErr.WithErr(err))
			return
		}
		req.Content = string(data)
	} else if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse LoadScript param err: %+v", err.Error())
		common.ReplyErr(ctx, code.ParamErr, err.Error())
		return
	}
	resp, err := h.svc.LoadScript(ctx, req)
	common.Reply(ctx, err, resp)
}

// SaveScript downloads the queue as a yaml script.
func (h *Handle) SaveScript(ctx *gin.Context) {
	data, err := h.svc.SaveScript(ctx)
	if err != nil {
		logger.Errorf(ctx, "SaveScript err: %+v", err)
		common.ReplyErr(ctx, err)
		return
	}
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Content-Disposition", "attachment; filename=sequences.yaml")
	ctx.Header("Content-Length", fmt.Sprintf("%d", len(data)))
	ctx.Data(http.StatusOK, "application/x-yaml", data)
}

func (h *Handle) Start(ctx *gin.Context) {
	common.Reply(ctx, h.svc.Start(ctx))
}

func (h *Handle) Stop(ctx *gin.Context) {
	common.Reply(ctx, h.svc.Stop(ctx))
}

func (h *Handle) Abort(ctx *gin.Context) {
	common.Reply(ctx, h.svc.Abort(ctx))
}

func (h *Handle) Finish(ctx *gin.Context) {
	common.Reply(ctx, h.svc.Finish(ctx))
}

func (h *Handle) FinishNow(ctx *gin.Context) {
	common.Reply(ctx, h.svc.FinishNow(ctx))
}

func (h *Handle) SetDelay(ctx *gin.Context) {
	req := &console.DelayReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse SetDelay param err: %+v", err.Error())
		common.ReplyErr(ctx, code.ParamErr, err.Error())
		return
	}
	common.Reply(ctx, h.svc.SetDelay(ctx, req))
}

func (h *Handle) Templates(ctx *gin.Context) {
	common.ReplyOk(ctx, h.svc.Templates(ctx))
}

func (h *Handle) Previous(ctx *gin.Context) {
	req := &console.PreviousReq{}
	if err := ctx.ShouldBindQuery(req); err != nil {
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	resp, err := h.svc.Previous(ctx, req)
	common.Reply(ctx, err, resp)
}

// History godoc
// @Summary  recorded sequences, newest first
// @Tags     history
// @Produce  json
// @Param    page      query int false "page"
// @Param    page_size query int false "page size"
// @Success  200 {object} common.Resp
// @Router   /v1/console/history [get]
func (h *Handle) History(ctx *gin.Context) {
	req := &common.PageReq{}
	if err := ctx.ShouldBindQuery(req); err != nil {
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	resp, err := h.svc.History(ctx, req)
	common.Reply(ctx, err, resp)
}

func (h *Handle) Annotations(ctx *gin.Context) {
	req := &console.PreviousReq{}
	if err := ctx.ShouldBindUri(req); err != nil {
		common.ReplyErr(ctx, code.ParamErr.WithMsg(err.Error()))
		return
	}
	resp, err := h.svc.Annotations(ctx, req)
	common.Reply(ctx, err, resp)
}

func (h *Handle) Annotate(ctx *gin.Context) {
	req := &console.AnnotateReq{}
	if err := ctx.ShouldBindJSON(req); err != nil {
		logger.Errorf(ctx, "parse Annotate param err: %+v", err.Error())
		common.ReplyErr(ctx, code.ParamErr, err.Error())
		return
	}
	resp, err := h.svc.Annotate(ctx, req)
	common.Reply(ctx, err, resp)
}

// Connect upgrades an operator UI to the console websocket.
func (h *Handle) Connect(ctx *gin.Context) {
	if err := h.wsClient.HandleRequestWithKeys(ctx.Writer, ctx.Request, map[string]any{
		auth.USERKEY: auth.GetCurrentUser(ctx),
		operatorKey:  auth.OperatorName(ctx),
		"ctx":        ctx,
	}); err != nil {
		logger.Errorf(ctx, "console Connect HandleRequestWithKeys err: %+v", err)
	}
}

func (h *Handle) initWebSocket() {
	h.wsClient.HandleClose(func(s *melody.Session, _ int, _ string) error {
		if ctx, ok := s.Get("ctx"); ok {
			logger.Infof(ctx.(context.Context), "console ws client close keys: %+v", s.Keys)
		}
		return nil
	})

	h.wsClient.HandleDisconnect(func(s *melody.Session) {
		if ctx, ok := s.Get("ctx"); ok {
			logger.Infof(ctx.(context.Context), "console ws client disconnected keys: %+v", s.Keys)
		}
	})

	h.wsClient.HandleError(func(s *melody.Session, err error) {
		if errors.Is(err, melody.ErrMessageBufferFull) {
			return
		}
		if closeErr, ok := err.(*websocket.CloseError); ok {
			if closeErr.Code == websocket.CloseGoingAway {
				return
			}
		}
		if ctx, ok := s.Get("ctx"); ok {
			logger.Errorf(ctx.(context.Context), "console ws error keys: %+v, err: %+v", s.Keys, err)
		}
	})

	h.wsClient.HandleConnect(func(s *melody.Session) {
		if ctx, ok := s.Get("ctx"); ok {
			logger.Infof(ctx.(context.Context), "console ws connect keys: %+v", s.Keys)
			if err := h.svc.OnWSConnect(ctx.(context.Context), s); err != nil {
				logger.Errorf(ctx.(context.Context), "console OnWSConnect err: %+v", err)
			}
		}
	})

	h.wsClient.HandleMessage(func(s *melody.Session, b []byte) {
		ctxI, ok := s.Get("ctx")
		if !ok {
			if err := s.CloseWithMsg([]byte("no ctx")); err != nil {
				logger.Errorf(context.Background(), "HandleMessage ctx not exist CloseWithMsg err: %+v", err)
			}
			return
		}
		if err := h.svc.OnWSMsg(ctxI.(*gin.Context), s, b); err != nil {
			logger.Errorf(ctxI.(*gin.Context), "console handle msg err: %+v", err)
		}
	})

	h.wsClient.HandleSentMessage(func(_ *melody.Session, _ []byte) {})
	h.wsClient.HandleSentMessageBinary(func(_ *melody.Session, _ []byte) {})
}
