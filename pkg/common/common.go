package common

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scienceol/seqpanel/pkg/common/code"
)

type Error struct {
	Msg  string   `json:"msg"`
	Info []string `json:"info,omitempty"`
}

type Resp struct {
	Code      code.ErrCode `json:"code"`
	Data      any          `json:"data,omitempty"`
	Error     *Error       `json:"error,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

type PageReq struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

func (p *PageReq) Normalize() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 || p.PageSize > 200 {
		p.PageSize = 20
	}
}

func (p *PageReq) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type PageResp[T any] struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Data     T     `json:"data"`
}

func ReplyErr(ctx *gin.Context, err error, msgs ...string) {
	c := code.Of(err)
	resp := &Resp{
		Code:      c,
		Error:     &Error{Msg: err.Error(), Info: msgs},
		Timestamp: time.Now().Unix(),
	}
	status := http.StatusOK
	switch c {
	case code.UnLogin, code.InvalidToken, code.LoginFormatErr:
		status = http.StatusUnauthorized
	case code.NoPermission:
		status = http.StatusForbidden
	}
	ctx.JSON(status, resp)
}

func ReplyOk(ctx *gin.Context, data ...any) {
	resp := &Resp{
		Code:      code.Success,
		Timestamp: time.Now().Unix(),
	}
	if len(data) > 0 {
		resp.Data = data[0]
	}
	ctx.JSON(http.StatusOK, resp)
}

func Reply(ctx *gin.Context, err error, data ...any) {
	if err != nil {
		ReplyErr(ctx, err)
		return
	}
	ReplyOk(ctx, data...)
}
