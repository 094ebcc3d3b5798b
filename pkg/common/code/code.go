package code

import (
	"errors"
	"fmt"
)

type ErrCode int

const (
	Success    ErrCode = 0
	UnknownErr ErrCode = 1

	// 请求
	ParamErr ErrCode = iota + 1000
	UnLogin
	LoginFormatErr
	InvalidToken
	NoPermission
	NotConfirmedErr

	// 存储
	RecordNotFound ErrCode = iota + 2000
	QueryRecordErr
	CreateDataErr
	UpdateDataErr

	// 队列
	SequenceNotFoundErr ErrCode = iota + 3000
	SequenceLockedErr
	SequenceNotValidErr
	SequenceActiveErr
	MalformedCommandErr
	InvalidReplyErr
	NoValidSequenceErr
	NoActiveSequenceErr
	ClipboardEmptyErr
	ScriptEmptyErr
	ScriptFormatErr
	TemplateNotFoundErr
	DataFlagErr
	AnnotationLockedErr

	// 调度
	SchedulerRunningErr ErrCode = iota + 4000
	SchedulerOffErr
	SchedulerClosedErr
	DelayRangeErr
	ConsoleLockedErr

	// actor
	ActorNotConnectedErr ErrCode = iota + 5000
	ActorAlreadyConnectedErr
	ActorSendErr

	// 广播
	NotifyActionAlreadyRegistryErr ErrCode = iota + 6000
	NotifySendMsgErr
)

var codeMsg = map[ErrCode]string{
	Success:    "success",
	UnknownErr: "unknown error",

	ParamErr:        "parameter error",
	UnLogin:         "not logged in",
	LoginFormatErr:  "authorization header format error",
	InvalidToken:    "invalid token",
	NoPermission:    "no permission",
	NotConfirmedErr: "operation requires confirmation",

	RecordNotFound: "record not found",
	QueryRecordErr: "query record error",
	CreateDataErr:  "create data error",
	UpdateDataErr:  "update data error",

	SequenceNotFoundErr: "sequence not found",
	SequenceLockedErr:   "sequence can no longer be edited",
	SequenceNotValidErr: "sequence is not valid",
	SequenceActiveErr:   "sequence is active",
	MalformedCommandErr: "malformed command",
	InvalidReplyErr:     "invalid reply",
	NoValidSequenceErr:  "no valid sequence in queue",
	NoActiveSequenceErr: "no active sequence",
	ClipboardEmptyErr:   "clipboard is empty",
	ScriptEmptyErr:      "script is empty",
	ScriptFormatErr:     "script format error",
	TemplateNotFoundErr: "sequence template not found",
	DataFlagErr:         "data flag must be one of 0, 1, OK, BAD",
	AnnotationLockedErr: "annotation already set",

	SchedulerRunningErr: "scheduler is already running",
	SchedulerOffErr:     "scheduler is off",
	SchedulerClosedErr:  "scheduler is closed",
	DelayRangeErr:       "delay out of range",
	ConsoleLockedErr:    "another console already holds the lock",

	ActorNotConnectedErr:     "actor bridge not connected",
	ActorAlreadyConnectedErr: "actor bridge already connected",
	ActorSendErr:             "send command to actor bridge fail",

	NotifyActionAlreadyRegistryErr: "notify action already registered",
	NotifySendMsgErr:               "notify send msg fail",
}

func (e ErrCode) String() string {
	if msg, ok := codeMsg[e]; ok {
		return msg
	}
	return fmt.Sprintf("error code %d", int(e))
}

func (e ErrCode) Error() string {
	return e.String()
}

func (e ErrCode) WithMsg(msg string) error {
	return &Error{Code: e, Msg: msg}
}

func (e ErrCode) WithMsgf(format string, args ...any) error {
	return &Error{Code: e, Msg: fmt.Sprintf(format, args...)}
}

func (e ErrCode) WithErr(err error) error {
	if err == nil {
		return e
	}
	return &Error{Code: e, Msg: err.Error(), err: err}
}

// Error 携带错误码与上下文信息，errors.Is 可与 ErrCode 比较
type Error struct {
	Code ErrCode
	Msg  string
	err  error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Msg)
}

func (e *Error) Is(target error) bool {
	c, ok := target.(ErrCode)
	return ok && c == e.Code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Of returns the code carried by err, UnknownErr otherwise.
func Of(err error) ErrCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c ErrCode
	if errors.As(err, &c) {
		return c
	}
	return UnknownErr
}

// Msg returns the detail message of err without the code prefix.
func Msg(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
