package recognition

import (
	"context"
	"errors"
)

var (
	ErrUnsupported    = errors.New("recognition: not supported on this device")
	ErrAlreadyStarted = errors.New("recognition: already started")
)

// Result 一次识别结果，Final 为 false 的是中间结果
type Result struct {
	Transcript string
	Final      bool
}

// Handler 识别回调，都可能在监听器自己的 goroutine 中触发
type Handler struct {
	OnResult func(Result)
	OnError  func(err error)
	// OnEnd 识别会话结束（出错、输入结束或 Stop）
	OnEnd func()
}

// Listener 语音识别
type Listener interface {
	Supported() bool
	Start(ctx context.Context, h Handler) error
	// Stop 未启动时调用也不会出错
	Stop()
}

// Error 麦克风、权限或识别服务出错，本次会话随之结束
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "recognition: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Unavailable 设备不支持识别时使用，调用方退化为纯文本输入
type Unavailable struct{}

func (Unavailable) Supported() bool                      { return false }
func (Unavailable) Start(context.Context, Handler) error { return ErrUnsupported }
func (Unavailable) Stop()                                {}
