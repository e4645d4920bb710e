package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/pkg/ws"
)

// RemoteConfig 远程识别服务配置
// 服务端推送 {"transcript":"...","final":true} 或 {"error":"..."}
type RemoteConfig struct {
	URL      string
	Language string // 如 "zh-CN"
	Token    string
	Interim  bool
	// KeepAlive ping 间隔，默认 15s
	KeepAlive time.Duration
}

// Remote 通过 WebSocket 订阅展台麦克风的识别结果
type Remote struct {
	cfg RemoteConfig

	mu      sync.Mutex
	client  *ws.Client
	handler Handler
}

func NewRemote(cfg RemoteConfig) *Remote {
	return &Remote{cfg: cfg}
}

func (r *Remote) Supported() bool { return r.cfg.URL != "" }

type startFrame struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
	Interim  bool   `json:"interim"`
}

type resultFrame struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
	Error      string `json:"error"`
}

func (r *Remote) Start(ctx context.Context, h Handler) error {
	if !r.Supported() {
		return ErrUnsupported
	}

	r.mu.Lock()
	if r.client != nil {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.handler = h
	r.mu.Unlock()

	header := http.Header{}
	if r.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+r.cfg.Token)
	}

	keepAlive := r.cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	client, err := ws.Dial(ctx, r.cfg.URL, ws.Options{Header: header, PingInterval: keepAlive}, &remoteEvents{r: r})
	if err != nil {
		return &Error{Op: "connect", Err: err}
	}

	r.mu.Lock()
	select {
	case <-client.Done():
	default:
		r.client = client
	}
	r.mu.Unlock()

	if err := client.WriteJSON(startFrame{Type: "start", Language: r.cfg.Language, Interim: r.cfg.Interim}); err != nil {
		client.Close()
		return &Error{Op: "start", Err: err}
	}

	go func() {
		select {
		case <-ctx.Done():
			r.Stop()
		case <-client.Done():
		}
	}()

	logrus.WithField("url", r.cfg.URL).Info("recognition: remote session started")
	return nil
}

func (r *Remote) Stop() {
	r.mu.Lock()
	client := r.client
	r.mu.Unlock()
	if client == nil {
		return
	}
	// 停止帧同步写出后再关闭，服务端据此结束识别
	if err := client.CloseWith(startFrame{Type: "stop"}); err != nil {
		logrus.Debugf("recognition: stop frame not sent: %v", err)
	}
}

func (r *Remote) currentHandler() Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handler
}

// remoteEvents 把 ws 事件转换成识别回调
type remoteEvents struct {
	r *Remote
}

func (e *remoteEvents) OnOpen(*ws.Client) {}

func (e *remoteEvents) OnMessage(c *ws.Client, _ int, msg []byte) {
	h := e.r.currentHandler()

	var frame resultFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		logrus.Warnf("recognition: bad frame: %v", err)
		return
	}
	if frame.Error != "" {
		if h.OnError != nil {
			h.OnError(&Error{Op: "recognize", Err: errors.New(frame.Error)})
		}
		c.Close()
		return
	}

	text := strings.TrimSpace(frame.Transcript)
	if text == "" {
		return
	}
	if h.OnResult != nil {
		h.OnResult(Result{Transcript: text, Final: frame.Final})
	}
}

func (e *remoteEvents) OnError(_ *ws.Client, err error) {
	if h := e.r.currentHandler(); h.OnError != nil {
		h.OnError(&Error{Op: "stream", Err: err})
	}
}

func (e *remoteEvents) OnClose(c *ws.Client) {
	e.r.mu.Lock()
	if e.r.client == c {
		e.r.client = nil
	}
	h := e.r.handler
	e.r.mu.Unlock()

	logrus.Info("recognition: remote session ended")
	if h.OnEnd != nil {
		h.OnEnd()
	}
}
