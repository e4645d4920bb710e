package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("ws: connection closed")

// EventHandler WS 连接事件回调
// OnMessage 和读错误在读 goroutine 中触发，OnClose 在关闭连接的 goroutine 中触发
type EventHandler interface {
	OnOpen(c *Client)
	OnMessage(c *Client, msgType int, msg []byte)
	OnError(c *Client, err error)
	OnClose(c *Client)
}

type Options struct {
	Header           http.Header
	HandshakeTimeout time.Duration // 默认 10s
	WriteTimeout     time.Duration // 默认 5s
	// PingInterval 大于 0 时定期发送 ping，两个周期内收不到任何数据视为断线
	PingInterval time.Duration
}

// Client 同步写、单 goroutine 读的 WebSocket 客户端
type Client struct {
	conn    *websocket.Conn
	handler EventHandler
	opts    Options

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// Dial 建立连接并启动读循环，ctx 只控制握手阶段
func Dial(ctx context.Context, url string, opts Options, handler EventHandler) (*Client, error) {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:    conn,
		handler: handler,
		opts:    opts,
		done:    make(chan struct{}),
	}

	handler.OnOpen(c)

	if opts.PingInterval > 0 {
		c.extendReadDeadline()
		conn.SetPongHandler(func(string) error {
			c.extendReadDeadline()
			return nil
		})
		go c.keepAlive()
	}
	go c.readLoop()

	return c, nil
}

func (c *Client) extendReadDeadline() {
	c.conn.SetReadDeadline(time.Now().Add(2 * c.opts.PingInterval))
}

func (c *Client) readLoop() {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.handler.OnError(c, err)
			}
			c.Close()
			return
		}
		if c.opts.PingInterval > 0 {
			c.extendReadDeadline()
		}
		c.handler.OnMessage(c, msgType, msg)
	}
}

func (c *Client) keepAlive() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			// WriteControl 可以和其他写操作并发
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) write(fn func() error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed() {
		return ErrClosed
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return fn()
}

// WriteText 写完才返回
func (c *Client) WriteText(data []byte) error {
	return c.write(func() error { return c.conn.WriteMessage(websocket.TextMessage, data) })
}

func (c *Client) WriteJSON(v any) error {
	return c.write(func() error { return c.conn.WriteJSON(v) })
}

// Done 连接关闭后关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// CloseWith 先发送最后一帧再关闭连接
func (c *Client) CloseWith(v any) error {
	err := c.WriteJSON(v)
	c.Close()
	return err
}

// Close 发送关闭帧并断开连接，只执行一次
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		close(c.done)
		c.writeMu.Unlock()

		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.conn.Close()
		c.handler.OnClose(c)
	})
}
