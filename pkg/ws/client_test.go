package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recorder struct {
	mu     sync.Mutex
	msgs   []string
	errs   []error
	closed chan struct{}
}

func newRecorder() *recorder { return &recorder{closed: make(chan struct{})} }

func (r *recorder) OnOpen(*Client) {}

func (r *recorder) OnMessage(_ *Client, _ int, msg []byte) {
	r.mu.Lock()
	r.msgs = append(r.msgs, string(msg))
	r.mu.Unlock()
}

func (r *recorder) OnError(_ *Client, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) OnClose(*Client) { close(r.closed) }

func (r *recorder) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

// newServer 启动 ws 服务，serve 在升级后的连接上运行
func newServer(t *testing.T, serve func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestCloseWithDeliversLastFrame(t *testing.T) {
	got := make(chan string, 4)
	url := newServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			got <- string(msg)
		}
	})

	rec := newRecorder()
	c, err := Dial(context.Background(), url, Options{}, rec)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.WriteJSON(map[string]string{"type": "start"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if err := c.CloseWith(map[string]string{"type": "stop"}); err != nil {
		t.Fatalf("CloseWith: %v", err)
	}

	for _, want := range []string{`{"type":"start"}`, `{"type":"stop"}`} {
		select {
		case msg := <-got:
			if strings.TrimSpace(msg) != want {
				t.Fatalf("frame = %s, want %s", msg, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("missing frame %s", want)
		}
	}

	<-rec.closed
	if err := c.WriteText([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("write after close = %v", err)
	}
	if rec.errCount() != 0 {
		t.Fatalf("errors = %v", rec.errs)
	}
}

func TestKeepAlive(t *testing.T) {
	t.Run("pongs keep the connection open", func(t *testing.T) {
		// ReadMessage 会自动回复 ping
		url := newServer(t, func(conn *websocket.Conn) {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		})
		rec := newRecorder()
		c, err := Dial(context.Background(), url, Options{PingInterval: 20 * time.Millisecond}, rec)
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		defer c.Close()

		select {
		case <-c.Done():
			t.Fatalf("connection dropped: %v", rec.errs)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("silent peer is dropped", func(t *testing.T) {
		release := make(chan struct{})
		url := newServer(t, func(conn *websocket.Conn) { <-release })
		t.Cleanup(func() { close(release) })

		rec := newRecorder()
		c, err := Dial(context.Background(), url, Options{PingInterval: 20 * time.Millisecond}, rec)
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("dead connection was not detected")
		}
		<-rec.closed
		if rec.errCount() == 0 {
			t.Fatal("timeout should be reported")
		}
	})
}
