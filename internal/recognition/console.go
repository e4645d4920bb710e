package recognition

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Console 把每一行输入当作一次最终识别结果
type Console struct {
	r io.Reader

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	lines   chan string
	readErr error
	once    sync.Once
}

func NewConsole(r io.Reader) *Console {
	return &Console{r: r}
}

func (c *Console) Supported() bool { return true }

func (c *Console) Start(ctx context.Context, h Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyStarted
	}
	c.running = true
	c.stop = make(chan struct{})

	// 底层 reader 无法中断，只启动一个读 goroutine，多次 Start 共用
	c.once.Do(func() {
		c.lines = make(chan string)
		go c.readLoop()
	})

	go c.deliver(ctx, h, c.stop)
	logrus.Info("recognition: console input started")
	return nil
}

func (c *Console) readLoop() {
	scanner := bufio.NewScanner(c.r)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	c.mu.Lock()
	c.readErr = scanner.Err()
	c.mu.Unlock()
	close(c.lines)
}

func (c *Console) deliver(ctx context.Context, h Handler, stop chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.stop == stop {
			c.running = false
		}
		c.mu.Unlock()
		if h.OnEnd != nil {
			h.OnEnd()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case line, ok := <-c.lines:
			if !ok {
				c.mu.Lock()
				err := c.readErr
				c.mu.Unlock()
				if err != nil && h.OnError != nil {
					h.OnError(&Error{Op: "read", Err: err})
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if h.OnResult != nil {
				h.OnResult(Result{Transcript: line, Final: true})
			}
		}
	}
}

func (c *Console) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
}
