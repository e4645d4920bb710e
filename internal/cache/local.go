package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// Local 进程内缓存，Redis 不可用时使用
type Local struct {
	mu   sync.RWMutex
	data map[string]entry

	stopCh    chan struct{}
	closeOnce sync.Once
}

func NewLocal(cleanupInterval time.Duration) *Local {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	c := &Local{
		data:   make(map[string]entry),
		stopCh: make(chan struct{}),
	}
	go c.cleanupLoop(cleanupInterval)

	logrus.WithField("cleanup_interval", cleanupInterval).Info("cache: local cache initialized")
	return c
}

func (c *Local) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || e.expired(time.Now()) {
		return nil, ErrMiss
	}
	return e.value, nil
}

func (c *Local) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.data[key] = e
	c.mu.Unlock()
	return nil
}

func (c *Local) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *Local) Ping(context.Context) error { return nil }

func (c *Local) Close() error {
	c.closeOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *Local) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *Local) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup(time.Now())
		case <-c.stopCh:
			return
		}
	}
}

func (c *Local) cleanup(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expired := 0
	for key, e := range c.data {
		if e.expired(now) {
			delete(c.data, key)
			expired++
		}
	}
	if expired > 0 {
		logrus.Debugf("cache: cleanup removed %d expired entries", expired)
	}
}
