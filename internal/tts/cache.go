package tts

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/cache"
)

// CachedProvider 用缓存包住另一个 Provider，相同请求直接返回缓存的音频
type CachedProvider struct {
	next  Provider
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedProvider(next Provider, c cache.Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl}
}

func (p *CachedProvider) Synthesize(ctx context.Context, req Request) (*audio.Clip, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := req.CacheKey()
	data, err := p.cache.Get(ctx, key)
	if err == nil && CheckAudio(data) == nil {
		logrus.WithField("key", key).Debug("tts: cache hit")
		return audio.NewClip(data, audio.MIMEMpeg), nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		logrus.Warnf("tts: cache get failed: %v", err)
	}

	clip, err := p.next.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	if b, err := clip.Bytes(); err == nil && clip.MIME() == audio.MIMEMpeg {
		if err := p.cache.Set(ctx, key, b, p.ttl); err != nil {
			logrus.Warnf("tts: cache set failed: %v", err)
		}
	}
	return clip, nil
}
