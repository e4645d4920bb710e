package audio

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/sirupsen/logrus"
)

type SpeakerConfig struct {
	SampleRate     int           // 输出设备采样率，默认 44100
	BufferDuration time.Duration // 默认 100ms
	// RequireGesture 为 true 时，在 Unlock 之前所有播放都返回 ErrPlaybackBlocked
	RequireGesture bool
}

// Speaker 基于 beep 的本地扬声器播放器
type Speaker struct {
	rate   beep.SampleRate
	buffer time.Duration

	initOnce sync.Once
	initErr  error

	mu     sync.Mutex
	locked bool
}

func NewSpeaker(cfg SpeakerConfig) *Speaker {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.BufferDuration <= 0 {
		cfg.BufferDuration = time.Second / 10
	}
	return &Speaker{
		rate:   beep.SampleRate(cfg.SampleRate),
		buffer: cfg.BufferDuration,
		locked: cfg.RequireGesture,
	}
}

func (s *Speaker) init() error {
	s.initOnce.Do(func() {
		s.initErr = speaker.Init(s.rate, s.rate.N(s.buffer))
		if s.initErr == nil {
			logrus.Infof("speaker: initialized at %d Hz", s.rate)
		}
	})
	return s.initErr
}

// Unlock 游客已经与设备交互，之后允许出声
func (s *Speaker) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		logrus.Info("speaker: unlocked by user interaction")
	}
	s.locked = false
}

func (s *Speaker) Play(clip *Clip, hooks Hooks) (Playback, error) {
	s.mu.Lock()
	locked := s.locked
	s.mu.Unlock()
	if locked {
		return nil, ErrPlaybackBlocked
	}

	if err := s.init(); err != nil {
		return nil, fmt.Errorf("speaker: init: %w", err)
	}

	stream, format, err := decode(clip)
	if err != nil {
		return nil, err
	}

	var src beep.Streamer = stream
	if format.SampleRate != s.rate {
		src = beep.Resample(4, format.SampleRate, s.rate, stream)
	}

	p := &speakerPlayback{
		ctrl:   &beep.Ctrl{Streamer: src},
		source: stream,
	}

	// beep 的回调在 speaker 锁内执行，这里切换到新的 goroutine，
	// 否则回调里再调用 Stop/Pause 会死锁
	done := beep.Callback(func() {
		go p.finish(hooks)
	})

	speaker.Play(beep.Seq(p.ctrl, done))
	return p, nil
}

func decode(clip *Clip) (beep.StreamSeekCloser, beep.Format, error) {
	if rate, channels, ok := PCMFormat(clip.MIME()); ok {
		data, err := clip.Bytes()
		if err != nil {
			return nil, beep.Format{}, err
		}
		pcm := NewPCMStreamer(data, beep.SampleRate(rate), channels)
		return &pcmSeekCloser{PCMStreamer: pcm}, pcm.Format(), nil
	}

	if !strings.HasPrefix(clip.MIME(), MIMEMpeg) {
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, clip.MIME())
	}

	rc, err := clip.Reader()
	if err != nil {
		return nil, beep.Format{}, err
	}
	stream, format, err := mp3.Decode(rc)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("speaker: decode mp3: %w", err)
	}
	return stream, format, nil
}

type speakerPlayback struct {
	ctrl   *beep.Ctrl
	source beep.StreamSeekCloser

	stopOnce sync.Once
	stopped  bool
}

func (p *speakerPlayback) Pause() {
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
}

func (p *speakerPlayback) Resume() {
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
}

func (p *speakerPlayback) Stop() {
	p.stopOnce.Do(func() {
		speaker.Lock()
		p.stopped = true
		p.ctrl.Streamer = nil
		speaker.Unlock()
		if err := p.source.Close(); err != nil {
			logrus.Warnf("speaker: close source: %v", err)
		}
	})
}

func (p *speakerPlayback) finish(hooks Hooks) {
	speaker.Lock()
	stopped := p.stopped
	speaker.Unlock()
	if stopped {
		return
	}

	err := p.source.Err()
	p.Stop()

	if err != nil {
		if hooks.OnError != nil {
			hooks.OnError(err)
		}
		return
	}
	if hooks.OnEnd != nil {
		hooks.OnEnd()
	}
}

// pcmSeekCloser 让 PCMStreamer 满足 beep.StreamSeekCloser
type pcmSeekCloser struct {
	*PCMStreamer
}

func (p *pcmSeekCloser) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.data) / (p.format.NumChannels * p.format.Precision)
}

func (p *pcmSeekCloser) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos / (p.format.NumChannels * p.format.Precision)
}

func (p *pcmSeekCloser) Seek(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	offset := n * p.format.NumChannels * p.format.Precision
	if offset < 0 || offset > len(p.data) {
		return fmt.Errorf("speaker: seek %d out of range", n)
	}
	p.pos = offset
	return nil
}

var _ beep.StreamSeekCloser = (*pcmSeekCloser)(nil)
