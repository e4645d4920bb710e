package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/metrics"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

var (
	ErrValidation = errors.New("playback: invalid request")
	ErrSynthesis  = errors.New("playback: synthesis failed")
	ErrPlayback   = errors.New("playback: player failed")
	ErrSuperseded = errors.New("playback: superseded by a newer session")
	ErrStopped    = errors.New("playback: stopped")
	// ErrNotAdmitted 调用方在登记会话前撤回了请求
	ErrNotAdmitted = errors.New("playback: request withdrawn before start")
)

type Option func(*Controller)

// WithListener 注册事件监听，监听函数里不能同步回调 Controller
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// WithSynthesisTimeout 单次合成的超时时间
func WithSynthesisTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// Controller 管理唯一的一个播放会话
// 开始新会话前会同步结束并释放旧会话
type Controller struct {
	provider tts.Provider
	player   audio.Player
	listener Listener
	timeout  time.Duration

	mu         sync.Mutex
	current    *Session
	pending    *Session // 等待用户交互的会话，只保留最新的一个
	interacted bool
	queue      []Event

	emitMu sync.Mutex
}

func NewController(provider tts.Provider, player audio.Player, opts ...Option) *Controller {
	c := &Controller{
		provider: provider,
		player:   player,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartSession 合成 text 并播放
// 合成失败返回 ErrSynthesis，被新会话取代时返回 (session, nil)，
// 此时 session.Err() 为 ErrSuperseded
func (c *Controller) StartSession(ctx context.Context, text string, voice tts.VoiceProfile) (*Session, error) {
	return c.StartSessionWhen(ctx, text, voice, nil)
}

// StartSessionWhen 与 StartSession 相同，但 admit 返回 false 时不取代当前会话，
// 直接返回 ErrNotAdmitted。admit 在 Controller 的锁内调用，不能回调 Controller
func (c *Controller) StartSessionWhen(ctx context.Context, text string, voice tts.VoiceProfile, admit func() bool) (*Session, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", ErrValidation, tts.ErrEmptyText)
	}
	admitted := func() bool { return admit == nil || admit() }

	c.mu.Lock()
	if !admitted() {
		c.mu.Unlock()
		return nil, ErrNotAdmitted
	}
	release := c.supersedeLocked()
	c.mu.Unlock()
	release()
	c.flush()

	s := newSession(uuid.NewString(), text, voice)

	c.mu.Lock()
	if !admitted() {
		c.mu.Unlock()
		return nil, ErrNotAdmitted
	}
	release = c.supersedeLocked()
	s.transition(Generating, nil)
	c.current = s
	c.enqueueLocked(s, EventStarted, nil)
	c.mu.Unlock()
	release()
	c.flush()

	log := logrus.WithFields(logrus.Fields{"session": s.ID, "voice": voice.ID})
	log.Debugf("playback: synthesizing %d chars", len([]rune(text)))

	synthCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		synthCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	clip, err := c.provider.Synthesize(synthCtx, voice.Request(text))
	metrics.SynthesisLatency.Observe(time.Since(start).Seconds())
	if err == nil && clip.Len() < tts.MinAudioBytes {
		err = fmt.Errorf("%w: %d bytes", tts.ErrAudioTooSmall, clip.Len())
		clip.Release()
		clip = nil
	}

	c.mu.Lock()
	if c.current != s || s.State() != Generating {
		c.mu.Unlock()
		if clip != nil {
			clip.Release()
		}
		log.Debug("playback: dropping synthesis result of stale session")
		return s, nil
	}

	if err != nil {
		reason := fmt.Errorf("%w: %w", ErrSynthesis, err)
		release := c.endLocked(s, Failed, reason)
		c.mu.Unlock()
		release()
		c.flush()
		log.WithError(err).Warn("playback: synthesis failed")
		return s, reason
	}

	s.attach(clip)
	s.transition(Ready, nil)
	c.mu.Unlock()

	return s, c.play(s)
}

func (c *Controller) play(s *Session) error {
	clip := s.audioClip()
	if clip == nil {
		return nil
	}

	pb, err := c.player.Play(clip, c.hooks(s.ID))

	c.mu.Lock()
	from := s.State()
	if c.current != s || (from != Ready && from != PendingUserGesture) {
		c.mu.Unlock()
		if pb != nil {
			pb.Stop()
		}
		return nil
	}

	log := logrus.WithField("session", s.ID)

	switch {
	case errors.Is(err, audio.ErrPlaybackBlocked):
		if from == Ready {
			s.transition(PendingUserGesture, nil)
			c.enqueueLocked(s, EventBlocked, nil)
			metrics.PlaybackBlockedTotal.Inc()
		}
		c.pending = s
		c.mu.Unlock()
		c.flush()
		log.Info("playback: blocked, waiting for user interaction")
		return nil

	case err != nil:
		reason := fmt.Errorf("%w: %w", ErrPlayback, err)
		release := c.endLocked(s, Failed, reason)
		c.mu.Unlock()
		release()
		c.flush()
		log.WithError(err).Warn("playback: play failed")
		return reason
	}

	s.setPlayback(pb)
	s.transition(Playing, nil)
	c.enqueueLocked(s, EventPlaying, nil)

	release := func() {}
	if ended, endErr := s.takeEarlyEnd(); ended {
		release = c.finishLocked(s, endErr)
	}
	c.mu.Unlock()
	release()
	c.flush()
	return nil
}

func (c *Controller) hooks(id string) audio.Hooks {
	return audio.Hooks{
		OnEnd:   func() { c.onPlaybackDone(id, nil) },
		OnError: func(err error) { c.onPlaybackDone(id, err) },
	}
}

// onPlaybackDone 播放器回调，id 不是当前会话的直接丢弃
func (c *Controller) onPlaybackDone(id string, err error) {
	c.mu.Lock()
	s := c.current
	if s == nil || s.ID != id {
		c.mu.Unlock()
		logrus.WithField("session", id).Debug("playback: ignoring callback from stale session")
		return
	}

	switch s.State() {
	case Ready:
		s.markEarlyEnd(err)
		c.mu.Unlock()
	case Playing, Paused:
		release := c.finishLocked(s, err)
		c.mu.Unlock()
		release()
		c.flush()
	default:
		c.mu.Unlock()
	}
}

func (c *Controller) finishLocked(s *Session, err error) func() {
	if err == nil {
		return c.endLocked(s, Ended, nil)
	}
	return c.endLocked(s, Failed, fmt.Errorf("%w: %w", ErrPlayback, err))
}

// Pause 只在 Playing 时生效
func (c *Controller) Pause() {
	c.mu.Lock()
	s := c.current
	if s == nil || s.State() != Playing {
		c.mu.Unlock()
		return
	}
	if pb := s.currentPlayback(); pb != nil {
		pb.Pause()
	}
	s.transition(Paused, nil)
	c.enqueueLocked(s, EventPaused, nil)
	c.mu.Unlock()
	c.flush()
}

// Resume 只在 Paused 时生效
func (c *Controller) Resume() {
	c.mu.Lock()
	s := c.current
	if s == nil || s.State() != Paused {
		c.mu.Unlock()
		return
	}
	if pb := s.currentPlayback(); pb != nil {
		pb.Resume()
	}
	s.transition(Playing, nil)
	c.enqueueLocked(s, EventPlaying, nil)
	c.mu.Unlock()
	c.flush()
}

// Stop 从任意状态结束当前会话，重复调用无副作用
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.current
	if s == nil || s.State().Terminal() {
		c.mu.Unlock()
		return
	}
	release := c.endLocked(s, Ended, ErrStopped)
	c.mu.Unlock()
	release()
	c.flush()
}

// UserInteracted 用户和设备发生了交互：解锁播放器，并重试等待中的会话
func (c *Controller) UserInteracted() {
	c.mu.Lock()
	c.interacted = true
	s := c.pending
	c.pending = nil
	c.mu.Unlock()

	if u, ok := c.player.(audio.Unlocker); ok {
		u.Unlock()
	}
	if s == nil {
		return
	}

	c.mu.Lock()
	ok := c.current == s && s.State() == PendingUserGesture
	c.mu.Unlock()
	if !ok {
		return
	}

	logrus.WithField("session", s.ID).Info("playback: retrying after user interaction")
	if err := c.play(s); err != nil {
		logrus.WithField("session", s.ID).Warnf("playback: retry failed: %v", err)
	}
}

func (c *Controller) Interacted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interacted
}

// Current 当前（或最近一次）的会话，可能为 nil
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// State 当前会话状态，没有会话时为 Idle
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Idle
	}
	return c.current.State()
}

func (c *Controller) Speaking() bool {
	return c.State().Speaking()
}

func (c *Controller) Close() {
	c.Stop()
}

func (c *Controller) supersedeLocked() func() {
	s := c.current
	if s == nil || s.State().Terminal() {
		return func() {}
	}
	logrus.WithField("session", s.ID).Debug("playback: superseding session")
	return c.endLocked(s, Ended, ErrSuperseded)
}

// endLocked 把会话推进到终态，Failed 不合法时退回 Ended（例如 Paused 时出错）
func (c *Controller) endLocked(s *Session, to State, reason error) func() {
	ok, release := s.transition(to, reason)
	if !ok && to == Failed {
		to = Ended
		ok, release = s.transition(Ended, reason)
	}
	if !ok {
		return func() {}
	}

	if c.pending == s {
		c.pending = nil
	}

	t := EventEnded
	if to == Failed {
		t = EventFailed
	}
	c.enqueueLocked(s, t, reason)
	metrics.PlaybackSessionsTotal.WithLabelValues(to.String()).Inc()

	if release == nil {
		return func() {}
	}
	return release
}

func (c *Controller) enqueueLocked(s *Session, t EventType, err error) {
	c.queue = append(c.queue, Event{Type: t, SessionID: s.ID, State: s.State(), Err: err})
}

// flush 按入队顺序投递事件，同一时间只有一个 goroutine 在投递
func (c *Controller) flush() {
	if c.listener == nil {
		c.mu.Lock()
		c.queue = nil
		c.mu.Unlock()
		return
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		ev := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.listener(ev)
	}
}
