package playback

import (
	"sync"
	"time"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

// Session 一次完整的 合成 -> 播放 周期
type Session struct {
	ID         string
	SourceText string
	Voice      tts.VoiceProfile
	CreatedAt  time.Time

	mu       sync.Mutex
	state    State
	err      error
	clip     *audio.Clip
	playback audio.Playback
	released bool
	done     chan struct{}

	// 播放器在 Play 返回之前就回调了结束
	earlyEnd bool
	earlyErr error
}

func newSession(id, text string, voice tts.VoiceProfile) *Session {
	return &Session{
		ID:         id,
		SourceText: text,
		Voice:      voice,
		CreatedAt:  time.Now(),
		state:      Idle,
		done:       make(chan struct{}),
	}
}

// Done 会话进入终态时关闭
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err 会话结束的原因，正常播完为 nil
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Released 音频资源是否已经释放
func (s *Session) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// transition 唯一修改状态的地方
// 进入终态时返回释放资源的函数，调用方需要在释放锁之后执行
func (s *Session) transition(to State, reason error) (ok bool, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !CanTransition(s.state, to) {
		return false, nil
	}
	s.state = to
	if !to.Terminal() {
		return true, nil
	}

	s.err = reason
	close(s.done)
	if s.released {
		return true, nil
	}
	s.released = true

	pb, clip := s.playback, s.clip
	s.playback, s.clip = nil, nil
	return true, func() {
		if pb != nil {
			pb.Stop()
		}
		if clip != nil {
			clip.Release()
		}
	}
}

func (s *Session) attach(clip *audio.Clip) {
	s.mu.Lock()
	s.clip = clip
	s.mu.Unlock()
}

func (s *Session) audioClip() *audio.Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clip
}

func (s *Session) setPlayback(pb audio.Playback) {
	s.mu.Lock()
	s.playback = pb
	s.mu.Unlock()
}

func (s *Session) currentPlayback() audio.Playback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

func (s *Session) markEarlyEnd(err error) {
	s.mu.Lock()
	s.earlyEnd, s.earlyErr = true, err
	s.mu.Unlock()
}

func (s *Session) takeEarlyEnd() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ended, err := s.earlyEnd, s.earlyErr
	s.earlyEnd, s.earlyErr = false, nil
	return ended, err
}
