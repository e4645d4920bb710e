package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/command"
	"github.com/ovenzeze/hugo-tour-guide/internal/recognition"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

type fakeProvider struct {
	mu    sync.Mutex
	err   error
	gates map[string]chan struct{}
	calls []tts.Request
}

// gate 让 text 的合成阻塞到返回的 channel 被关闭
func (p *fakeProvider) gate(text string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gates == nil {
		p.gates = make(map[string]chan struct{})
	}
	ch := make(chan struct{})
	p.gates[text] = ch
	return ch
}

func (p *fakeProvider) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	gate, err := p.gates[req.Text], p.err
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return audio.NewClip(make([]byte, 512), audio.MIMEMpeg), nil
}

func (p *fakeProvider) texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		out = append(out, c.Text)
	}
	return out
}

func (p *fakeProvider) lastVoice() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return ""
	}
	return p.calls[len(p.calls)-1].VoiceID
}

type fakePlayer struct {
	mu      sync.Mutex
	blocked bool
	plays   []*fakePlayback
}

func (p *fakePlayer) Play(clip *audio.Clip, hooks audio.Hooks) (audio.Playback, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.blocked {
		return nil, audio.ErrPlaybackBlocked
	}
	pb := &fakePlayback{hooks: hooks}
	p.plays = append(p.plays, pb)
	return pb, nil
}

func (p *fakePlayer) Unlock() {
	p.mu.Lock()
	p.blocked = false
	p.mu.Unlock()
}

func (p *fakePlayer) setBlocked(b bool) {
	p.mu.Lock()
	p.blocked = b
	p.mu.Unlock()
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

func (p *fakePlayer) at(i int) *fakePlayback {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays[i]
}

func (p *fakePlayer) last() *fakePlayback {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.plays) == 0 {
		return nil
	}
	return p.plays[len(p.plays)-1]
}

type fakePlayback struct {
	hooks audio.Hooks

	mu      sync.Mutex
	stopped bool
	paused  bool
}

func (pb *fakePlayback) Pause() {
	pb.mu.Lock()
	pb.paused = true
	pb.mu.Unlock()
}

func (pb *fakePlayback) Resume() {
	pb.mu.Lock()
	pb.paused = false
	pb.mu.Unlock()
}

func (pb *fakePlayback) Stop() {
	pb.mu.Lock()
	pb.stopped = true
	pb.mu.Unlock()
}

func (pb *fakePlayback) isStopped() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.stopped
}

func (pb *fakePlayback) finish() { pb.hooks.OnEnd() }

// fakeListener 由测试驱动的识别器
type fakeListener struct {
	mu       sync.Mutex
	handler  *recognition.Handler
	startErr error
	stops    int
}

func (l *fakeListener) Supported() bool { return true }

func (l *fakeListener) Start(ctx context.Context, h recognition.Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.startErr != nil {
		return l.startErr
	}
	l.handler = &h
	return nil
}

func (l *fakeListener) Stop() {
	l.mu.Lock()
	l.stops++
	h := l.handler
	l.handler = nil
	l.mu.Unlock()
	if h != nil && h.OnEnd != nil {
		h.OnEnd()
	}
}

func (l *fakeListener) emit(r recognition.Result) {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	h.OnResult(r)
}

func (l *fakeListener) fail(err error) {
	l.mu.Lock()
	h := l.handler
	l.handler = nil
	l.mu.Unlock()
	h.OnError(err)
	h.OnEnd()
}

type fakeCatalog map[string]Exhibit

func (c fakeCatalog) Exhibit(ctx context.Context, ref string) (Exhibit, bool, error) {
	if ref == "broken" {
		return Exhibit{}, false, errors.New("db down")
	}
	ex, ok := c[ref]
	return ex, ok, nil
}

type fakeResponder struct {
	reply string
	err   error
	asked []string
}

func (r *fakeResponder) Respond(ctx context.Context, transcript string, locale command.Locale) (string, error) {
	r.asked = append(r.asked, transcript)
	return r.reply, r.err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
