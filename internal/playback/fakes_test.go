package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

type fakeProvider struct {
	mu    sync.Mutex
	size  int
	err   error
	gates map[string]chan struct{}
	calls []tts.Request
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{size: 1024, gates: make(map[string]chan struct{})}
}

// gate 让 text 的合成阻塞到返回的 channel 被关闭
func (p *fakeProvider) gate(text string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.gates[text] = ch
	return ch
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	gate := p.gates[req.Text]
	size, err := p.size, p.err
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
	return audio.NewClip(make([]byte, size), audio.MIMEMpeg), nil
}

type fakePlayer struct {
	mu        sync.Mutex
	blocked   bool
	failErr   error
	endOnPlay bool
	unlocks   int
	plays     []*fakePlayback
}

func (p *fakePlayer) Play(clip *audio.Clip, hooks audio.Hooks) (audio.Playback, error) {
	p.mu.Lock()
	if p.blocked {
		p.mu.Unlock()
		return nil, audio.ErrPlaybackBlocked
	}
	if p.failErr != nil {
		err := p.failErr
		p.mu.Unlock()
		return nil, err
	}
	pb := &fakePlayback{hooks: hooks, clip: clip}
	p.plays = append(p.plays, pb)
	endOnPlay := p.endOnPlay
	p.mu.Unlock()

	if endOnPlay {
		hooks.OnEnd()
	}
	return pb, nil
}

func (p *fakePlayer) Unlock() {
	p.mu.Lock()
	p.blocked = false
	p.unlocks++
	p.mu.Unlock()
}

func (p *fakePlayer) playCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
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
	clip  *audio.Clip

	mu      sync.Mutex
	pauses  int
	resumes int
	stops   int
}

func (pb *fakePlayback) Pause()  { pb.mu.Lock(); pb.pauses++; pb.mu.Unlock() }
func (pb *fakePlayback) Resume() { pb.mu.Lock(); pb.resumes++; pb.mu.Unlock() }
func (pb *fakePlayback) Stop()   { pb.mu.Lock(); pb.stops++; pb.mu.Unlock() }

func (pb *fakePlayback) stopCount() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.stops
}

// 模拟音频自然播完
func (pb *fakePlayback) finish() { pb.hooks.OnEnd() }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types(sessionID string) []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, e := range r.events {
		if sessionID == "" || e.SessionID == sessionID {
			out = append(out, e.Type)
		}
	}
	return out
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
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
