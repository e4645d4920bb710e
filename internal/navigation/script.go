package navigation

import (
	"context"
	"strings"

	"github.com/ovenzeze/hugo-tour-guide/internal/playback"
)

type stepKind int

const (
	stepSay stepKind = iota
	stepPause
	stepResume
	stepStop
)

type step struct {
	kind  stepKind
	text  string
	voice string
}

// parseReply 把助手回复拆成按顺序执行的步骤，没有识别出标签时返回 nil
func parseReply(reply string) []step {
	var (
		steps []step
		text  strings.Builder
		voice string
	)

	p := NewTagParser()
	p.RegisterTag("say", TagCallbacks{
		OnStart: func(attrs map[string]string) {
			text.Reset()
			voice = attrs["voice"]
		},
		OnMiddle: func(s string) { text.WriteString(s) },
		OnEnd: func() {
			if t := strings.TrimSpace(text.String()); t != "" {
				steps = append(steps, step{kind: stepSay, text: t, voice: voice})
			}
		},
	})
	p.RegisterTag("pause", TagCallbacks{OnStart: func(map[string]string) { steps = append(steps, step{kind: stepPause}) }})
	p.RegisterTag("resume", TagCallbacks{OnStart: func(map[string]string) { steps = append(steps, step{kind: stepResume}) }})
	p.RegisterTag("stop", TagCallbacks{OnStart: func(map[string]string) { steps = append(steps, step{kind: stepStop}) }})

	p.Feed(reply)
	p.Close()

	if p.Seen() == 0 {
		return nil
	}
	return steps
}

// runScript 依次执行步骤
// 每段 say 播完才执行下一步；say 之前的 pause/resume/stop 作用于正在播放的讲解，
// say 之后的 pause 让剩下的步骤等到游客恢复播放，stop 结束脚本
// 第一段 say 开始播放后，剩下的步骤在后台继续
func (o *Orchestrator) runScript(ctx context.Context, turn uint64, steps []step, spoke bool) {
	for i, st := range steps {
		if !o.isCurrentTurn(turn) {
			return
		}
		switch st.kind {
		case stepSay:
			s := o.speak(ctx, turn, st.text, st.voice)
			rest := steps[i+1:]
			if s == nil || len(rest) == 0 {
				return
			}
			go func() {
				if o.awaitSession(ctx, turn, s) {
					o.runScript(ctx, turn, rest, true)
				}
			}()
			return

		case stepPause:
			if !spoke {
				o.player.Pause()
				continue
			}
			if i == len(steps)-1 || !o.awaitResume(ctx, turn) {
				return
			}

		case stepResume:
			o.Resume()

		case stepStop:
			if !spoke {
				o.player.Stop()
			}
			return
		}
	}
}

// awaitSession 等待讲解自然播完；被打断、停止或失败时返回 false
func (o *Orchestrator) awaitSession(ctx context.Context, turn uint64, s *playback.Session) bool {
	select {
	case <-s.Done():
		return s.State() == playback.Ended && s.Err() == nil && o.isCurrentTurn(turn)
	case <-ctx.Done():
		return false
	}
}

// awaitResume 等待游客恢复播放，期间有新的请求时返回 false
func (o *Orchestrator) awaitResume(ctx context.Context, turn uint64) bool {
	o.mu.Lock()
	if o.turn != turn {
		o.mu.Unlock()
		return false
	}
	resumed, changed := o.resumed, o.turnChanged
	o.mu.Unlock()

	select {
	case <-resumed:
		return o.isCurrentTurn(turn)
	case <-changed:
		return false
	case <-ctx.Done():
		return false
	}
}
