package audio

import "errors"

var (
	// ErrPlaybackBlocked 运行环境拒绝自动播放（例如展台处于待机锁定，等待游客触摸）
	ErrPlaybackBlocked     = errors.New("audio: playback blocked until user interaction")
	ErrUnsupportedFormat   = errors.New("audio: unsupported clip format")
	ErrPlaybackInterrupted = errors.New("audio: playback interrupted")
)

// Hooks 播放生命周期回调，可能在播放器自己的 goroutine 中触发
type Hooks struct {
	OnEnd   func()
	OnError func(err error)
}

type Player interface {
	// Play 开始播放 clip，返回可控制的 Playback
	// 如果环境不允许出声，返回 ErrPlaybackBlocked
	Play(clip *Clip, hooks Hooks) (Playback, error)
}

type Playback interface {
	Pause()
	Resume()
	Stop()
}

// Unlocker 由需要用户手势才能出声的播放器实现
type Unlocker interface {
	Unlock()
}
