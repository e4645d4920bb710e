package playback

type EventType int

const (
	EventStarted EventType = iota // 会话创建，进入 Generating
	EventPlaying
	EventPaused
	EventBlocked // 进入 PendingUserGesture
	EventEnded
	EventFailed
)

var eventNames = [...]string{"started", "playing", "paused", "blocked", "ended", "failed"}

func (t EventType) String() string {
	if int(t) >= 0 && int(t) < len(eventNames) {
		return eventNames[t]
	}
	return "unknown"
}

// Event 会话状态变化通知
// Err 在 ended（被打断时为 ErrSuperseded）和 failed 时携带原因
type Event struct {
	Type      EventType
	SessionID string
	State     State
	Err       error
}

// Listener 按发生顺序串行收到事件
type Listener func(Event)
