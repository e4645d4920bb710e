package playback

import "fmt"

// State 播放会话的生命周期状态
type State int

const (
	Idle State = iota
	Generating
	Ready
	Playing
	Paused
	PendingUserGesture // 合成完成但运行环境拒绝出声，等待用户交互
	Ended
	Failed
)

var stateNames = map[State]string{
	Idle:               "idle",
	Generating:         "generating",
	Ready:              "ready",
	Playing:            "playing",
	Paused:             "paused",
	PendingUserGesture: "pending_user_gesture",
	Ended:              "ended",
	Failed:             "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal Ended 和 Failed 是终态，进入时释放资源
func (s State) Terminal() bool {
	return s == Ended || s == Failed
}

// Speaking 导游是否处于“正在讲话”的状态
// PendingUserGesture 还没有出声，不算
func (s State) Speaking() bool {
	switch s {
	case Generating, Ready, Playing:
		return true
	}
	return false
}

var transitions = map[State][]State{
	Idle:               {Generating},
	Generating:         {Ready, Failed, Ended},
	Ready:              {Playing, PendingUserGesture, Failed, Ended},
	PendingUserGesture: {Playing, Failed, Ended},
	Playing:            {Paused, Ended, Failed},
	Paused:             {Playing, Ended},
}

// CanTransition 检查 from -> to 是否合法
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
