package navigation

import (
	"errors"
	"fmt"
)

// TourState 导览会话的共享状态，只由 Orchestrator 修改
type TourState struct {
	CurrentFloor       int
	HighlightedExhibit string
	IsGuideSpeaking    bool
	Listening          bool
	// TextOnly 设备不支持语音识别，只能通过文本输入
	TextOnly     bool
	LastResponse string
	LastError    *Error
}

type ErrorKind int

const (
	ErrorValidation ErrorKind = iota + 1
	ErrorSynthesis
	ErrorPlayback
	ErrorRecognition
	ErrorAssistant
	ErrorCatalog
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorValidation:
		return "validation"
	case ErrorSynthesis:
		return "synthesis"
	case ErrorPlayback:
		return "playback"
	case ErrorRecognition:
		return "recognition"
	case ErrorAssistant:
		return "assistant"
	case ErrorCatalog:
		return "catalog"
	}
	return "unknown"
}

// Error 记录在 TourState 中供界面展示，不会从公开方法返回
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("navigation: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var ErrNoVoice = errors.New("navigation: no voice profile available")

// Exhibit 展品信息
type Exhibit struct {
	Ref         string
	Name        string
	Description string
	Floor       int
}
