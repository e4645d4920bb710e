package command

import "strings"

type Locale string

const (
	LocaleZH Locale = "zh"
	LocaleEN Locale = "en"
)

// ParseLocale 接受 "zh"、"zh-CN"、"en_US" 等形式
func ParseLocale(s string) (Locale, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[:i]
	}
	switch Locale(s) {
	case LocaleZH:
		return LocaleZH, true
	case LocaleEN:
		return LocaleEN, true
	}
	return "", false
}

type Kind int

const (
	Unknown Kind = iota
	Greet
	Navigate
	ExplainExhibit
)

func (k Kind) String() string {
	switch k {
	case Greet:
		return "greet"
	case Navigate:
		return "navigate"
	case ExplainExhibit:
		return "explain_exhibit"
	}
	return "unknown"
}

// Intent 解析后的指令
// Navigate 使用 Floor，ExplainExhibit 使用 ExhibitRef
type Intent struct {
	Kind       Kind
	Floor      int
	ExhibitRef string
}

func GreetIntent() Intent             { return Intent{Kind: Greet} }
func NavigateIntent(floor int) Intent { return Intent{Kind: Navigate, Floor: floor} }
func ExplainIntent(ref string) Intent { return Intent{Kind: ExplainExhibit, ExhibitRef: ref} }
func UnknownIntent() Intent           { return Intent{} }

// VoiceCommand 一次识别完成的语音指令，不持久化
type VoiceCommand struct {
	RawTranscript  string
	NormalizedText string
	Intent         Intent
	Locale         Locale
}

// Normalize 小写并合并空白
func Normalize(transcript string) string {
	return strings.Join(strings.Fields(strings.ToLower(transcript)), " ")
}
