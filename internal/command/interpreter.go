package command

import (
	"strings"
	"unicode"
)

type Result struct {
	Command  VoiceCommand
	Intent   Intent
	Response string
}

// Interpreter 把识别出的文本映射为 Intent 和回复，无状态
type Interpreter struct {
	table     Table
	responses Responses
	fallback  Locale
}

func NewInterpreter() *Interpreter {
	return &Interpreter{table: DefaultTable, responses: DefaultResponses, fallback: LocaleEN}
}

// NewInterpreterWithTable 使用自定义规则表
func NewInterpreterWithTable(table Table, responses Responses) *Interpreter {
	return &Interpreter{table: table, responses: responses, fallback: LocaleEN}
}

func (i *Interpreter) Interpret(transcript string, locale Locale) Result {
	cmd := VoiceCommand{
		RawTranscript:  transcript,
		NormalizedText: Normalize(transcript),
		Locale:         locale,
	}

	if cmd.NormalizedText != "" {
		for _, rule := range i.table[locale] {
			if rule.match(cmd.NormalizedText) {
				cmd.Intent = rule.Intent
				break
			}
		}
	}

	return Result{
		Command:  cmd,
		Intent:   cmd.Intent,
		Response: i.Respond(cmd.Intent, locale),
	}
}

// Respond 生成 intent 对应的回复
func (i *Interpreter) Respond(in Intent, locale Locale) string {
	if r, ok := i.responses[locale]; ok {
		return r(in)
	}
	if r, ok := i.responses[i.fallback]; ok {
		return r(in)
	}
	return ""
}

var defaultInterpreter = NewInterpreter()

// Interpret 使用默认规则表
func Interpret(transcript string, locale Locale) Result {
	return defaultInterpreter.Interpret(transcript, locale)
}

// containsFold 规则关键词同样小写后比较；纯 ASCII 单词要求词边界，
// 避免 "hey" 命中 "they"
func containsFold(text, kw string) bool {
	kw = strings.ToLower(kw)
	if !isASCIIWord(kw) {
		return strings.Contains(text, kw)
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(kw)
		if boundary(text, idx-1) && boundary(text, end) {
			return true
		}
		start = idx + 1
	}
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return s != ""
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}
