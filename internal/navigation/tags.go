package navigation

import (
	"regexp"
	"strings"
)

type TagCallbacks struct {
	OnStart  func(attrs map[string]string)
	OnMiddle func(text string)
	OnEnd    func()
}

type registeredTag struct {
	name string
	cb   TagCallbacks
}

// TagParser 流式解析助手回复中的控制标签
// 支持 <say voice="...">文本</say> 这样的成对标签和 <pause/> 这样的自闭合标签
type TagParser struct {
	tags      map[string]registeredTag
	buffer    string
	activeTag *registeredTag
	seen      int
}

func NewTagParser() *TagParser {
	return &TagParser{
		tags: make(map[string]registeredTag),
	}
}

func (p *TagParser) RegisterTag(name string, cb TagCallbacks) {
	p.tags[name] = registeredTag{name: name, cb: cb}
}

var startTagRe = regexp.MustCompile(`^<([a-zA-Z0-9]+)([^>]*)>`)
var endTagRe = regexp.MustCompile(`^</([a-zA-Z0-9]+)>`)
var attrRe = regexp.MustCompile(`([a-zA-Z0-9_-]+)="([^"]*)"`)

func parseAttrs(s string) map[string]string {
	m := make(map[string]string)
	for _, a := range attrRe.FindAllStringSubmatch(s, -1) {
		m[a[1]] = a[2]
	}
	return m
}

func (p *TagParser) Feed(chunk string) {
	p.buffer += chunk
	p.parse()
}

// Close 输入结束，未闭合的标签按已收到的内容结束
func (p *TagParser) Close() {
	if p.activeTag != nil {
		if p.buffer != "" && p.activeTag.cb.OnMiddle != nil {
			p.activeTag.cb.OnMiddle(p.buffer)
		}
		if p.activeTag.cb.OnEnd != nil {
			p.activeTag.cb.OnEnd()
		}
		p.activeTag = nil
	}
	p.buffer = ""
}

// Seen 已识别的注册标签数量
func (p *TagParser) Seen() int {
	return p.seen
}

func (p *TagParser) parse() {
	for {
		if p.activeTag == nil {
			i := strings.Index(p.buffer, "<")
			if i == -1 {
				p.buffer = ""
				return
			}

			// 标签外的纯文本丢弃
			if i > 0 {
				p.buffer = p.buffer[i:]
			}

			m := startTagRe.FindStringSubmatch(p.buffer)
			if m == nil {
				if strings.Contains(p.buffer, ">") {
					// 不是合法标签，跳过这个 '<'
					p.buffer = p.buffer[1:]
					continue
				}
				return
			}

			name := m[1]
			rawAttrs := strings.TrimSpace(m[2])
			selfClosing := strings.HasSuffix(rawAttrs, "/")
			p.buffer = p.buffer[len(m[0]):]

			tag, ok := p.tags[name]
			if !ok {
				if selfClosing {
					continue
				}
				// 未注册的标签连同内容一起跳过
				endPattern := "</" + name + ">"
				endIdx := strings.Index(p.buffer, endPattern)
				if endIdx == -1 {
					p.buffer = "<" + name + ">" + p.buffer
					return
				}
				p.buffer = p.buffer[endIdx+len(endPattern):]
				continue
			}

			p.seen++
			attrs := parseAttrs(strings.TrimSuffix(rawAttrs, "/"))
			if tag.cb.OnStart != nil {
				tag.cb.OnStart(attrs)
			}
			if selfClosing {
				if tag.cb.OnEnd != nil {
					tag.cb.OnEnd()
				}
				continue
			}
			p.activeTag = &tag
			continue
		}

		endIdx := strings.Index(p.buffer, "</")
		if endIdx == -1 {
			// 可能是被截断的结束标签，留到下次
			keep := strings.LastIndex(p.buffer, "<")
			text := p.buffer
			if keep >= 0 {
				text, p.buffer = p.buffer[:keep], p.buffer[keep:]
			} else {
				p.buffer = ""
			}
			if text != "" && p.activeTag.cb.OnMiddle != nil {
				p.activeTag.cb.OnMiddle(text)
			}
			return
		}

		if endIdx > 0 {
			if p.activeTag.cb.OnMiddle != nil {
				p.activeTag.cb.OnMiddle(p.buffer[:endIdx])
			}
			p.buffer = p.buffer[endIdx:]
		}

		m := endTagRe.FindStringSubmatch(p.buffer)
		if m == nil {
			if strings.Contains(p.buffer, ">") {
				// 不认识的结束写法当作正文
				if p.activeTag.cb.OnMiddle != nil {
					p.activeTag.cb.OnMiddle(p.buffer[:2])
				}
				p.buffer = p.buffer[2:]
				continue
			}
			return
		}

		if p.activeTag.name == m[1] {
			if p.activeTag.cb.OnEnd != nil {
				p.activeTag.cb.OnEnd()
			}
			p.activeTag = nil
		}
		p.buffer = p.buffer[len(m[0]):]
	}
}
