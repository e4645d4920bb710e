package command

import "fmt"

// Rule 任意一个关键词是子串即命中
type Rule struct {
	Keywords []string
	Intent   Intent
}

func (r Rule) match(text string) bool {
	for _, kw := range r.Keywords {
		if containsFold(text, kw) {
			return true
		}
	}
	return false
}

// Table 每个语种按顺序检查的规则：问候、楼层、展品
type Table map[Locale][]Rule

// 楼层只支持固定的几层，扩展楼层需要在这里加关键词
var DefaultTable = Table{
	LocaleZH: {
		{Keywords: []string{"你好", "您好", "嗨", "早上好", "下午好"}, Intent: GreetIntent()},
		{Keywords: []string{"一楼", "1楼", "一层", "第一层"}, Intent: NavigateIntent(1)},
		{Keywords: []string{"二楼", "2楼", "二层", "第二层"}, Intent: NavigateIntent(2)},
		{Keywords: []string{"绘画", "画作", "这幅画", "油画"}, Intent: ExplainIntent(RefPainting)},
		{Keywords: []string{"雕塑", "雕像"}, Intent: ExplainIntent(RefSculpture)},
		{Keywords: []string{"展品", "文物", "这件", "介绍"}, Intent: ExplainIntent(RefExhibit)},
	},
	LocaleEN: {
		{Keywords: []string{"hello", "hey", "good morning", "good afternoon", "greetings"}, Intent: GreetIntent()},
		{Keywords: []string{"first floor", "floor 1", "floor one", "ground floor", "level 1"}, Intent: NavigateIntent(1)},
		{Keywords: []string{"second floor", "floor 2", "floor two", "level 2"}, Intent: NavigateIntent(2)},
		{Keywords: []string{"painting", "portrait", "canvas"}, Intent: ExplainIntent(RefPainting)},
		{Keywords: []string{"sculpture", "statue"}, Intent: ExplainIntent(RefSculpture)},
		{Keywords: []string{"exhibit", "artwork", "artifact", "tell me about"}, Intent: ExplainIntent(RefExhibit)},
	},
}

// 展品类别
const (
	RefPainting  = "painting"
	RefSculpture = "sculpture"
	RefExhibit   = "exhibit"
)

var refNames = map[Locale]map[string]string{
	LocaleZH: {RefPainting: "画作", RefSculpture: "雕塑", RefExhibit: "展品"},
	LocaleEN: {RefPainting: "painting", RefSculpture: "sculpture", RefExhibit: "exhibit"},
}

// Responses 每个语种的回复模板
type Responses map[Locale]func(Intent) string

var DefaultResponses = Responses{
	LocaleZH: func(in Intent) string {
		switch in.Kind {
		case Greet:
			return "你好！我是你的博物馆导游，有什么可以帮你的吗？"
		case Navigate:
			return fmt.Sprintf("好的，我们现在前往%d楼。", in.Floor)
		case ExplainExhibit:
			return fmt.Sprintf("让我为你介绍这件%s。", refName(LocaleZH, in.ExhibitRef))
		}
		return "抱歉，我没有听懂。你可以说“去二楼”或者“介绍这幅画”。"
	},
	LocaleEN: func(in Intent) string {
		switch in.Kind {
		case Greet:
			return "Hello! I'm your museum guide. How can I help you?"
		case Navigate:
			return fmt.Sprintf("Sure, let's head to floor %d.", in.Floor)
		case ExplainExhibit:
			return fmt.Sprintf("Let me tell you about this %s.", refName(LocaleEN, in.ExhibitRef))
		}
		return `Sorry, I didn't catch that. You can say "go to floor 2" or "tell me about this painting".`
	},
}

func refName(l Locale, ref string) string {
	if name, ok := refNames[l][ref]; ok {
		return name
	}
	return ref
}
