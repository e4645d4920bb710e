package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/command"
)

var ErrEmptyReply = errors.New("assistant: empty reply")

type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
	// History 保留的对话轮数，0 表示不保留
	History int
}

// 回复会直接交给语音合成，控制标签由导航层执行
var systemPrompts = map[command.Locale]string{
	command.LocaleZH: `你是一位博物馆语音导游。你的回复会通过语音播放给游客，请简短、口语化，不要使用列表或 Markdown。
把要朗读的内容放在 <say></say> 标签里。需要停下来等游客时输出 <pause/>，继续输出 <resume/>，结束讲解输出 <stop/>。
不知道的事情直接说不知道，不要编造展品信息。`,
	command.LocaleEN: `You are a museum voice guide. Your replies are played to visitors as speech, so keep them short and conversational with no lists or Markdown.
Wrap everything you want spoken in <say></say> tags. Emit <pause/> to wait for the visitor, <resume/> to continue and <stop/> to end the explanation.
If you do not know something, say so. Never invent exhibit details.`,
}

// Responder 用大模型回答规则无法识别的问题
type Responder struct {
	runnable compose.Runnable[[]*schema.Message, *schema.Message]
	timeout  time.Duration
	history  int

	mu    sync.Mutex
	turns []*schema.Message
}

func New(ctx context.Context, cfg Config) (*Responder, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("assistant: new chat model: %w", err)
	}
	return NewWithModel(ctx, cm, cfg)
}

// NewWithModel 使用已经创建好的模型
func NewWithModel(ctx context.Context, cm model.BaseChatModel, cfg Config) (*Responder, error) {
	chain := compose.NewChain[[]*schema.Message, *schema.Message]()
	chain.AppendChatModel(cm, compose.WithNodeName("chat_model"))
	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("assistant: compile chain: %w", err)
	}
	return &Responder{
		runnable: runnable,
		timeout:  cfg.Timeout,
		history:  cfg.History,
	}, nil
}

func (r *Responder) Respond(ctx context.Context, transcript string, locale command.Locale) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	user := schema.UserMessage(transcript)
	msg, err := r.runnable.Invoke(ctx, r.messages(locale, user))
	if err != nil {
		return "", fmt.Errorf("assistant: generate: %w", err)
	}
	reply := strings.TrimSpace(msg.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}

	r.remember(user, schema.AssistantMessage(reply, nil))
	logrus.WithField("locale", locale).Debugf("assistant: reply %q", reply)
	return reply, nil
}

// Reset 清空对话历史，新游客开始导览时调用
func (r *Responder) Reset() {
	r.mu.Lock()
	r.turns = nil
	r.mu.Unlock()
}

func (r *Responder) messages(locale command.Locale, user *schema.Message) []*schema.Message {
	prompt, ok := systemPrompts[locale]
	if !ok {
		prompt = systemPrompts[command.LocaleEN]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]*schema.Message, 0, len(r.turns)+2)
	msgs = append(msgs, schema.SystemMessage(prompt))
	msgs = append(msgs, r.turns...)
	return append(msgs, user)
}

func (r *Responder) remember(user, reply *schema.Message) {
	if r.history <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, user, reply)
	if max := r.history * 2; len(r.turns) > max {
		r.turns = append([]*schema.Message(nil), r.turns[len(r.turns)-max:]...)
	}
}
