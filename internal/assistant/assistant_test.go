package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/ovenzeze/hugo-tour-guide/internal/command"
)

type fakeModel struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs [][]*schema.Message
}

func (m *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *fakeModel) last() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[len(m.inputs)-1]
}

func TestRespond(t *testing.T) {
	ctx := context.Background()
	fm := &fakeModel{reply: "  <say>The cafe is downstairs.</say>  "}
	r, err := NewWithModel(ctx, fm, Config{History: 1})
	if err != nil {
		t.Fatal(err)
	}

	got, err := r.Respond(ctx, "where is the cafe", command.LocaleEN)
	if err != nil {
		t.Fatal(err)
	}
	if got != "<say>The cafe is downstairs.</say>" {
		t.Fatalf("reply = %q", got)
	}

	in := fm.last()
	if len(in) != 2 || in[0].Role != schema.System || in[0].Content != systemPrompts[command.LocaleEN] {
		t.Fatalf("unexpected input %v", in)
	}
	if in[1].Role != schema.User || in[1].Content != "where is the cafe" {
		t.Fatalf("user message = %v", in[1])
	}

	// 第二轮带上历史，并且使用中文提示词
	if _, err := r.Respond(ctx, "厕所在哪", command.LocaleZH); err != nil {
		t.Fatal(err)
	}
	in = fm.last()
	if len(in) != 4 || in[0].Content != systemPrompts[command.LocaleZH] || in[2].Role != schema.Assistant {
		t.Fatalf("history not included: %v", in)
	}

	// History=1 只保留最近一轮
	if _, err := r.Respond(ctx, "thanks", command.LocaleEN); err != nil {
		t.Fatal(err)
	}
	if in = fm.last(); len(in) != 4 || in[1].Content != "厕所在哪" {
		t.Fatalf("history not trimmed: %v", in)
	}

	r.Reset()
	if _, err := r.Respond(ctx, "hi", command.Locale("fr")); err != nil {
		t.Fatal(err)
	}
	if in = fm.last(); len(in) != 2 || in[0].Content != systemPrompts[command.LocaleEN] {
		t.Fatalf("after reset: %v", in)
	}
}

func TestRespondErrors(t *testing.T) {
	ctx := context.Background()

	fm := &fakeModel{reply: "   "}
	r, err := NewWithModel(ctx, fm, Config{History: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Respond(ctx, "hello", command.LocaleEN); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("err = %v, want ErrEmptyReply", err)
	}

	boom := errors.New("rate limited")
	fm.err = boom
	if _, err := r.Respond(ctx, "hello", command.LocaleEN); err == nil || !strings.Contains(err.Error(), boom.Error()) {
		t.Fatalf("err = %v", err)
	}

	// 失败的轮次不进入历史
	fm.err = nil
	fm.reply = "ok"
	if _, err := r.Respond(ctx, "again", command.LocaleEN); err != nil {
		t.Fatal(err)
	}
	if in := fm.last(); len(in) != 2 {
		t.Fatalf("failed turns leaked into history: %d messages", len(in))
	}
}
