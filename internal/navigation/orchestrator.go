package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/command"
	"github.com/ovenzeze/hugo-tour-guide/internal/metrics"
	"github.com/ovenzeze/hugo-tour-guide/internal/playback"
	"github.com/ovenzeze/hugo-tour-guide/internal/recognition"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

// Catalog 按引用查找展品
type Catalog interface {
	Exhibit(ctx context.Context, ref string) (Exhibit, bool, error)
}

// Responder 对规则无法识别的话给出回复，回复中可以带控制标签
type Responder interface {
	Respond(ctx context.Context, transcript string, locale command.Locale) (string, error)
}

type Config struct {
	Locale         command.Locale
	DefaultVoiceID string
	// Welcome 按语种覆盖欢迎词
	Welcome map[command.Locale]string
	// Playback 传给播放控制器的选项
	Playback []playback.Option
}

type Option func(*Orchestrator)

func WithCatalog(c Catalog) Option { return func(o *Orchestrator) { o.catalog = c } }

func WithResponder(r Responder) Option { return func(o *Orchestrator) { o.responder = r } }

func WithInterpreter(i *command.Interpreter) Option {
	return func(o *Orchestrator) { o.interpreter = i }
}

// Orchestrator 识别 -> 解析 -> 合成 -> 播放 的主循环
// 所有错误都记录到 TourState.LastError，公开方法不返回错误
type Orchestrator struct {
	cfg         Config
	voices      *tts.Registry
	listener    recognition.Listener
	player      *playback.Controller
	interpreter *command.Interpreter
	catalog     Catalog
	responder   Responder

	mu        sync.Mutex
	state     TourState
	currentID string
	// turn 每个新请求加一，旧请求不能再开始讲解
	turn        uint64
	turnChanged chan struct{}
	resumed     chan struct{}

	closeOnce sync.Once
}

func NewOrchestrator(cfg Config, provider tts.Provider, out audio.Player, listener recognition.Listener, voices *tts.Registry, opts ...Option) *Orchestrator {
	if cfg.Locale == "" {
		cfg.Locale = command.LocaleZH
	}
	if listener == nil {
		listener = recognition.Unavailable{}
	}
	o := &Orchestrator{
		cfg:         cfg,
		voices:      voices,
		listener:    listener,
		interpreter: command.NewInterpreter(),
		turnChanged: make(chan struct{}),
		resumed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	popts := append([]playback.Option{playback.WithListener(o.onPlaybackEvent)}, cfg.Playback...)
	o.player = playback.NewController(provider, out, popts...)
	return o
}

// State 返回状态快照
func (o *Orchestrator) State() TourState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) Locale() command.Locale {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg.Locale
}

func (o *Orchestrator) SetLocale(l command.Locale) {
	o.mu.Lock()
	o.cfg.Locale = l
	o.mu.Unlock()
}

// beginTurn 开始一个新请求，之前未完成的请求全部作废
func (o *Orchestrator) beginTurn() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.turn++
	close(o.turnChanged)
	o.turnChanged = make(chan struct{})
	return o.turn
}

func (o *Orchestrator) isCurrentTurn(turn uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.turn == turn
}

// updateTurn 只有 turn 仍是最新请求时才修改状态
func (o *Orchestrator) updateTurn(turn uint64, update func(st *TourState)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.turn != turn {
		return false
	}
	update(&o.state)
	return true
}

// OnTranscriptFinalized 每个最终识别结果调用一次，新的识别结果会取代还没说完的回复
func (o *Orchestrator) OnTranscriptFinalized(ctx context.Context, transcript string) {
	if strings.TrimSpace(transcript) == "" {
		return
	}
	o.handleTranscript(ctx, o.beginTurn(), transcript)
}

func (o *Orchestrator) handleTranscript(ctx context.Context, turn uint64, transcript string) {
	locale := o.Locale()
	res := o.interpreter.Interpret(transcript, locale)
	metrics.VoiceCommandsTotal.WithLabelValues(res.Intent.Kind.String(), string(locale)).Inc()

	logrus.WithFields(logrus.Fields{
		"intent": res.Intent.Kind,
		"locale": locale,
	}).Infof("navigation: %q", res.Command.NormalizedText)

	var deferred *Error

	switch res.Intent.Kind {
	case command.Navigate:
		o.updateTurn(turn, func(st *TourState) { st.CurrentFloor = res.Intent.Floor })

	case command.ExplainExhibit:
		ex, ok, err := o.lookupExhibit(ctx, o.State().HighlightedExhibit, res.Intent.ExhibitRef)
		if ok {
			o.explain(ctx, turn, ex)
			return
		}
		if err != nil {
			deferred = &Error{Kind: ErrorCatalog, Op: "lookup exhibit", Err: err}
		}
		o.updateTurn(turn, func(st *TourState) { st.HighlightedExhibit = res.Intent.ExhibitRef })

	case command.Unknown:
		if o.responder != nil {
			reply, err := o.responder.Respond(ctx, transcript, locale)
			if err == nil && strings.TrimSpace(reply) != "" {
				o.dispatchReply(ctx, turn, reply)
				return
			}
			if err != nil {
				deferred = &Error{Kind: ErrorAssistant, Op: "respond", Err: err}
			}
		}
	}

	o.speak(ctx, turn, res.Response, "")

	// 退回规则回复之后再记录，speak 会清掉上一次的错误
	if deferred != nil {
		o.updateTurn(turn, func(st *TourState) { st.LastError = deferred })
		logrus.Warn(deferred.Error())
	}
}

// lookupExhibit 依次尝试当前高亮的展品和指令里的展品
func (o *Orchestrator) lookupExhibit(ctx context.Context, refs ...string) (Exhibit, bool, error) {
	if o.catalog == nil {
		return Exhibit{}, false, nil
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		ex, ok, err := o.catalog.Exhibit(ctx, ref)
		if err != nil || ok {
			return ex, ok, err
		}
	}
	return Exhibit{}, false, nil
}

// Speak 合成并播放 text，voiceID 为空时使用当前语种的默认音色
// 返回时讲解已经开始播放（或在等待用户交互）
func (o *Orchestrator) Speak(ctx context.Context, text string, voiceID ...string) {
	if strings.TrimSpace(text) == "" {
		o.fail(ErrorValidation, "speak", tts.ErrEmptyText)
		return
	}
	id := ""
	if len(voiceID) > 0 {
		id = voiceID[0]
	}
	o.speak(ctx, o.beginTurn(), text, id)
}

// speak 返回开始播放的会话，失败或请求已过期时返回 nil
func (o *Orchestrator) speak(ctx context.Context, turn uint64, text, voiceID string) *playback.Session {
	if strings.TrimSpace(text) == "" {
		o.fail(ErrorValidation, "speak", tts.ErrEmptyText)
		return nil
	}
	voice, ok := o.resolveVoice(voiceID)
	if !ok {
		o.fail(ErrorValidation, "speak", ErrNoVoice)
		return nil
	}

	// 在 Controller 登记会话的同时确认请求没有过期
	admit := func() bool {
		return o.updateTurn(turn, func(st *TourState) {
			st.LastResponse = text
			st.LastError = nil
		})
	}

	s, err := o.player.StartSessionWhen(ctx, text, voice, admit)
	if err == nil {
		return s
	}

	switch {
	case errors.Is(err, playback.ErrNotAdmitted):
		logrus.Debug("navigation: dropping reply of an overtaken request")
		return nil
	case errors.Is(err, playback.ErrSynthesis):
		o.fail(ErrorSynthesis, "speak", err)
	case errors.Is(err, playback.ErrValidation):
		o.fail(ErrorValidation, "speak", err)
	default:
		o.fail(ErrorPlayback, "speak", err)
	}

	// 失败事件已经清除了状态，这里兜底
	if !o.player.Speaking() {
		o.mu.Lock()
		o.state.IsGuideSpeaking = false
		o.mu.Unlock()
	}
	return nil
}

// resolveVoice 指定 id -> 当前语种默认 -> 全局默认
func (o *Orchestrator) resolveVoice(id string) (tts.VoiceProfile, bool) {
	if o.voices == nil {
		return tts.VoiceProfile{}, false
	}
	if id == "" {
		id = o.cfg.DefaultVoiceID
	}
	if id != "" {
		if v, ok := o.voices.FindByID(id); ok {
			return v, true
		}
		logrus.Warnf("navigation: unknown voice %q, falling back to default", id)
	}
	if v, ok := o.voices.DefaultForLanguage(string(o.Locale())); ok {
		return v, true
	}
	return o.voices.Default()
}

// ExplainExhibit 讲解展品，没有描述时使用通用介绍
func (o *Orchestrator) ExplainExhibit(ctx context.Context, ex Exhibit) {
	o.explain(ctx, o.beginTurn(), ex)
}

func (o *Orchestrator) explain(ctx context.Context, turn uint64, ex Exhibit) {
	ref := ex.Ref
	if ref == "" {
		ref = ex.Name
	}
	ok := o.updateTurn(turn, func(st *TourState) {
		st.HighlightedExhibit = ref
		if ex.Floor > 0 {
			st.CurrentFloor = ex.Floor
		}
	})
	if ok {
		o.speak(ctx, turn, describe(o.Locale(), ex), "")
	}
}

func describe(locale command.Locale, ex Exhibit) string {
	name := strings.TrimSpace(ex.Name)
	if name == "" {
		name = ex.Ref
	}
	desc := strings.TrimSpace(ex.Description)

	if locale == command.LocaleZH {
		if desc == "" {
			return fmt.Sprintf("这是%s，一件值得细细欣赏的展品。", name)
		}
		return fmt.Sprintf("这是%s。%s", name, desc)
	}
	if desc == "" {
		return fmt.Sprintf("This is %s, a remarkable piece worth a closer look.", name)
	}
	return fmt.Sprintf("This is %s. %s", name, desc)
}

var defaultWelcome = map[command.Locale]string{
	command.LocaleZH: "欢迎来到博物馆！我是你的语音导游，你可以随时对我说“去二楼”或者“介绍这幅画”。",
	command.LocaleEN: "Welcome to the museum! I'm your voice guide. Ask me to go to floor 2 or to tell you about a painting at any time.",
}

func (o *Orchestrator) PlayWelcomeIntroduction(ctx context.Context) {
	locale := o.Locale()
	text, ok := o.cfg.Welcome[locale]
	if !ok {
		text, ok = defaultWelcome[locale]
	}
	if !ok {
		text = defaultWelcome[command.LocaleEN]
	}
	o.Speak(ctx, text)
}

// StartListening 开始语音识别，不支持时退化为纯文本输入
func (o *Orchestrator) StartListening(ctx context.Context) {
	if !o.listener.Supported() {
		logrus.Warn("navigation: speech recognition unavailable, text input only")
		o.mu.Lock()
		o.state.TextOnly = true
		o.mu.Unlock()
		return
	}

	err := o.listener.Start(ctx, recognition.Handler{
		// 识别器的投递 goroutine 不能被合成阻塞，否则后面的话和控制命令都读不到
		OnResult: func(r recognition.Result) {
			if !r.Final || strings.TrimSpace(r.Transcript) == "" {
				return
			}
			turn := o.beginTurn()
			go o.handleTranscript(ctx, turn, r.Transcript)
		},
		OnError: func(err error) {
			o.fail(ErrorRecognition, "listen", err)
		},
		OnEnd: func() {
			o.mu.Lock()
			o.state.Listening = false
			o.mu.Unlock()
		},
	})
	if err != nil {
		if errors.Is(err, recognition.ErrAlreadyStarted) {
			return
		}
		o.fail(ErrorRecognition, "start listening", err)
		return
	}

	o.mu.Lock()
	o.state.Listening = true
	o.mu.Unlock()
}

func (o *Orchestrator) StopListening() {
	o.listener.Stop()
	o.mu.Lock()
	o.state.Listening = false
	o.mu.Unlock()
}

// NotifyUserInteraction 用户触摸了设备，之前被拦下的讲解会继续播放
func (o *Orchestrator) NotifyUserInteraction() {
	o.player.UserInteracted()
}

func (o *Orchestrator) Pause() { o.player.Pause() }

// Resume 继续暂停的讲解，也会唤醒在 <pause/> 处等待的回复
func (o *Orchestrator) Resume() {
	o.player.Resume()
	o.mu.Lock()
	close(o.resumed)
	o.resumed = make(chan struct{})
	o.mu.Unlock()
}

// Stop 结束当前讲解，还没说完的回复一并作废
func (o *Orchestrator) Stop() {
	o.beginTurn()
	o.player.Stop()
}

// Close 停止播放和识别，可以重复调用
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.beginTurn()
		o.player.Close()
		o.listener.Stop()
		o.mu.Lock()
		o.state.Listening = false
		o.state.IsGuideSpeaking = false
		o.mu.Unlock()
		logrus.Info("navigation: orchestrator closed")
	})
}

// onPlaybackEvent 只根据当前会话的事件更新 IsGuideSpeaking
func (o *Orchestrator) onPlaybackEvent(e playback.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if e.Type == playback.EventStarted {
		o.currentID = e.SessionID
		o.state.IsGuideSpeaking = true
		return
	}
	if e.SessionID != o.currentID {
		return
	}

	switch e.Type {
	case playback.EventPlaying:
		o.state.IsGuideSpeaking = true
	case playback.EventPaused, playback.EventBlocked:
		o.state.IsGuideSpeaking = false
	case playback.EventEnded:
		// 被新请求取代的会话结束时，新的讲解已经在准备
		if errors.Is(e.Err, playback.ErrSuperseded) {
			return
		}
		o.state.IsGuideSpeaking = false
	case playback.EventFailed:
		o.state.IsGuideSpeaking = false
		kind := ErrorPlayback
		if errors.Is(e.Err, playback.ErrSynthesis) {
			kind = ErrorSynthesis
		}
		o.state.LastError = &Error{Kind: kind, Op: "playback", Err: e.Err}
	}
}

func (o *Orchestrator) fail(kind ErrorKind, op string, err error) {
	e := &Error{Kind: kind, Op: op, Err: err}
	logrus.Warn(e.Error())
	o.mu.Lock()
	o.state.LastError = e
	o.mu.Unlock()
}

// dispatchReply 按顺序执行助手回复中的控制标签，没有标签时整段朗读
func (o *Orchestrator) dispatchReply(ctx context.Context, turn uint64, reply string) {
	steps := parseReply(reply)
	if steps == nil {
		o.speak(ctx, turn, strings.TrimSpace(reply), "")
		return
	}
	o.runScript(ctx, turn, steps, false)
}
