package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ovenzeze/hugo-tour-guide/internal/assistant"
	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/cache"
	"github.com/ovenzeze/hugo-tour-guide/internal/command"
	"github.com/ovenzeze/hugo-tour-guide/internal/navigation"
	"github.com/ovenzeze/hugo-tour-guide/internal/playback"
	"github.com/ovenzeze/hugo-tour-guide/internal/recognition"
	"github.com/ovenzeze/hugo-tour-guide/internal/store"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts/apiclient"
)

var (
	guideLocale    string
	guideNoWelcome bool
)

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Run the kiosk voice guide",
	Long: `Run the kiosk voice guide.

Visitor speech comes from the recognition websocket when recognition.url is
set, otherwise each line typed on stdin is treated as one utterance. Lines
starting with "/" control the guide:

  /touch           the visitor touched the kiosk (unlocks audio)
  /pause /resume /stop
  /lang zh|en      switch language
  /state           print the tour state`,
	RunE: runGuide,
}

func init() {
	guideCmd.Flags().StringVar(&guideLocale, "locale", "", "guide language (overrides guide.locale)")
	guideCmd.Flags().BoolVar(&guideNoWelcome, "no-welcome", false, "skip the welcome introduction")
	rootCmd.AddCommand(guideCmd)
}

func runGuide(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	localeName := cfg.Guide.Locale
	if guideLocale != "" {
		localeName = guideLocale
	}
	locale, ok := command.ParseLocale(localeName)
	if !ok {
		return fmt.Errorf("unsupported locale %q", localeName)
	}

	audioCache := cache.New(cfg.Redis.URL, cfg.Redis.CleanupInterval)
	defer audioCache.Close()
	provider := tts.NewCachedProvider(apiclient.New(cfg.Guide.APIURL, cfg.Guide.SynthesisTimeout), audioCache, cfg.ElevenLabs.CacheTTL)

	speaker := audio.NewSpeaker(audio.SpeakerConfig{
		SampleRate:     cfg.Guide.SampleRate,
		RequireGesture: cfg.Guide.RequireGesture,
	})

	var listener recognition.Listener = recognition.NewConsole(os.Stdin)
	if cfg.Recognition.URL != "" {
		listener = recognition.NewRemote(recognition.RemoteConfig{
			URL:      cfg.Recognition.URL,
			Language: cfg.Recognition.Language,
			Token:    cfg.Recognition.Token,
			Interim:  cfg.Recognition.Interim,
		})
	}
	controls := &kioskControls{Listener: listener}

	var opts []navigation.Option
	if cfg.Database.URL != "" {
		db, err := store.Open(store.Config{URL: cfg.Database.URL, LogLevel: cfg.Database.LogLevel})
		if err != nil {
			logrus.Warnf("guide: exhibit catalogue unavailable: %v", err)
		} else {
			defer db.Close()
			opts = append(opts, navigation.WithCatalog(store.NewCatalog(db, cfg.Guide.MuseumID)))
		}
	}
	if cfg.Assistant.Enabled {
		r, err := assistant.New(ctx, assistant.Config{
			BaseURL: cfg.Assistant.BaseURL,
			Model:   cfg.Assistant.Model,
			APIKey:  cfg.Assistant.APIKey,
			Timeout: cfg.Assistant.Timeout,
			History: cfg.Assistant.History,
		})
		if err != nil {
			return err
		}
		opts = append(opts, navigation.WithResponder(r))
	}

	welcome := make(map[command.Locale]string, len(cfg.Guide.Welcome))
	for k, v := range cfg.Guide.Welcome {
		if l, ok := command.ParseLocale(k); ok {
			welcome[l] = v
		}
	}

	o := navigation.NewOrchestrator(navigation.Config{
		Locale:         locale,
		DefaultVoiceID: cfg.Guide.DefaultVoiceID,
		Welcome:        welcome,
		Playback:       []playback.Option{playback.WithSynthesisTimeout(cfg.Guide.SynthesisTimeout)},
	}, provider, speaker, controls, cfg.Registry(), opts...)
	controls.o = o
	defer o.Close()

	if !guideNoWelcome {
		o.PlayWelcomeIntroduction(ctx)
	}
	o.StartListening(ctx)

	st := o.State()
	if st.TextOnly {
		logrus.Warn("guide: running in text-only mode")
	}
	logrus.WithField("locale", locale).Info("guide: ready")

	<-ctx.Done()
	logrus.Info("guide: shutting down")
	return nil
}

// kioskControls 在识别结果进入导览之前处理 "/" 开头的控制命令
// 文本输入本身也算一次用户交互
type kioskControls struct {
	recognition.Listener
	o *navigation.Orchestrator
}

func (k *kioskControls) Start(ctx context.Context, h recognition.Handler) error {
	next := h.OnResult
	h.OnResult = func(r recognition.Result) {
		if r.Final {
			k.o.NotifyUserInteraction()
			if verb, arg, ok := parseControl(r.Transcript); ok {
				k.control(verb, arg)
				return
			}
		}
		next(r)
	}
	return k.Listener.Start(ctx, h)
}

func (k *kioskControls) control(verb, arg string) {
	switch verb {
	case "touch":
	case "pause":
		k.o.Pause()
	case "resume":
		k.o.Resume()
	case "stop":
		k.o.Stop()
	case "lang":
		if l, ok := command.ParseLocale(arg); ok {
			k.o.SetLocale(l)
			logrus.Infof("guide: locale set to %s", l)
		} else {
			logrus.Warnf("guide: unsupported locale %q", arg)
		}
	case "state":
		st := k.o.State()
		fmt.Printf("floor=%d exhibit=%q speaking=%v listening=%v text_only=%v\n",
			st.CurrentFloor, st.HighlightedExhibit, st.IsGuideSpeaking, st.Listening, st.TextOnly)
		if st.LastError != nil {
			fmt.Printf("last error: %v\n", st.LastError)
		}
	default:
		logrus.Warnf("guide: unknown control /%s", verb)
	}
}

func parseControl(line string) (verb, arg string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return "", "", false
	}
	verb = strings.ToLower(fields[0])
	if len(fields) > 1 {
		arg = fields[1]
	}
	return verb, arg, true
}
