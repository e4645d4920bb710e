package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ovenzeze/hugo-tour-guide/internal/cache"
	"github.com/ovenzeze/hugo-tour-guide/internal/content"
	"github.com/ovenzeze/hugo-tour-guide/internal/server"
	"github.com/ovenzeze/hugo-tour-guide/internal/storage"
	"github.com/ovenzeze/hugo-tour-guide/internal/store"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts/elevenlabs"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides http.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	voices := cfg.Registry()
	def, _ := voices.Default()

	el := elevenlabs.NewClient(elevenlabs.Config{
		APIKey:         cfg.ElevenLabs.APIKey,
		BaseURL:        cfg.ElevenLabs.BaseURL,
		DefaultVoiceID: def.ID,
		DefaultModelID: cfg.ElevenLabs.DefaultModelID,
		OutputFormat:   cfg.ElevenLabs.OutputFormat,
		Timeout:        cfg.ElevenLabs.Timeout,
	})
	if cfg.ElevenLabs.APIKey == "" {
		logrus.Warn("serve: ELEVENLABS_API_KEY not set, speech synthesis will fail")
	}

	audioCache := cache.New(cfg.Redis.URL, cfg.Redis.CleanupInterval)
	defer audioCache.Close()

	deps := server.Deps{
		Provider:       tts.NewCachedProvider(el, audioCache, cfg.ElevenLabs.CacheTTL),
		Voices:         voices,
		VoiceSource:    el,
		Cache:          audioCache,
		DefaultModelID: cfg.ElevenLabs.DefaultModelID,
		OutputFormat:   cfg.ElevenLabs.OutputFormat,
		ExpectedBucket: cfg.Storage.ExpectedBucket,
	}

	if cfg.Database.URL != "" {
		db, err := store.Open(store.Config{
			URL:          cfg.Database.URL,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			MaxOpenConns: cfg.Database.MaxOpenConns,
			LogLevel:     cfg.Database.LogLevel,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Store = db
	} else {
		logrus.Warn("serve: DATABASE_URL not set, ingestion and audio generation disabled")
	}

	if cfg.Storage.Endpoint != "" {
		deps.Objects = storage.New(storage.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			UsePathStyle:    cfg.Storage.UsePathStyle,
		})
	} else {
		logrus.Warn("serve: storage endpoint not set, audio uploads disabled")
	}

	if fi, err := os.Stat(cfg.Content.Dir); err == nil && fi.IsDir() {
		deps.Docs = content.New(os.DirFS(cfg.Content.Dir))
	} else {
		logrus.Warnf("serve: content dir %q not found, /api/content disabled", cfg.Content.Dir)
	}

	srv := server.New(cfg.HTTP, deps)

	addr := cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
