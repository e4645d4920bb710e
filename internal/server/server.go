package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/cache"
	"github.com/ovenzeze/hugo-tour-guide/internal/config"
	"github.com/ovenzeze/hugo-tour-guide/internal/content"
	"github.com/ovenzeze/hugo-tour-guide/internal/storage"
	"github.com/ovenzeze/hugo-tour-guide/internal/store"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

// Store 服务端用到的持久化操作，*store.Store 满足这个接口
type Store interface {
	Insert(ctx context.Context, entity string, data json.RawMessage) (any, error)
	GuideText(ctx context.Context, id int64) (*store.GuideText, error)
	GuideTextWithPersona(ctx context.Context, id int64) (*store.GuideText, error)
	InsertGuideAudio(ctx context.Context, a *store.GuideAudio) error
	Ping(ctx context.Context) error
}

// ObjectStore *storage.Store 满足这个接口
type ObjectStore interface {
	Bucket() string
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, keys ...string) error
	ListBuckets(ctx context.Context) ([]storage.Bucket, error)
}

// VoiceSource 从合成服务拉取音色列表
type VoiceSource interface {
	Voices(ctx context.Context) ([]tts.VoiceProfile, error)
}

// Docs 站点文档，*content.Library 满足这个接口
type Docs interface {
	Load(path string) (*content.Document, error)
}

// Deps 为 nil 的依赖对应的接口返回 503
type Deps struct {
	Provider    tts.Provider
	Voices      *tts.Registry
	VoiceSource VoiceSource
	Store       Store
	Objects     ObjectStore
	Cache       cache.Cache
	Docs        Docs

	DefaultModelID string
	OutputFormat   string
	ExpectedBucket string

	Now func() time.Time
}

type Server struct {
	app  *fiber.App
	deps Deps
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	if deps.Voices == nil {
		deps.Voices = tts.NewRegistry(tts.DefaultProfiles())
	}
	if deps.DefaultModelID == "" {
		deps.DefaultModelID = tts.ModelMultilingual
	}
	if deps.OutputFormat == "" {
		deps.OutputFormat = "mp3_44100_128"
	}
	if deps.ExpectedBucket == "" {
		deps.ExpectedBucket = storage.ExpectedBucket
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	app := fiber.New(fiber.Config{
		AppName:               "tourguide",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          errorHandler,
	})

	origins := "*"
	if len(cfg.AllowedOrigins) > 0 {
		origins = strings.Join(cfg.AllowedOrigins, ",")
	}
	app.Use(recover.New())
	app.Use(requestLogger)
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin,Content-Type,Accept",
		AllowMethods:  "GET,POST,OPTIONS",
		ExposeHeaders: "Content-Length",
	}))

	s := &Server{app: app, deps: deps}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)
	s.app.Get("/metrics", metricsHandler)

	api := s.app.Group("/api")
	api.Post("/elevenlabs/tts", s.textToSpeech)
	api.Get("/elevenlabs/voices", s.voices)
	api.Post("/ingest", s.ingest)
	api.Post("/ingest-audio", s.ingestAudio)
	api.Post("/generate-audio", s.generateAudio)
	api.Get("/storage-check", s.storageCheck)
	api.Get("/content/*", s.document)
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	logrus.Infof("server: listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// errorBody 前端依赖的错误格式
type errorBody struct {
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
}

func fail(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(errorBody{StatusCode: code, StatusMessage: msg})
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		logrus.WithField("path", c.Path()).Errorf("server: %v", err)
	}
	return fail(c, code, err.Error())
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	logrus.WithFields(logrus.Fields{
		"method":  c.Method(),
		"path":    c.Path(),
		"status":  c.Response().StatusCode(),
		"latency": time.Since(start).String(),
	}).Debug("server: request")
	return err
}
