package config

import (
	"time"

	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Log         LogConfig         `mapstructure:"log"`
	ElevenLabs  ElevenLabsConfig  `mapstructure:"elevenlabs"`
	Voices      VoicesConfig      `mapstructure:"voices"`
	Guide       GuideConfig       `mapstructure:"guide"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Content     ContentConfig     `mapstructure:"content"`
	Assistant   AssistantConfig   `mapstructure:"assistant"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	BodyLimit      int           `mapstructure:"body_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

type ElevenLabsConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	DefaultModelID string        `mapstructure:"default_model_id"`
	OutputFormat   string        `mapstructure:"output_format"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

type VoicesConfig struct {
	// Replace 为 true 时只使用配置里的音色，否则追加到预置音色之后
	Replace  bool               `mapstructure:"replace"`
	Profiles []tts.VoiceProfile `mapstructure:"profiles"`
}

type GuideConfig struct {
	Locale         string            `mapstructure:"locale"`
	DefaultVoiceID string            `mapstructure:"default_voice_id"`
	MuseumID       int64             `mapstructure:"museum_id"`
	Welcome        map[string]string `mapstructure:"welcome"`
	// APIURL 合成请求发往的 API 服务
	APIURL           string        `mapstructure:"api_url"`
	RequireGesture   bool          `mapstructure:"require_gesture"`
	SampleRate       int           `mapstructure:"sample_rate"`
	SynthesisTimeout time.Duration `mapstructure:"synthesis_timeout"`
}

type RecognitionConfig struct {
	URL      string `mapstructure:"url"`
	Language string `mapstructure:"language"`
	Token    string `mapstructure:"token"`
	Interim  bool   `mapstructure:"interim"`
}

type DatabaseConfig struct {
	URL          string `mapstructure:"url"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	URL             string        `mapstructure:"url"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// ContentConfig /api/content 读取的 markdown 目录
type ContentConfig struct {
	Dir string `mapstructure:"dir"`
}

type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	ExpectedBucket  string `mapstructure:"expected_bucket"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

type AssistantConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	History int           `mapstructure:"history"`
}
