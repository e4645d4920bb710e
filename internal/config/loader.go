package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

// Load 读取配置文件和环境变量，path 为空时在默认目录查找 config.yaml
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tourguide")
	}

	v.SetEnvPrefix("TOURGUIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 部署平台上常见的不带前缀的变量
	v.BindEnv("elevenlabs.api_key", "TOURGUIDE_ELEVENLABS_API_KEY", "ELEVENLABS_API_KEY")
	v.BindEnv("database.url", "TOURGUIDE_DATABASE_URL", "DATABASE_URL")
	v.BindEnv("redis.url", "TOURGUIDE_REDIS_URL", "REDIS_URL")
	v.BindEnv("assistant.api_key", "TOURGUIDE_ASSISTANT_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("log.level", "TOURGUIDE_LOG_LEVEL", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tourguide")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.addr", ":3000")
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 60*time.Second)
	v.SetDefault("http.body_limit", 4*1024*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io/v1")
	v.SetDefault("elevenlabs.default_model_id", tts.ModelMultilingual)
	v.SetDefault("elevenlabs.output_format", "mp3_44100_128")
	v.SetDefault("elevenlabs.timeout", 30*time.Second)
	v.SetDefault("elevenlabs.cache_ttl", 24*time.Hour)

	v.SetDefault("guide.locale", "zh")
	v.SetDefault("guide.api_url", "http://localhost:3000")
	v.SetDefault("guide.sample_rate", 44100)
	v.SetDefault("guide.synthesis_timeout", 30*time.Second)

	v.SetDefault("recognition.language", "zh-CN")

	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.cleanup_interval", 5*time.Minute)

	v.SetDefault("content.dir", "docs")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "guide-voices")
	v.SetDefault("storage.expected_bucket", "guide-audios")
	v.SetDefault("storage.use_path_style", true)

	v.SetDefault("assistant.timeout", 20*time.Second)
	v.SetDefault("assistant.history", 4)
}

// normalize 没有写 settings 的音色使用默认参数
func (c *Config) normalize() {
	for i := range c.Voices.Profiles {
		p := &c.Voices.Profiles[i]
		if p.Settings == (tts.VoiceSettings{}) {
			p.Settings = tts.DefaultVoiceSettings()
		}
		if p.ModelID == "" {
			p.ModelID = c.ElevenLabs.DefaultModelID
		}
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

func (c *Config) Validate() error {
	for _, p := range c.Voices.Profiles {
		if p.ID == "" {
			return fmt.Errorf("config: voice profile %q has no id", p.Name)
		}
		if err := p.Settings.Validate(); err != nil {
			return fmt.Errorf("config: voice %s: %w", p.ID, err)
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if c.Assistant.Enabled && c.Assistant.Model == "" {
		return errors.New("config: assistant enabled but no model set")
	}
	return nil
}

// Registry 预置音色加上配置里的音色
func (c *Config) Registry() *tts.Registry {
	r := tts.NewRegistry(tts.DefaultProfiles())
	if len(c.Voices.Profiles) > 0 {
		r.Load(c.Voices.Profiles, c.Voices.Replace)
	}
	return r
}
