package commands

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ovenzeze/hugo-tour-guide/internal/config"
)

var (
	configPath string
	verbose    bool

	globalConfig  *config.Config
	configLoadErr error
)

var rootCmd = &cobra.Command{
	Use:   "tourguide",
	Short: "Museum voice tour guide",
	Long: `tourguide - voice guided museum tours.

Commands:
  serve    HTTP API: speech synthesis, voices, ingestion, guide audio generation
  guide    kiosk runtime: listens for visitor commands and speaks the answers
  voices   list the configured voice profiles

Configuration is read from ./configs/config.yaml (or --config) and
TOURGUIDE_* environment variables. ELEVENLABS_API_KEY, DATABASE_URL and
REDIS_URL are accepted without the prefix.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	cfg, err := config.Load(configPath)
	if err != nil {
		configLoadErr = err
		return
	}
	globalConfig = cfg
	setupLogging(cfg.Log)
}

// GetConfig 配置加载失败时返回错误，不影响 help 这类命令
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if configLoadErr != nil {
			return nil, fmt.Errorf("config not available: %w", configLoadErr)
		}
		return nil, fmt.Errorf("config not loaded")
	}
	return globalConfig, nil
}

func setupLogging(cfg config.LogConfig) {
	logrus.SetOutput(os.Stderr)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
}
