// Package config loads voicelink configuration from the embedded defaults,
// an optional conf.yaml on disk, and VOICELINK_-prefixed environment
// variables.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	appdefaults "github.com/huisuda/voicelink/config"
	"github.com/huisuda/voicelink/internal/logger"
)

// CaptureConfig holds microphone capture policy.
type CaptureConfig struct {
	MinDurationMs  int    `mapstructure:"min_duration_ms"`
	MaxDurationMs  int    `mapstructure:"max_duration_ms"`
	CancelDistance int    `mapstructure:"cancel_distance"`
	DensityScale   float64 `mapstructure:"density_scale"`
	SampleRate     int    `mapstructure:"sample_rate"`
	Channels       int    `mapstructure:"channels"`
	BitRate        int    `mapstructure:"bit_rate"`
	Format         string `mapstructure:"format"`
}

// MinDuration returns the shortest recording accepted as intentional.
func (c CaptureConfig) MinDuration() time.Duration {
	return time.Duration(c.MinDurationMs) * time.Millisecond
}

// MaxDuration returns the hard recording cutoff.
func (c CaptureConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationMs) * time.Millisecond
}

// UploadConfig holds the three-phase upload policy.
type UploadConfig struct {
	SettleDelayMs  int `mapstructure:"settle_delay_ms"`
	ArtifactWaitMs int `mapstructure:"artifact_wait_ms"`
}

// SettleDelay returns the pause between the binary phase and the stop signal.
func (c UploadConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// ArtifactWait returns how long to wait for the recording file to appear.
func (c UploadConfig) ArtifactWait() time.Duration {
	return time.Duration(c.ArtifactWaitMs) * time.Millisecond
}

// ConnectionConfig holds transport timing policy.
type ConnectionConfig struct {
	ResponseTimeoutMs   int `mapstructure:"response_timeout_ms"`
	ReconcileIntervalMs int `mapstructure:"reconcile_interval_ms"`
	ReconnectDelayMs    int `mapstructure:"reconnect_delay_ms"`
}

// ResponseTimeout returns the reply deadline for outstanding requests.
func (c ConnectionConfig) ResponseTimeout() time.Duration {
	return time.Duration(c.ResponseTimeoutMs) * time.Millisecond
}

// ReconcileInterval returns the connection-state poll period.
func (c ConnectionConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMs) * time.Millisecond
}

// ReconnectDelay returns the pause between disconnect and re-dial.
func (c ConnectionConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// Config is the full voicelink configuration.
type Config struct {
	RootDir string `mapstructure:"-"`

	ServerURL   string `mapstructure:"server_url"`
	DeviceID    string `mapstructure:"device_id"`
	DeviceName  string `mapstructure:"device_name"`
	DeviceMAC   string `mapstructure:"device_mac"`
	AccessToken string `mapstructure:"access_token"`

	HTTPEnabled bool   `mapstructure:"http_enabled"`
	HTTPAddr    string `mapstructure:"http_addr"`

	Voice       int    `mapstructure:"voice"`
	Language    string `mapstructure:"language"`
	Region      string `mapstructure:"region"`
	SaveHistory bool   `mapstructure:"save_history"`

	TranscriptDir string `mapstructure:"transcript_dir"`
	TempDir       string `mapstructure:"temp_dir"`

	Capture    CaptureConfig    `mapstructure:"capture"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Connection ConnectionConfig `mapstructure:"connection"`
	Log        logger.Config    `mapstructure:"log"`
}

// Load reads configuration from the default search path.
func Load() (Config, error) {
	return LoadConfig("")
}

// LoadConfig reads configuration, optionally from an explicit file path.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return Config{}, fmt.Errorf("load embedded config: %w", err)
	}

	setDefaults(v)

	v.SetEnvPrefix("voicelink")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var rootDir string
	path := strings.TrimSpace(configPath)
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return Config{}, err
		}
		v.SetConfigFile(absPath)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, err
		}
		rootDir = rootFromEnvOr(filepath.Dir(absPath))
	} else {
		dir, err := resolveRootDir()
		if err != nil {
			return Config{}, err
		}
		rootDir = dir
		v.SetConfigName("conf")
		v.AddConfigPath(rootDir)
		if err := v.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	derivePaths(&cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "")
	v.SetDefault("http_enabled", false)
	v.SetDefault("http_addr", "127.0.0.1:8190")
	v.SetDefault("voice", 1)
	v.SetDefault("language", "zh-CN")
	v.SetDefault("save_history", true)
	v.SetDefault("capture.min_duration_ms", 1000)
	v.SetDefault("capture.max_duration_ms", 60000)
	v.SetDefault("capture.cancel_distance", 100)
	v.SetDefault("capture.density_scale", 0.5)
	v.SetDefault("capture.sample_rate", 16000)
	v.SetDefault("capture.channels", 1)
	v.SetDefault("capture.bit_rate", 64000)
	v.SetDefault("capture.format", "mp3")
	v.SetDefault("upload.settle_delay_ms", 3000)
	v.SetDefault("upload.artifact_wait_ms", 5000)
	v.SetDefault("connection.response_timeout_ms", 10000)
	v.SetDefault("connection.reconcile_interval_ms", 3000)
	v.SetDefault("connection.reconnect_delay_ms", 1000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.stdout", true)
	v.SetDefault("log.file.enabled", true)
	v.SetDefault("log.file.path", "./data/logs")
	v.SetDefault("log.file.name", "voicelink.log")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)
}

func rootFromEnvOr(fallback string) string {
	if root := strings.TrimSpace(os.Getenv("VOICELINK_ROOT_DIR")); root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			return abs
		}
	}
	if filepath.Base(fallback) == "config" {
		return filepath.Dir(fallback)
	}
	return fallback
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("VOICELINK_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	cfg.TranscriptDir = resolvePath(cfg.RootDir, cfg.TranscriptDir, filepath.Join("data", "transcripts"))
	if strings.TrimSpace(cfg.TempDir) == "" {
		cfg.TempDir = os.TempDir()
	} else if !filepath.IsAbs(cfg.TempDir) {
		cfg.TempDir = filepath.Join(cfg.RootDir, cfg.TempDir)
	}
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
