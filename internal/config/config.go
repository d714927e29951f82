package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// MinSweepIntervalMinutes is the lowest accepted voice sweep period.
const MinSweepIntervalMinutes = 5

type Config struct {
	DiscordToken  string           `yaml:"discord_token"`
	GuildID       string           `yaml:"guild_id"`
	DataDir       string           `yaml:"data_dir"`
	LogLevel      string           `yaml:"log_level"`
	BugsChannelID string           `yaml:"bugs_channel_id"`
	Health        HealthConfig     `yaml:"health"`
	Leveling      LevelingConfig   `yaml:"leveling"`
	Moderation    ModerationConfig `yaml:"moderation"`
	Bugs          BugsConfig       `yaml:"bugs"`
	EmbedColors   EmbedColors      `yaml:"embed_colors"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LevelingConfig struct {
	SweepIntervalMinutes int  `yaml:"sweep_interval_minutes"`
	SweepMinMinutes      int  `yaml:"sweep_min_minutes"`
	LevelUpNotifications bool `yaml:"level_up_notifications"`
	RegisterCommands     bool `yaml:"register_commands"`
}

type ModerationConfig struct {
	ExpiryCheckSeconds int `yaml:"expiry_check_seconds"`
}

type BugsConfig struct {
	RateLimitCount         int `yaml:"rate_limit_count"`
	RateLimitWindowMinutes int `yaml:"rate_limit_window_minutes"`
}

type EmbedColors struct {
	Primary int `yaml:"primary"`
	Success int `yaml:"success"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
	LevelUp int `yaml:"level_up"`
}

func DefaultConfig() Config {
	return Config{
		DataDir:  "data",
		LogLevel: "info",
		Health:   HealthConfig{Enabled: false, Addr: ":8080"},
		Leveling: LevelingConfig{
			SweepIntervalMinutes: 5,
			SweepMinMinutes:      5,
			LevelUpNotifications: true,
			RegisterCommands:     true,
		},
		Moderation: ModerationConfig{ExpiryCheckSeconds: 60},
		Bugs:       BugsConfig{RateLimitCount: 3, RateLimitWindowMinutes: 10},
		EmbedColors: EmbedColors{
			Primary: 0x5865F2,
			Success: 0x2ECC71,
			Warning: 0xF59E0B,
			Error:   0xE74C3C,
			LevelUp: 0x3498DB,
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_PATH, an optional .env file and finally the process environment.
func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	normalize(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("TOKEN", cfg.DiscordToken)
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("SERVER_ID", cfg.GuildID)
	cfg.DataDir = envString("DATA_DIR", cfg.DataDir)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.BugsChannelID = envString("BUGS_CHANNEL_ID", cfg.BugsChannelID)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Leveling.SweepIntervalMinutes = envInt("VOICE_SWEEP_INTERVAL_MINUTES", cfg.Leveling.SweepIntervalMinutes)
	cfg.Leveling.SweepMinMinutes = envInt("VOICE_SWEEP_MIN_MINUTES", cfg.Leveling.SweepMinMinutes)
	cfg.Leveling.LevelUpNotifications = envBool("LEVEL_UP_NOTIFICATIONS", cfg.Leveling.LevelUpNotifications)
	cfg.Leveling.RegisterCommands = envBool("REGISTER_COMMANDS", cfg.Leveling.RegisterCommands)
	cfg.Moderation.ExpiryCheckSeconds = envInt("MODERATION_EXPIRY_CHECK_SECONDS", cfg.Moderation.ExpiryCheckSeconds)
	cfg.Bugs.RateLimitCount = envInt("BUGS_RATE_LIMIT_COUNT", cfg.Bugs.RateLimitCount)
	cfg.Bugs.RateLimitWindowMinutes = envInt("BUGS_RATE_LIMIT_WINDOW_MINUTES", cfg.Bugs.RateLimitWindowMinutes)
	cfg.EmbedColors.Primary = envInt("EMBED_COLOR_PRIMARY", cfg.EmbedColors.Primary)
	cfg.EmbedColors.Success = envInt("EMBED_COLOR_SUCCESS", cfg.EmbedColors.Success)
	cfg.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.EmbedColors.Warning)
	cfg.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.EmbedColors.Error)
	cfg.EmbedColors.LevelUp = envInt("EMBED_COLOR_LEVEL_UP", cfg.EmbedColors.LevelUp)
}

func normalize(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Leveling.SweepIntervalMinutes < MinSweepIntervalMinutes {
		cfg.Leveling.SweepIntervalMinutes = MinSweepIntervalMinutes
	}
	if cfg.Leveling.SweepMinMinutes < MinSweepIntervalMinutes {
		cfg.Leveling.SweepMinMinutes = MinSweepIntervalMinutes
	}
	if cfg.Moderation.ExpiryCheckSeconds <= 0 {
		cfg.Moderation.ExpiryCheckSeconds = 60
	}
	if cfg.Bugs.RateLimitWindowMinutes <= 0 {
		cfg.Bugs.RateLimitWindowMinutes = 10
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 0, 64); err == nil {
			return int(parsed)
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
