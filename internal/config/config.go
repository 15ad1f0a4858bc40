// Package config handles service configuration: defaults, an optional TOML file
// named by TUTOR_CONFIG, then environment variables.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
)

// FileEnv names the environment variable pointing at an optional TOML file.
const FileEnv = "TUTOR_CONFIG"

type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	LogLevel           string
	LogFormat          string // text | json
	MaxImageBytes      int
	MaxImagePixels     int
	HistorySize        int
	SessionTTL         time.Duration
	DuplicateDetection bool
	OverlayFormat      string // png | jpeg, for captures in other formats
	ThumbnailWidth     int
	AllowedOrigins     []string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPAddr:           ":8000",
		GRPCAddr:           ":50061",
		LogLevel:           "info",
		LogFormat:          "text",
		MaxImageBytes:      8 << 20,
		MaxImagePixels:     4096 * 4096,
		HistorySize:        10,
		SessionTTL:         30 * time.Minute,
		DuplicateDetection: true,
		OverlayFormat:      "png",
		ThumbnailWidth:     96,
		AllowedOrigins:     []string{"*"},
	}
}

// Load builds the configuration. A TOML file that cannot be read is logged and
// skipped; environment variables always win.
func Load() *Config {
	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			slog.Warn("ignoring config file", "path", path, "error", err)
		}
	}
	cfg.applyEnv()
	return cfg
}

// LoadFile overlays the values present in a TOML file onto cfg.
func (c *Config) LoadFile(path string) error {
	var file fileConfig
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return apperrors.Wrapf(err, apperrors.ConfigInvalid, "cannot read %s", path)
	}
	return file.apply(c)
}

func (c *Config) applyEnv() {
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getEnv("GRPC_ADDR", c.GRPCAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.MaxImageBytes = getEnvInt("MAX_IMAGE_BYTES", c.MaxImageBytes)
	c.MaxImagePixels = getEnvInt("MAX_IMAGE_PIXELS", c.MaxImagePixels)
	c.HistorySize = getEnvInt("HISTORY_SIZE", c.HistorySize)
	c.SessionTTL = getEnvDuration("SESSION_TTL", c.SessionTTL)
	c.DuplicateDetection = getEnvBool("DUPLICATE_DETECTION", c.DuplicateDetection)
	c.OverlayFormat = getEnv("OVERLAY_FORMAT", c.OverlayFormat)
	c.ThumbnailWidth = getEnvInt("THUMBNAIL_WIDTH", c.ThumbnailWidth)
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)
}

// Validate reports the first invalid setting as a CONFIG_INVALID error.
func (c *Config) Validate() error {
	switch {
	case c.HTTPAddr == "":
		return invalid("http_addr", "must not be empty")
	case c.MaxImageBytes <= 0:
		return invalid("max_image_bytes", "must be positive")
	case c.HistorySize <= 0:
		return invalid("history_size", "must be positive")
	case c.SessionTTL <= 0:
		return invalid("session_ttl", "must be positive")
	case c.ThumbnailWidth <= 0:
		return invalid("thumbnail_width", "must be positive")
	case c.OverlayFormat != "png" && c.OverlayFormat != "jpeg":
		return invalid("overlay_format", "must be png or jpeg")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid("log_format", "must be text or json")
	}
	if _, err := c.SlogLevel(); err != nil {
		return invalid("log_level", err.Error())
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(c.LogLevel))
	return lvl, err
}

func invalid(field, reason string) error {
	return apperrors.Newf(apperrors.ConfigInvalid, "%s %s", field, reason).WithMetadata("field", field)
}

// fileConfig mirrors Config with pointer fields so absent keys leave defaults alone.
type fileConfig struct {
	HTTPAddr           *string   `toml:"http_addr"`
	GRPCAddr           *string   `toml:"grpc_addr"`
	LogLevel           *string   `toml:"log_level"`
	LogFormat          *string   `toml:"log_format"`
	MaxImageBytes      *int      `toml:"max_image_bytes"`
	MaxImagePixels     *int      `toml:"max_image_pixels"`
	HistorySize        *int      `toml:"history_size"`
	SessionTTL         *string   `toml:"session_ttl"`
	DuplicateDetection *bool     `toml:"duplicate_detection"`
	OverlayFormat      *string   `toml:"overlay_format"`
	ThumbnailWidth     *int      `toml:"thumbnail_width"`
	AllowedOrigins     *[]string `toml:"allowed_origins"`
}

func (f fileConfig) apply(c *Config) error {
	setString(&c.HTTPAddr, f.HTTPAddr)
	setString(&c.GRPCAddr, f.GRPCAddr)
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.LogFormat, f.LogFormat)
	setInt(&c.MaxImageBytes, f.MaxImageBytes)
	setInt(&c.MaxImagePixels, f.MaxImagePixels)
	setInt(&c.HistorySize, f.HistorySize)
	setString(&c.OverlayFormat, f.OverlayFormat)
	setInt(&c.ThumbnailWidth, f.ThumbnailWidth)
	if f.DuplicateDetection != nil {
		c.DuplicateDetection = *f.DuplicateDetection
	}
	if f.AllowedOrigins != nil {
		c.AllowedOrigins = *f.AllowedOrigins
	}
	if f.SessionTTL != nil {
		d, err := time.ParseDuration(*f.SessionTTL)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ConfigInvalid, "session_ttl is not a duration")
		}
		c.SessionTTL = d
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
