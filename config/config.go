// Package config reads process configuration from the environment.
//
// A .env file in the working directory, if present, is loaded first.
// Variables already set in the environment take precedence over it.
//
//	SOYMAIL_MODE=development
//	SOYMAIL_TEMPLATE_DIR=./templates
//	SOYMAIL_DEFAULT_LOCALE=vi
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config is the complete process configuration.
type Config struct {
	Mode          string `env:"MODE" envDefault:"production"`
	TemplateDir   string `env:"TEMPLATE_DIR"` // empty selects the embedded templates
	Extension     string `env:"TEMPLATE_EXT" envDefault:".hbs"`
	TokensFile    string `env:"TOKENS_FILE"`
	LocaleDir     string `env:"LOCALE_DIR"`
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`
	Strict        bool   `env:"STRICT"`
	Watch         bool   `env:"WATCH"`
	InlineStyles  bool   `env:"INLINE_STYLES"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	Validation Validation `envPrefix:"VALIDATE_"`
	S3         S3         `envPrefix:"S3_"`
	Postmark   Postmark   `envPrefix:"POSTMARK_"`
}

// Validation gates generation on structural diagnostics.
type Validation struct {
	Enabled              bool `env:"ENABLED"`
	FailOnUnclosedTags   bool `env:"FAIL_ON_UNCLOSED_TAGS" envDefault:"true"`
	FailOnUnescapedChars bool `env:"FAIL_ON_UNESCAPED_CHARS"`
}

// S3 selects a bucket as the template source when Bucket is set.
type S3 struct {
	Bucket         string `env:"BUCKET"`
	Prefix         string `env:"PREFIX"`
	Region         string `env:"REGION"`
	Endpoint       string `env:"ENDPOINT"`
	AccessKeyID    string `env:"ACCESS_KEY_ID"`
	SecretKey      string `env:"SECRET_ACCESS_KEY"`
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE"`
}

type Postmark struct {
	ServerToken  string `env:"SERVER_TOKEN"`
	AccountToken string `env:"ACCOUNT_TOKEN"`
	From         string `env:"FROM"`
	ReplyTo      string `env:"REPLY_TO"`
}

// Prefix is prepended to every variable name.
const Prefix = "SOYMAIL_"

// Load reads .env, if any, and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return parse(env.Options{Prefix: Prefix})
}

// MustLoad is like Load but panics on error.
func MustLoad() Config {
	var cfg, err = Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// FromMap parses configuration from the given variables only, ignoring the
// process environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be expressed as struct tags.
func (c Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "production", "prod", "development", "dev":
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	if c.TemplateDir != "" && c.S3.Bucket != "" {
		return errors.New("config: TEMPLATE_DIR and S3_BUCKET are mutually exclusive")
	}
	if c.Watch && c.TemplateDir == "" {
		return errors.New("config: WATCH requires TEMPLATE_DIR")
	}
	if c.TemplateDir != "" {
		if info, err := os.Stat(c.TemplateDir); err != nil || !info.IsDir() {
			return fmt.Errorf("config: template directory %q is not a directory", c.TemplateDir)
		}
	}
	return nil
}

// Development reports whether the store should re-read templates on every
// call.
func (c Config) Development() bool {
	var m = strings.ToLower(c.Mode)
	return m == "development" || m == "dev"
}

// Level returns the configured log level.
func (c Config) Level() zerolog.Level {
	var lvl, err = zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
