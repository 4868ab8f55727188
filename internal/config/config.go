// Package config loads the settings of the ema-tutor host from a YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDeepgramAPIKey = "DEEPGRAM_API_KEY"
	EnvGroqAPIKey     = "GROQ_API_KEY"
	EnvChatToken      = "EMA_CHAT_TOKEN"
)

type Config struct {
	Chat      Chat      `yaml:"chat"`
	Voice     Voice     `yaml:"voice"`
	Deepgram  Deepgram  `yaml:"deepgram"`
	Sessions  Sessions  `yaml:"sessions"`
	Screening Screening `yaml:"screening"`
}

type Chat struct {
	Endpoint      string        `yaml:"endpoint" validate:"required,url"`
	Token         string        `yaml:"-"`
	QueryEncoding bool          `yaml:"query_encoding"`
	QuizOpenDelay time.Duration `yaml:"quiz_open_delay" validate:"gte=0"`
	Retry         Retry         `yaml:"retry"`
}

type Retry struct {
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay   time.Duration `yaml:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `yaml:"max_delay" validate:"gtefield=BaseDelay"`
}

type Voice struct {
	QuietPeriod         time.Duration `yaml:"quiet_period" validate:"gt=0"`
	ResumeDelay         time.Duration `yaml:"resume_delay" validate:"gte=0"`
	SimilarityThreshold float64       `yaml:"similarity_threshold" validate:"gt=0,lte=1"`
}

type Deepgram struct {
	APIKey   string `yaml:"-" validate:"required"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	Voice    string `yaml:"voice"`
}

type Sessions struct {
	Backend   string        `yaml:"backend" validate:"oneof=memory redis"`
	Key       string        `yaml:"key" validate:"required"`
	RedisAddr string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int           `yaml:"redis_db" validate:"gte=0"`
	TTL       time.Duration `yaml:"ttl" validate:"gte=0"`
}

type Screening struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"-" validate:"required_if=Enabled true"`
	Model   string `yaml:"model"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() Config {
	return Config{
		Chat: Chat{
			Endpoint:      "http://localhost:8000/chat/stream",
			QuizOpenDelay: time.Second,
			Retry: Retry{
				MaxAttempts: 3,
				BaseDelay:   500 * time.Millisecond,
				MaxDelay:    4 * time.Second,
			},
		},
		Voice: Voice{
			QuietPeriod:         1200 * time.Millisecond,
			ResumeDelay:         100 * time.Millisecond,
			SimilarityThreshold: 0.6,
		},
		Deepgram: Deepgram{
			Model:    "nova-3",
			Language: "en-US",
		},
		Sessions: Sessions{
			Backend: "memory",
			Key:     "default",
			TTL:     7 * 24 * time.Hour,
		},
		Screening: Screening{
			Model: "llama-3.1-8b-instant",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the YAML file at path over the defaults, fills the secrets from
// the environment and validates the result. A missing file is not an error.
// A .env file in the working directory is loaded first if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("failed to open config: %w", err)
		default:
			defer file.Close()
			if err := decode(file, &config); err != nil {
				return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
			}
		}
	}

	config.applyEnv(os.Getenv)
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func decode(r io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if key := getenv(EnvDeepgramAPIKey); key != "" {
		c.Deepgram.APIKey = key
	}
	if key := getenv(EnvGroqAPIKey); key != "" {
		c.Screening.APIKey = key
	}
	if token := getenv(EnvChatToken); token != "" {
		c.Chat.Token = token
	}
}

// Validate reports every invalid field in one error.
func (c Config) Validate() error {
	err := validate.Struct(c)
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	problems := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		problems = append(problems, describe(fieldErr))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

func describe(fieldErr validator.FieldError) string {
	field := strings.TrimPrefix(fieldErr.Namespace(), "Config.")
	switch {
	case field == "Deepgram.APIKey":
		return EnvDeepgramAPIKey + " is not set"
	case field == "Screening.APIKey":
		return EnvGroqAPIKey + " is required when screening is enabled"
	case fieldErr.Param() != "":
		return fmt.Sprintf("%s fails %s=%s", field, fieldErr.Tag(), fieldErr.Param())
	default:
		return fmt.Sprintf("%s fails %s", field, fieldErr.Tag())
	}
}
