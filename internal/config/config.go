// Package config loads the darkroom configuration file.
//
// Secrets never live in the file: API keys come from the environment and
// override anything the YAML carries.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full configuration surface.
type Config struct {
	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path" validate:"required"`

	Platform   Platform   `yaml:"platform"`
	OpenAI     OpenAI     `yaml:"openai"`
	Thresholds Thresholds `yaml:"thresholds"`

	// CollectEvery is the scheduler interval for `collect --every`.
	CollectEvery Duration `yaml:"collect_every" validate:"min=0"`
}

// Platform configures the collaboration platform API client.
type Platform struct {
	BaseURL    string   `yaml:"base_url" validate:"omitempty,url"`
	APIKey     string   `yaml:"api_key"`
	PageLimit  int      `yaml:"page_limit" validate:"min=0,max=1000"`
	Timeout    Duration `yaml:"timeout" validate:"min=0"`
	MaxRetries uint64   `yaml:"max_retries" validate:"max=10"`
}

// OpenAI configures the embedding and scoring collaborator. Optional; when
// the key is empty the analysis pipeline runs on the keyword layer alone.
type OpenAI struct {
	APIKey     string `yaml:"api_key"`
	EmbedModel string `yaml:"embed_model"`
	ChatModel  string `yaml:"chat_model"`
}

// Thresholds configures the talk-to-code classifier.
type Thresholds struct {
	NewMaxAgeDays     int `yaml:"new_max_age_days" validate:"min=1"`
	TheoryMinComments int `yaml:"theory_min_comments" validate:"min=1"`
	TheoryMinAgeDays  int `yaml:"theory_min_age_days" validate:"min=1"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DBPath: "darkroom.db",
		Platform: Platform{
			BaseURL:    "https://clawboard.io/api/v1",
			PageLimit:  100,
			Timeout:    Duration(10 * time.Second),
			MaxRetries: 3,
		},
		Thresholds: Thresholds{
			NewMaxAgeDays:     7,
			TheoryMinComments: 10,
			TheoryMinAgeDays:  14,
		},
		CollectEvery: Duration(time.Hour),
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides, and validates the result. An empty path loads defaults only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if key := os.Getenv("DARKROOM_API_KEY"); key != "" {
		cfg.Platform.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}
