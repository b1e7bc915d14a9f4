package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		QuestionSeconds  int    `yaml:"questionSeconds"`
		PauseSeconds     int    `yaml:"pauseSeconds"`
		CountdownSeconds int    `yaml:"countdownSeconds"`
		DisconnectGrace  string `yaml:"disconnectGrace"`
		TemplateTTL      string `yaml:"templateTTL"`
	} `yaml:"quiz"`
	Evaluator struct {
		Strictness string `yaml:"strictness"` // strict | normal | lenient
		SynonymURL string `yaml:"synonymUrl"` // empty disables synonym lookups
		Judge      struct {
			Endpoint   string  `yaml:"endpoint"` // empty disables the judge
			Model      string  `yaml:"model"`
			APIKey     string  `yaml:"apiKey"`
			Mode       string  `yaml:"mode"` // primary | fallback
			Confidence float64 `yaml:"confidence"`
			Timeout    string  `yaml:"timeout"`
		} `yaml:"judge"`
	} `yaml:"evaluator"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty or
// malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// IntOr returns v unless it is zero or negative.
func IntOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
