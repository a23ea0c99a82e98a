package logging

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/brandflow/internal/config"
)

// Config is the "logging" section of the brandflow config file.
type Config struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console

	Output struct {
		Stdout bool `koanf:"stdout"`
		OTEL   bool `koanf:"otel"`
	} `koanf:"output"`

	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// SamplingConfig applies below error level only.
type SamplingConfig struct {
	Enabled    bool            `koanf:"enabled"`
	Tick       config.Duration `koanf:"tick"`
	Initial    int             `koanf:"initial"`
	Thereafter int             `koanf:"thereafter"`
}

type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

type StacktraceConfig struct {
	Level string `koanf:"level"`
}

// RedactionConfig lists field keys (case-insensitive) and value patterns
// that are masked before encoding.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

var (
	defaultRedactedFields   = []string{"password", "secret", "token", "api_key", "authorization", "bearer", "credential"}
	defaultRedactedPatterns = []string{`(?i)bearer\s+\S+`, `sk-[A-Za-z0-9_-]{16,}`}
)

func NewDefaultConfig() *Config {
	c := &Config{
		Level:      "info",
		Format:     "json",
		Sampling:   SamplingConfig{Enabled: true, Tick: config.Duration(time.Second), Initial: 100, Thereafter: 10},
		Caller:     CallerConfig{Enabled: true, Skip: 2},
		Stacktrace: StacktraceConfig{Level: "error"},
		Fields:     map[string]string{"service": "brandflow"},
		Redaction: RedactionConfig{
			Enabled:  true,
			Fields:   append([]string(nil), defaultRedactedFields...),
			Patterns: append([]string(nil), defaultRedactedPatterns...),
		},
	}
	c.Output.Stdout = true
	return c
}

func (c *Config) Validate() error {
	if _, err := LevelFromString(c.Level); err != nil {
		return err
	}
	switch {
	case c.Format != "json" && c.Format != "console":
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	case !c.Output.Stdout && !c.Output.OTEL:
		return errors.New("no log output enabled: set output.stdout or output.otel")
	case c.Sampling.Enabled && c.Sampling.Tick <= 0:
		return errors.New("sampling.tick must be positive")
	case c.Caller.Enabled && c.Caller.Skip < 0:
		return fmt.Errorf("caller.skip is negative: %d", c.Caller.Skip)
	}
	if c.Redaction.Enabled {
		if _, err := compilePatterns(c.Redaction.Patterns); err != nil {
			return err
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("static field %q=%q: key and value are required", k, v)
		}
	}
	return nil
}
