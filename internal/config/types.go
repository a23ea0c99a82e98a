package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration decodes "30s"-style strings from YAML and env vars.
// Negative values are rejected.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return d.Duration().String() }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	switch {
	case err != nil:
		return fmt.Errorf("parsing duration %q: %w", text, err)
	case v < 0:
		return fmt.Errorf("negative duration %q", text)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// Secret is a credential such as an API key. Printing and every marshaler
// render a redaction marker; Value is the only way to read it.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) Value() string { return string(s) }

func (s Secret) IsSet() bool { return s != "" }

func (s Secret) String() string {
	if !s.IsSet() {
		return ""
	}
	return redacted
}

// GoString keeps %#v from printing the raw value.
func (s Secret) GoString() string { return "config.Secret(" + redacted + ")" }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s Secret) MarshalYAML() (any, error) { return s.String(), nil }

// UnmarshalText is the path koanf uses for env vars and YAML scalars.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}
