package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/brandflow/internal/config"
)

//go:embed personas.yaml
var personasYAML []byte

var (
	// ErrUnknownPersona reports an override for a stage id that does not exist.
	ErrUnknownPersona = errors.New("unknown persona")
	// ErrMissingPersona reports a stage without instructions.
	ErrMissingPersona = errors.New("missing persona")
)

// Persona is the display name and instructions of one stage.
type Persona struct {
	Name         string `koanf:"name"`
	Instructions string `koanf:"instructions"`
}

// Personas maps stage ids to personas.
type Personas map[string]Persona

// DefaultPersonas decodes the embedded catalog.
func DefaultPersonas() (Personas, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(personasYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load embedded personas: %w", err)
	}
	out := Personas{}
	if err := k.Unmarshal("", &out); err != nil {
		return nil, fmt.Errorf("decode embedded personas: %w", err)
	}
	return out, nil
}

// LoadPersonas returns the embedded catalog with overrides from the
// "personas" section of src applied. Overrides replace only the fields they
// set. src may be nil.
func LoadPersonas(src *config.Source) (Personas, error) {
	personas, err := DefaultPersonas()
	if err != nil {
		return nil, err
	}
	if src == nil || !src.Exists("personas") {
		return personas, nil
	}

	for _, id := range src.MapKeys("personas") {
		p, ok := personas[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
		}
		if err := src.Unmarshal("personas."+id, &p); err != nil {
			return nil, err
		}
		personas[id] = p
	}
	return personas, nil
}

// Get returns the persona for id.
func (p Personas) Get(id string) (Persona, error) {
	persona, ok := p[id]
	if !ok || persona.Instructions == "" {
		return Persona{}, fmt.Errorf("%w: %s", ErrMissingPersona, id)
	}
	if persona.Name == "" {
		persona.Name = id
	}
	return persona, nil
}
