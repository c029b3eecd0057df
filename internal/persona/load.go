package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk override format.
//
//	personas:
//	  hypertrophy:
//	    model: gpt-4o-mini
//	tasks:
//	  recovery:
//	    persona: hypertrophy
//	    prompt: "How should I structure my deload week?"
type File struct {
	Personas map[string]PersonaSpec `yaml:"personas"`
	Tasks    map[string]TaskSpec    `yaml:"tasks"`
}

type PersonaSpec struct {
	Name         string    `yaml:"name"`
	Instructions string    `yaml:"instructions"`
	Model        string    `yaml:"model"`
	Tools        *[]string `yaml:"tools"` // nil keeps the current tools, [] clears them
}

type TaskSpec struct {
	Persona   string `yaml:"persona"`
	Prompt    string `yaml:"prompt"`
	DataLabel string         `yaml:"data_label"`
	Defaults  map[string]any `yaml:"defaults"` // Merged over existing defaults
}

// LoadFile reads a YAML override file and applies it on top of base.
func LoadFile(base *Catalog, path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read personas file: %w", err)
	}
	return Overlay(base, data)
}

// Overlay applies YAML overrides to a copy of base. Non-empty fields replace
// existing ones; unknown persona or task names are added.
func Overlay(base *Catalog, data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse personas file: %w", err)
	}

	out := &Catalog{
		personas: make(map[string]Persona, len(base.personas)+len(f.Personas)),
		tasks:    make(map[string]Task, len(base.tasks)+len(f.Tasks)),
	}
	for k, p := range base.personas {
		out.personas[k] = p
	}

	for key, spec := range f.Personas {
		p, ok := out.personas[key]
		if !ok {
			p = Persona{Key: key, Name: key}
		}
		if spec.Name != "" {
			p.Name = spec.Name
		}
		if spec.Instructions != "" {
			p.Instructions = spec.Instructions
		}
		if spec.Model != "" {
			p.Model = spec.Model
		}
		if spec.Tools != nil {
			p.Tools = append([]string(nil), (*spec.Tools)...)
		}
		out.personas[key] = p
	}

	// Re-resolve existing tasks so persona overrides reach them.
	for name, t := range base.tasks {
		t.Persona = out.personas[t.Persona.Key]
		out.tasks[name] = t
	}

	for name, spec := range f.Tasks {
		t, ok := out.tasks[name]
		if !ok {
			t = Task{Name: name, DataLabel: DefaultDataLabel}
		}
		if spec.Persona != "" {
			p, ok := out.personas[spec.Persona]
			if !ok {
				return nil, fmt.Errorf("task %s references unknown persona %q", name, spec.Persona)
			}
			t.Persona = p
		}
		if spec.Prompt != "" {
			t.Prompt = spec.Prompt
		}
		if spec.DataLabel != "" {
			t.DataLabel = spec.DataLabel
		}
		if len(spec.Defaults) > 0 {
			t.Defaults = t.Data(spec.Defaults)
		}
		if t.Persona.Key == "" {
			return nil, fmt.Errorf("task %s has no persona", name)
		}
		out.tasks[name] = t
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
