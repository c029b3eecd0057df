// Package persona holds the assistant configurations and coaching tasks the
// CLI can run.
package persona

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed prompts/hypertrophy.txt
var hypertrophyInstructions string

//go:embed prompts/nutrition.txt
var nutritionInstructions string

//go:embed prompts/pullup-coach.txt
var pullupCoachInstructions string

//go:embed prompts/analyze-task.txt
var analyzePrompt string

//go:embed prompts/nutrition-task.txt
var nutritionPrompt string

const (
	ToolCodeInterpreter = "code_interpreter"
	ToolFileSearch      = "file_search"

	DefaultDataLabel = "Current Workout Data"

	// PullupCoach reviews the plain-text pull-up export in one chat completion.
	PullupCoach = "pullup-coach"
)

// Persona is the fixed assistant configuration a job runs against.
type Persona struct {
	Key          string
	Name         string
	Instructions string
	Model        string
	Tools        []string
}

// Task pairs a persona with the prompt sent for one CLI function.
type Task struct {
	Name      string
	Persona   Persona
	Prompt    string
	DataLabel string // Line that introduces the embedded structured data
	Defaults  map[string]any
}

// Data returns the task defaults overlaid with each of layers in turn.
// Nil when the result is empty.
func (t Task) Data(layers ...map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range t.Defaults {
		out[k] = v
	}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Catalog is the set of personas and tasks known to the CLI.
type Catalog struct {
	personas map[string]Persona
	tasks    map[string]Task
}

// Builtin returns the catalog compiled into the binary.
func Builtin() *Catalog {
	hypertrophy := Persona{
		Key:          "hypertrophy",
		Name:         "Dr. Hypertrophy Specialist",
		Instructions: strings.TrimSpace(hypertrophyInstructions),
		Model:        "gpt-4o",
		Tools:        []string{ToolCodeInterpreter},
	}
	nutrition := Persona{
		Key:          "nutrition",
		Name:         "Nutrition Specialist",
		Instructions: strings.TrimSpace(nutritionInstructions),
		Model:        "gpt-4o",
	}
	pullupCoach := Persona{
		Key:          PullupCoach,
		Name:         "Pull-up Coach",
		Instructions: strings.TrimSpace(pullupCoachInstructions),
		Model:        "gpt-4o",
	}

	c := &Catalog{
		personas: map[string]Persona{},
		tasks:    map[string]Task{},
	}
	c.personas[hypertrophy.Key] = hypertrophy
	c.personas[nutrition.Key] = nutrition
	c.personas[pullupCoach.Key] = pullupCoach

	c.tasks["analyze"] = Task{
		Name:      "analyze",
		Persona:   hypertrophy,
		Prompt:    strings.TrimSpace(analyzePrompt),
		DataLabel: DefaultDataLabel,
	}
	c.tasks["nutrition"] = Task{
		Name:      "nutrition",
		Persona:   nutrition,
		Prompt:    strings.TrimSpace(nutritionPrompt),
		DataLabel: "Client Stats",
		Defaults: map[string]any{
			"age":            62,
			"height":         `5'10"`,
			"current_weight": 172,
			"goal_weight":    152,
			"activity_level": "active",
			"goal":           "lose 20 lbs while maximizing lean muscle mass",
		},
	}
	return c
}

// Task looks up a task by function name.
func (c *Catalog) Task(name string) (Task, bool) {
	t, ok := c.tasks[name]
	return t, ok
}

// Persona looks up a persona by key.
func (c *Catalog) Persona(key string) (Persona, bool) {
	p, ok := c.personas[key]
	return p, ok
}

// TaskNames returns the task names in sorted order.
func (c *Catalog) TaskNames() []string {
	names := make([]string, 0, len(c.tasks))
	for name := range c.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithModel returns a copy of the catalog where every persona uses model.
func (c *Catalog) WithModel(model string) *Catalog {
	if model == "" {
		return c
	}
	out := &Catalog{
		personas: make(map[string]Persona, len(c.personas)),
		tasks:    make(map[string]Task, len(c.tasks)),
	}
	for k, p := range c.personas {
		p.Model = model
		out.personas[k] = p
	}
	for k, t := range c.tasks {
		t.Persona.Model = model
		out.tasks[k] = t
	}
	return out
}

// Validate reports tasks whose persona cannot run.
func (c *Catalog) Validate() error {
	for _, name := range c.TaskNames() {
		t := c.tasks[name]
		if strings.TrimSpace(t.Prompt) == "" {
			return fmt.Errorf("task %s: empty prompt", name)
		}
		if t.Persona.Model == "" {
			return fmt.Errorf("task %s: persona %s has no model", name, t.Persona.Key)
		}
		for _, tool := range t.Persona.Tools {
			if tool != ToolCodeInterpreter && tool != ToolFileSearch {
				return fmt.Errorf("task %s: unsupported tool %q", name, tool)
			}
		}
	}
	return nil
}
