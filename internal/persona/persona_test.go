package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_Tasks(t *testing.T) {
	c := Builtin()
	require.NoError(t, c.Validate())
	assert.Equal(t, []string{"analyze", "nutrition"}, c.TaskNames())

	analyze, ok := c.Task("analyze")
	require.True(t, ok)
	assert.Equal(t, "Dr. Hypertrophy Specialist", analyze.Persona.Name)
	assert.Equal(t, "gpt-4o", analyze.Persona.Model)
	assert.Equal(t, []string{ToolCodeInterpreter}, analyze.Persona.Tools)
	assert.Equal(t, DefaultDataLabel, analyze.DataLabel)
	assert.True(t, strings.HasPrefix(analyze.Prompt, "Please analyze my current pull-up training progress"))

	nutrition, ok := c.Task("nutrition")
	require.True(t, ok)
	assert.Equal(t, "Nutrition Specialist", nutrition.Persona.Name)
	assert.Empty(t, nutrition.Persona.Tools)
	assert.Equal(t, "Client Stats", nutrition.DataLabel)

	_, ok = c.Task("bogus")
	assert.False(t, ok)
}

func TestWithModel(t *testing.T) {
	base := Builtin()
	c := base.WithModel("gpt-4o-mini")

	analyze, _ := c.Task("analyze")
	assert.Equal(t, "gpt-4o-mini", analyze.Persona.Model)
	p, _ := c.Persona("nutrition")
	assert.Equal(t, "gpt-4o-mini", p.Model)

	// base is untouched
	orig, _ := base.Task("analyze")
	assert.Equal(t, "gpt-4o", orig.Persona.Model)

	assert.Same(t, base, base.WithModel(""))
}

func TestOverlay(t *testing.T) {
	doc := `
personas:
  hypertrophy:
    model: gpt-4o-mini
    tools: []
  mobility:
    name: Mobility Coach
    instructions: Focus on joint health.
    model: gpt-4o
tasks:
  recovery:
    persona: mobility
    prompt: How should I structure a deload week?
  nutrition:
    data_label: Body Stats
`
	c, err := Overlay(Builtin(), []byte(doc))
	require.NoError(t, err)

	analyze, ok := c.Task("analyze")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", analyze.Persona.Model)
	assert.Empty(t, analyze.Persona.Tools)
	assert.Equal(t, "Dr. Hypertrophy Specialist", analyze.Persona.Name)

	recovery, ok := c.Task("recovery")
	require.True(t, ok)
	assert.Equal(t, "Mobility Coach", recovery.Persona.Name)
	assert.Equal(t, DefaultDataLabel, recovery.DataLabel)

	nutrition, _ := c.Task("nutrition")
	assert.Equal(t, "Body Stats", nutrition.DataLabel)

	assert.Equal(t, []string{"analyze", "nutrition", "recovery"}, c.TaskNames())
}

func TestOverlay_Errors(t *testing.T) {
	_, err := Overlay(Builtin(), []byte("tasks:\n  x:\n    persona: nobody\n    prompt: hi\n"))
	assert.ErrorContains(t, err, "unknown persona")

	_, err = Overlay(Builtin(), []byte("tasks:\n  x:\n    prompt: hi\n"))
	assert.ErrorContains(t, err, "has no persona")

	_, err = Overlay(Builtin(), []byte("personas:\n  hypertrophy:\n    tools: [browser]\n"))
	assert.ErrorContains(t, err, "unsupported tool")

	_, err = Overlay(Builtin(), []byte("personas: [oops"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("personas:\n  nutrition:\n    model: gpt-4.1\n"), 0o644))

	c, err := LoadFile(Builtin(), path)
	require.NoError(t, err)
	nutrition, _ := c.Task("nutrition")
	assert.Equal(t, "gpt-4.1", nutrition.Persona.Model)

	_, err = LoadFile(Builtin(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTaskData(t *testing.T) {
	nutrition, _ := Builtin().Task("nutrition")
	assert.Equal(t, 62, nutrition.Defaults["age"])
	assert.Equal(t, `5'10"`, nutrition.Defaults["height"])

	data := nutrition.Data(map[string]any{"current_weight": 168, "sleep_hours": 7})
	assert.Equal(t, 168, data["current_weight"])
	assert.Equal(t, 7, data["sleep_hours"])
	assert.Equal(t, 152, data["goal_weight"])
	assert.Equal(t, 172, nutrition.Defaults["current_weight"])

	analyze, _ := Builtin().Task("analyze")
	assert.Nil(t, analyze.Data())
	assert.Nil(t, analyze.Data(nil, map[string]any{}))
	assert.Equal(t, map[string]any{"a": 2}, analyze.Data(map[string]any{"a": 1}, map[string]any{"a": 2}))
}

func TestOverlay_Defaults(t *testing.T) {
	c, err := Overlay(Builtin(), []byte(`
tasks:
  nutrition:
    defaults:
      age: 40
      diet: vegetarian
`))
	require.NoError(t, err)
	nutrition, _ := c.Task("nutrition")
	assert.Equal(t, 40, nutrition.Defaults["age"])
	assert.Equal(t, "vegetarian", nutrition.Defaults["diet"])
	assert.Equal(t, 152, nutrition.Defaults["goal_weight"])

	base, _ := Builtin().Task("nutrition")
	assert.Equal(t, 62, base.Defaults["age"])
}

func TestPullupCoachPersona(t *testing.T) {
	c := Builtin()
	p, ok := c.Persona(PullupCoach)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", p.Model)
	assert.Empty(t, p.Tools)
	assert.True(t, strings.HasPrefix(p.Instructions, "You are a fitness coach analyzing pull-up workout data."))

	_, ok = c.Task(PullupCoach)
	assert.False(t, ok)

	p, _ = c.WithModel("gpt-4o-mini").Persona(PullupCoach)
	assert.Equal(t, "gpt-4o-mini", p.Model)
}
