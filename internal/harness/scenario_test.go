package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullScenario = `
name: homepage
description: "Landing page and menu"
base: https://prod.example.com
test: http://localhost:3000
options:
  width: 1280
  threshold: 0.5
steps:
  - goto: /
    screenshot: home
  - goto: /about
  - screenshot: home-strict
    threshold: 0
  - navigate:
      - click: "#accept-cookies"
        pass: test
  - capture: menu
    threshold: 1
    interact:
      - click: "#menu"
      - fill: {selector: "#search", text: "shoes"}
      - eval: "window.scrollTo(0, 0)"
      - wait: 200ms
`

func TestParseScenario_AllForms(t *testing.T) {
	s, err := ParseScenario([]byte(fullScenario))
	require.NoError(t, err)

	assert.Equal(t, "homepage", s.Name)
	assert.Equal(t, "https://prod.example.com", s.Base)
	assert.Equal(t, "http://localhost:3000", s.Test)
	require.NotNil(t, s.Options)
	assert.Equal(t, 1280, *s.Options.Width)
	assert.Nil(t, s.Options.Height)

	require.Len(t, s.Steps, 5)
	forms := make([]StepForm, len(s.Steps))
	for i, step := range s.Steps {
		f, err := step.Form()
		require.NoError(t, err)
		forms[i] = f
	}
	assert.Equal(t, []StepForm{FormGoto, FormGoto, FormScreenshot, FormNavigate, FormCapture}, forms)

	assert.Equal(t, "/", *s.Steps[0].Goto)
	assert.Equal(t, "home", s.Steps[0].Screenshot)
	assert.Empty(t, s.Steps[1].Screenshot)

	require.NotNil(t, s.Steps[2].Threshold)
	assert.Equal(t, 0.0, *s.Steps[2].Threshold, "explicit zero threshold is kept")

	assert.Equal(t, "test", s.Steps[3].Navigate[0].Pass)

	capture := s.Steps[4]
	assert.Equal(t, "menu", capture.Capture)
	require.Len(t, capture.Interact, 4)
	assert.Equal(t, &FillAction{Selector: "#search", Text: "shoes"}, capture.Interact[1].Fill)
	assert.Equal(t, "200ms", capture.Interact[3].Wait)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty document",
			yaml:    "",
			wantErr: "empty",
		},
		{
			name:    "malformed yaml",
			yaml:    "name: [unclosed",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "steps:\n  - goto: /\n",
			wantErr: "name",
		},
		{
			name:    "unknown top-level field",
			yaml:    "name: x\nstep:\n  - goto: /\n",
			wantErr: "step",
		},
		{
			name:    "unknown step field",
			yaml:    "name: x\nsteps:\n  - goto: /\n    screenshoot: home\n",
			wantErr: "screenshoot",
		},
		{
			name:    "threshold out of range",
			yaml:    "name: x\nsteps:\n  - screenshot: home\n    threshold: 150\n",
			wantErr: "threshold",
		},
		{
			name:    "negative width",
			yaml:    "name: x\noptions:\n  width: 0\nsteps:\n  - goto: /\n",
			wantErr: "width",
		},
		{
			name:    "bad pass",
			yaml:    "name: x\nsteps:\n  - navigate:\n      - click: a\n        pass: both\n",
			wantErr: "pass",
		},
		{
			name:    "no steps",
			yaml:    "name: x\nsteps: []\n",
			wantErr: "steps list is required",
		},
		{
			name:    "step with no form",
			yaml:    "name: x\nsteps:\n  - threshold: 1\n",
			wantErr: "step must set one of",
		},
		{
			name:    "goto with threshold",
			yaml:    "name: x\nsteps:\n  - goto: /\n    screenshot: home\n    threshold: 1\n",
			wantErr: "goto accepts only screenshot",
		},
		{
			name:    "capture without interact",
			yaml:    "name: x\nsteps:\n  - capture: menu\n",
			wantErr: "capture requires a non-empty interact list",
		},
		{
			name:    "empty navigate",
			yaml:    "name: x\nsteps:\n  - navigate: []\n",
			wantErr: "navigate requires at least one interaction",
		},
		{
			name:    "two actions in one interaction",
			yaml:    "name: x\nsteps:\n  - navigate:\n      - click: a\n        eval: b\n",
			wantErr: "exactly one of click, fill, eval or wait",
		},
		{
			name:    "bad wait duration",
			yaml:    "name: x\nsteps:\n  - navigate:\n      - wait: soon\n",
			wantErr: "steps[0].navigate[0]: wait",
		},
		{
			name:    "interact on screenshot",
			yaml:    "name: x\nsteps:\n  - screenshot: a\n    interact:\n      - click: b\n",
			wantErr: "interact belongs to capture",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_SetsPath(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "home.yaml", "name: home\nsteps:\n  - goto: /\n")

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_ErrorNamesFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "broken.yaml", "name: x\nsteps: []\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoadScenarios_Directory(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", "name: second\nsteps:\n  - goto: /b\n")
	writeScenario(t, dir, "a.yml", "name: first\nsteps:\n  - goto: /a\n")
	writeScenario(t, dir, "notes.txt", "not a scenario")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
}

func TestLoadScenarios_SingleFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "one.yaml", "name: one\nsteps:\n  - goto: /\n")

	scenarios, err := LoadScenarios(path)
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "one", scenarios[0].Name)
}

func TestLoadScenarios_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", "name: same\nsteps:\n  - goto: /a\n")
	writeScenario(t, dir, "b.yaml", "name: same\nsteps:\n  - goto: /b\n")

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate scenario name "same"`)
}

func TestLoadScenarios_EmptyDirectory(t *testing.T) {
	_, err := LoadScenarios(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files")
}

func TestScenarioFiles_MissingPath(t *testing.T) {
	_, err := ScenarioFiles(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario path")
}

func TestScenarioFiles_DoesNotParse(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "bad.yaml", "not: [valid")

	files, err := ScenarioFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "bad.yaml")}, files)
}

func TestInteraction_Describe(t *testing.T) {
	assert.Equal(t, "click #a", Interaction{Click: "#a"}.Describe())
	assert.Equal(t, "fill #q", Interaction{Fill: &FillAction{Selector: "#q"}}.Describe())
	assert.Equal(t, "eval", Interaction{Eval: "1"}.Describe())
	assert.Equal(t, "wait 1s", Interaction{Wait: "1s"}.Describe())
}

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
