package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/twinshot/internal/engine"
)

// Scenario is one visual regression scenario: two hosts and the steps to
// replay against both.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario covers.
	Description string `yaml:"description,omitempty"`

	// Base and Test are the reference and candidate hosts. Either may be
	// left empty and supplied by Overrides instead.
	Base string `yaml:"base,omitempty"`
	Test string `yaml:"test,omitempty"`

	// Options override engine defaults for this scenario.
	Options *OptionsOverride `yaml:"options,omitempty"`

	// Steps are recorded onto the engine in order.
	Steps []Step `yaml:"steps"`

	// Path is the file the scenario was loaded from, if any.
	Path string `yaml:"-"`
}

// OptionsOverride holds the options a layer sets. Nil fields inherit.
type OptionsOverride struct {
	Show      *bool    `yaml:"show,omitempty"`
	Width     *int     `yaml:"width,omitempty"`
	Height    *int     `yaml:"height,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
}

// Apply returns opts with every set field of o replaced.
func (o *OptionsOverride) Apply(opts engine.Options) engine.Options {
	if o == nil {
		return opts
	}
	if o.Show != nil {
		opts.Show = *o.Show
	}
	if o.Width != nil {
		opts.Width = *o.Width
	}
	if o.Height != nil {
		opts.Height = *o.Height
	}
	if o.Threshold != nil {
		opts.Threshold = *o.Threshold
	}
	return opts
}

// Step is one entry of a scenario's steps list. Exactly one form is set;
// see the package documentation.
type Step struct {
	Goto       *string       `yaml:"goto,omitempty"`
	Screenshot string        `yaml:"screenshot,omitempty"`
	Threshold  *float64      `yaml:"threshold,omitempty"`
	Navigate   []Interaction `yaml:"navigate,omitempty"`
	Capture    string        `yaml:"capture,omitempty"`
	Interact   []Interaction `yaml:"interact,omitempty"`
}

// StepForm identifies which of the four step shapes a Step uses.
type StepForm string

// Step forms.
const (
	FormGoto       StepForm = "goto"
	FormScreenshot StepForm = "screenshot"
	FormNavigate   StepForm = "navigate"
	FormCapture    StepForm = "capture"
)

// Form reports the step's shape, or an error when the fields set do not
// make exactly one valid shape.
func (s Step) Form() (StepForm, error) {
	switch {
	case s.Goto != nil:
		if s.Threshold != nil || s.Navigate != nil || s.Capture != "" || s.Interact != nil {
			return "", errors.New("goto accepts only screenshot alongside it")
		}
		return FormGoto, nil
	case s.Capture != "":
		if s.Screenshot != "" || s.Navigate != nil {
			return "", errors.New("capture cannot be combined with screenshot or navigate")
		}
		if len(s.Interact) == 0 {
			return "", errors.New("capture requires a non-empty interact list")
		}
		return FormCapture, nil
	case s.Navigate != nil:
		if s.Screenshot != "" || s.Threshold != nil || s.Interact != nil {
			return "", errors.New("navigate cannot be combined with other keys")
		}
		if len(s.Navigate) == 0 {
			return "", errors.New("navigate requires at least one interaction")
		}
		return FormNavigate, nil
	case s.Screenshot != "":
		if s.Interact != nil {
			return "", errors.New("interact belongs to capture, not screenshot")
		}
		return FormScreenshot, nil
	default:
		return "", errors.New("step must set one of goto, screenshot, navigate or capture")
	}
}

// Interaction is one browser action inside navigate or interact.
type Interaction struct {
	Click string      `yaml:"click,omitempty"`
	Fill  *FillAction `yaml:"fill,omitempty"`
	Eval  string      `yaml:"eval,omitempty"`
	Wait  string      `yaml:"wait,omitempty"`

	// Pass restricts the interaction to "base" or "test". Empty runs it on both.
	Pass string `yaml:"pass,omitempty"`
}

// FillAction types text into the element matching Selector.
type FillAction struct {
	Selector string `yaml:"selector"`
	Text     string `yaml:"text"`
}

// Describe returns a short label for errors and logs.
func (in Interaction) Describe() string {
	switch {
	case in.Click != "":
		return "click " + in.Click
	case in.Fill != nil:
		return "fill " + in.Fill.Selector
	case in.Eval != "":
		return "eval"
	case in.Wait != "":
		return "wait " + in.Wait
	default:
		return "empty"
	}
}

func (in Interaction) validate() error {
	set := 0
	if in.Click != "" {
		set++
	}
	if in.Fill != nil {
		set++
		if in.Fill.Selector == "" {
			return errors.New("fill requires a selector")
		}
	}
	if in.Eval != "" {
		set++
	}
	if in.Wait != "" {
		set++
		d, err := time.ParseDuration(in.Wait)
		if err != nil {
			return fmt.Errorf("wait: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("wait: negative duration %s", in.Wait)
		}
	}
	if set != 1 {
		return fmt.Errorf("interaction must set exactly one of click, fill, eval or wait (got %d)", set)
	}

	switch in.Pass {
	case "", engine.PassBase.String(), engine.PassTest.String():
	default:
		return fmt.Errorf("pass must be %q or %q, got %q", engine.PassBase, engine.PassTest, in.Pass)
	}
	return nil
}

// ParseScenario decodes and validates a scenario document.
// Returns an error if the document fails the schema, contains unknown
// fields (typos), or breaks a semantic rule.
func ParseScenario(data []byte) (*Scenario, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc == nil {
		return nil, errors.New("invalid scenario: document is empty")
	}
	if err := checkSchema(doc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	scenario.Path = path
	return scenario, nil
}

// ScenarioFiles returns path itself if it is a file, or every *.yaml and
// *.yml file directly inside it (sorted by name) if it is a directory.
func ScenarioFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", path)
	}
	return files, nil
}

// LoadScenarios loads every scenario ScenarioFiles finds under path.
// Scenario names must be unique across the set.
func LoadScenarios(path string) ([]*Scenario, error) {
	files, err := ScenarioFiles(path)
	if err != nil {
		return nil, err
	}

	scenarios := make([]*Scenario, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, f := range files {
		s, err := LoadScenario(f)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", s.Name, prev, f)
		}
		seen[s.Name] = f
		scenarios = append(scenarios, s)
	}

	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Options != nil {
		if err := s.Options.Apply(engine.DefaultOptions()).Validate(); err != nil {
			return fmt.Errorf("options: %w", err)
		}
	}

	for i, step := range s.Steps {
		form, err := step.Form()
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}

		field, interactions := "", []Interaction(nil)
		switch form {
		case FormNavigate:
			field, interactions = "navigate", step.Navigate
		case FormCapture:
			field, interactions = "interact", step.Interact
		}
		for j, in := range interactions {
			if err := in.validate(); err != nil {
				return fmt.Errorf("steps[%d].%s[%d]: %w", i, field, j, err)
			}
		}
	}

	return nil
}
