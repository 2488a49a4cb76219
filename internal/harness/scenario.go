package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a rendering scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Manifests is the manifest directory, relative to the scenario file.
	// Ignored when the runner is given a loaded manifest set.
	Manifests string `yaml:"manifests,omitempty"`

	// Component names the manifest component to render, by name or tag.
	Component string `yaml:"component"`

	// State overrides the manifest's initial state.
	State map[string]any `yaml:"state,omitempty"`

	// Steps run in order after the component connects.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one interaction with the rendered component.
type Step struct {
	// Set assigns host state properties.
	Set map[string]any `yaml:"set,omitempty"`

	// Dispatch fires a DOM event.
	Dispatch *Dispatch `yaml:"dispatch,omitempty"`

	// Advance moves the manual clock, firing due digests (e.g. "10ms").
	Advance string `yaml:"advance,omitempty"`

	// Digest runs an immediate digest.
	Digest bool `yaml:"digest,omitempty"`

	// Connect and Disconnect drive the component lifecycle.
	Connect    bool `yaml:"connect,omitempty"`
	Disconnect bool `yaml:"disconnect,omitempty"`

	// Assert is checked after this step runs.
	Assert []Assertion `yaml:"assert,omitempty"`
}

// Dispatch describes an event fired at the first node matching Selector.
type Dispatch struct {
	Selector string `yaml:"selector"`
	Event    string `yaml:"event"`
	Key      string `yaml:"key,omitempty"`

	// Value and Checked update the target's attributes before dispatch,
	// as if the user had typed or toggled.
	Value   *string `yaml:"value,omitempty"`
	Checked *bool   `yaml:"checked,omitempty"`
}

// Assertion validates the rendered tree, the host state or the patch trace.
type Assertion struct {
	Type      string `yaml:"type"`
	Selector  string `yaml:"selector,omitempty"`
	Equals    any    `yaml:"equals,omitempty"`
	Contains  string `yaml:"contains,omitempty"`
	Count     *int   `yaml:"count,omitempty"`
	Class     string `yaml:"class,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Key       string `yaml:"key,omitempty"`
	Op        string `yaml:"op,omitempty"`
	Directive string `yaml:"directive,omitempty"`
	Absent    bool   `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertText    = "text"
	AssertCount   = "count"
	AssertClass   = "class"
	AssertAttr    = "attr"
	AssertState   = "state"
	AssertPatches = "patches"
	AssertHTML    = "html"
)

// LoadScenario reads and parses a scenario YAML file. A relative
// Manifests path is resolved against the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Manifests != "" && !filepath.IsAbs(scenario.Manifests) {
		scenario.Manifests = filepath.Join(filepath.Dir(path), scenario.Manifests)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Component == "" {
		return fmt.Errorf("component is required")
	}
	for i, step := range s.Steps {
		if err := validateStep(step, i); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, fmt.Sprintf("assertions[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(step Step, index int) error {
	actions := 0
	if step.Set != nil {
		actions++
	}
	if step.Dispatch != nil {
		actions++
		if step.Dispatch.Selector == "" || step.Dispatch.Event == "" {
			return fmt.Errorf("steps[%d]: dispatch needs selector and event", index)
		}
	}
	if step.Advance != "" {
		actions++
		if _, err := time.ParseDuration(step.Advance); err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
	}
	for _, on := range []bool{step.Digest, step.Connect, step.Disconnect} {
		if on {
			actions++
		}
	}
	if actions != 1 && !(actions == 0 && len(step.Assert) > 0) {
		return fmt.Errorf("steps[%d]: exactly one of set, dispatch, advance, digest, connect, disconnect is required", index)
	}
	for i, a := range step.Assert {
		if err := validateAssertion(a, fmt.Sprintf("steps[%d].assert[%d]", index, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(a Assertion, where string) error {
	if a.Type == "" {
		return fmt.Errorf("%s: type is required", where)
	}

	switch a.Type {
	case AssertText:
		if a.Selector == "" {
			return fmt.Errorf("%s: selector is required for text", where)
		}
		if a.Equals == nil && a.Contains == "" {
			return fmt.Errorf("%s: equals or contains is required for text", where)
		}
	case AssertCount:
		if a.Selector == "" || a.Count == nil {
			return fmt.Errorf("%s: selector and count are required for count", where)
		}
	case AssertClass:
		if a.Selector == "" || a.Class == "" {
			return fmt.Errorf("%s: selector and class are required for class", where)
		}
	case AssertAttr:
		if a.Selector == "" || a.Name == "" {
			return fmt.Errorf("%s: selector and name are required for attr", where)
		}
	case AssertState:
		if a.Key == "" {
			return fmt.Errorf("%s: key is required for state", where)
		}
	case AssertPatches:
		if a.Op == "" || a.Count == nil {
			return fmt.Errorf("%s: op and count are required for patches", where)
		}
		if *a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative for patches", where)
		}
	case AssertHTML:
		if a.Contains == "" {
			return fmt.Errorf("%s: contains is required for html", where)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}
	return nil
}
