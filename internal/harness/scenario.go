package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: declare models, drive operations
// against a fresh database, then assert on what the tables hold.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario pins down.
	Description string `yaml:"description"`

	// Models are declared inline and registered in list order, so a model
	// may only reference models above it.
	Models []ModelDecl `yaml:"models"`

	// Steps run sequentially against the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final table contents after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ModelDecl mirrors a registry declaration in YAML form.
type ModelDecl struct {
	Name   string      `yaml:"name"`
	Table  string      `yaml:"table,omitempty"`
	Fields []FieldDecl `yaml:"fields"`
}

// FieldDecl is one declared field. Type strings match the compiler's:
// integer, text, real, blob, boolean, datetime.
type FieldDecl struct {
	Name       string   `yaml:"name"`
	Type       string   `yaml:"type"`
	PrimaryKey bool     `yaml:"primaryKey,omitempty"`
	Nullable   bool     `yaml:"nullable,omitempty"`
	Unique     bool     `yaml:"unique,omitempty"`
	Default    any      `yaml:"default,omitempty"`
	Ref        *RefDecl `yaml:"ref,omitempty"`
	OnCreate   bool     `yaml:"onCreate,omitempty"`
	OnUpdate   bool     `yaml:"onUpdate,omitempty"`
}

// RefDecl names a reference target. An empty Field means the target's
// primary key.
type RefDecl struct {
	Model string `yaml:"model"`
	Field string `yaml:"field,omitempty"`
}

// Step is one engine operation.
type Step struct {
	// Op is the operation: create, get, update, delete, delete_where,
	// filter, or advance.
	Op string `yaml:"op"`

	// Model names the registered model the operation targets. Empty for
	// advance, which targets the scenario clock.
	Model string `yaml:"model,omitempty"`

	// Duration moves the scenario clock forward (advance). Parsed with
	// time.ParseDuration, so "90m" and "1h30m" both work.
	Duration string `yaml:"duration,omitempty"`

	// Values carries the field values for create and update.
	Values map[string]any `yaml:"values,omitempty"`

	// Key is the primary key for get, update, and delete. Fresh databases
	// assign identities 1, 2, 3... in creation order, so scenarios can use
	// literal keys.
	Key int64 `yaml:"key,omitempty"`

	// Where holds equality filters for delete_where and filter.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect validates the step's outcome. Steps without an expect clause
	// must simply succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies a step's expected outcome.
type Expect struct {
	// Error names the expected failure category: validation, ref,
	// not_found, conflict, or driver. Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Key is the identity a create must return.
	Key int64 `yaml:"key,omitempty"`

	// Values are subset-matched against the fetched record (get).
	Values map[string]any `yaml:"values,omitempty"`

	// Absent asserts that a get finds no row.
	Absent bool `yaml:"absent,omitempty"`

	// Count is the row count a filter or delete_where must produce.
	Count *int64 `yaml:"count,omitempty"`
}

// Assertion validates final table contents.
type Assertion struct {
	// Type is the assertion type: count or row.
	Type string `yaml:"type"`

	// Model names the registered model to inspect.
	Model string `yaml:"model"`

	// Where holds equality filters for count assertions.
	Where map[string]any `yaml:"where,omitempty"`

	// Count is the expected number of matching rows (count).
	Count int64 `yaml:"count,omitempty"`

	// Key selects the row to inspect (row).
	Key int64 `yaml:"key,omitempty"`

	// Expect contains expected field values, subset-matched (row).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts the keyed row does not exist (row).
	Absent bool `yaml:"absent,omitempty"`
}

// Step operation constants.
const (
	OpCreate      = "create"
	OpGet         = "get"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpDeleteWhere = "delete_where"
	OpFilter      = "filter"
	OpAdvance     = "advance"
)

// Assertion type constants.
const (
	AssertCount = "count"
	AssertRow   = "row"
)

// Error category constants for expect clauses.
const (
	ExpectValidation = "validation"
	ExpectRef        = "ref"
	ExpectNotFound   = "not_found"
	ExpectConflict   = "conflict"
	ExpectDriver     = "driver"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields before anything executes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Models) == 0 {
		return fmt.Errorf("models list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, m := range s.Models {
		if m.Name == "" {
			return fmt.Errorf("models[%d]: name is required", i)
		}
		if len(m.Fields) == 0 {
			return fmt.Errorf("models[%d]: fields list is required", i)
		}
		for j, f := range m.Fields {
			if f.Name == "" {
				return fmt.Errorf("models[%d].fields[%d]: name is required", i, j)
			}
			if f.Type == "" {
				return fmt.Errorf("models[%d].fields[%d]: type is required", i, j)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateStep validates one step's shape by its operation.
func validateStep(index int, step *Step) error {
	if step.Model == "" && step.Op != OpAdvance {
		return fmt.Errorf("steps[%d]: model is required", index)
	}
	switch step.Op {
	case OpCreate:
		if step.Values == nil {
			return fmt.Errorf("steps[%d]: create requires values", index)
		}
	case OpGet:
		if step.Key == 0 {
			return fmt.Errorf("steps[%d]: get requires a key", index)
		}
	case OpUpdate:
		if step.Key == 0 || step.Values == nil {
			return fmt.Errorf("steps[%d]: update requires a key and values", index)
		}
	case OpDelete:
		if step.Key == 0 {
			return fmt.Errorf("steps[%d]: delete requires a key", index)
		}
	case OpDeleteWhere, OpFilter:
		// An empty where matches everything; nothing more to require.
	case OpAdvance:
		if step.Duration == "" {
			return fmt.Errorf("steps[%d]: advance requires a duration", index)
		}
		if _, err := time.ParseDuration(step.Duration); err != nil {
			return fmt.Errorf("steps[%d]: bad duration %q: %v", index, step.Duration, err)
		}
		if step.Expect != nil {
			return fmt.Errorf("steps[%d]: advance takes no expect clause", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}
	if step.Expect != nil && step.Expect.Error != "" {
		switch step.Expect.Error {
		case ExpectValidation, ExpectRef, ExpectNotFound, ExpectConflict, ExpectDriver:
		default:
			return fmt.Errorf("steps[%d]: unknown expect error %q", index, step.Expect.Error)
		}
	}
	return nil
}

// validateAssertion validates one assertion's shape by its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Model == "" {
		return fmt.Errorf("assertions[%d]: model is required", index)
	}
	switch a.Type {
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertRow:
		if a.Key == 0 {
			return fmt.Errorf("assertions[%d]: row requires a key", index)
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: row requires expect values or absent", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
