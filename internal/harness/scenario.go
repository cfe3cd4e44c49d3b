package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted session: an initial location, optional setup,
// a flow of user actions and assertions on the result.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Location is the URL the session starts at. Defaults to
	// http://localhost/.
	Location string `yaml:"location,omitempty"`

	Hosting Hosting `yaml:"hosting,omitempty"`

	// Tier selects the preference storage: fallback (default) or enhanced.
	// Both run in memory.
	Tier string `yaml:"tier,omitempty"`

	// Setup runs after the first render and is not traced.
	Setup []ActionStep `yaml:"setup,omitempty"`

	Flow []FlowStep `yaml:"flow"`

	Assertions []Assertion `yaml:"assertions"`

	// NavPrefix prefixes the sequential navigation ids. Defaults to "nav".
	NavPrefix string `yaml:"nav_prefix,omitempty"`
}

// Hosting mirrors the hosting section of the application config.
type Hosting struct {
	DomainSuffix string `yaml:"domain_suffix,omitempty"`
	BasePath     string `yaml:"base_path,omitempty"`
}

// ActionStep is a setup action.
type ActionStep struct {
	Action string         `yaml:"action"`
	Args   map[string]any `yaml:"args"`
}

// FlowStep is a traced action with an optional expectation on its result.
type FlowStep struct {
	Invoke string         `yaml:"invoke"`
	Args   map[string]any `yaml:"args"`

	// Expect is a subset match against the step's result.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args is a subset match used by trace_contains.
	Args map[string]any `yaml:"args,omitempty"`

	// Table is page, location, favourites or profile (final_state).
	Table string `yaml:"table,omitempty"`

	// Where selects one favourite by key (final_state on favourites).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is a subset match on the selected state (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	Count int `yaml:"count,omitempty"`

	Actions []string `yaml:"actions,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Step actions.
const (
	ActionNavigate      = "navigate"
	ActionClick         = "click"
	ActionBack          = "back"
	ActionForward       = "forward"
	ActionRefresh       = "refresh"
	ActionImport        = "import"
	ActionExport        = "export"
	ActionProfileSet    = "profile_set"
	ActionProfileRemove = "profile_remove"
)

var knownActions = map[string]bool{
	ActionNavigate:      true,
	ActionClick:         true,
	ActionBack:          true,
	ActionForward:       true,
	ActionRefresh:       true,
	ActionImport:        true,
	ActionExport:        true,
	ActionProfileSet:    true,
	ActionProfileRemove: true,
}

var stateTables = map[string]bool{
	"page":       true,
	"location":   true,
	"favourites": true,
	"profile":    true,
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
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
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	switch s.Tier {
	case "", "fallback", "enhanced":
	default:
		return fmt.Errorf("unknown tier %q", s.Tier)
	}

	for i, step := range s.Setup {
		if !knownActions[step.Action] {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
	}
	for i, step := range s.Flow {
		if !knownActions[step.Invoke] {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if err := requireArgs(step.Invoke, step.Args); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func requireArgs(action string, args map[string]any) error {
	need := map[string][]string{
		ActionNavigate:      {"path"},
		ActionClick:         {"attrs"},
		ActionProfileSet:    {"field", "value"},
		ActionProfileRemove: {"field"},
	}[action]
	for _, k := range need {
		if _, ok := args[k]; !ok {
			return fmt.Errorf("%s requires args.%s", action, k)
		}
	}
	if action == ActionImport {
		_, doc := args["document"]
		_, text := args["text"]
		if doc == text {
			return fmt.Errorf("import requires exactly one of args.document or args.text")
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if !stateTables[a.Table] {
			return fmt.Errorf("assertions[%d]: unknown final_state table %q", index, a.Table)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
