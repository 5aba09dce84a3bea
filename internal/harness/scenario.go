package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/emsync/internal/model"
)

// Scenario defines a sync scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Remote is the document the store returns on fetch. Map keys must be
	// strings; quote numeric keys such as user ids.
	Remote map[string]any `yaml:"remote"`

	// Steps run in order after an initial refresh.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, snapshot and status.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is either a refresh or one write.
type Step struct {
	// Refresh runs a foreground refresh instead of a write.
	Refresh bool `yaml:"refresh,omitempty"`

	// Action is the write action name, e.g. "upsertEmployee".
	Action string `yaml:"action,omitempty"`

	// Payload is the write payload, sanitized like a remote row.
	Payload map[string]any `yaml:"payload,omitempty"`

	// Reply scripts the store's answer. Nil means success without a record.
	Reply *Reply `yaml:"reply,omitempty"`

	// Expect validates the step's completion. Nil skips validation.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Reply is a scripted store answer.
type Reply struct {
	// Data is the canonical record returned on success.
	Data map[string]any `yaml:"data,omitempty"`

	// Error makes the write fail.
	Error *ReplyError `yaml:"error,omitempty"`

	// Remote replaces tables of the fetched document once the store has
	// handled the write, so later refreshes see the store's new state.
	Remote map[string]any `yaml:"remote,omitempty"`
}

// ReplyError is a scripted write failure.
type ReplyError struct {
	Code    string `yaml:"code"`
	Message string `yaml:"message"`
}

// ExpectClause specifies the expected completion.
type ExpectClause struct {
	// Case is "ok", a sync error code such as "SERVER_REJECTED", or
	// "PLAN_ERROR" when the write was refused before sending. For refresh
	// steps it is "updated", "skipped", "offline" or an error code.
	Case string `yaml:"case"`

	// Result is a subset of the returned record's fields.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace, final state or status.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is used by trace_contains and trace_count.
	Action string `yaml:"action,omitempty"`

	// Args are matched as a subset by trace_contains.
	Args map[string]any `yaml:"args,omitempty"`

	// Actions is the expected order for trace_order.
	Actions []string `yaml:"actions,omitempty"`

	// Count is used by trace_count and table_count.
	Count int `yaml:"count,omitempty"`

	// Table and Where select rows for final_state and table_count.
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected values for final_state and status.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertTableCount    = "table_count"
	AssertStatus        = "status"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	switch {
	case st.Refresh && st.Action != "":
		return fmt.Errorf("steps[%d]: refresh and action are mutually exclusive", index)
	case st.Refresh:
		if st.Reply != nil {
			return fmt.Errorf("steps[%d]: reply is only valid for writes", index)
		}
	case st.Action == "":
		return fmt.Errorf("steps[%d]: action or refresh is required", index)
	default:
		if _, err := model.ParseAction(st.Action); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
		if st.Payload == nil {
			return fmt.Errorf("steps[%d]: payload is required (use {} if empty)", index)
		}
		if st.Reply != nil && st.Reply.Error != nil && st.Reply.Data != nil {
			return fmt.Errorf("steps[%d]: reply cannot carry both data and error", index)
		}
		if st.Reply != nil && st.Reply.Error != nil && st.Reply.Error.Code == "" {
			return fmt.Errorf("steps[%d].reply.error: code is required", index)
		}
	}
	if st.Expect != nil && st.Expect.Case == "" {
		return fmt.Errorf("steps[%d].expect: case is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
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
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertTableCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for table_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for table_count", index)
		}
	case AssertStatus:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
