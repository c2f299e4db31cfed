package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
)

// Scenario defines a conformance scenario: a fixture, a flow of engine
// calls and optimistic intents with their expected outcomes, and assertions
// on the trace and the final store state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is the store state before the first step.
	Fixture Fixture `yaml:"fixture"`

	// Setup steps run before the flow and must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_order, final_state, timeline, revision
	Assertions []Assertion `yaml:"assertions"`
}

// Fixture lists seeded entities as flat attribute maps with an "id" key.
// Missing order attributes default to the entity's position; candidates
// default to stage applied and get their initial timeline event.
type Fixture struct {
	Jobs       []map[string]any `yaml:"jobs,omitempty"`
	Candidates []map[string]any `yaml:"candidates,omitempty"`
}

// Step is one call against the engine or the optimistic controller.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Collection names the target collection (create, update, reorder, drag).
	Collection string `yaml:"collection,omitempty"`

	// ID is the subject entity: the candidate for updateStage, move and
	// timeline, the job for assessment steps, the dragged item for drag.
	ID string `yaml:"id,omitempty"`

	// Target is the item a drag drops onto.
	Target string `yaml:"target,omitempty"`

	// Fields are the attributes for create and the patch for update.
	Fields map[string]any `yaml:"fields,omitempty"`

	// Stage is the destination stage for updateStage and move.
	Stage string `yaml:"stage,omitempty"`

	// From and To are reorder positions.
	From *int `yaml:"from,omitempty"`
	To   *int `yaml:"to,omitempty"`

	// Query is the list query, or the controller query for drag and move.
	Query *query.Query `yaml:"query,omitempty"`

	// Assessment is the document for saveAssessment, in its JSON shape.
	Assessment map[string]any `yaml:"assessment,omitempty"`

	// Fail injects a transport failure into the step's mutating call.
	Fail bool `yaml:"fail,omitempty"`

	// Expect overrides the default expectation: success, or TRANSPORT
	// (phase rolled_back for intents) when Fail is set.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpCreate         = "create"
	OpUpdate         = "update"
	OpUpdateStage    = "updateStage"
	OpReorder        = "reorder"
	OpList           = "list"
	OpTimeline       = "timeline"
	OpGetAssessment  = "getAssessment"
	OpSaveAssessment = "saveAssessment"
	OpDrag           = "drag"
	OpMove           = "move"
)

var stepOps = []string{
	OpCreate, OpUpdate, OpUpdateStage, OpReorder, OpList, OpTimeline,
	OpGetAssessment, OpSaveAssessment, OpDrag, OpMove,
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected error code (TRANSPORT, NOT_FOUND, VALIDATION).
	Error string `yaml:"error,omitempty"`

	// Field is the expected offending field of a VALIDATION error.
	Field string `yaml:"field,omitempty"`

	// Phase is the expected settled phase of an intent.
	Phase string `yaml:"phase,omitempty"`

	// IDs are the expected result ids, in order (list, reorder, drag, move).
	IDs []string `yaml:"ids,omitempty"`

	// Total is the expected list total.
	Total *int `yaml:"total,omitempty"`

	// Count is the expected timeline length or assessment question count.
	Count *int `yaml:"count,omitempty"`

	// Result holds expected attributes of the returned entity.
	// Subset match.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a step with op (and outcome, if set) ran
	// - "trace_order": the ops appear in order
	// - "trace_count": op appears exactly count times
	// - "final_order": the collection's ids sorted by order equal ids, and
	//   the orders are a dense permutation
	// - "final_state": the entity's attributes include expect
	// - "timeline": the candidate's trail has count events, or the given
	//   destination stages
	// - "revision": the final store revision equals count
	Type string `yaml:"type"`

	Op      string   `yaml:"op,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Ops     []string `yaml:"ops,omitempty"`
	Count   int      `yaml:"count,omitempty"`

	Collection string         `yaml:"collection,omitempty"`
	ID         string         `yaml:"id,omitempty"`
	IDs        []string       `yaml:"ids,omitempty"`
	Expect     map[string]any `yaml:"expect,omitempty"`
	Stages     []string       `yaml:"stages,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalOrder    = "final_order"
	AssertFinalState    = "final_state"
	AssertTimeline      = "timeline"
	AssertRevision      = "revision"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
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

// validateScenario checks that required fields are present and valid.
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

	for i, fields := range s.Fixture.Jobs {
		if err := validateFixtureEntity(fields); err != nil {
			return fmt.Errorf("fixture.jobs[%d]: %w", i, err)
		}
	}
	for i, fields := range s.Fixture.Candidates {
		if err := validateFixtureEntity(fields); err != nil {
			return fmt.Errorf("fixture.candidates[%d]: %w", i, err)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(step); err != nil {
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

func validateFixtureEntity(fields map[string]any) error {
	id, ok := fields[ir.AttrID].(string)
	if !ok || id == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}

// validateStep checks the arguments each op needs.
func validateStep(step Step) error {
	if step.Op == "" {
		return fmt.Errorf("op is required")
	}
	if !slices.Contains(stepOps, step.Op) {
		return fmt.Errorf("unknown op %q", step.Op)
	}

	switch step.Op {
	case OpCreate:
		if step.Collection == "" {
			return fmt.Errorf("collection is required for %s", step.Op)
		}
	case OpUpdate:
		if step.Collection == "" || step.ID == "" {
			return fmt.Errorf("collection and id are required for %s", step.Op)
		}
	case OpUpdateStage, OpMove:
		if step.ID == "" || step.Stage == "" {
			return fmt.Errorf("id and stage are required for %s", step.Op)
		}
	case OpReorder:
		if step.Collection == "" || step.From == nil || step.To == nil {
			return fmt.Errorf("collection, from and to are required for %s", step.Op)
		}
	case OpList:
		if step.Query == nil || step.Query.Collection == "" {
			return fmt.Errorf("query.collection is required for %s", step.Op)
		}
	case OpTimeline, OpGetAssessment:
		if step.ID == "" {
			return fmt.Errorf("id is required for %s", step.Op)
		}
	case OpSaveAssessment:
		if step.ID == "" || step.Assessment == nil {
			return fmt.Errorf("id and assessment are required for %s", step.Op)
		}
	case OpDrag:
		if step.Collection == "" || step.ID == "" || step.Target == "" {
			return fmt.Errorf("collection, id and target are required for %s", step.Op)
		}
	}

	if step.Fail && !mutating(step.Op) {
		return fmt.Errorf("fail is only valid for mutating ops, not %s", step.Op)
	}
	if step.Expect != nil && step.Expect.Phase != "" && !intent(step.Op) {
		return fmt.Errorf("expect.phase is only valid for drag and move")
	}
	return nil
}

func mutating(op string) bool {
	switch op {
	case OpList, OpTimeline, OpGetAssessment:
		return false
	}
	return true
}

func intent(op string) bool {
	return op == OpDrag || op == OpMove
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalOrder:
		if a.Collection == "" {
			return fmt.Errorf("assertions[%d]: collection is required for final_order", index)
		}
	case AssertFinalState:
		if a.Collection == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: collection and id are required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertTimeline:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for timeline", index)
		}
	case AssertRevision:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for revision", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
