package harness

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", event.Step, event.Op, event.Args, event.Outcome)
		}
	}
	return buf.String()
}

// evaluateAssertion dispatches on the assertion type.
func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalOrder:
		return assertFinalOrder(result.Final, a)
	case AssertFinalState:
		return assertFinalState(result.Final, a)
	case AssertTimeline:
		return assertTimeline(result.Final, a)
	case AssertRevision:
		return assertRevision(result.Final, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks that a step with the op ran, with the given
// outcome when one is set.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Op == a.Op && (a.Outcome == "" || event.Outcome == a.Outcome) {
			return nil
		}
	}

	expected := "op " + a.Op
	if a.Outcome != "" {
		expected += " with outcome " + a.Outcome
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that ops appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	// First position of each expected op, 1-indexed for readability.
	positions := make(map[string]int)
	for i, event := range trace {
		if positions[event.Op] == 0 {
			positions[event.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the op appears exactly count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == a.Op && (a.Outcome == "" || event.Outcome == a.Outcome) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("op %s to appear %d times", a.Op, a.Count),
			Actual:   fmt.Sprintf("appeared %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalOrder checks the collection's order-sorted ids and that the
// orders form the dense permutation 0..n-1.
func assertFinalOrder(snap ir.Snapshot, a Assertion) error {
	items := ir.CloneEntities(snap.Collections[ir.Collection(a.Collection)])
	query.SortByOrder(items)

	for i, e := range items {
		order, ok := e.Order()
		if !ok || order != int64(i) {
			return &AssertionError{
				Type:     AssertFinalOrder,
				Expected: fmt.Sprintf("dense orders 0..%d in %s", len(items)-1, a.Collection),
				Actual:   fmt.Sprintf("%s has order %v at position %d", e.ID, e.Get(ir.AttrOrder), i),
			}
		}
	}

	if a.IDs != nil {
		got := entityIDs(items)
		if !equalStrings(got, a.IDs) {
			return &AssertionError{
				Type:     AssertFinalOrder,
				Expected: fmt.Sprintf("%s ordered as %v", a.Collection, a.IDs),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
	}
	return nil
}

// assertFinalState checks a subset of one entity's attributes.
func assertFinalState(snap ir.Snapshot, a Assertion) error {
	entities := snap.Collections[ir.Collection(a.Collection)]
	i := slices.IndexFunc(entities, func(e ir.Entity) bool { return e.ID == a.ID })
	if i < 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("entity %s in %s", a.ID, a.Collection),
			Actual:   "not found",
		}
	}
	if err := matchAttrs(entities[i], a.Expect); err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s attributes %v", a.ID, a.Expect),
			Actual:   err.Error(),
		}
	}
	return nil
}

// assertTimeline checks a candidate's audit trail length or the sequence of
// stages it moved to.
func assertTimeline(snap ir.Snapshot, a Assertion) error {
	events := snap.CandidateTimelines[a.ID]

	if a.Stages != nil {
		got := make([]string, len(events))
		for i, ev := range events {
			got[i] = string(ev.To)
		}
		if !equalStrings(got, a.Stages) {
			return &AssertionError{
				Type:     AssertTimeline,
				Expected: fmt.Sprintf("%s moved through %v", a.ID, a.Stages),
				Actual:   fmt.Sprintf("%v", got),
			}
		}
		return nil
	}

	if len(events) != a.Count {
		return &AssertionError{
			Type:     AssertTimeline,
			Expected: fmt.Sprintf("%s to have %d events", a.ID, a.Count),
			Actual:   fmt.Sprintf("%d events", len(events)),
		}
	}
	return nil
}

func assertRevision(snap ir.Snapshot, a Assertion) error {
	if snap.Revision != int64(a.Count) {
		return &AssertionError{
			Type:     AssertRevision,
			Expected: fmt.Sprintf("revision %d", a.Count),
			Actual:   fmt.Sprintf("revision %d", snap.Revision),
		}
	}
	return nil
}

// matchAttrs checks that e carries every expected attribute. Values are
// compared by their canonical JSON encoding.
func matchAttrs(e ir.Entity, expect map[string]any) error {
	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		want, err := ir.MarshalCanonical(expect[k])
		if err != nil {
			return fmt.Errorf("expected %s: %w", k, err)
		}
		v := e.Get(k)
		if v == nil {
			return fmt.Errorf("%s: attribute %s missing", e.ID, k)
		}
		got, err := ir.MarshalCanonical(v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", e.ID, k, err)
		}
		if !bytes.Equal(got, want) {
			return fmt.Errorf("%s.%s: expected %s, got %s", e.ID, k, want, got)
		}
	}
	return nil
}

func equalStrings(got, want []string) bool {
	if len(got) == 0 && len(want) == 0 {
		return true
	}
	return slices.Equal(got, want)
}
