package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/hrsync/internal/ir"
)

// Compile validates q, applies defaults and lowers it to a Plan.
//
// Negative page numbers or sizes, unknown collections and field filters the
// collection does not support are validation errors.
func Compile(q Query) (Plan, error) {
	spec, err := ir.LookupCollection(q.Collection)
	if err != nil {
		return Plan{}, err
	}

	if q.Page < 0 {
		return Plan{}, invalid(q, "page", fmt.Sprintf("page must be >= 1, got %d", q.Page))
	}
	if q.PageSize < 0 {
		return Plan{}, invalid(q, "pageSize", fmt.Sprintf("pageSize must be >= 1, got %d", q.PageSize))
	}

	plan := Plan{
		Spec:     spec,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if plan.Page == 0 {
		plan.Page = 1
	}
	if plan.PageSize == 0 {
		plan.PageSize = spec.DefaultPageSize
	}

	preds := []Predicate{}
	if q.Text != "" {
		preds = append(preds, Contains{Fields: slices.Clone(spec.TextFields), Needle: q.Text})
	}

	// Sorted so the plan (and its description) is deterministic.
	keys := make([]string, 0, len(q.Fields))
	for k := range q.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, field := range keys {
		if !spec.Filterable(field) {
			return Plan{}, invalid(q, field, fmt.Sprintf("cannot filter %s by %q", spec.Name, field))
		}
		if q.Fields[field] == "" {
			continue
		}
		preds = append(preds, Equals{Field: field, Value: q.Fields[field]})
	}

	plan.Filter = And{Predicates: preds}
	return plan, nil
}

func invalid(q Query, field, msg string) error {
	return &ir.Error{
		Code:       ir.CodeValidation,
		Message:    msg,
		Op:         "query",
		Collection: q.Collection,
		Field:      field,
	}
}

// Describe renders a predicate tree for logs and traces.
func Describe(p Predicate) string {
	switch pred := p.(type) {
	case nil:
		return "true"
	case Contains:
		return fmt.Sprintf("contains(%s, %q)", strings.Join(pred.Fields, "|"), pred.Needle)
	case Equals:
		return fmt.Sprintf("%s = %q", pred.Field, pred.Value)
	case And:
		if len(pred.Predicates) == 0 {
			return "true"
		}
		parts := make([]string, len(pred.Predicates))
		for i, sub := range pred.Predicates {
			parts[i] = Describe(sub)
		}
		return strings.Join(parts, " AND ")
	default:
		return fmt.Sprintf("<unknown %T>", p)
	}
}
