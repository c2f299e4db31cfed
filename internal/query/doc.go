// Package query implements filtering, sorting and pagination over store
// collections.
//
// A Query is lowered to a Plan holding a sealed predicate tree:
//
//	Query{Text: "ada", Fields: {"stage": "tech"}}
//	  -> And{Contains{name|email, "ada"}, Equals{stage, "tech"}}
//
// Predicate is a sealed interface using the marker method pattern, so the
// evaluator's type switch is exhaustive:
//   - Contains: case-folded substring match, OR across fields
//   - Equals: exact match on the attribute's text form
//   - And: all must hold (empty = always true)
//
// Order-bearing collections are sorted ascending by order (ties by id) before
// pagination. Evaluation is a pure function of the entities and the plan,
// so the same query against unchanged state always yields the same page.
package query
