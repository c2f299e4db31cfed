package query

import (
	"github.com/roach88/hrsync/internal/ir"
)

// Query selects one page of a collection.
//
// Page and PageSize of 0 mean "first page" and "collection default".
type Query struct {
	Collection ir.Collection     `json:"collection" yaml:"collection"`
	Text       string            `json:"text,omitempty" yaml:"text,omitempty"`
	Fields     map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Page       int               `json:"page,omitempty" yaml:"page,omitempty"`
	PageSize   int               `json:"pageSize,omitempty" yaml:"pageSize,omitempty"`
}

// Page is the result of a query.
type Page struct {
	Items    []ir.Entity `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`

	// Revision is the store revision the page was read at.
	Revision int64 `json:"revision"`
}

// Predicate is a filter condition over one entity.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode()
}

// Contains holds when Needle is a case-folded substring of any of Fields.
type Contains struct {
	Fields []string
	Needle string
}

func (Contains) predicateNode() {}

// Equals holds when the attribute's text form equals Value exactly.
type Equals struct {
	Field string
	Value string
}

func (Equals) predicateNode() {}

// And holds when every predicate holds. Empty means always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Plan is a validated, defaulted query ready for evaluation.
type Plan struct {
	Spec     ir.CollectionSpec
	Filter   Predicate
	Page     int
	PageSize int
}
