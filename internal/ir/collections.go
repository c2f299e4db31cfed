package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Collection names a homogeneous set of entities in the snapshot.
type Collection string

const (
	CollectionJobs       Collection = "jobs"
	CollectionCandidates Collection = "candidates"
)

// CollectionSpec describes how a collection is identified, searched and paged.
type CollectionSpec struct {
	Name Collection

	// IDPrefix is prepended to generated ids ("job-<uuid>").
	IDPrefix string

	// TextFields are the attributes searched by free-text queries.
	TextFields []string

	// FilterFields are the attributes accepted as exact-match filters.
	FilterFields []string

	// Ordered marks an order-bearing collection.
	Ordered bool

	DefaultPageSize int
}

var collectionSpecs = []CollectionSpec{
	{
		Name:            CollectionJobs,
		IDPrefix:        "job",
		TextFields:      []string{AttrTitle},
		FilterFields:    []string{AttrID, AttrStatus, AttrSlug, AttrTitle},
		Ordered:         true,
		DefaultPageSize: 10,
	},
	{
		Name:            CollectionCandidates,
		IDPrefix:        "candidate",
		TextFields:      []string{AttrName, AttrEmail},
		FilterFields:    []string{AttrID, AttrStage, AttrJobID, AttrEmail, AttrName},
		Ordered:         true,
		DefaultPageSize: 50,
	},
}

// Collections returns every registered collection spec.
func Collections() []CollectionSpec {
	return slices.Clone(collectionSpecs)
}

// LookupCollection returns the spec for name.
func LookupCollection(name Collection) (CollectionSpec, error) {
	for _, spec := range collectionSpecs {
		if spec.Name == name {
			return spec, nil
		}
	}
	return CollectionSpec{}, &Error{
		Code:       CodeValidation,
		Message:    fmt.Sprintf("unknown collection %q", name),
		Collection: name,
	}
}

// Filterable reports whether attr may be used as an exact-match filter.
func (c CollectionSpec) Filterable(attr string) bool {
	return slices.Contains(c.FilterFields, attr)
}

// Slug derives a job slug: lower-case title, whitespace runs replaced by "-".
func Slug(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), "-")
}
