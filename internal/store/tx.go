package store

import (
	"slices"

	"github.com/roach88/hrsync/internal/ir"
)

// Tx is a mutable view of a cloned snapshot, valid only inside Update.
// Changes become visible to readers when Update commits.
type Tx struct {
	snap *ir.Snapshot
}

// Revision returns the revision the transaction started from.
func (tx *Tx) Revision() int64 {
	return tx.snap.Revision
}

// List returns the collection's entities in stored order. The slice is owned
// by the transaction; use ReplaceAll to change membership.
func (tx *Tx) List(collection ir.Collection) []ir.Entity {
	return tx.snap.Collections[collection]
}

// Get returns the entity with id.
func (tx *Tx) Get(collection ir.Collection, id string) (ir.Entity, bool) {
	i := tx.index(collection, id)
	if i < 0 {
		return ir.Entity{}, false
	}
	return tx.snap.Collections[collection][i], true
}

// Count returns the number of entities in the collection.
func (tx *Tx) Count(collection ir.Collection) int {
	return len(tx.snap.Collections[collection])
}

// Put replaces the entity with the same id, or appends it.
func (tx *Tx) Put(collection ir.Collection, entity ir.Entity) error {
	if _, err := ir.LookupCollection(collection); err != nil {
		return err
	}
	entity = entity.Clone()
	if i := tx.index(collection, entity.ID); i >= 0 {
		tx.snap.Collections[collection][i] = entity
		return nil
	}
	tx.snap.Collections[collection] = append(tx.snap.Collections[collection], entity)
	return nil
}

// ReplaceAll replaces the collection's contents.
func (tx *Tx) ReplaceAll(collection ir.Collection, entities []ir.Entity) error {
	if _, err := ir.LookupCollection(collection); err != nil {
		return err
	}
	tx.snap.Collections[collection] = ir.CloneEntities(entities)
	return nil
}

// Timeline returns the candidate's events.
func (tx *Tx) Timeline(candidateID string) []ir.TimelineEvent {
	return tx.snap.CandidateTimelines[candidateID]
}

// AppendEvent appends to the candidate's audit trail.
func (tx *Tx) AppendEvent(candidateID string, ev ir.TimelineEvent) {
	tx.snap.CandidateTimelines[candidateID] = append(tx.snap.CandidateTimelines[candidateID], ev)
}

// Assessment returns the job's assessment.
func (tx *Tx) Assessment(jobID string) (ir.Assessment, bool) {
	a, ok := tx.snap.Assessments[jobID]
	return a, ok
}

// SetAssessment stores a under its job id.
func (tx *Tx) SetAssessment(a ir.Assessment) {
	tx.snap.Assessments[a.JobID] = a.Clone()
}

func (tx *Tx) index(collection ir.Collection, id string) int {
	return slices.IndexFunc(tx.snap.Collections[collection], func(e ir.Entity) bool {
		return e.ID == id
	})
}
