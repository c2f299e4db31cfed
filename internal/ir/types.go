package ir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Well-known attribute names.
const (
	AttrID        = "id"
	AttrOrder     = "order"
	AttrStage     = "stage"
	AttrTitle     = "title"
	AttrSlug      = "slug"
	AttrStatus    = "status"
	AttrTags      = "tags"
	AttrCreatedAt = "createdAt"
	AttrName      = "name"
	AttrEmail     = "email"
	AttrJobID     = "jobId"
	AttrAppliedAt = "appliedAt"
)

// Entity is a record subject to synchronization: a unique identifier plus a
// mutable attribute set. Order-bearing entities carry an int "order" attribute.
//
// The JSON form is flat: {"id": ..., <attrs>...}.
type Entity struct {
	ID    string
	Attrs IRObject
}

// NewEntity builds an entity, copying attrs.
func NewEntity(id string, attrs IRObject) Entity {
	return Entity{ID: id, Attrs: attrs.Clone()}
}

// Clone returns a deep copy.
func (e Entity) Clone() Entity {
	return Entity{ID: e.ID, Attrs: e.Attrs.Clone()}
}

// Get returns the attribute value, or nil if absent.
func (e Entity) Get(attr string) IRValue {
	if attr == AttrID {
		return IRString(e.ID)
	}
	return e.Attrs[attr]
}

// String returns the attribute rendered as text ("" when absent).
func (e Entity) String(attr string) string {
	return Text(e.Get(attr))
}

// Order returns the entity's order attribute.
func (e Entity) Order() (int64, bool) {
	n, ok := e.Attrs[AttrOrder].(IRInt)
	return int64(n), ok
}

// WithOrder returns a copy with the order attribute set.
func (e Entity) WithOrder(order int64) Entity {
	out := e.Clone()
	if out.Attrs == nil {
		out.Attrs = IRObject{}
	}
	out.Attrs[AttrOrder] = IRInt(order)
	return out
}

// Stage returns the entity's pipeline stage ("" when absent).
func (e Entity) Stage() Stage {
	return Stage(e.String(AttrStage))
}

// Object returns the flat attribute object including the id.
func (e Entity) Object() IRObject {
	obj := e.Attrs.Clone()
	if obj == nil {
		obj = IRObject{}
	}
	obj[AttrID] = IRString(e.ID)
	return obj
}

// MarshalJSON writes the flat object form.
func (e Entity) MarshalJSON() ([]byte, error) {
	return e.Object().MarshalJSON()
}

// UnmarshalJSON reads the flat object form. The id must be a string.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var obj IRObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	id, ok := obj[AttrID].(IRString)
	if !ok || id == "" {
		return fmt.Errorf("entity: missing string id")
	}
	delete(obj, AttrID)
	e.ID = string(id)
	e.Attrs = obj
	return nil
}

// Stage is a candidate pipeline stage.
type Stage string

// Pipeline stages in order. StageRejected is reachable from any stage.
const (
	StageApplied  Stage = "applied"
	StageScreen   Stage = "screen"
	StageTech     Stage = "tech"
	StageOffer    Stage = "offer"
	StageHired    Stage = "hired"
	StageRejected Stage = "rejected"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageApplied, StageScreen, StageTech, StageOffer, StageHired, StageRejected}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// ParseStage validates a stage name.
func ParseStage(name string) (Stage, error) {
	s := Stage(name)
	if !s.Valid() {
		return "", NewValidationError(AttrStage, fmt.Sprintf("unknown stage %q", name))
	}
	return s, nil
}

// TimelineEvent types.
const (
	EventStageChange = "stage_change"
)

// TimelineEvent is an immutable audit trail entry owned by one candidate.
// From is nil for the initial event.
type TimelineEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	From      *Stage    `json:"from"`
	To        Stage     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
}

// NewStageChange builds the event recorded when a candidate moves from one
// stage to another.
func NewStageChange(id string, from, to Stage, at time.Time) TimelineEvent {
	f := from
	return TimelineEvent{
		ID:        id,
		Type:      EventStageChange,
		From:      &f,
		To:        to,
		Timestamp: at,
		Note:      fmt.Sprintf("Moved from %s to %s", from, to),
	}
}

// NewApplication builds the first event of a candidate's trail.
func NewApplication(id string, stage Stage, at time.Time) TimelineEvent {
	return TimelineEvent{
		ID:        id,
		Type:      EventStageChange,
		To:        stage,
		Timestamp: at,
		Note:      "Application submitted",
	}
}

// Question types accepted in assessments.
const (
	QuestionSingleChoice = "single-choice"
	QuestionMultiChoice  = "multi-choice"
	QuestionShortText    = "short-text"
	QuestionLongText     = "long-text"
	QuestionNumeric      = "numeric"
	QuestionFileUpload   = "file-upload"
)

// QuestionTypes lists every question type.
var QuestionTypes = []string{
	QuestionSingleChoice, QuestionMultiChoice, QuestionShortText,
	QuestionLongText, QuestionNumeric, QuestionFileUpload,
}

// Assessment is the per-job questionnaire document.
type Assessment struct {
	ID       string    `json:"id" validate:"required"`
	JobID    string    `json:"jobId" validate:"required"`
	Title    string    `json:"title" validate:"required"`
	Sections []Section `json:"sections" validate:"dive"`
}

// Section groups questions.
type Section struct {
	ID        string     `json:"id" validate:"required"`
	Title     string     `json:"title" validate:"required"`
	Questions []Question `json:"questions" validate:"dive"`
}

// Question is one assessment item. Choice questions carry at least one
// option.
type Question struct {
	ID         string              `json:"id" validate:"required"`
	Type       string              `json:"type" validate:"required,oneof=single-choice multi-choice short-text long-text numeric file-upload"`
	Title      string              `json:"title" validate:"required"`
	Required   bool                `json:"required"`
	Options    []string            `json:"options,omitempty" validate:"omitempty,dive,required"`
	Validation *QuestionValidation `json:"validation,omitempty"`
}

// QuestionValidation holds optional answer constraints.
type QuestionValidation struct {
	Min       *int `json:"min,omitempty"`
	Max       *int `json:"max,omitempty"`
	MaxLength *int `json:"maxLength,omitempty" validate:"omitempty,gt=0"`
}

// Clone returns a deep copy.
func (a Assessment) Clone() Assessment {
	out := a
	out.Sections = make([]Section, len(a.Sections))
	for i, s := range a.Sections {
		sc := s
		sc.Questions = make([]Question, len(s.Questions))
		for j, q := range s.Questions {
			qc := q
			if q.Options != nil {
				qc.Options = append([]string(nil), q.Options...)
			}
			if q.Validation != nil {
				v := *q.Validation
				qc.Validation = &v
			}
			sc.Questions[j] = qc
		}
		out.Sections[i] = sc
	}
	return out
}

// Snapshot is the complete serializable state of the durable store.
type Snapshot struct {
	Revision           int64                      `json:"revision"`
	Collections        map[Collection][]Entity    `json:"collections"`
	Assessments        map[string]Assessment      `json:"assessments"`
	CandidateTimelines map[string][]TimelineEvent `json:"candidateTimelines"`
}

// NewSnapshot returns an empty snapshot with every registered collection present.
func NewSnapshot() Snapshot {
	s := Snapshot{
		Collections:        make(map[Collection][]Entity, len(collectionSpecs)),
		Assessments:        map[string]Assessment{},
		CandidateTimelines: map[string][]TimelineEvent{},
	}
	for _, spec := range collectionSpecs {
		s.Collections[spec.Name] = []Entity{}
	}
	return s
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Revision:           s.Revision,
		Collections:        make(map[Collection][]Entity, len(s.Collections)),
		Assessments:        make(map[string]Assessment, len(s.Assessments)),
		CandidateTimelines: make(map[string][]TimelineEvent, len(s.CandidateTimelines)),
	}
	for name, entities := range s.Collections {
		out.Collections[name] = CloneEntities(entities)
	}
	for jobID, a := range s.Assessments {
		out.Assessments[jobID] = a.Clone()
	}
	for id, events := range s.CandidateTimelines {
		out.CandidateTimelines[id] = append([]TimelineEvent(nil), events...)
	}
	return out
}

// CloneEntities deep-copies a slice of entities. Never returns nil.
func CloneEntities(entities []Entity) []Entity {
	out := make([]Entity, len(entities))
	for i, e := range entities {
		out[i] = e.Clone()
	}
	return out
}
