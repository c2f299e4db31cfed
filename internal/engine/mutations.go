package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
	"github.com/roach88/hrsync/internal/store"
	"github.com/roach88/hrsync/internal/transport"
)

// CreateEntity validates fields, assigns an id, derived attributes and (for
// order-bearing collections) order = current count, and stores the entity.
// A created candidate gets its "Application submitted" timeline event.
//
// id and order are assigned by the service and rejected in fields.
func (e *Engine) CreateEntity(ctx context.Context, collection ir.Collection, fields ir.IRObject) (_ ir.Entity, err error) {
	spec, err := ir.LookupCollection(collection)
	if err != nil {
		return ir.Entity{}, err
	}
	op := entityOp("create", spec)
	ctx, span := startSpan(ctx, op, attribute.String("collection", string(collection)))
	defer func() { endSpan(span, err) }()

	if err := checkReserved(op, collection, fields); err != nil {
		return ir.Entity{}, err
	}
	attrs := fields.Clone()
	if attrs == nil {
		attrs = ir.IRObject{}
	}
	switch collection {
	case ir.CollectionJobs:
		setDefault(attrs, ir.AttrStatus, "active")
	case ir.CollectionCandidates:
		setDefault(attrs, ir.AttrStage, string(ir.StageApplied))
	}
	if attrs, err = normalize(op, collection, attrs); err != nil {
		return ir.Entity{}, err
	}

	var created ir.Entity
	err = e.sim.Do(ctx, transport.WriteOp(op), func(ctx context.Context) error {
		return e.submit(ctx, op, func(tx *store.Tx) error {
			now := e.now.Now()
			stamp := ir.IRString(now.Format(time.RFC3339Nano))
			ent := ir.NewEntity(spec.IDPrefix+"-"+e.ids.Generate(), attrs)

			switch collection {
			case ir.CollectionJobs:
				ent.Attrs[ir.AttrCreatedAt] = stamp
			case ir.CollectionCandidates:
				if err := requireJob(tx, op, ent.String(ir.AttrJobID)); err != nil {
					return err
				}
				ent.Attrs[ir.AttrAppliedAt] = stamp
			}
			if spec.Ordered {
				ent.Attrs[ir.AttrOrder] = ir.IRInt(tx.Count(collection))
			}
			if err := tx.Put(collection, ent); err != nil {
				return err
			}
			if collection == ir.CollectionCandidates {
				tx.AppendEvent(ent.ID, ir.NewApplication(e.eventID(), ent.Stage(), now))
			}
			created = ent
			return nil
		})
	})
	if err != nil {
		return ir.Entity{}, tagOp(op, err)
	}

	span.SetAttributes(attribute.String("entity.id", created.ID))
	e.logger.Debug("entity created", "op", op, "collection", collection, "id", created.ID)
	return created, nil
}

// UpdateEntity merges patch into the entity and re-validates the result.
// A title change re-derives the slug; a stage change appends one timeline
// event. Absent ids fail with a NOT_FOUND error.
func (e *Engine) UpdateEntity(ctx context.Context, collection ir.Collection, id string, patch ir.IRObject) (ir.Entity, error) {
	spec, err := ir.LookupCollection(collection)
	if err != nil {
		return ir.Entity{}, err
	}
	return e.update(ctx, entityOp("update", spec), collection, id, patch)
}

// UpdateStage moves a candidate to stage. Exactly one timeline event is
// appended when the stage changes and none when it is unchanged.
func (e *Engine) UpdateStage(ctx context.Context, candidateID string, stage ir.Stage) (ir.Entity, error) {
	const op = "updateStage"
	if _, err := ir.ParseStage(string(stage)); err != nil {
		return ir.Entity{}, tagOp(op, withCollection(err, ir.CollectionCandidates))
	}
	return e.update(ctx, op, ir.CollectionCandidates, candidateID, ir.IRObject{
		ir.AttrStage: ir.IRString(stage),
	})
}

func (e *Engine) update(ctx context.Context, op string, collection ir.Collection, id string, patch ir.IRObject) (_ ir.Entity, err error) {
	ctx, span := startSpan(ctx, op,
		attribute.String("collection", string(collection)),
		attribute.String("entity.id", id))
	defer func() { endSpan(span, err) }()

	if err := checkReserved(op, collection, patch); err != nil {
		return ir.Entity{}, err
	}
	if v, ok := patch[ir.AttrStage]; ok && collection == ir.CollectionCandidates {
		if _, err := ir.ParseStage(ir.Text(v)); err != nil {
			return ir.Entity{}, tagOp(op, withCollection(err, collection))
		}
	}

	var updated ir.Entity
	var event *ir.TimelineEvent
	err = e.sim.Do(ctx, transport.WriteOp(op), func(ctx context.Context) error {
		return e.submit(ctx, op, func(tx *store.Tx) error {
			cur, ok := tx.Get(collection, id)
			if !ok {
				return notFound(op, collection, id)
			}
			attrs, err := normalize(op, collection, cur.Attrs.Merge(patch))
			if err != nil {
				return err
			}
			next := ir.Entity{ID: id, Attrs: attrs}

			if collection == ir.CollectionCandidates {
				if next.String(ir.AttrJobID) != cur.String(ir.AttrJobID) {
					if err := requireJob(tx, op, next.String(ir.AttrJobID)); err != nil {
						return err
					}
				}
				if from, to := cur.Stage(), next.Stage(); from != to {
					ev := ir.NewStageChange(e.eventID(), from, to, e.now.Now())
					tx.AppendEvent(id, ev)
					event = &ev
				}
			}
			if err := tx.Put(collection, next); err != nil {
				return err
			}
			updated = next
			return nil
		})
	})
	if err != nil {
		return ir.Entity{}, tagOp(op, err)
	}

	if event != nil {
		e.logger.Debug("stage changed", "op", op, "id", id, "from", *event.From, "to", event.To)
	}
	e.logger.Debug("entity updated", "op", op, "collection", collection, "id", id)
	return updated, nil
}

// Reorder moves the entity at position from of the order-sorted sequence to
// position to and renumbers the whole collection densely from 0. The
// collection is either fully renumbered or untouched.
func (e *Engine) Reorder(ctx context.Context, collection ir.Collection, from, to int) (_ []ir.Entity, err error) {
	spec, err := ir.LookupCollection(collection)
	if err != nil {
		return nil, err
	}
	op := "reorder" + capitalize(string(spec.Name))
	ctx, span := startSpan(ctx, op,
		attribute.String("collection", string(collection)),
		attribute.Int("from", from),
		attribute.Int("to", to))
	defer func() { endSpan(span, err) }()

	if !spec.Ordered {
		return nil, invalid(op, collection, "", fmt.Sprintf("%s is not order-bearing", collection))
	}
	if from < 0 {
		return nil, invalid(op, collection, "from", fmt.Sprintf("position %d out of range", from))
	}
	if to < 0 {
		return nil, invalid(op, collection, "to", fmt.Sprintf("position %d out of range", to))
	}

	var result []ir.Entity
	err = e.sim.Do(ctx, transport.ReorderOp(op), func(ctx context.Context) error {
		return e.submit(ctx, op, func(tx *store.Tx) error {
			items := ir.CloneEntities(tx.List(collection))
			query.SortByOrder(items)

			n := len(items)
			if from >= n {
				return invalid(op, collection, "from", fmt.Sprintf("position %d out of range [0, %d)", from, n))
			}
			if to >= n {
				return invalid(op, collection, "to", fmt.Sprintf("position %d out of range [0, %d)", to, n))
			}

			moved := items[from]
			items = slices.Delete(items, from, from+1)
			items = slices.Insert(items, to, moved)
			for i := range items {
				items[i] = items[i].WithOrder(int64(i))
			}
			if err := tx.ReplaceAll(collection, items); err != nil {
				return err
			}
			result = items
			return nil
		})
	})
	if err != nil {
		return nil, tagOp(op, err)
	}

	e.logger.Debug("collection reordered", "op", op, "from", from, "to", to, "size", len(result))
	return result, nil
}

// entityOp names a single-entity call: createJob, updateCandidate.
func entityOp(verb string, spec ir.CollectionSpec) string {
	return verb + capitalize(spec.IDPrefix)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (e *Engine) eventID() string {
	return "event-" + e.ids.Generate()
}

// checkReserved rejects attributes the service assigns itself.
func checkReserved(op string, collection ir.Collection, fields ir.IRObject) error {
	for _, name := range []string{ir.AttrID, ir.AttrOrder} {
		if _, ok := fields[name]; ok {
			return invalid(op, collection, name, fmt.Sprintf("%s cannot be set directly", name))
		}
	}
	return nil
}

func setDefault(attrs ir.IRObject, name, value string) {
	if ir.Text(attrs[name]) == "" {
		attrs[name] = ir.IRString(value)
	}
}

// normalize validates attrs against the collection's draft.
func normalize(op string, collection ir.Collection, attrs ir.IRObject) (ir.IRObject, error) {
	switch collection {
	case ir.CollectionJobs:
		return checkJob(op, attrs)
	case ir.CollectionCandidates:
		return checkCandidate(op, attrs)
	default:
		return attrs.Clone(), nil
	}
}

// requireJob fails unless jobID names a stored job.
func requireJob(tx *store.Tx, op, jobID string) error {
	if _, ok := tx.Get(ir.CollectionJobs, jobID); !ok {
		return invalid(op, ir.CollectionCandidates, ir.AttrJobID, fmt.Sprintf("job %q does not exist", jobID))
	}
	return nil
}

// withCollection stamps collection onto a structured error that lacks one.
func withCollection(err error, collection ir.Collection) error {
	if e, ok := err.(*ir.Error); ok && e.Collection == "" {
		c := *e
		c.Collection = collection
		return &c
	}
	return err
}
