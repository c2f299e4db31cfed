package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
	"github.com/roach88/hrsync/internal/store"
	"github.com/roach88/hrsync/internal/transport"
)

// collectionAssessments names assessments in errors.
const collectionAssessments ir.Collection = "assessments"

// List runs q against the store. Reads pay latency but never fail by
// injection.
func (e *Engine) List(ctx context.Context, q query.Query) (_ query.Page, err error) {
	op := "list"
	if spec, lerr := ir.LookupCollection(q.Collection); lerr == nil {
		op = "get" + capitalize(string(spec.Name))
	}
	ctx, span := startSpan(ctx, op, attribute.String("collection", string(q.Collection)))
	defer func() { endSpan(span, err) }()

	page, err := transport.Call(ctx, e.sim, transport.ReadOp(op), func(context.Context) (query.Page, error) {
		return query.Run(e.store, q)
	})
	if err != nil {
		return query.Page{}, tagOp(op, err)
	}
	span.SetAttributes(attribute.Int("page.total", page.Total), attribute.Int64("revision", page.Revision))
	return page, nil
}

// GetTimeline returns the candidate's audit trail in occurrence order.
func (e *Engine) GetTimeline(ctx context.Context, candidateID string) (_ []ir.TimelineEvent, err error) {
	const op = "getTimeline"
	ctx, span := startSpan(ctx, op, attribute.String("entity.id", candidateID))
	defer func() { endSpan(span, err) }()

	events, err := transport.Call(ctx, e.sim, transport.ReadOp(op), func(context.Context) ([]ir.TimelineEvent, error) {
		if _, ok := e.store.Entity(ir.CollectionCandidates, candidateID); !ok {
			return nil, notFound(op, ir.CollectionCandidates, candidateID)
		}
		return e.store.Timeline(candidateID), nil
	})
	if err != nil {
		return nil, tagOp(op, err)
	}
	return events, nil
}

// GetAssessment returns the job's assessment.
func (e *Engine) GetAssessment(ctx context.Context, jobID string) (_ ir.Assessment, err error) {
	const op = "getAssessment"
	ctx, span := startSpan(ctx, op, attribute.String("job.id", jobID))
	defer func() { endSpan(span, err) }()

	a, err := transport.Call(ctx, e.sim, transport.ReadOp(op), func(context.Context) (ir.Assessment, error) {
		a, ok := e.store.Assessment(jobID)
		if !ok {
			return ir.Assessment{}, notFound(op, collectionAssessments, jobID)
		}
		return a, nil
	})
	if err != nil {
		return ir.Assessment{}, tagOp(op, err)
	}
	return a, nil
}

// SaveAssessment validates a and stores it as the job's assessment,
// replacing any previous one. The job must exist. An empty id defaults to
// "assessment-<jobID>".
func (e *Engine) SaveAssessment(ctx context.Context, jobID string, a ir.Assessment) (_ ir.Assessment, err error) {
	const op = "saveAssessment"
	ctx, span := startSpan(ctx, op, attribute.String("job.id", jobID))
	defer func() { endSpan(span, err) }()

	a = a.Clone()
	a.JobID = jobID
	if a.ID == "" {
		a.ID = "assessment-" + jobID
	}
	if err := checkAssessment(op, a); err != nil {
		return ir.Assessment{}, err
	}

	err = e.sim.Do(ctx, transport.WriteOp(op), func(ctx context.Context) error {
		return e.submit(ctx, op, func(tx *store.Tx) error {
			if _, ok := tx.Get(ir.CollectionJobs, jobID); !ok {
				return notFound(op, ir.CollectionJobs, jobID)
			}
			tx.SetAssessment(a)
			return nil
		})
	})
	if err != nil {
		return ir.Assessment{}, tagOp(op, err)
	}

	e.logger.Debug("assessment saved", "op", op, "job", jobID, "sections", len(a.Sections))
	return a, nil
}
