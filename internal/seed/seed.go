// Package seed generates the deterministic demo dataset: jobs, candidates with
// their initial timeline events, and a handful of job assessments.
package seed

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/roach88/hrsync/internal/ir"
)

var jobTitles = []string{
	"Frontend Developer", "Backend Developer", "Full Stack Developer",
	"Product Manager", "UX Designer", "Data Scientist", "DevOps Engineer",
	"Mobile Developer", "QA Engineer", "Technical Writer", "Sales Manager",
	"Marketing Specialist", "HR Manager", "Finance Analyst", "Customer Success",
	"Business Analyst", "Security Engineer", "Solutions Architect",
	"Engineering Manager", "Growth Hacker", "UI Designer", "Database Admin",
	"Cloud Engineer", "Machine Learning Engineer", "Site Reliability Engineer",
}

var tagPool = []string{"Remote", "Senior", "Junior", "Contract", "Full-time", "Part-time", "Urgent"}

var (
	firstNames = []string{"John", "Jane", "Bob", "Alice", "Charlie", "Diana", "Eve", "Frank", "Grace", "Henry"}
	lastNames  = []string{"Smith", "Johnson", "Brown", "Davis", "Miller", "Wilson", "Moore", "Taylor", "Anderson", "Thomas"}
)

// Config controls dataset size and randomness.
type Config struct {
	// Jobs is capped at the number of built-in titles.
	Jobs        int
	Candidates  int
	Assessments int

	// ArchivedRate is the probability a job is archived.
	ArchivedRate float64

	// RandSeed makes the dataset reproducible.
	RandSeed uint64

	// Now anchors generated timestamps.
	Now time.Time
}

// DefaultConfig mirrors the demo dataset: 25 jobs, 1000 candidates, 3 assessments.
func DefaultConfig() Config {
	return Config{
		Jobs:         len(jobTitles),
		Candidates:   1000,
		Assessments:  3,
		ArchivedRate: 0.3,
		RandSeed:     1,
		Now:          time.Now().UTC(),
	}
}

// Generate builds a revision-0 snapshot from cfg.
func Generate(cfg Config) ir.Snapshot {
	rng := rand.New(rand.NewPCG(cfg.RandSeed, cfg.RandSeed^0x9e3779b97f4a7c15))
	now := cfg.Now.UTC().Truncate(time.Millisecond)
	snap := ir.NewSnapshot()

	nJobs := min(max(cfg.Jobs, 0), len(jobTitles))
	jobs := make([]ir.Entity, nJobs)
	for i := range nJobs {
		title := jobTitles[i]
		status := "active"
		if rng.Float64() < cfg.ArchivedRate {
			status = "archived"
		}
		createdAt := now.Add(-randomAge(rng, 90))
		jobs[i] = ir.NewEntity(fmt.Sprintf("job-%d", i+1), ir.IRObject{
			ir.AttrTitle:     ir.IRString(title),
			ir.AttrSlug:      ir.IRString(ir.Slug(title)),
			ir.AttrStatus:    ir.IRString(status),
			ir.AttrTags:      ir.Strings(tagPool[:rng.IntN(3)+1]...),
			ir.AttrOrder:     ir.IRInt(i),
			ir.AttrCreatedAt: ir.IRString(createdAt.Format(time.RFC3339Nano)),
		})
	}
	snap.Collections[ir.CollectionJobs] = jobs

	nCandidates := max(cfg.Candidates, 0)
	if nJobs == 0 {
		nCandidates = 0
	}
	candidates := make([]ir.Entity, nCandidates)
	for i := range nCandidates {
		first := firstNames[rng.IntN(len(firstNames))]
		last := lastNames[rng.IntN(len(lastNames))]
		stage := ir.Stages[rng.IntN(len(ir.Stages))]
		appliedAt := now.Add(-randomAge(rng, 60))
		id := fmt.Sprintf("candidate-%d", i+1)

		candidates[i] = ir.NewEntity(id, ir.IRObject{
			ir.AttrName:      ir.IRString(first + " " + last),
			ir.AttrEmail:     ir.IRString(strings.ToLower(first) + "." + strings.ToLower(last) + "@email.com"),
			ir.AttrStage:     ir.IRString(stage),
			ir.AttrJobID:     ir.IRString(jobs[rng.IntN(nJobs)].ID),
			ir.AttrAppliedAt: ir.IRString(appliedAt.Format(time.RFC3339Nano)),
			ir.AttrOrder:     ir.IRInt(i),
		})
		snap.CandidateTimelines[id] = []ir.TimelineEvent{
			ir.NewApplication(fmt.Sprintf("timeline-%s-0", id), stage, appliedAt),
		}
	}
	snap.Collections[ir.CollectionCandidates] = candidates

	for _, job := range jobs[:min(max(cfg.Assessments, 0), nJobs)] {
		a := assessment(rng, job)
		snap.Assessments[a.JobID] = a
	}

	return snap
}

func randomAge(rng *rand.Rand, days int) time.Duration {
	return time.Duration(rng.Int64N(int64(days) * int64(24*time.Hour)))
}

func assessment(rng *rand.Rand, job ir.Entity) ir.Assessment {
	a := ir.Assessment{
		ID:    "assessment-" + job.ID,
		JobID: job.ID,
		Title: job.String(ir.AttrTitle) + " Assessment",
		Sections: []ir.Section{
			{ID: "section-1", Title: "Technical Skills", Questions: []ir.Question{}},
			{ID: "section-2", Title: "Experience", Questions: []ir.Question{}},
		},
	}
	for i := range 12 {
		qtype := ir.QuestionTypes[rng.IntN(len(ir.QuestionTypes))]
		q := ir.Question{
			ID:       fmt.Sprintf("question-%s-%d", job.ID, i),
			Type:     qtype,
			Title:    fmt.Sprintf("Question %d: What is your experience with %s?", i+1, qtype),
			Required: rng.Float64() > 0.3,
		}
		switch qtype {
		case ir.QuestionSingleChoice, ir.QuestionMultiChoice:
			q.Options = []string{"Option A", "Option B", "Option C"}
		case ir.QuestionNumeric:
			q.Validation = &ir.QuestionValidation{Min: intPtr(1), Max: intPtr(10)}
		case ir.QuestionShortText:
			q.Validation = &ir.QuestionValidation{MaxLength: intPtr(100)}
		}
		section := &a.Sections[i/6]
		section.Questions = append(section.Questions, q)
	}
	return a
}

func intPtr(n int) *int { return &n }
