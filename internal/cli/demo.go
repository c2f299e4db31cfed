package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/optimistic"
	"github.com/roach88/hrsync/internal/query"
)

// DemoOptions configures the demo command.
type DemoOptions struct {
	Rounds   int
	RandSeed uint64
}

// DemoEvent records one settled intent.
type DemoEvent struct {
	Round   int    `json:"round"`
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
	Phase   string `json:"phase"`
	Error   string `json:"error,omitempty"`
}

// DemoResult summarizes a demo run.
type DemoResult struct {
	Events     []DemoEvent `json:"events"`
	Confirmed  int         `json:"confirmed"`
	RolledBack int         `json:"rolled_back"`
	Published  int         `json:"published_views"`
	Jobs       []string    `json:"jobs"`
	Revision   int64       `json:"revision"`
}

// NewDemoCommand creates the demo command.
func NewDemoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DemoOptions{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Drive concurrent drag-and-drop intents through the flaky transport",
		Long: `Run rounds of concurrent intents against the jobs board and the
candidate pipeline, the way two users dragging cards at once would.

Each round drags one job card onto another and moves one candidate to a
new stage. Both are applied to the local view immediately, then confirmed
or rolled back when the simulated network answers. Failure rates and
latency come from the transport section of the config.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Rounds, "rounds", 5, "number of rounds")
	cmd.Flags().Uint64Var(&opts.RandSeed, "rand-seed", 1, "seed for choosing cards and stages")

	return cmd
}

func runDemo(rootOpts *RootOptions, opts *DemoOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)
	if opts.Rounds < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--rounds must be >= 1, got %d", opts.Rounds))
	}

	app, err := openApp(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := commandContext(cmd)
	ctrlOpts := []optimistic.Option{
		optimistic.WithLogger(app.Logger),
		optimistic.WithErrorReporter(optimistic.LogReporter{Logger: app.Logger}),
	}
	jobs := optimistic.New(app.Engine, query.Query{Collection: ir.CollectionJobs}, ctrlOpts...)
	candidates := optimistic.New(app.Engine, query.Query{Collection: ir.CollectionCandidates}, ctrlOpts...)

	if err := jobs.Load(ctx); err != nil {
		return formatter.Fail("load jobs failed", err)
	}
	if err := candidates.Load(ctx); err != nil {
		return formatter.Fail("load candidates failed", err)
	}

	var (
		mu        sync.Mutex
		published int
	)
	count := func(optimistic.View) {
		mu.Lock()
		published++
		mu.Unlock()
	}
	defer jobs.Subscribe(count)()
	defer candidates.Subscribe(count)()

	rng := rand.New(rand.NewPCG(opts.RandSeed, 0))
	result := DemoResult{Events: []DemoEvent{}}

	for round := 1; round <= opts.Rounds; round++ {
		events, err := demoRound(ctx, round, rng, jobs, candidates)
		if err != nil {
			return WrapExitError(ExitFailure, "demo interrupted", err)
		}
		for _, ev := range events {
			formatter.VerboseLog("round %d: %s %s (%s) -> %s", ev.Round, ev.Kind, ev.Subject, ev.Detail, ev.Phase)
		}
		result.Events = append(result.Events, events...)
	}
	jobs.Wait()
	candidates.Wait()

	for _, ev := range result.Events {
		switch ev.Phase {
		case optimistic.PhaseConfirmed.String():
			result.Confirmed++
		case optimistic.PhaseRolledBack.String():
			result.RolledBack++
		}
	}
	mu.Lock()
	result.Published = published
	mu.Unlock()
	result.Jobs = jobs.View().IDs()
	result.Revision = app.Store.Revision()

	return formatter.Emit(result, func(w io.Writer) {
		printDemo(w, result)
	})
}

// demoRound issues a job drag and a candidate stage move concurrently and
// waits for both to settle. Cards and stages are chosen up front from the
// published views so rng is only used on this goroutine.
func demoRound(ctx context.Context, round int, rng *rand.Rand, jobs, candidates *optimistic.Controller) ([]DemoEvent, error) {
	type intent struct {
		kind, subject, detail string
		issue                 func(context.Context) (*optimistic.Mutation, error)
	}
	var intents []intent

	if ids := jobs.View().IDs(); len(ids) > 1 {
		dragged, target := ids[rng.IntN(len(ids))], ids[rng.IntN(len(ids))]
		intents = append(intents, intent{
			kind: string(optimistic.KindReorder), subject: dragged, detail: "onto " + target,
			issue: func(ctx context.Context) (*optimistic.Mutation, error) {
				return jobs.Reorder(ctx, dragged, target)
			},
		})
	}
	if ids := candidates.View().IDs(); len(ids) > 0 {
		id := ids[rng.IntN(len(ids))]
		stage := ir.Stages[rng.IntN(len(ir.Stages))]
		intents = append(intents, intent{
			kind: string(optimistic.KindMoveStage), subject: id, detail: "to " + string(stage),
			issue: func(ctx context.Context) (*optimistic.Mutation, error) {
				return candidates.MoveStage(ctx, id, stage)
			},
		})
	}

	events := make([]DemoEvent, len(intents))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range intents {
		g.Go(func() error {
			ev := DemoEvent{Round: round, Kind: in.kind, Subject: in.subject, Detail: in.detail}
			m, err := in.issue(gctx)
			if err != nil {
				// Rejected before anything was applied locally.
				ev.Phase = "rejected"
				ev.Error = err.Error()
				events[i] = ev
				return nil
			}
			if err := m.Wait(gctx); err != nil && !m.Phase().Settled() {
				return err
			}
			ev.Phase = m.Phase().String()
			if err := m.Err(); err != nil {
				ev.Error = err.Error()
			}
			events[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return events, nil
}

func printDemo(w io.Writer, r DemoResult) {
	for _, ev := range r.Events {
		line := fmt.Sprintf("round %d  %-10s %s %s: %s", ev.Round, ev.Kind, ev.Subject, ev.Detail, strings.ToUpper(ev.Phase))
		if ev.Error != "" {
			line += " (" + ev.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d confirmed, %d rolled back, %d views published, store at revision %d\n",
		r.Confirmed, r.RolledBack, r.Published, r.Revision)
	fmt.Fprintf(w, "jobs board: %s\n", strings.Join(r.Jobs, " "))
}
