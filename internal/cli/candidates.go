package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/hrsync/internal/ir"
)

var candidateColumns = []string{ir.AttrOrder, ir.AttrStage, ir.AttrName, ir.AttrEmail, ir.AttrJobID}

// NewCandidatesCommand creates the candidates command group.
func NewCandidatesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List, create and move candidates",
	}

	cmd.AddCommand(newCandidatesListCommand(rootOpts))
	cmd.AddCommand(newCandidatesCreateCommand(rootOpts))
	cmd.AddCommand(newCandidatesMoveCommand(rootOpts))

	return cmd
}

func newCandidatesListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		lf    listFlags
		stage string
		jobID string
	)

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List candidates in pipeline order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := lf.query(ir.CollectionCandidates, map[string]string{
				ir.AttrStage: stage,
				ir.AttrJobID: jobID,
			})
			return runList(rootOpts, cmd, q, candidateColumns)
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVar(&stage, "stage", "", "filter by pipeline stage")
	cmd.Flags().StringVar(&jobID, "job", "", "filter by job id")

	return cmd
}

func newCandidatesCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var name, email, jobID, stage string

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Create a candidate for a job",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := ir.IRObject{
				ir.AttrName:  ir.IRString(name),
				ir.AttrEmail: ir.IRString(email),
				ir.AttrJobID: ir.IRString(jobID),
			}
			if stage != "" {
				fields[ir.AttrStage] = ir.IRString(stage)
			}
			return runCreate(rootOpts, cmd, ir.CollectionCandidates, fields, candidateColumns)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "candidate name")
	cmd.Flags().StringVar(&email, "email", "", "candidate email")
	cmd.Flags().StringVar(&jobID, "job", "", "job id the candidate applied to")
	cmd.Flags().StringVar(&stage, "stage", "", "initial stage (default applied)")

	return cmd
}

func newCandidatesMoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <candidate-id> <stage>",
		Short: "Move a candidate to another pipeline stage",
		Long: `Move a candidate to another pipeline stage.

A stage change appends one event to the candidate's timeline; moving to
the current stage changes nothing.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(rootOpts, cmd, args[0], ir.Stage(args[1]))
		},
	}

	return cmd
}

func runMove(opts *RootOptions, cmd *cobra.Command, id string, stage ir.Stage) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	entity, err := app.Engine.UpdateStage(commandContext(cmd), id, stage)
	if err != nil {
		return formatter.Fail("move failed", err)
	}

	return formatter.Emit(entity, func(w io.Writer) {
		printEntity(w, entity, candidateColumns...)
	})
}
