package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/hrsync/internal/ir"
)

// NewAssessmentCommand creates the assessment command group.
func NewAssessmentCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assessment",
		Short: "Read and replace job assessments",
	}

	cmd.AddCommand(newAssessmentGetCommand(rootOpts))
	cmd.AddCommand(newAssessmentSaveCommand(rootOpts))

	return cmd
}

func newAssessmentGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "get <job-id>",
		Short:         "Show a job's assessment",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssessmentGet(rootOpts, cmd, args[0])
		},
	}

	return cmd
}

func runAssessmentGet(opts *RootOptions, cmd *cobra.Command, jobID string) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	a, err := app.Engine.GetAssessment(commandContext(cmd), jobID)
	if err != nil {
		return formatter.Fail("get assessment failed", err)
	}

	return formatter.Emit(a, func(w io.Writer) {
		printAssessment(w, a)
	})
}

func newAssessmentSaveCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "save <job-id>",
		Short: "Replace a job's assessment from a YAML or JSON file",
		Long: `Replace a job's assessment with the document in --file.

The file holds one assessment (title, sections, questions) in YAML or
JSON. The job id argument always wins over any jobId in the file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := readAssessment(file)
			if err != nil {
				return err
			}
			return runAssessmentSave(rootOpts, cmd, args[0], a)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "assessment document (YAML or JSON)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// readAssessment decodes an assessment document. YAML is decoded to a
// generic tree and re-encoded as JSON so the struct's json tags apply to
// both formats.
func readAssessment(path string) (ir.Assessment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Assessment{}, WrapExitError(ExitCommandError, "failed to read assessment file", err)
	}

	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return ir.Assessment{}, WrapExitError(ExitCommandError, "failed to parse assessment file", err)
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return ir.Assessment{}, WrapExitError(ExitCommandError, "assessment file is not a JSON-compatible document", err)
	}

	var a ir.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return ir.Assessment{}, WrapExitError(ExitCommandError, "invalid assessment document", err)
	}
	return a, nil
}

func runAssessmentSave(opts *RootOptions, cmd *cobra.Command, jobID string, a ir.Assessment) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	saved, err := app.Engine.SaveAssessment(commandContext(cmd), jobID, a)
	if err != nil {
		return formatter.Fail("save assessment failed", err)
	}

	return formatter.Emit(saved, func(w io.Writer) {
		fmt.Fprintf(w, "Saved %s\n", saved.ID)
		printAssessment(w, saved)
	})
}

func printAssessment(w io.Writer, a ir.Assessment) {
	fmt.Fprintf(w, "%s (%s, job %s)\n", a.Title, a.ID, a.JobID)
	for _, s := range a.Sections {
		fmt.Fprintf(w, "  %s\n", s.Title)
		for _, q := range s.Questions {
			req := ""
			if q.Required {
				req = " *"
			}
			fmt.Fprintf(w, "    - [%s] %s%s\n", q.Type, q.Title, req)
		}
	}
}
