package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/hrsync/internal/ir"
	"github.com/roach88/hrsync/internal/query"
)

var jobColumns = []string{ir.AttrOrder, ir.AttrStatus, ir.AttrTitle, ir.AttrSlug, ir.AttrTags}

// NewJobsCommand creates the jobs command group.
func NewJobsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List, create, update and reorder jobs",
	}

	cmd.AddCommand(newJobsListCommand(rootOpts))
	cmd.AddCommand(newJobsCreateCommand(rootOpts))
	cmd.AddCommand(newJobsUpdateCommand(rootOpts))
	cmd.AddCommand(newJobsReorderCommand(rootOpts))

	return cmd
}

// listFlags are the paging and search flags shared by list commands.
type listFlags struct {
	search   string
	page     int
	pageSize int
}

func (l *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&l.search, "search", "", "case-insensitive text search")
	cmd.Flags().IntVar(&l.page, "page", 1, "page number (1-based)")
	cmd.Flags().IntVar(&l.pageSize, "page-size", 0, "page size (0 = collection default)")
}

func (l *listFlags) query(collection ir.Collection, fields map[string]string) query.Query {
	return query.Query{
		Collection: collection,
		Text:       l.search,
		Fields:     fields,
		Page:       l.page,
		PageSize:   l.pageSize,
	}
}

func newJobsListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		lf     listFlags
		status string
	)

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List jobs in board order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := lf.query(ir.CollectionJobs, map[string]string{ir.AttrStatus: status})
			return runList(rootOpts, cmd, q, jobColumns)
		},
	}

	lf.register(cmd)
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active|archived)")

	return cmd
}

// runList executes q through the engine and prints the page.
func runList(opts *RootOptions, cmd *cobra.Command, q query.Query, columns []string) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	page, err := app.Engine.List(commandContext(cmd), q)
	if err != nil {
		return formatter.Fail("list failed", err)
	}

	return formatter.Emit(page, func(w io.Writer) {
		printPage(w, page, columns...)
	})
}

func newJobsCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		title  string
		status string
		tags   []string
	)

	cmd := &cobra.Command{
		Use:           "create",
		Short:         "Create a job at the end of the board",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := ir.IRObject{
				ir.AttrTitle: ir.IRString(title),
				ir.AttrTags:  ir.Strings(tags...),
			}
			if status != "" {
				fields[ir.AttrStatus] = ir.IRString(status)
			}
			return runCreate(rootOpts, cmd, ir.CollectionJobs, fields, jobColumns)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "job title")
	cmd.Flags().StringVar(&status, "status", "", "job status (default active)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")

	return cmd
}

// runCreate creates an entity and prints it.
func runCreate(opts *RootOptions, cmd *cobra.Command, collection ir.Collection, fields ir.IRObject, columns []string) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	entity, err := app.Engine.CreateEntity(commandContext(cmd), collection, fields)
	if err != nil {
		return formatter.Fail("create failed", err)
	}

	return formatter.Emit(entity, func(w io.Writer) {
		printEntity(w, entity, columns...)
	})
}

func newJobsUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		title  string
		status string
		tags   []string
	)

	cmd := &cobra.Command{
		Use:           "update <job-id>",
		Short:         "Update a job's title, status or tags",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := ir.IRObject{}
			if cmd.Flags().Changed("title") {
				patch[ir.AttrTitle] = ir.IRString(title)
			}
			if cmd.Flags().Changed("status") {
				patch[ir.AttrStatus] = ir.IRString(status)
			}
			if cmd.Flags().Changed("tags") {
				patch[ir.AttrTags] = ir.Strings(tags...)
			}
			if len(patch) == 0 {
				return NewExitError(ExitCommandError, "nothing to update: set --title, --status or --tags")
			}
			return runUpdate(rootOpts, cmd, ir.CollectionJobs, args[0], patch, jobColumns)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&status, "status", "", "new status (active|archived)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "replacement tags, comma-separated")

	return cmd
}

// runUpdate patches an entity and prints the result.
func runUpdate(opts *RootOptions, cmd *cobra.Command, collection ir.Collection, id string, patch ir.IRObject, columns []string) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	entity, err := app.Engine.UpdateEntity(commandContext(cmd), collection, id, patch)
	if err != nil {
		return formatter.Fail("update failed", err)
	}

	return formatter.Emit(entity, func(w io.Writer) {
		printEntity(w, entity, columns...)
	})
}

func newJobsReorderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reorder <from> <to>",
		Short: "Move the job at one board position to another",
		Long: `Move the job at board position <from> to position <to>.

Positions are 0-based indexes into the jobs sorted by order. Every job
is renumbered so orders stay dense.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parsePosition("from", args[0])
			if err != nil {
				return err
			}
			to, err := parsePosition("to", args[1])
			if err != nil {
				return err
			}
			return runReorder(rootOpts, cmd, from, to)
		},
	}

	return cmd
}

func parsePosition(name, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, fmt.Sprintf("invalid %s position %q", name, arg), err)
	}
	return n, nil
}

func runReorder(opts *RootOptions, cmd *cobra.Command, from, to int) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	jobs, err := app.Engine.Reorder(commandContext(cmd), ir.CollectionJobs, from, to)
	if err != nil {
		return formatter.Fail("reorder failed", err)
	}

	page := query.Page{Items: jobs, Total: len(jobs), Page: 1, PageSize: len(jobs), Revision: app.Store.Revision()}
	return formatter.Emit(page, func(w io.Writer) {
		printPage(w, page, ir.AttrOrder, ir.AttrTitle)
	})
}
