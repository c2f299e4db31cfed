package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "timeline <candidate-id>",
		Short:         "Show a candidate's stage history",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimeline(rootOpts, cmd, args[0])
		},
	}

	return cmd
}

func runTimeline(opts *RootOptions, cmd *cobra.Command, id string) error {
	formatter := newFormatter(opts, cmd)

	app, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	events, err := app.Engine.GetTimeline(commandContext(cmd), id)
	if err != nil {
		return formatter.Fail("timeline failed", err)
	}

	return formatter.Emit(events, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tFROM\tTO\tNOTE")
		for _, ev := range events {
			from := "-"
			if ev.From != nil {
				from = string(*ev.From)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.Timestamp.Format(time.RFC3339), from, ev.To, ev.Note)
		}
		tw.Flush()
	})
}
