package terminal

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the terminal CLI writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	var url string

	root := &cobra.Command{
		Use:           "terminal",
		Short:         "Watch a running trading engine",
		Long:          "terminal connects to the engine stream server and prints metrics, risk snapshots and alerts as they arrive.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&url, "url", DefaultURL, "engine stream server base URL")

	watch := &cobra.Command{
		Use:       "watch metrics|risk|alerts",
		Short:     "Stream one topic, one line per update",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(TopicMetrics), string(TopicRisk), string(TopicAlerts)},
		RunE: func(cmd *cobra.Command, args []string) error {
			topic, err := ParseTopic(args[0])
			if err != nil {
				return err
			}
			client := NewClient(url)
			return client.Watch(cmd.Context(), topic, func(v any) {
				fmt.Fprintln(cmd.OutOrStdout(), Format(v))
			})
		},
	}

	health := &cobra.Command{
		Use:   "health",
		Short: "Check that the engine stream server is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := NewClient(url).Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s at %s\n", status.Status, status.Timestamp)
			return nil
		},
	}

	root.AddCommand(watch, health)
	return root
}
