package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hestia.local/dispatch/internal/ticket"
)

func newTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Inspect tickets",
	}
	cmd.AddCommand(newTicketsListCmd())
	return cmd
}

func newTicketsListCmd() *cobra.Command {
	var rawStatuses []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := parseStatuses(rawStatuses)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStores(cfg, cliLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer st.close()

			list, err := ticket.NewManager(st.tickets).List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tAREA\tLOCATION\tASSIGNEE\tDETAIL")
			for _, t := range list {
				assignee := t.Assignee
				if assignee == "" {
					assignee = "-"
				}
				fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Area, t.Location, assignee, t.Detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&rawStatuses, "status", nil, "filter by status (PENDING, ASSIGNED, IN_PROGRESS, PAUSED, RESOLVED)")
	return cmd
}

func parseStatuses(raw []string) ([]ticket.Status, error) {
	out := make([]ticket.Status, 0, len(raw))
	for _, value := range raw {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := ticket.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		out = append(out, status)
	}
	return out, nil
}
