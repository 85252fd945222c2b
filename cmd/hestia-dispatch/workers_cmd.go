package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hestia.local/dispatch/internal/workers"
)

func newWorkersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "Manage the worker directory",
	}
	cmd.AddCommand(newWorkersImportCmd(), newWorkersListCmd())
	return cmd
}

func newWorkersImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Upsert workers from a YAML roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open roster: %w", err)
			}
			defer f.Close()

			roster, err := workers.ParseRoster(f)
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

			n, err := workers.Import(cmd.Context(), st.directory, roster)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d workers\n", n)
			return nil
		},
	}
}

func newWorkersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the worker directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStores(cfg, cliLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer st.close()

			all, err := st.directory.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PHONE\tNAME\tAREA\tSHIFT")
			for _, w := range all {
				shift := "off"
				if w.ShiftActive {
					shift = "on"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.Phone, w.Name, w.Area, shift)
			}
			return tw.Flush()
		},
	}
}
