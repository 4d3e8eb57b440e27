package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dhis2dupes/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var since string
	var limit int
	var output string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous export and download runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := checkOutput(output, outputTable, outputJSON, outputYAML)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			from, err := history.ParseSince(since, time.Now())
			if err != nil {
				return err
			}
			store, err := history.OpenConfigured(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), history.Filter{Since: from, Limit: limit})
			if err != nil {
				return err
			}
			if runs == nil {
				runs = []history.Run{}
			}

			switch format {
			case outputJSON:
				return writeJSON(cmd, runs)
			case outputYAML:
				return writeYAML(cmd, runs)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				newStatusPrinter(out).line("History", statusInfo, "no runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				status := string(r.Status)
				if r.Error != "" {
					status += ": " + r.Error
				}
				rows = append(rows, []string{
					formatWhen(r.StartedAt),
					r.Command,
					status,
					strconv.Itoa(r.TotalUsers),
					strconv.Itoa(r.DuplicateUsers),
					strconv.Itoa(r.DuplicateGroups),
					orDash(r.OrgUnit),
					r.Duration().Round(time.Millisecond).String(),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Started", "Command", "Status", "Users", "Duplicates", "Groups", "Org unit", "Took"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", `Only runs started after this time ("yesterday", "72h", 2026-01-31)`)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	addOutputFlag(cmd, &output, outputTable, outputJSON, outputYAML)
	return cmd
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
