package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dhis2dupes/internal/export"
	"dhis2dupes/internal/report"
	"dhis2dupes/internal/users"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	var flags reportFlags
	var duplicatesOnly bool
	var output string

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users with their duplicate flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := checkOutput(output, outputTable, outputJSON, outputYAML, outputCSV)
			if err != nil {
				return err
			}
			rep, cfg, err := buildReport(cmd, ctx, &flags)
			if err != nil {
				return err
			}
			rows := rep.Users
			if duplicatesOnly {
				rows = rep.Duplicates()
			}
			opts := exportOptions(cfg)

			switch format {
			case outputJSON:
				return writeJSON(cmd, usersView(rep, rows))
			case outputYAML:
				return writeYAML(cmd, usersView(rep, rows))
			case outputCSV:
				return export.WriteCSV(cmd.OutOrStdout(), rows, opts)
			}

			out := cmd.OutOrStdout()
			if rep.Empty() {
				newStatusPrinter(out).line("Users", statusWarn, "no users returned by DHIS2")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, c := range rows {
				table = append(table, export.Row(c, opts))
			}
			fmt.Fprintln(out, renderTable(export.Header(opts), table, nil))
			printSummary(out, rep.Summary)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVarP(&duplicatesOnly, "duplicates", "d", false, "Only list users flagged as duplicates")
	addOutputFlag(cmd, &output, outputTable, outputJSON, outputYAML, outputCSV)
	return cmd
}

type usersOutput struct {
	RunID   string             `json:"runId" yaml:"runId"`
	OrgUnit string             `json:"orgUnit,omitempty" yaml:"orgUnit,omitempty"`
	Scope   string             `json:"scope" yaml:"scope"`
	Summary users.Summary      `json:"summary" yaml:"summary"`
	Users   []users.Classified `json:"users" yaml:"users"`
}

func usersView(rep *report.Report, rows []users.Classified) usersOutput {
	return usersOutput{
		RunID:   rep.RunID,
		OrgUnit: rep.OrgUnit,
		Scope:   rep.Scope,
		Summary: rep.Summary,
		Users:   rows,
	}
}

func newGroupsCommand(ctx *commandContext) *cobra.Command {
	var flags reportFlags
	var output string

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List names shared by more than one user",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := checkOutput(output, outputTable, outputJSON, outputYAML)
			if err != nil {
				return err
			}
			rep, _, err := buildReport(cmd, ctx, &flags)
			if err != nil {
				return err
			}
			groups := rep.Groups()
			if groups == nil {
				groups = []users.Group{}
			}

			switch format {
			case outputJSON:
				return writeJSON(cmd, groups)
			case outputYAML:
				return writeYAML(cmd, groups)
			}

			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				newStatusPrinter(out).line("Duplicates", statusOK, "no shared names among %d users", rep.Summary.Total)
				return nil
			}
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				name := "(no name)"
				if g.Name != nil {
					name = *g.Name
				}
				var ids, usernames []string
				for _, m := range g.Members {
					ids = append(ids, m.ID)
					usernames = append(usernames, m.Username)
				}
				rows = append(rows, []string{name, strconv.Itoa(len(g.Members)), joinComma(usernames), joinComma(ids)})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Users", "Usernames", "IDs"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
			))
			printSummary(out, rep.Summary)
			return nil
		},
	}
	flags.register(cmd)
	addOutputFlag(cmd, &output, outputTable, outputJSON, outputYAML)
	return cmd
}
