package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dhis2dupes/internal/users"
)

func newOrgUnitsCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "orgunits",
		Short: "List organisation units known to DHIS2",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := checkOutput(output, outputTable, outputJSON, outputYAML)
			if err != nil {
				return err
			}
			client, _, err := ctx.dhis2Client(cmd)
			if err != nil {
				return err
			}
			index, err := client.FetchOrganisationUnits(cmd.Context())
			if err != nil {
				return err
			}
			units := index.Units()
			if units == nil {
				units = []users.OrgUnitRef{}
			}

			switch format {
			case outputJSON:
				return writeJSON(cmd, units)
			case outputYAML:
				return writeYAML(cmd, units)
			}

			rows := make([][]string, 0, len(units))
			for _, u := range units {
				rows = append(rows, []string{u.ID, u.Name})
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				newStatusPrinter(out).line("Org units", statusWarn, "none returned by DHIS2")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Name"}, rows, nil))
			return nil
		},
	}
	addOutputFlag(cmd, &output, outputTable, outputJSON, outputYAML)
	return cmd
}
