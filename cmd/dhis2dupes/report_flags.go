package main

import (
	"github.com/spf13/cobra"

	"dhis2dupes/internal/config"
	"dhis2dupes/internal/export"
	"dhis2dupes/internal/report"
)

// reportFlags are the classification flags shared by users, groups and export.
type reportFlags struct {
	orgUnit string
	scope   string
	enrich  bool
	showIDs bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.orgUnit, "org-unit", "", "Restrict to users assigned to this organisation unit id")
	cmd.Flags().StringVar(&f.scope, "scope", "", "Org unit scope: before (classify within the unit) or after (classify the whole roster)")
	cmd.Flags().BoolVar(&f.enrich, "enrich", false, "Fetch organisation unit names for labels")
	cmd.Flags().BoolVar(&f.showIDs, "show-ids", false, "Show organisation unit ids next to names")
}

// options starts from the [classification] defaults and applies flags the
// operator set explicitly.
func (f *reportFlags) options(cmd *cobra.Command, cfg *config.Config) report.Options {
	opts := report.OptionsFromConfig(cfg)
	flags := cmd.Flags()
	if flags.Changed("org-unit") {
		opts.OrgUnit = f.orgUnit
	}
	if flags.Changed("scope") {
		opts.Scope = f.scope
	}
	if flags.Changed("enrich") {
		opts.Enrich = f.enrich
	}
	if flags.Changed("show-ids") {
		opts.WithIDs = f.showIDs
	}
	return opts
}

func exportOptions(cfg *config.Config) export.Options {
	return export.Options{
		Language:        cfg.Export.Language,
		ByteOrderMark:   cfg.Export.CSVByteOrderMark,
		IncludeEmail:    cfg.Export.IncludeEmail,
		IncludeOrgUnits: cfg.Export.IncludeOrgUnits,
		IncludeRoles:    cfg.Export.IncludeRoles,
	}
}
