package main

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dhis2dupes/internal/config"
	"dhis2dupes/internal/report"
	"dhis2dupes/internal/users"
)

// buildReport runs one classification pass with the command's flags.
func buildReport(cmd *cobra.Command, ctx *commandContext, flags *reportFlags) (*report.Report, *config.Config, error) {
	client, cfg, err := ctx.dhis2Client(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := ctx.loggerFor(cmd)
	if err != nil {
		return nil, nil, err
	}
	opts := flags.options(cmd, cfg)
	opts.Logger = logger
	rep, err := report.Build(cmd.Context(), client, opts)
	if err != nil {
		return nil, nil, err
	}
	return rep, cfg, nil
}

func printSummary(w io.Writer, s users.Summary) {
	p := newStatusPrinter(w)
	p.line("Users", statusInfo, "%d found", s.Total)
	kind := statusOK
	if s.Duplicates > 0 {
		kind = statusWarn
	}
	p.line("Duplicates", kind, "%d users share %d names", s.Duplicates, s.Groups)
}

func joinComma(values []string) string {
	return strings.Join(values, ", ")
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
