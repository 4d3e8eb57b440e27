package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dhis2dupes/internal/config"
	"dhis2dupes/internal/export"
	"dhis2dupes/internal/history"
	"dhis2dupes/internal/logging"
	"dhis2dupes/internal/metrics"
	"dhis2dupes/internal/notifications"
	"dhis2dupes/internal/report"
	"dhis2dupes/internal/textutil"
	"dhis2dupes/internal/users"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var flags reportFlags
	var dir, basename string
	var formats []string
	var bom bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the classified roster to CSV and XLSX files",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := ctx.dhis2Client(cmd)
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("dir") {
				if cfg.Export.Dir, err = config.ExpandPath(dir); err != nil {
					return fmt.Errorf("resolve --dir: %w", err)
				}
			}
			if cmd.Flags().Changed("basename") {
				cfg.Export.Basename = strings.TrimSpace(basename)
			}
			if cmd.Flags().Changed("format") {
				cfg.Export.Formats = config.NormalizeFormats(formats)
			}
			if cmd.Flags().Changed("bom") {
				cfg.Export.CSVByteOrderMark = bom
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			opts := flags.options(cmd, cfg)
			opts.Logger = logger
			recorder := metrics.New()
			store, err := history.OpenConfigured(cfg)
			if err != nil {
				logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "this run will not appear in 'dhis2dupes history'"),
				)
				store = nil
			} else {
				defer store.Close()
			}

			run := history.Run{
				Command:   "export",
				StartedAt: time.Now(),
				BaseURL:   cfg.DHIS2.BaseURL,
				OrgUnit:   opts.OrgUnit,
				Scope:     opts.Scope,
			}

			rep, buildErr := report.Build(cmd.Context(), client, opts)
			var written []string
			if buildErr == nil && !rep.Empty() {
				basename := textutil.ScopedBasename(cfg.Export.Basename, opts.OrgUnit)
				written, buildErr = export.WriteFiles(cmd.Context(), cfg.Export.Dir, basename, cfg.Export.Formats, rep.Users, exportOptions(cfg))
			}
			run.FinishedAt = time.Now()

			if buildErr != nil {
				run.Status = history.StatusFailed
				run.Error = buildErr.Error()
				recorder.ObserveFailure(run.FinishedAt)
			} else {
				run.ID = rep.RunID
				run.Status = history.StatusSucceeded
				run.TotalUsers = rep.Summary.Total
				run.DuplicateUsers = rep.Summary.Duplicates
				run.DuplicateGroups = rep.Summary.Groups
				run.Outputs = written
				recorder.ObserveSuccess(rep.Summary, run.FinishedAt)
			}
			finishRun(cmd, logger, cfg, store, recorder, run)
			notifyRun(cmd, logger, cfg, run)
			if buildErr != nil {
				return buildErr
			}

			p := newStatusPrinter(cmd.OutOrStdout())
			if rep.Empty() {
				p.line("Users", statusWarn, "no users returned by DHIS2; nothing written")
				return nil
			}
			printSummary(cmd.OutOrStdout(), rep.Summary)
			for _, path := range written {
				p.line("Wrote", statusOK, "%s", path)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default export.dir)")
	cmd.Flags().StringVar(&basename, "basename", "", "Output file basename (default export.basename)")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "Output formats: csv, xlsx (default export.formats)")
	cmd.Flags().BoolVar(&bom, "bom", false, "Prefix CSV files with a UTF-8 byte order mark")
	return cmd
}

// finishRun records history and the metrics textfile. Neither failure
// changes the command's exit status.
func finishRun(cmd *cobra.Command, logger *slog.Logger, cfg *config.Config, store *history.Store, recorder *metrics.Recorder, run history.Run) {
	if store != nil {
		// Record even when the command was interrupted.
		if _, err := store.Record(context.WithoutCancel(cmd.Context()), run); err != nil {
			logging.WarnWithContext(logger, "history record failed", "history_write_failed", logging.Error(err))
		}
	}
	if cfg.Metrics.Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logging.WarnWithContext(logger, "metrics textfile write failed", "metrics_write_failed", logging.Error(err))
		}
	}
}

func notifyRun(cmd *cobra.Command, logger *slog.Logger, cfg *config.Config, run history.Run) {
	notifier := notifications.NewService(cfg)
	ctx := context.WithoutCancel(cmd.Context())
	var err error
	if run.Status == history.StatusFailed {
		err = notifier.NotifyExportFailed(ctx, run.BaseURL, errors.New(run.Error))
	} else {
		err = notifier.NotifyExportCompleted(ctx, notifications.Outcome{
			BaseURL: run.BaseURL,
			OrgUnit: run.OrgUnit,
			Summary: users.Summary{Total: run.TotalUsers, Duplicates: run.DuplicateUsers, Groups: run.DuplicateGroups},
			Outputs: run.Outputs,
			Took:    run.Duration(),
		})
	}
	if err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed", logging.Error(err))
	}
}
