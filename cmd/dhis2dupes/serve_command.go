package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dhis2dupes/internal/history"
	"dhis2dupes/internal/logging"
	"dhis2dupes/internal/metrics"
	"dhis2dupes/internal/report"
	"dhis2dupes/internal/server"
	"dhis2dupes/internal/users"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve roster views and downloads over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := ctx.dhis2Client(cmd)
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("bind") {
				cfg.Server.Bind = bind
			}

			opts := server.Options{
				Bind:     cfg.Server.Bind,
				Token:    cfg.Server.Token,
				BaseURL:  cfg.DHIS2.BaseURL,
				Fetcher:  client,
				Report:   report.OptionsFromConfig(cfg),
				Export:   exportOptions(cfg),
				Basename: cfg.Export.Basename,
				Metrics:  metrics.New(),
				Logger:   logger,
			}
			opts.Report.Memo = &users.Memo{}

			store, err := history.OpenConfigured(cfg)
			if err != nil {
				logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "downloads will not appear in 'dhis2dupes history'"),
				)
			} else {
				defer store.Close()
				opts.History = store
			}

			srv, err := server.New(opts)
			if err != nil {
				return err
			}
			if err := srv.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl+C to stop)\n", srv.Addr())

			<-cmd.Context().Done()
			srv.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default server.bind)")
	return cmd
}
