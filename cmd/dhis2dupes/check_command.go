package main

import (
	"errors"

	"github.com/spf13/cobra"

	"dhis2dupes/internal/auth"
	"dhis2dupes/internal/dhis2"
	"dhis2dupes/internal/notifications"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var notify bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the DHIS2 URL and credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newStatusPrinter(cmd.OutOrStdout())
			client, cfg, err := ctx.dhis2Client(cmd)
			if err != nil {
				p.line("Config", statusError, "%v", err)
				return err
			}
			p.line("Config", statusOK, "%s", ctx.configPath)
			p.line("DHIS2", statusInfo, "%s", client.BaseURL())

			authorizer, err := auth.FromConfig(cfg.DHIS2)
			if err == nil {
				p.line("Auth", statusInfo, "%s", authorizer.Method())
			}

			me, err := client.Me(cmd.Context())
			switch {
			case errors.Is(err, dhis2.ErrUnauthorized):
				p.line("Account", statusError, "credentials rejected")
				return err
			case err != nil:
				p.line("Account", statusError, "%v", err)
				return err
			}
			name := me.DisplayName
			if name == "" {
				name = me.Name
			}
			p.line("Account", statusOK, "%s (%s)", me.Username, name)

			if notify {
				if cfg.Notifications.NtfyTopic == "" {
					p.line("Notify", statusWarn, "notifications.ntfy_topic is not set")
					return nil
				}
				if err := notifications.NewService(cfg).TestNotification(cmd.Context()); err != nil {
					p.line("Notify", statusError, "%v", err)
					return err
				}
				p.line("Notify", statusOK, "test sent to %s", cfg.Notifications.NtfyTopic)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&notify, "notify", false, "Also send a test notification")
	return cmd
}
