package main

import (
	"encoding/json"
	"fmt"

	goversion "github.com/caarlos0/go-version"
	"github.com/spf13/cobra"
)

// Set by the release build via -ldflags.
var (
	version   = ""
	commit    = ""
	treeState = ""
	date      = ""
	builtBy   = ""
)

const asciiName = `     _ _     _     ____     _
  __| | |__ (_)___|___ \ __| |_   _ _ __   ___  ___
 / _' | '_ \| / __| __) / _' | | | | '_ \ / _ \/ __|
| (_| | | | | \__ \/ __/ (_| | |_| | |_) |  __/\__ \
 \__,_|_| |_|_|___/_____\__,_|\__,_| .__/ \___||___/
                                   |_|`

func buildVersion() goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails("dhis2dupes", "Find DHIS2 user accounts that share a display name", ""),
		func(i *goversion.Info) {
			i.ASCIIName = asciiName
			if commit != "" {
				i.GitCommit = commit
			}
			if version != "" {
				i.GitVersion = version
			}
			if treeState != "" {
				i.GitTreeState = treeState
			}
			if date != "" {
				i.BuildDate = date
			}
			if builtBy != "" {
				i.BuiltBy = builtBy
			}
		},
	)
}

// versionJSON adds the app details that goversion.Info leaves out of its JSON.
type versionJSON struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	goversion.Info
}

func newVersionCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print build information",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildVersion()
			if asJSON {
				data, err := json.MarshalIndent(versionJSON{
					Name:        info.Name,
					Description: info.Description,
					Info:        info,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
