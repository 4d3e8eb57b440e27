package config

const (
	defaultConfigPath        = "~/.config/dhis2dupes/config.toml"
	defaultStateDir          = "~/.local/share/dhis2dupes"
	defaultLogDir            = "~/.local/share/dhis2dupes/logs"
	defaultExportDir         = "."
	defaultExportBasename    = "dhis2_users_with_duplicates"
	defaultExportLanguage    = "en"
	defaultAuthMethod        = AuthAuto
	defaultTimeoutSeconds    = 60
	defaultRequestsPerSecond = 5
	defaultOrgUnitScope      = ScopeBefore
	defaultServerBind        = "127.0.0.1:8484"
	defaultNtfyTimeout       = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Authentication methods accepted by dhis2.auth_method.
const (
	AuthAuto   = "auto"
	AuthBasic  = "basic"
	AuthToken  = "token"
	AuthBearer = "bearer"
	AuthOAuth2 = "oauth2"
)

// Organisation unit scopes accepted by classification.org_unit_scope.
const (
	ScopeBefore = "before"
	ScopeAfter  = "after"
)

// Export formats accepted by export.formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		DHIS2: DHIS2{
			AuthMethod:        defaultAuthMethod,
			TimeoutSeconds:    defaultTimeoutSeconds,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Classification: Classification{
			OrgUnitScope: defaultOrgUnitScope,
		},
		Export: Export{
			Dir:             defaultExportDir,
			Basename:        defaultExportBasename,
			Formats:         []string{FormatCSV},
			Language:        defaultExportLanguage,
			IncludeEmail:    true,
			IncludeOrgUnits: true,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
