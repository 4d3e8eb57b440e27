package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeDHIS2()
	c.normalizeClassification()
	if err := c.normalizeExport(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	overrideFromEnv(&c.Server.Token, "DHIS2DUPES_SERVER_TOKEN")
	c.Server.Token = strings.TrimSpace(c.Server.Token)
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	overrideFromEnv(&c.Notifications.NtfyTopic, "DHIS2DUPES_NTFY_TOPIC")
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds == 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeDHIS2() {
	overrideFromEnv(&c.DHIS2.BaseURL, "DHIS2_BASE_URL")
	overrideFromEnv(&c.DHIS2.Username, "DHIS2_USERNAME")
	overrideFromEnv(&c.DHIS2.Password, "DHIS2_PASSWORD")
	overrideFromEnv(&c.DHIS2.APIToken, "DHIS2_API_TOKEN")
	overrideFromEnv(&c.DHIS2.BearerToken, "DHIS2_BEARER_TOKEN")
	overrideFromEnv(&c.DHIS2.ClientSecret, "DHIS2_CLIENT_SECRET")

	c.DHIS2.BaseURL = strings.TrimRight(strings.TrimSpace(c.DHIS2.BaseURL), "/")
	// Operators often paste the API root; the client appends /api itself.
	c.DHIS2.BaseURL = strings.TrimSuffix(c.DHIS2.BaseURL, "/api")
	c.DHIS2.AuthMethod = strings.ToLower(strings.TrimSpace(c.DHIS2.AuthMethod))
	if c.DHIS2.AuthMethod == "" {
		c.DHIS2.AuthMethod = defaultAuthMethod
	}
	c.DHIS2.Username = strings.TrimSpace(c.DHIS2.Username)
	c.DHIS2.APIToken = strings.TrimSpace(c.DHIS2.APIToken)
	c.DHIS2.BearerToken = strings.TrimSpace(c.DHIS2.BearerToken)
	c.DHIS2.ClientID = strings.TrimSpace(c.DHIS2.ClientID)
	c.DHIS2.ClientSecret = strings.TrimSpace(c.DHIS2.ClientSecret)
	c.DHIS2.TokenURL = strings.TrimSpace(c.DHIS2.TokenURL)
	if c.DHIS2.TimeoutSeconds == 0 {
		c.DHIS2.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.DHIS2.RequestsPerSecond == 0 {
		c.DHIS2.RequestsPerSecond = defaultRequestsPerSecond
	}
}

func (c *Config) normalizeClassification() {
	c.Classification.OrgUnit = strings.TrimSpace(c.Classification.OrgUnit)
	c.Classification.OrgUnitScope = strings.ToLower(strings.TrimSpace(c.Classification.OrgUnitScope))
	if c.Classification.OrgUnitScope == "" {
		c.Classification.OrgUnitScope = defaultOrgUnitScope
	}
}

func (c *Config) normalizeExport() error {
	var err error
	if strings.TrimSpace(c.Export.Dir) == "" {
		c.Export.Dir = defaultExportDir
	}
	if c.Export.Dir, err = expandPath(c.Export.Dir); err != nil {
		return fmt.Errorf("export.dir: %w", err)
	}
	c.Export.Basename = strings.TrimSpace(c.Export.Basename)
	if c.Export.Basename == "" {
		c.Export.Basename = defaultExportBasename
	}
	c.Export.Language = strings.TrimSpace(c.Export.Language)
	if c.Export.Language == "" {
		c.Export.Language = defaultExportLanguage
	}
	c.Export.Formats = NormalizeFormats(c.Export.Formats)
	return nil
}

// NormalizeFormats lowercases, dedupes and drops blanks; an empty result
// falls back to CSV, which is always available.
func NormalizeFormats(formats []string) []string {
	out := make([]string, 0, len(formats))
	seen := make(map[string]struct{}, len(formats))
	for _, f := range formats {
		normalized := strings.ToLower(strings.TrimSpace(f))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	if len(out) == 0 {
		out = []string{FormatCSV}
	}
	return out
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMetrics() error {
	var err error
	c.Metrics.Textfile = strings.TrimSpace(c.Metrics.Textfile)
	if c.Metrics.Textfile == "" {
		return nil
	}
	if c.Metrics.Textfile, err = expandPath(c.Metrics.Textfile); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func overrideFromEnv(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}
