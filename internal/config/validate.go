package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is structurally usable. Credentials are
// checked separately by RequireDHIS2 so offline commands work without them.
func (c *Config) Validate() error {
	if err := c.validateDHIS2(); err != nil {
		return err
	}
	if err := c.validateClassification(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if topic := c.Notifications.NtfyTopic; topic != "" {
		parsed, err := url.Parse(topic)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("notifications.ntfy_topic: %q is not an http(s) URL", topic)
		}
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateDHIS2() error {
	switch c.DHIS2.AuthMethod {
	case AuthAuto, AuthBasic, AuthToken, AuthBearer, AuthOAuth2:
	default:
		return fmt.Errorf("dhis2.auth_method: unsupported value %q (want auto, basic, token, bearer or oauth2)", c.DHIS2.AuthMethod)
	}
	if c.DHIS2.BaseURL != "" {
		parsed, err := url.Parse(c.DHIS2.BaseURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("dhis2.base_url: %q is not an http(s) URL", c.DHIS2.BaseURL)
		}
	}
	if c.DHIS2.TimeoutSeconds <= 0 {
		return errors.New("dhis2.timeout_seconds must be positive")
	}
	if c.DHIS2.PageSize < 0 {
		return errors.New("dhis2.page_size must not be negative (0 disables paging)")
	}
	if c.DHIS2.RequestsPerSecond < 0 {
		return errors.New("dhis2.requests_per_second must not be negative")
	}
	return nil
}

func (c *Config) validateClassification() error {
	switch c.Classification.OrgUnitScope {
	case ScopeBefore, ScopeAfter:
		return nil
	default:
		return fmt.Errorf("classification.org_unit_scope: unsupported value %q (want before or after)", c.Classification.OrgUnitScope)
	}
}

func (c *Config) validateExport() error {
	for _, f := range c.Export.Formats {
		switch f {
		case FormatCSV, FormatXLSX:
		default:
			return fmt.Errorf("export.formats: unsupported format %q (want csv or xlsx)", f)
		}
	}
	if strings.ContainsAny(c.Export.Basename, `/\`) {
		return errors.New("export.basename must not contain path separators")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	return nil
}

// RequireDHIS2 ensures a base URL and credentials for the selected auth
// method are present.
func (c *Config) RequireDHIS2() error {
	if c.DHIS2.BaseURL == "" {
		return c.missing("dhis2.base_url", "DHIS2_BASE_URL")
	}
	switch c.DHIS2.AuthMethod {
	case AuthAuto:
		if c.DHIS2.APIToken != "" || c.DHIS2.BearerToken != "" ||
			(c.DHIS2.Username != "" && c.DHIS2.Password != "") ||
			(c.DHIS2.ClientID != "" && c.DHIS2.ClientSecret != "") {
			return nil
		}
		return errors.New("dhis2 credentials are required: set dhis2.api_token (DHIS2_API_TOKEN) or dhis2.username and dhis2.password")
	case AuthBasic:
		if c.DHIS2.Username == "" {
			return c.missing("dhis2.username", "DHIS2_USERNAME")
		}
		if c.DHIS2.Password == "" {
			return c.missing("dhis2.password", "DHIS2_PASSWORD")
		}
	case AuthToken:
		if c.DHIS2.APIToken == "" {
			return c.missing("dhis2.api_token", "DHIS2_API_TOKEN")
		}
	case AuthBearer:
		if c.DHIS2.BearerToken == "" {
			return c.missing("dhis2.bearer_token", "DHIS2_BEARER_TOKEN")
		}
	case AuthOAuth2:
		// token_url defaults to {base_url}/uaa/oauth/token.
		if c.DHIS2.ClientID == "" {
			return errors.New("dhis2.client_id must be set when dhis2.auth_method is oauth2")
		}
		if c.DHIS2.ClientSecret == "" {
			return c.missing("dhis2.client_secret", "DHIS2_CLIENT_SECRET")
		}
	}
	return nil
}

func (c *Config) missing(field, env string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("%s is required. Set %s env var or edit %s (create with 'dhis2dupes config init')", field, env, defaultPath)
}
