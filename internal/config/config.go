package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// DHIS2 contains connection and authentication settings for the DHIS2 API.
type DHIS2 struct {
	BaseURL           string   `toml:"base_url"`
	// AuthMethod is one of auto, basic, token, bearer, oauth2.
	AuthMethod        string   `toml:"auth_method"`
	Username          string   `toml:"username"`
	Password          string   `toml:"password"`
	APIToken          string   `toml:"api_token"`
	BearerToken       string   `toml:"bearer_token"`
	ClientID          string   `toml:"client_id"`
	ClientSecret      string   `toml:"client_secret"`
	TokenURL          string   `toml:"token_url"`
	Scopes            []string `toml:"scopes"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
	PageSize          int      `toml:"page_size"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// Classification contains defaults for how rosters are partitioned and labelled.
type Classification struct {
	OrgUnit        string `toml:"org_unit"`
	// OrgUnitScope is "before" (classify within the unit) or "after"
	// (classify the whole roster, then restrict the view).
	OrgUnitScope   string `toml:"org_unit_scope"`
	EnrichOrgUnits bool   `toml:"enrich_org_units"`
	ShowOrgUnitIDs bool   `toml:"show_org_unit_ids"`
}

// Export contains file export settings.
type Export struct {
	Dir              string   `toml:"dir"`
	Basename         string   `toml:"basename"`
	Formats          []string `toml:"formats"`
	Language         string   `toml:"language"`
	CSVByteOrderMark bool     `toml:"csv_bom"`
	IncludeEmail     bool     `toml:"include_email"`
	IncludeOrgUnits  bool     `toml:"include_org_units"`
	IncludeRoles     bool     `toml:"include_roles"`
}

// Paths contains state and log directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Server contains settings for the HTTP download server.
type Server struct {
	Bind  string `toml:"bind"`
	// Token, when set, must be sent as "Authorization: Bearer <token>".
	Token string `toml:"token"`
}

// Metrics contains settings for Prometheus output.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// Notifications contains ntfy settings for export outcomes.
type Notifications struct {
	// NtfyTopic is the full topic URL, e.g. https://ntfy.sh/dhis2-dupes.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	// NotifyClean also reports exports that found no duplicates.
	NotifyClean           bool   `toml:"notify_clean"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File enables a copy of the log under paths.log_dir.
	File   bool   `toml:"file"`
}

// Config encapsulates all configuration values for dhis2dupes.
//
// Configuration sections by subsystem:
//   - DHIS2: instance URL, credentials and fetch tuning
//   - Classification: organisation unit partitioning and labels
//   - Export: output directory, formats and columns
//   - Paths: run history and log directories
//   - Server: HTTP download server bind address
//   - Metrics: Prometheus textfile output
//   - Notifications: ntfy alerts after exports
//   - Logging: log format and level
type Config struct {
	DHIS2          DHIS2          `toml:"dhis2"`
	Classification Classification `toml:"classification"`
	Export         Export         `toml:"export"`
	Paths          Paths          `toml:"paths"`
	Server         Server         `toml:"server"`
	Metrics        Metrics        `toml:"metrics"`
	Notifications  Notifications  `toml:"notifications"`
	Logging        Logging        `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dhis2dupes.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the run history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LogPath returns the log file location used when logging.file is enabled.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "dhis2dupes.log")
}

// RequestTimeout returns the per-request DHIS2 timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.DHIS2.TimeoutSeconds) * time.Second
}

// WantsFormat reports whether the export formats include name.
func (c *Config) WantsFormat(name string) bool {
	for _, f := range c.Export.Formats {
		if f == name {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
