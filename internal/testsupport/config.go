package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"dhis2dupes/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.DHIS2.BaseURL = "http://127.0.0.1:1"
	cfgVal.DHIS2.APIToken = "d2pat_test"
	cfgVal.DHIS2.RequestsPerSecond = 1000
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Export.Dir = filepath.Join(base, "exports")
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDHIS2 points the config at a DHIS2 base URL.
func WithDHIS2(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.DHIS2.BaseURL = baseURL
	}
}

// WithBasicAuth swaps the API token for username and password.
func WithBasicAuth(username, password string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.DHIS2.APIToken = ""
		b.cfg.DHIS2.Username = username
		b.cfg.DHIS2.Password = password
	}
}

// WithOrgUnit restricts classification to one organisation unit.
func WithOrgUnit(id, scope string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Classification.OrgUnit = id
		if scope != "" {
			b.cfg.Classification.OrgUnitScope = scope
		}
	}
}

// WithFormats overrides export.formats.
func WithFormats(formats ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.Formats = formats
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

// WriteConfigFile writes cfg as TOML under BaseDir and returns the path.
func WriteConfigFile(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
