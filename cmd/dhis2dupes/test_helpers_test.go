package main

import (
	"bytes"
	"context"
	"testing"

	"dhis2dupes/internal/config"
	"dhis2dupes/internal/testsupport"
	"dhis2dupes/internal/users"
)

type cliEnv struct {
	cfg        *config.Config
	configPath string
	dhis2      *testsupport.FakeDHIS2
}

var testOrgUnits = []users.OrgUnitRef{
	{ID: "OU_CLINIC_A", Name: "Clinic A"},
	{ID: "OU_CLINIC_B", Name: "Clinic B"},
}

func testRoster() []users.Record {
	return []users.Record{
		{ID: "u1", Username: "adoe", Name: users.StringPtr("Ann Doe"), OrganisationUnits: []users.OrgUnitRef{{ID: "OU_CLINIC_A"}}},
		{ID: "u2", Username: "bsmith", Name: users.StringPtr("Bob Smith"), OrganisationUnits: []users.OrgUnitRef{{ID: "OU_CLINIC_A"}}},
		{ID: "u3", Username: "adoe2", Name: users.StringPtr("Ann Doe"), OrganisationUnits: []users.OrgUnitRef{{ID: "OU_CLINIC_B"}}},
		{ID: "u4", Username: "ann", Name: users.StringPtr("ann doe"), OrganisationUnits: []users.OrgUnitRef{{ID: "OU_CLINIC_B"}}},
	}
}

// newCLIEnv starts a fake DHIS2 and writes a config pointing at it.
func newCLIEnv(t *testing.T, roster []users.Record, opts ...testsupport.ConfigOption) *cliEnv {
	t.Helper()
	isolateEnv(t)

	fake := testsupport.NewFakeDHIS2(t, roster, testOrgUnits)
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithDHIS2(fake.URL)}, opts...)...)
	return &cliEnv{
		cfg:        cfg,
		configPath: testsupport.WriteConfigFile(t, cfg),
		dhis2:      fake,
	}
}

// isolateEnv keeps the developer's environment out of config loading.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		"DHIS2_BASE_URL", "DHIS2_USERNAME", "DHIS2_PASSWORD", "DHIS2_API_TOKEN",
		"DHIS2_BEARER_TOKEN", "DHIS2_CLIENT_SECRET", "DHIS2DUPES_SERVER_TOKEN", "DHIS2DUPES_NTFY_TOPIC",
	} {
		t.Setenv(key, "")
	}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
