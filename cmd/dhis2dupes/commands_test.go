package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dhis2dupes/internal/testsupport"
)

func rewriteConfig(t *testing.T, env *cliEnv) string {
	t.Helper()
	return testsupport.WriteConfigFile(t, env.cfg)
}

func TestCheckReportsAccount(t *testing.T) {
	env := newCLIEnv(t, testRoster())

	stdout, _, err := env.run(t, "check")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(stdout, "admin (John Traore)") {
		t.Fatalf("expected account line, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "token") {
		t.Fatalf("expected auth method, got:\n%s", stdout)
	}
}

func TestCheckRejectedCredentials(t *testing.T) {
	env := newCLIEnv(t, testRoster())
	env.dhis2.SetToken("other")

	stdout, _, err := env.run(t, "check")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stdout, "credentials rejected") {
		t.Fatalf("expected rejection line, got:\n%s", stdout)
	}
}

func TestCommandsRequireCredentials(t *testing.T) {
	env := newCLIEnv(t, testRoster())
	env.cfg.DHIS2.APIToken = ""
	env.configPath = rewriteConfig(t, env)

	_, _, err := env.run(t, "users")
	if err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestOrgUnitsJSON(t *testing.T) {
	env := newCLIEnv(t, nil)

	stdout, _, err := env.run(t, "orgunits", "-o", "json")
	if err != nil {
		t.Fatalf("orgunits: %v", err)
	}
	var got []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if len(got) != 2 {
		t.Fatalf("units = %+v", got)
	}
}

func TestHistoryEmpty(t *testing.T) {
	env := newCLIEnv(t, nil)

	stdout, _, err := env.run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(stdout, "no runs recorded") {
		t.Fatalf("unexpected output %q", stdout)
	}
}

func TestHistoryRejectsBadSince(t *testing.T) {
	env := newCLIEnv(t, nil)

	if _, _, err := env.run(t, "history", "--since", "not a time at all"); err == nil {
		t.Fatal("expected error for unparseable --since")
	}
}

func TestConfigInitCreatesSample(t *testing.T) {
	isolateEnv(t)
	target := filepath.Join(t.TempDir(), "conf", "config.toml")

	stdout, _, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(stdout, target) {
		t.Fatalf("expected path in output, got %q", stdout)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}

	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists")
	}
	if _, _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	env := newCLIEnv(t, nil)

	stdout, _, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(stdout, "Configuration valid") {
		t.Fatalf("unexpected output %q", stdout)
	}
}

func TestConfigValidateRejectsBadScope(t *testing.T) {
	env := newCLIEnv(t, nil)
	env.cfg.Classification.OrgUnitScope = "sideways"
	env.configPath = rewriteConfig(t, env)

	if _, _, err := env.run(t, "config", "validate"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestVersionJSON(t *testing.T) {
	isolateEnv(t)

	stdout, _, err := runCLI(t, "version", "--json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var info map[string]any
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if info["name"] != "dhis2dupes" {
		t.Fatalf("expected app name in %s", stdout)
	}
	if _, ok := info["gitVersion"]; !ok {
		t.Fatalf("expected gitVersion in %s", stdout)
	}
}

func TestLogsShowsLastLines(t *testing.T) {
	env := newCLIEnv(t, nil)
	env.cfg.Logging.File = true
	env.configPath = rewriteConfig(t, env)

	content := `{"level":"info","msg":"one","run_id":"r1"}
{"level":"info","msg":"two","run_id":"r2"}
{"level":"info","msg":"three","run_id":"r1"}
`
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := env.run(t, "logs", "-n", "1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(stdout) != `{"level":"info","msg":"three","run_id":"r1"}` {
		t.Fatalf("unexpected output %q", stdout)
	}

	stdout, _, err = env.run(t, "logs", "--run", "r2")
	if err != nil {
		t.Fatalf("logs --run: %v", err)
	}
	if !strings.Contains(stdout, `"two"`) || strings.Contains(stdout, `"one"`) {
		t.Fatalf("unexpected filtered output %q", stdout)
	}
}
