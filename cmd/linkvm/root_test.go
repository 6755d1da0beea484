package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const mathManifest = `
file = "/lib/math.mjs"
module = true
root = "%entry"

[[function]]
name = "%entry"
locals = ["pi"]

[[export]]
name = "pi"

[values]
pi = 3.14
`

func writeModules(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lib", "math.mjs.toml"), []byte(mathManifest), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunPrintsExports(t *testing.T) {
	dir := writeModules(t)
	out, err := execute(t, "run", "/lib/math.mjs", "-C", dir, "--cache-backend", "none")
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "pi = 3.14") {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestRunJSON(t *testing.T) {
	dir := writeModules(t)
	t.Cleanup(func() { jsonOutput = false })
	out, err := execute(t, "run", "/lib/math.mjs", "--json", "-C", dir, "--cache-backend", "none")
	if err != nil {
		t.Fatalf("run --json: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"pi": 3.14`) {
		t.Errorf("Unexpected output %q", out)
	}
}

func TestRunMissingModule(t *testing.T) {
	_, err := execute(t, "run", "/nope.mjs", "-C", t.TempDir(), "--cache-backend", "none")
	if err == nil || !strings.Contains(err.Error(), "Unable to load module /nope.mjs") {
		t.Errorf("Expected a load error, got %v", err)
	}
}

func TestCacheWarmAndList(t *testing.T) {
	dir := writeModules(t)
	cache := t.TempDir()
	out, err := execute(t, "cache", "warm", "/lib/math.mjs", "-C", dir, "--cache-backend", "bolt", "--cache-dir", cache)
	if err != nil {
		t.Fatalf("cache warm: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 module(s) cached") {
		t.Errorf("Unexpected warm output %q", out)
	}

	out, err = execute(t, "cache", "verify", "--cache-backend", "bolt", "--cache-dir", cache)
	if err != nil {
		t.Fatalf("cache verify: %v\n%s", err, out)
	}
	if !strings.Contains(out, "1 valid, 0 broken") {
		t.Errorf("Unexpected verify output %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkvm.toml")
	if out, err := execute(t, "config", "init", path); err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "backend = 'bolt'") && !strings.Contains(string(data), `backend = "bolt"`) {
		t.Errorf("Unexpected config file:\n%s", data)
	}
	if _, err := execute(t, "config", "init", path); err == nil {
		t.Error("Expected config init to refuse an existing file")
	}
}

func TestCheckReportsManifestErrors(t *testing.T) {
	dir := writeModules(t)
	bad := filepath.Join(dir, "bad.mjs.toml")
	if err := os.WriteFile(bad, []byte("file = \"/bad.mjs\"\nroot = @\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "check", filepath.Join(dir, "lib", "math.mjs.toml"), bad)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 manifest(s) invalid") {
		t.Errorf("Expected one invalid manifest, got %v", err)
	}
	if !strings.Contains(out, "math.mjs.toml: ok") || !strings.Contains(out, "root = @") {
		t.Errorf("Unexpected output %q", out)
	}
}
