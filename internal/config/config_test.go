package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/five82/evalwatch/internal/lmeval"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAPIURL, EnvMode, EnvDevIdentity, EnvNamespace, EnvLogLevel} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != lmeval.DefaultBaseURL {
		t.Fatalf("APIURL = %q, want %q", cfg.APIURL, lmeval.DefaultBaseURL)
	}
	if cfg.Mode != lmeval.ModeStandalone || cfg.DevIdentity != defaultDevIdentity {
		t.Fatalf("mode/identity = %q/%q", cfg.Mode, cfg.DevIdentity)
	}
	if cfg.CollectionPoll != 5*time.Second || cfg.ItemPoll != 3*time.Second {
		t.Fatalf("intervals = %v/%v, want 5s/3s", cfg.CollectionPoll, cfg.ItemPoll)
	}
	want, err := expandPath(defaultLogFile)
	if err != nil {
		t.Fatalf("expandPath(defaultLogFile) returned error: %v", err)
	}
	if cfg.LogFile != want {
		t.Fatalf("LogFile = %q, want %q", cfg.LogFile, want)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearEnv(t)

	path := writeConfig(t, `
api_url = "  http://bff.local:9000/api/v1  "
deployment_mode = "Kubeflow"
dev_identity = " dev@example.com "
namespace = " ds-project-2 "
collection_poll = "10s"
item_poll = "1500ms"
log_file = "  ~/logs/evalwatch.log  "
log_level = "DEBUG"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "http://bff.local:9000/api/v1" {
		t.Fatalf("APIURL = %q", cfg.APIURL)
	}
	if cfg.Mode != lmeval.ModeKubeflow || !cfg.Mode.Proxied() {
		t.Fatalf("Mode = %q, want kubeflow", cfg.Mode)
	}
	if cfg.DevIdentity != "dev@example.com" || cfg.Namespace != "ds-project-2" {
		t.Fatalf("identity/namespace = %q/%q", cfg.DevIdentity, cfg.Namespace)
	}
	if cfg.CollectionPoll != 10*time.Second || cfg.ItemPoll != 1500*time.Millisecond {
		t.Fatalf("intervals = %v/%v", cfg.CollectionPoll, cfg.ItemPoll)
	}
	if !strings.HasPrefix(cfg.LogFile, home) {
		t.Fatalf("LogFile = %q, want it under HOME %q", cfg.LogFile, home)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}

	opts := cfg.ClientOptions()
	if opts.BaseURL != cfg.APIURL || opts.Identity != cfg.DevIdentity || opts.Mode != cfg.Mode {
		t.Fatalf("ClientOptions = %+v", opts)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)
	t.Setenv(EnvAPIURL, "http://env:1/api/v1")
	t.Setenv(EnvMode, "federated")
	t.Setenv(EnvNamespace, "env-ns")
	t.Setenv(EnvDevIdentity, "env@example.com")
	t.Setenv(EnvLogLevel, "WARN")

	cfg, err := Load(writeConfig(t, `api_url = "http://file:2"`+"\n"+`namespace = "file-ns"`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIURL != "http://env:1/api/v1" || cfg.Namespace != "env-ns" || cfg.Mode != lmeval.ModeFederated {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.DevIdentity != "env@example.com" || cfg.LogLevel != "warn" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}

	t.Setenv(EnvMode, "bogus")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), EnvMode) {
		t.Fatalf("Load error = %v, want invalid mode error", err)
	}
}

func TestLoad_InvalidValuesFail(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	clearEnv(t)

	cases := map[string]string{
		"toml":     `api_url = [`,
		"mode":     `deployment_mode = "cluster"`,
		"interval": `collection_poll = "soon"`,
		"negative": `item_poll = "-1s"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if err == nil {
				t.Fatalf("Load returned nil error, want parse error")
			}
			if !strings.Contains(err.Error(), "parse config") {
				t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("EVALWATCH_NAMESPACE=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// t.Setenv above leaves the variable set to "", which godotenv treats as
	// already present, so unset it for this test.
	_ = os.Unsetenv(EnvNamespace)

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv returned error: %v", err)
	}
	if got := os.Getenv(EnvNamespace); got != "from-dotenv" {
		t.Fatalf("%s = %q, want from-dotenv", EnvNamespace, got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := ExpandPath("~/a/b")
	if err != nil {
		t.Fatalf("ExpandPath returned error: %v", err)
	}
	if want := filepath.Join(home, "a/b"); got != want {
		t.Fatalf("ExpandPath = %q, want %q", got, want)
	}
	if _, err := ExpandPath("   "); err == nil {
		t.Fatalf("ExpandPath returned nil error, want error")
	}
}
