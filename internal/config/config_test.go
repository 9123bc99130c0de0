package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omnicomplete.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	def := Default()
	if cfg.Provider.Mode != def.Provider.Mode || cfg.Completion != def.Completion ||
		cfg.AI != def.AI || cfg.Logging != def.Logging {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Provider.Mode != ModeEngine {
		t.Errorf("default mode = %q, want engine", cfg.Provider.Mode)
	}
	if !cfg.Completion.CaseInsensitive || !cfg.Completion.AllowDuplicates {
		t.Errorf("default completion flags = %+v", cfg.Completion)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[provider]
mode = "engine"
command = "/usr/bin/code-engine"
args = ["--stdio"]
search_path = ["/opt/engine/lib"]
timeout = "5s"

[completion]
case_insensitive = false
allow_duplicates = false
max_results = 50

[logging]
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Provider.Command != "/usr/bin/code-engine" {
		t.Errorf("command = %q", cfg.Provider.Command)
	}
	if len(cfg.Provider.Args) != 1 || cfg.Provider.Args[0] != "--stdio" {
		t.Errorf("args = %v", cfg.Provider.Args)
	}
	if cfg.Completion.CaseInsensitive || cfg.Completion.AllowDuplicates {
		t.Errorf("completion flags not overridden: %+v", cfg.Completion)
	}
	if cfg.Completion.MaxResults != 50 {
		t.Errorf("max_results = %d", cfg.Completion.MaxResults)
	}
	if got := cfg.RequestTimeout(); got != 5*time.Second {
		t.Errorf("RequestTimeout() = %v, want 5s", got)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
[provider]
command = "engine"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Provider.Mode != ModeEngine {
		t.Errorf("mode = %q, want default engine", cfg.Provider.Mode)
	}
	if !cfg.Completion.CaseInsensitive {
		t.Error("case_insensitive default lost")
	}
	if cfg.AI.MaxTokens != 1024 {
		t.Errorf("ai max_tokens default lost: %d", cfg.AI.MaxTokens)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := writeConfig(t, `[provider`)
	if _, err := Load(path); err == nil {
		t.Error("Load() expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"ai mode valid", func(c *Config) { c.Provider.Mode = ModeAI }, false},
		{"unknown mode", func(c *Config) { c.Provider.Mode = "psychic" }, true},
		{"bad timeout", func(c *Config) { c.Provider.Timeout = "fast" }, true},
		{"good timeout", func(c *Config) { c.Provider.Timeout = "250ms" }, false},
		{"negative max results", func(c *Config) { c.Completion.MaxResults = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, `
[completion]
max_results = 1
`)

	got := make(chan Config, 4)
	w, err := Watch(path, func(c Config) { got <- c }, nil)
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[completion]\nmax_results = 9\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-got:
		if cfg.Completion.MaxResults != 9 {
			t.Errorf("reloaded max_results = %d, want 9", cfg.Completion.MaxResults)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not deliver reloaded config")
	}
}

func TestWatcherReportsErrors(t *testing.T) {
	path := writeConfig(t, "")

	errs := make(chan error, 4)
	w, err := Watch(path, nil, func(e error) { errs <- e })
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-errs:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report parse error")
	}
}
