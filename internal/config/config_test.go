package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	wantDir := filepath.Join(home, DefaultConfigDir)
	if cfg.ConfigDir != wantDir {
		t.Errorf("ConfigDir = %q, want %q", cfg.ConfigDir, wantDir)
	}
	if cfg.LogPath != filepath.Join(wantDir, DefaultLogFile) || cfg.PacksDir != filepath.Join(wantDir, DefaultPacksDir) {
		t.Errorf("unexpected paths: %+v", cfg)
	}
	info, err := os.Stat(wantDir)
	if err != nil {
		t.Fatalf("config dir not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("config dir permissions %04o, want 0700", perm)
	}
	if cfg.Engine.BufferSize != 200 || cfg.Engine.Windows["secret_logging"] != 300 {
		t.Errorf("engine defaults not applied: %+v", cfg.Engine)
	}
}

func TestLoad_ExplicitPaths(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfgPath := writeConfig(t, "monitor.yaml", "buffer_size: 50\n")
	logPath := filepath.Join(t.TempDir(), "custom.jsonl")

	cfg, err := Load(cfgPath, logPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigPath != cfgPath || cfg.LogPath != logPath || cfg.Engine.BufferSize != 50 {
		t.Errorf("explicit paths ignored: %+v", cfg)
	}
}

func TestLoadEngineConfig_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
buffer_size: 64
project_root: /work/app
windows:
  exfiltration_read_webfetch: 120
scope:
  allowed_paths: ["/opt/cache/"]
  sensitive_paths:
    "~/vault": 88
  suspicious_write_penalty: 20
`)
	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig: %v", err)
	}
	if cfg.BufferSize != 64 || cfg.ProjectRoot != "/work/app" {
		t.Errorf("scalars = %+v", cfg)
	}
	if cfg.Windows["exfiltration_read_webfetch"] != 120 || cfg.Windows["dependency_confusion"] != 300 {
		t.Errorf("windows not merged over defaults: %v", cfg.Windows)
	}
	if cfg.Scope.SensitivePaths["~/vault"] != 88 || len(cfg.Scope.AllowedPaths) != 1 {
		t.Errorf("scope = %+v", cfg.Scope)
	}
	if cfg.Scope.SuspiciousWritePenalty != 20 || cfg.Scope.SensitiveWritePenalty != 15 {
		t.Errorf("penalties = %d/%d", cfg.Scope.SensitiveWritePenalty, cfg.Scope.SuspiciousWritePenalty)
	}
}

func TestLoadEngineConfig_TOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
buffer_size = 32

[windows]
secret_logging = 90

[scope]
allowed_paths = ["/srv/cache/"]
sensitive_write_penalty = 5

[scope.sensitive_paths]
"/etc/vault" = 70
`)
	cfg, err := LoadEngineConfig(path)
	if err != nil {
		t.Fatalf("LoadEngineConfig: %v", err)
	}
	if cfg.BufferSize != 32 || cfg.Windows["secret_logging"] != 90 {
		t.Errorf("toml values = %+v", cfg)
	}
	if cfg.Scope.SensitivePaths["/etc/vault"] != 70 || cfg.Scope.SensitiveWritePenalty != 5 {
		t.Errorf("toml scope = %+v", cfg.Scope)
	}
}

func TestLoadEngineConfig_Missing(t *testing.T) {
	cfg, err := LoadEngineConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.BufferSize != DefaultEngineConfig().BufferSize {
		t.Errorf("missing file should give defaults, got %+v", cfg)
	}
}

func TestLoadEngineConfig_Errors(t *testing.T) {
	tests := []struct {
		name, file, content, want string
	}{
		{"unknown yaml key", "c.yaml", "bufer_size: 3\n", "bufer_size"},
		{"unknown toml key", "c.toml", "bufer_size = 3\n", "unknown keys"},
		{"bad yaml", "c.yaml", "windows: [\n", "parsing config"},
		{"unknown window", "c.yaml", "windows:\n  not_a_rule: 5\n", "unknown correlation type"},
		{"negative window", "c.yaml", "windows:\n  secret_logging: -5\n", "must be positive"},
		{"negative buffer", "c.yaml", "buffer_size: -1\n", "buffer_size"},
		{"score out of range", "c.yaml", "scope:\n  sensitive_paths:\n    /x: 120\n", "outside"},
		{"format", "c.json", "{}", "unsupported config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadEngineConfig(writeConfig(t, tt.file, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadEngineConfig_EmptyYAML(t *testing.T) {
	cfg, err := LoadEngineConfig(writeConfig(t, "empty.yml", ""))
	if err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if cfg.BufferSize != 200 {
		t.Errorf("BufferSize = %d", cfg.BufferSize)
	}
}
