package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/vetrecords/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080
read_timeout = "1m"
write_timeout = "5m"
shutdown_timeout = "30s"

[database]
host = "localhost"
port = 5432
name = "vetrecords"
user = "vetrecords"
password = "vetrecords"
ssl_mode = "disable"

[storage]
provider = "local"
root = "data/blobs"

[api]
base_path = "/api"
max_upload_size = "10MB"

[api.pagination]
default_page_size = 25
max_page_size = 50

[scheduler]
tick_interval = "250ms"
max_concurrent = 2
run_timeout = "90s"

[extraction]
parse_timeout = "20s"

[calibration]
policy_version = "v2"
low_band_cutoff = 0.4
mid_band_cutoff = 0.8
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[scheduler]
enabled = false
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func loadBase(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return cfg
}

func TestLoad(t *testing.T) {
	cfg := loadBase(t)

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("db host: got %s, want localhost", cfg.Database.Host)
	}
	if cfg.Storage.Provider != "local" {
		t.Errorf("storage provider: got %s, want local", cfg.Storage.Provider)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 {
		t.Errorf("pagination default_page_size: got %d, want 25", cfg.API.Pagination.DefaultPageSize)
	}
	if got := cfg.API.MaxUploadSizeBytes(); got != 10*1024*1024 {
		t.Errorf("max upload size: got %d, want 10MB", got)
	}
	if d := cfg.Scheduler.TickIntervalDuration(); d != 250*time.Millisecond {
		t.Errorf("scheduler tick: got %v, want 250ms", d)
	}
	if cfg.Scheduler.MaxConcurrent != 2 {
		t.Errorf("scheduler max_concurrent: got %d, want 2", cfg.Scheduler.MaxConcurrent)
	}
	if d := cfg.Scheduler.RunTimeoutDuration(); d != 90*time.Second {
		t.Errorf("run timeout: got %v, want 90s", d)
	}
	if d := cfg.Extraction.ParseTimeoutDuration(); d != 20*time.Second {
		t.Errorf("parse timeout: got %v, want 20s", d)
	}
}

func TestLoadCalibrationPolicy(t *testing.T) {
	cfg := loadBase(t)
	p := cfg.Calibration.Policy()

	if p.Version != "v2" {
		t.Errorf("policy version: got %s, want v2", p.Version)
	}
	if p.LowBandCutoff != 0.4 || p.MidBandCutoff != 0.8 {
		t.Errorf("band cutoffs: got (%v, %v), want (0.4, 0.8)", p.LowBandCutoff, p.MidBandCutoff)
	}
	if p.NeutralConfidence != 0.5 {
		t.Errorf("neutral confidence: got %v, want 0.5 (default)", p.NeutralConfidence)
	}
	if p.Language != "es" {
		t.Errorf("language: got %s, want es (default)", p.Language)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)
	chdir(t, dir)

	t.Setenv("VETRECORDS_ENV", "staging")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost (from overlay)", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 (from base)", cfg.Database.Port)
	}
	if cfg.Scheduler.IsEnabled() {
		t.Error("scheduler should be disabled by overlay")
	}
	if cfg.Scheduler.MaxConcurrent != 2 {
		t.Errorf("scheduler max_concurrent: got %d, want 2 (from base)", cfg.Scheduler.MaxConcurrent)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", baseConfig)
	chdir(t, dir)

	t.Setenv("VETRECORDS_VERSION", "2.0.0")
	t.Setenv("VETRECORDS_SERVER_PORT", "3000")
	t.Setenv("VETRECORDS_SCHEDULER_MAX_CONCURRENT", "6")
	t.Setenv("VETRECORDS_CALIBRATION_DEFAULT_LANGUAGE", "en")
	t.Setenv("VETRECORDS_STORAGE_ROOT", "/var/lib/vetrecords")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.Scheduler.MaxConcurrent != 6 {
		t.Errorf("scheduler max_concurrent: got %d, want 6", cfg.Scheduler.MaxConcurrent)
	}
	if cfg.Calibration.DefaultLanguage != "en" {
		t.Errorf("calibration language: got %s, want en", cfg.Calibration.DefaultLanguage)
	}
	if cfg.Storage.Root != "/var/lib/vetrecords" {
		t.Errorf("storage root: got %s", cfg.Storage.Root)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("VETRECORDS_DB_NAME", "testdb")
	t.Setenv("VETRECORDS_DB_USER", "testuser")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Name != "testdb" {
		t.Errorf("db name from env: got %s, want testdb", cfg.Database.Name)
	}
	if cfg.Storage.Provider != "local" {
		t.Errorf("storage provider default: got %s, want local", cfg.Storage.Provider)
	}
	if !cfg.Scheduler.IsEnabled() {
		t.Error("scheduler should be enabled by default")
	}
	if cfg.API.OpenAPI.Title == "" {
		t.Error("openapi title default missing")
	}
	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}
	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout: got %v, want 30s", d)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.toml", `[server`)
	chdir(t, dir)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for invalid TOML")
	}
}

func TestParseDoesNotFinalize(t *testing.T) {
	cfg, err := config.Parse([]byte(overlayConfig))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Server.Host != "" {
		t.Errorf("host: got %q, want empty before finalize", cfg.Server.Host)
	}
	if cfg.Scheduler.Enabled == nil || *cfg.Scheduler.Enabled {
		t.Error("scheduler.enabled should parse as false")
	}
}

func TestValidation(t *testing.T) {
	const db = "\n[database]\nname = \"vetrecords\"\nuser = \"vetrecords\"\n"

	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{"invalid port", "[server]\nport = 99999\n" + db, "invalid port"},
		{"invalid read_timeout", "[server]\nread_timeout = \"bad\"\n" + db, "invalid read_timeout"},
		{"invalid shutdown_timeout", "shutdown_timeout = \"soon\"\n" + db, "invalid shutdown_timeout"},
		{"invalid upload size", "[api]\nmax_upload_size = \"lots\"\n" + db, "invalid max_upload_size"},
		{"unknown storage provider", "[storage]\nprovider = \"ftp\"\n" + db, "storage"},
		{"scheduler concurrency", "[scheduler]\nmax_concurrent = -1\n" + db, "scheduler"},
		{"calibration cutoffs", "[calibration]\nlow_band_cutoff = 0.9\nmid_band_cutoff = 0.5\n" + db, "calibration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.toml", tt.config)
			chdir(t, dir)

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestServerAddrAndInvalidPortEnv(t *testing.T) {
	cfg := loadBase(t)
	if got := cfg.Server.Addr(); got != "0.0.0.0:8080" {
		t.Errorf("addr: got %s", got)
	}

	t.Setenv("VETRECORDS_SERVER_PORT", "eighty")
	if _, err := config.Load(); err == nil || !strings.Contains(err.Error(), "VETRECORDS_SERVER_PORT") {
		t.Errorf("expected port env error, got %v", err)
	}
}

func TestLogging(t *testing.T) {
	cfg := loadBase(t)
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults: %+v", cfg.Logging)
	}

	t.Setenv("VETRECORDS_LOG_LEVEL", "debug")
	t.Setenv("VETRECORDS_LOG_FORMAT", "json")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var out strings.Builder
	cfg.Logging.NewLogger(&out).Debug("run claimed", "run_id", "r-1")
	if !strings.Contains(out.String(), `"msg":"run claimed"`) {
		t.Errorf("expected json debug line, got %q", out.String())
	}

	t.Setenv("VETRECORDS_LOG_FORMAT", "xml")
	if _, err := config.Load(); err == nil || !strings.Contains(err.Error(), "logging") {
		t.Errorf("expected logging error, got %v", err)
	}
}
