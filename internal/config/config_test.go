package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("default http addr")
	}
	if cfg.Fsync != "always" {
		t.Fatalf("default fsync mode")
	}
	if cfg.PayloadMaxBytes != 1<<20 {
		t.Fatalf("payload cap default")
	}
	if cfg.DefaultFormat != "json" {
		t.Fatalf("default format")
	}
	if cfg.SubscriberQueueLen != 256 {
		t.Fatalf("queue len default")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log defaults")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logos.json")
	data := []byte(`{"httpAddr":":9090","fsync":"interval","fsyncIntervalMs":20,"payloadMaxBytes":2048,"defaultFormat":"cbor","bootstrapAdmins":[{"id":"root","displayName":"Mission Control"}]}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected :9090")
	}
	if cfg.Fsync != "interval" || cfg.FsyncIntervalMs != 20 {
		t.Fatalf("fsync override")
	}
	if cfg.PayloadMaxBytes != 2048 {
		t.Fatalf("expected 2048")
	}
	if cfg.DefaultFormat != "cbor" {
		t.Fatalf("expected cbor")
	}
	if len(cfg.BootstrapAdmins) != 1 || cfg.BootstrapAdmins[0].ID != "root" || cfg.BootstrapAdmins[0].DisplayName != "Mission Control" {
		t.Fatalf("admins: %+v", cfg.BootstrapAdmins)
	}
	// Unset fields keep defaults.
	if cfg.SubscriberQueueLen != 256 {
		t.Fatalf("queue len should keep default")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logos.yaml")
	data := []byte("httpAddr: \":7070\"\ndataDir: /srv/logos\nlog:\n  level: debug\n  format: json\nbootstrapAdmins:\n  - id: root\n  - id: ops\n    displayName: Ops Desk\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7070" {
		t.Fatalf("expected :7070")
	}
	if cfg.DataDir != "/srv/logos" {
		t.Fatalf("data dir")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log override: %+v", cfg.Log)
	}
	if len(cfg.BootstrapAdmins) != 2 || cfg.BootstrapAdmins[1].DisplayName != "Ops Desk" {
		t.Fatalf("admins: %+v", cfg.BootstrapAdmins)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != Default().HTTPAddr {
		t.Fatalf("expected defaults")
	}
}

func TestLoadBadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "logos.json")
	if err := os.WriteFile(file, []byte("{nope"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("LOGOS_HTTP_ADDR", ":8181")
	os.Setenv("LOGOS_FSYNC", "never")
	os.Setenv("LOGOS_SUBSCRIBER_QUEUE_LEN", "64")
	os.Setenv("LOGOS_FLUSH_WINDOW_MS", "25")
	os.Setenv("LOGOS_LOG_LEVEL", "debug")
	os.Setenv("LOGOS_LOG_FILE", "/var/log/logos.log")
	os.Setenv("LOGOS_BOOTSTRAP_ADMINS", "root:Mission Control, ops")
	t.Cleanup(func() {
		os.Unsetenv("LOGOS_HTTP_ADDR")
		os.Unsetenv("LOGOS_FSYNC")
		os.Unsetenv("LOGOS_SUBSCRIBER_QUEUE_LEN")
		os.Unsetenv("LOGOS_FLUSH_WINDOW_MS")
		os.Unsetenv("LOGOS_LOG_LEVEL")
		os.Unsetenv("LOGOS_LOG_FILE")
		os.Unsetenv("LOGOS_BOOTSTRAP_ADMINS")
	})
	FromEnv(&cfg)
	if cfg.HTTPAddr != ":8181" {
		t.Fatalf("env override addr")
	}
	if cfg.Fsync != "never" {
		t.Fatalf("env override fsync")
	}
	if cfg.SubscriberQueueLen != 64 {
		t.Fatalf("env override queue len")
	}
	if cfg.FlushWindowMs != 25 {
		t.Fatalf("env override flush window")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("env override log level")
	}
	if cfg.Log.File != "/var/log/logos.log" {
		t.Fatalf("env override log file")
	}
	if len(cfg.BootstrapAdmins) != 2 {
		t.Fatalf("admins: %+v", cfg.BootstrapAdmins)
	}
	if cfg.BootstrapAdmins[0].ID != "root" || cfg.BootstrapAdmins[0].DisplayName != "Mission Control" {
		t.Fatalf("admin 0: %+v", cfg.BootstrapAdmins[0])
	}
	if cfg.BootstrapAdmins[1].ID != "ops" || cfg.BootstrapAdmins[1].DisplayName != "" {
		t.Fatalf("admin 1: %+v", cfg.BootstrapAdmins[1])
	}
}

func TestFromEnvIgnoresBadNumbers(t *testing.T) {
	cfg := Default()
	os.Setenv("LOGOS_PAYLOAD_MAX_BYTES", "lots")
	t.Cleanup(func() { os.Unsetenv("LOGOS_PAYLOAD_MAX_BYTES") })
	FromEnv(&cfg)
	if cfg.PayloadMaxBytes != 1<<20 {
		t.Fatalf("bad number should keep default")
	}
}
