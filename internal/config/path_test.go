package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDataDirXDG(t *testing.T) {
	os.Setenv("XDG_DATA_HOME", "/custom/data")
	t.Cleanup(func() { os.Unsetenv("XDG_DATA_HOME") })
	if got := DefaultDataDir(); got != filepath.Join("/custom/data", "logos") {
		t.Fatalf("xdg override: got %s", got)
	}
}

func TestDefaultDataDirNoHome(t *testing.T) {
	home := os.Getenv("HOME")
	os.Unsetenv("HOME")
	t.Cleanup(func() {
		if home != "" {
			os.Setenv("HOME", home)
		}
	})
	// UserHomeDir fails without HOME; the relative fallback keeps the
	// server bootable in minimal containers.
	if got := DefaultDataDir(); got != "./data" {
		t.Fatalf("fallback: got %s", got)
	}
}

func TestResolveDataDir(t *testing.T) {
	cfg := Config{DataDir: "/srv/logos-data"}
	if got := ResolveDataDir(cfg); got != "/srv/logos-data" {
		t.Fatalf("override: got %s", got)
	}
	if got := ResolveDataDir(Config{}); got != DefaultDataDir() {
		t.Fatalf("fallback: got %s", got)
	}
}

func TestResolveDataDirFollowsXDG(t *testing.T) {
	os.Setenv("XDG_DATA_HOME", "/tmp/xdg")
	t.Cleanup(func() { os.Unsetenv("XDG_DATA_HOME") })
	if got := ResolveDataDir(Config{}); got != filepath.Join("/tmp/xdg", "logos") {
		t.Fatalf("expected xdg path, got %s", got)
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !isDir(dir) {
		t.Fatalf("directory not recognized")
	}
	if isDir(file) {
		t.Fatalf("regular file reported as dir")
	}
	if isDir(filepath.Join(dir, "missing")) {
		t.Fatalf("absent path reported as dir")
	}
}
