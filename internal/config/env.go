package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays LOGOS_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("LOGOS_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("LOGOS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LOGOS_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("LOGOS_FSYNC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FsyncIntervalMs = n
		}
	}
	if v := os.Getenv("LOGOS_PAYLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PayloadMaxBytes = n
		}
	}
	if v := os.Getenv("LOGOS_DEFAULT_FORMAT"); v != "" {
		cfg.DefaultFormat = v
	}
	if v := os.Getenv("LOGOS_SUBSCRIBER_QUEUE_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SubscriberQueueLen = n
		}
	}
	if v := os.Getenv("LOGOS_FLUSH_WINDOW_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FlushWindowMs = n
		}
	}
	if v := os.Getenv("LOGOS_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOGOS_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LOGOS_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("LOGOS_BOOTSTRAP_ADMINS"); v != "" {
		cfg.BootstrapAdmins = parseAdmins(v)
	}
}

// parseAdmins reads a comma separated list of "id" or "id:Display Name"
// items.
func parseAdmins(v string) []Admin {
	var out []Admin
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, display, ok := strings.Cut(part, ":")
		a := Admin{ID: strings.TrimSpace(id)}
		if ok {
			a.DisplayName = strings.TrimSpace(display)
		}
		if a.ID != "" {
			out = append(out, a)
		}
	}
	return out
}
