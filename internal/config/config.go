package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Port   int
	DBPath string

	// ScanRoots restricts which directories the API may scan. Empty means
	// unrestricted.
	ScanRoots []string

	// Workers sizes the engine hash pool (0 = derive from CPU count).
	Workers int

	// Threshold and Method are the defaults for similar-name queries when a
	// request does not override them.
	Threshold float64
	Method    string

	RetentionDays int
	ScanTimeout   time.Duration
}

// Load reads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		Port:          getEnvInt("SIMSCAN_PORT", 8080),
		DBPath:        getEnv("SIMSCAN_DB_PATH", "./data/simscan.db"),
		Workers:       getEnvInt("SIMSCAN_WORKERS", 0),
		Threshold:     getEnvFloat("SIMSCAN_THRESHOLD", 70.0),
		Method:        getEnv("SIMSCAN_METHOD", "ratio"),
		RetentionDays: getEnvInt("SIMSCAN_RETENTION_DAYS", 30),
		ScanTimeout:   time.Duration(getEnvInt("SIMSCAN_SCAN_TIMEOUT_MINUTES", 120)) * time.Minute,
	}

	// Parse comma-separated allowed scan roots.
	if paths := getEnv("SIMSCAN_SCAN_ROOTS", ""); paths != "" {
		for _, p := range strings.Split(paths, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.ScanRoots = append(cfg.ScanRoots, ExpandPath(p))
			}
		}
	}

	return cfg
}

// ExpandPath expands a leading ~ to the user's home directory and cleans the
// result. Relative paths stay relative.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(path)
}

// IsPathAllowed reports whether path lies under one of the allowed roots. An
// empty allow list permits everything.
func IsPathAllowed(allowed []string, path string) bool {
	if len(allowed) == 0 {
		return true
	}
	path = filepath.Clean(path)
	for _, root := range allowed {
		root = filepath.Clean(root)
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
