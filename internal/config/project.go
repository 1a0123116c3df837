package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type projectOverrides struct {
	Offline bool `yaml:"offline"`
}

// IsOfflineConfigured reports whether dir's config.yaml sets `offline:
// true`, read directly with yaml.v3 rather than through viper — a single
// boolean a caller might want before Load has even run (e.g. to decide
// whether telemetry should ever attempt an OTLP exporter). Grounded on
// the teacher's cmd/bd/config_local.go isNoDbModeConfigured/
// isPreferDoltConfigured helpers, which read one key out of config.yaml
// the same way for the same reason: a cheap check before the full config
// layer initializes.
func IsOfflineConfigured(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return false
	}
	var cfg projectOverrides
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return false
	}
	return cfg.Offline
}
