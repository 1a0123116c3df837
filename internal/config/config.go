// Package config loads the knobs that shape an ember host database at
// startup: executor parallelism, default memoization limits, and event
// verbosity. It follows the teacher's viper-singleton pattern (a package
// config.yaml merged with environment overrides) rather than threading a
// struct through every constructor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keys, namespaced the way the teacher namespaces its own
// "section.setting" keys.
const (
	KeyExecutorParallelism     = "executor.parallelism"
	KeyFunctionLRUCapacity     = "function.default-lru-capacity"
	KeyFunctionCycleCeiling    = "function.cycle-iteration-ceiling"
	KeyFunctionClaimBackoff    = "function.claim-backoff"
	KeyFunctionClaimMaxBackoff = "function.claim-max-backoff"
	KeyEventVerbosity          = "event.verbosity"
	KeyTelemetryEnabled        = "telemetry.enabled"
	KeyTelemetryOTLPEndpoint   = "telemetry.otlp-endpoint"
)

// Verbosity levels for the event hook (spec.md §6).
const (
	VerbositySilent = "silent"
	VerbosityNormal = "normal"
	VerbosityTrace  = "trace"
)

var v *viper.Viper

// Settings is the resolved view of every knob a Database constructor
// needs. Load returns one of these rather than handing callers the
// viper singleton directly, so components never import viper themselves.
type Settings struct {
	ExecutorParallelism   int
	FunctionLRUCapacity   int
	CycleIterationCeiling int
	ClaimBackoff          time.Duration
	ClaimMaxBackoff       time.Duration
	EventVerbosity        string
	TelemetryEnabled      bool
	TelemetryOTLPEndpoint string
}

// Initialize sets every default and binds EMBER_-prefixed environment
// overrides (e.g. EMBER_EXECUTOR_PARALLELISM). Safe to call more than
// once; each call starts from a fresh viper instance.
func Initialize() {
	v = viper.New()
	v.SetEnvPrefix("ember")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyExecutorParallelism, 0) // 0 means "use runtime.NumCPU()"
	v.SetDefault(KeyFunctionLRUCapacity, 0) // 0 means "unbounded"
	v.SetDefault(KeyFunctionCycleCeiling, 5)
	v.SetDefault(KeyFunctionClaimBackoff, "1ms")
	v.SetDefault(KeyFunctionClaimMaxBackoff, "50ms")
	v.SetDefault(KeyEventVerbosity, VerbosityNormal)
	v.SetDefault(KeyTelemetryEnabled, false) // optional tracing/metrics, off by default
	v.SetDefault(KeyTelemetryOTLPEndpoint, "")
}

// Load merges config.yaml found under dir (if any) into the already
// initialized defaults and returns the resolved Settings. A missing file
// is not an error — callers get the defaults.
func Load(dir string) (Settings, error) {
	if v == nil {
		Initialize()
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("ember: reading %s: %w", path, err)
		}
	}

	return resolve(), nil
}

func resolve() Settings {
	return Settings{
		ExecutorParallelism:   v.GetInt(KeyExecutorParallelism),
		FunctionLRUCapacity:   v.GetInt(KeyFunctionLRUCapacity),
		CycleIterationCeiling: v.GetInt(KeyFunctionCycleCeiling),
		ClaimBackoff:          v.GetDuration(KeyFunctionClaimBackoff),
		ClaimMaxBackoff:       v.GetDuration(KeyFunctionClaimMaxBackoff),
		EventVerbosity:        v.GetString(KeyEventVerbosity),
		TelemetryEnabled:      v.GetBool(KeyTelemetryEnabled),
		TelemetryOTLPEndpoint: v.GetString(KeyTelemetryOTLPEndpoint),
	}
}

// Default returns the resolved Settings from defaults and environment
// overrides alone, for callers that have no on-disk config directory
// (e.g. the demo host and unit tests).
func Default() Settings {
	if v == nil {
		Initialize()
	}
	return resolve()
}
