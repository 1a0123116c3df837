package config

import (
	"io"

	"github.com/BurntSushi/toml"
)

// snapshot is the on-disk shape used by ExportTOML;
// field names are kept lowercase-with-dashes to match config.yaml's own
// style rather than the exported Settings struct's Go naming.
type snapshot struct {
	ExecutorParallelism   int    `toml:"executor-parallelism" yaml:"executor-parallelism"`
	FunctionLRUCapacity   int    `toml:"function-lru-capacity" yaml:"function-lru-capacity"`
	CycleIterationCeiling int    `toml:"cycle-iteration-ceiling" yaml:"cycle-iteration-ceiling"`
	ClaimBackoff          string `toml:"claim-backoff" yaml:"claim-backoff"`
	ClaimMaxBackoff       string `toml:"claim-max-backoff" yaml:"claim-max-backoff"`
	EventVerbosity        string `toml:"event-verbosity" yaml:"event-verbosity"`
	TelemetryEnabled      bool   `toml:"telemetry-enabled" yaml:"telemetry-enabled"`
	TelemetryOTLPEndpoint string `toml:"telemetry-otlp-endpoint" yaml:"telemetry-otlp-endpoint"`
}

func toSnapshot(s Settings) snapshot {
	return snapshot{
		ExecutorParallelism:   s.ExecutorParallelism,
		FunctionLRUCapacity:   s.FunctionLRUCapacity,
		CycleIterationCeiling: s.CycleIterationCeiling,
		ClaimBackoff:          s.ClaimBackoff.String(),
		ClaimMaxBackoff:       s.ClaimMaxBackoff.String(),
		EventVerbosity:        s.EventVerbosity,
		TelemetryEnabled:      s.TelemetryEnabled,
		TelemetryOTLPEndpoint: s.TelemetryOTLPEndpoint,
	}
}

// ExportTOML writes the resolved settings to w as TOML, for operators who
// want a durable snapshot of what a run was actually configured with.
// Grounded on the teacher's toml.NewEncoder(f).Encode(...) pattern in
// internal/recipes/recipes.go's SaveUserRecipe.
func ExportTOML(w io.Writer, s Settings) error {
	return toml.NewEncoder(w).Encode(toSnapshot(s))
}
