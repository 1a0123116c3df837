package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultReturnsBuiltInDefaults(t *testing.T) {
	v = nil
	s := Default()
	if s.CycleIterationCeiling != 5 {
		t.Fatalf("CycleIterationCeiling = %d, want 5", s.CycleIterationCeiling)
	}
	if s.EventVerbosity != VerbosityNormal {
		t.Fatalf("EventVerbosity = %q, want %q", s.EventVerbosity, VerbosityNormal)
	}
}

func TestLoadMergesConfigYaml(t *testing.T) {
	v = nil
	dir := t.TempDir()
	contents := "function:\n  default-lru-capacity: 256\nevent:\n  verbosity: trace\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.FunctionLRUCapacity != 256 {
		t.Fatalf("FunctionLRUCapacity = %d, want 256", s.FunctionLRUCapacity)
	}
	if s.EventVerbosity != VerbosityTrace {
		t.Fatalf("EventVerbosity = %q, want %q", s.EventVerbosity, VerbosityTrace)
	}
	// Untouched keys keep their defaults.
	if s.CycleIterationCeiling != 5 {
		t.Fatalf("CycleIterationCeiling = %d, want 5", s.CycleIterationCeiling)
	}
}

func TestLoadWithoutConfigFileFallsBackToDefaults(t *testing.T) {
	v = nil
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.ExecutorParallelism != 0 {
		t.Fatalf("ExecutorParallelism = %d, want 0", s.ExecutorParallelism)
	}
}

func TestEnvOverrideTakesPrecedence(t *testing.T) {
	v = nil
	t.Setenv("EMBER_EVENT_VERBOSITY", VerbositySilent)
	s := Default()
	if s.EventVerbosity != VerbositySilent {
		t.Fatalf("EventVerbosity = %q, want %q", s.EventVerbosity, VerbositySilent)
	}
}

func TestTelemetryDisabledByDefault(t *testing.T) {
	v = nil
	s := Default()
	if s.TelemetryEnabled {
		t.Fatal("TelemetryEnabled = true, want false by default")
	}
	if s.TelemetryOTLPEndpoint != "" {
		t.Fatalf("TelemetryOTLPEndpoint = %q, want empty", s.TelemetryOTLPEndpoint)
	}
}

func TestTelemetryEnvOverride(t *testing.T) {
	v = nil
	t.Setenv("EMBER_TELEMETRY_ENABLED", "true")
	t.Setenv("EMBER_TELEMETRY_OTLP_ENDPOINT", "localhost:4318")
	s := Default()
	if !s.TelemetryEnabled {
		t.Fatal("TelemetryEnabled = false, want true")
	}
	if s.TelemetryOTLPEndpoint != "localhost:4318" {
		t.Fatalf("TelemetryOTLPEndpoint = %q, want localhost:4318", s.TelemetryOTLPEndpoint)
	}
}
