// Command emberctl drives the demo expression-graph database
// (internal/demo) from the command line: run it once, edit its source
// interactively, invalidate and re-evaluate it, or watch a source file and
// re-evaluate on every save.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emberdb/ember"
	"github.com/emberdb/ember/internal/demo"
	"github.com/emberdb/ember/internal/telemetry"
)

var (
	jsonOutput      bool
	telemetryOn     bool
	telemetryTarget string
)

var rootCmd = &cobra.Command{
	Use:   "emberctl",
	Short: "emberctl - drive the ember demo expression database",
	Long:  "emberctl exercises the ember incremental query engine through a small arithmetic expression-graph demo database.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	settings := ember.DefaultSettings()
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&telemetryOn, "telemetry", settings.TelemetryEnabled, "emit OTel spans and metrics for engine events")
	rootCmd.PersistentFlags().StringVar(&telemetryTarget, "telemetry-otlp-endpoint", settings.TelemetryOTLPEndpoint, "OTLP HTTP endpoint for metrics (stdout if empty)")
	rootCmd.AddCommand(demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withTelemetry attaches the engine event hook to d when --telemetry is
// set and returns a cleanup func that flushes and shuts the providers
// down; callers always defer it, even when telemetry is off (no-op then).
func withTelemetry(d *demo.Database) func() {
	if !telemetryOn {
		return func() {}
	}
	providers, err := telemetry.Init(telemetryTarget)
	if err != nil {
		fatalf("telemetry: %v", err)
	}
	d.SetEventHook(telemetry.NewEventHook("demo"))
	return func() { _ = providers.Shutdown(context.Background()) }
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "emberctl: "+format+"\n", args...)
	os.Exit(1)
}
