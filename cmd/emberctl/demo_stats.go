package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/emberdb/ember"
	"github.com/emberdb/ember/internal/config"
	"github.com/emberdb/ember/internal/demo"
)

var (
	statsLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	})
	statsValueStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	})
)

var (
	demoStatsSource     string
	demoStatsExportTOML string
)

var demoStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show the resolved engine settings and a one-shot evaluation summary",
	Run: func(cmd *cobra.Command, args []string) {
		settings := ember.DefaultSettings()

		rows := [][2]string{
			{"executor.parallelism", fmt.Sprint(settings.ExecutorParallelism)},
			{"function.default-lru-capacity", fmt.Sprint(settings.FunctionLRUCapacity)},
			{"function.cycle-iteration-ceiling", fmt.Sprint(settings.CycleIterationCeiling)},
			{"function.claim-backoff", settings.ClaimBackoff.String()},
			{"function.claim-max-backoff", settings.ClaimMaxBackoff.String()},
			{"event.verbosity", settings.EventVerbosity},
		}

		if demoStatsSource != "" {
			d := demo.New()
			d.SetSource(demoDocID, demoStatsSource)
			value := d.Eval(demoDocID)
			rows = append(rows,
				[2]string{"demo.document", fmt.Sprint(demoDocID)},
				[2]string{"demo.value", fmt.Sprint(value)},
				[2]string{"demo.diagnostic-count", fmt.Sprint(len(d.Diagnostics(demoDocID)))},
			)
		}

		for _, row := range rows {
			fmt.Printf("%s %s\n", statsLabelStyle.Render(padRight(row[0], 34)), statsValueStyle.Render(row[1]))
		}

		if demoStatsExportTOML != "" {
			f, err := os.Create(demoStatsExportTOML)
			if err != nil {
				fatalf("creating %s: %v", demoStatsExportTOML, err)
			}
			defer f.Close()
			if err := config.ExportTOML(f, settings); err != nil {
				fatalf("exporting TOML settings: %v", err)
			}
			fmt.Printf("wrote %s\n", demoStatsExportTOML)
		}
	},
}

func init() {
	demoStatsCmd.Flags().StringVar(&demoStatsSource, "source", "", "optional expression to evaluate and include in the summary")
	demoStatsCmd.Flags().StringVar(&demoStatsExportTOML, "export-toml", "", "write the resolved settings to this path as TOML")
}

func padRight(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}
