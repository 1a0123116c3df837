package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberdb/ember/internal/demo"
)

var demoSource string

var demoRunCmd = &cobra.Command{
	Use:   "run",
	Short: "evaluate a source expression and print the result and diagnostics",
	Run: func(cmd *cobra.Command, args []string) {
		if demoSource == "" {
			fatalf("--source is required")
		}

		d := demo.New()
		defer withTelemetry(d)()
		d.SetSource(demoDocID, demoSource)
		value := d.Eval(demoDocID)
		diags := d.Diagnostics(demoDocID)

		if jsonOutput {
			out := struct {
				Value       int64             `json:"value"`
				Diagnostics []demo.Diagnostic `json:"diagnostics"`
			}{Value: value, Diagnostics: diags}
			data, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(data))
			return
		}

		fmt.Printf("document %d = %d\n", demoDocID, value)
		for _, dg := range diags {
			fmt.Printf("  %s\n", dg.Message)
		}
	},
}

func init() {
	demoRunCmd.Flags().StringVar(&demoSource, "source", "", `the expression to evaluate, e.g. "1 + 2 * 3"`)
}
