package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/emberdb/ember/internal/demo"
)

var demoEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "edit the demo document's source interactively and show what recomputed",
	Run: func(cmd *cobra.Command, args []string) {
		d := demo.New()
		defer withTelemetry(d)()

		var source string
		var confirmed bool

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Expression").
					Description("An arithmetic expression over +, -, * and integer literals").
					Placeholder("e.g., 1 + 2 * 3").
					Value(&source).
					Validate(func(s string) error {
						if s == "" {
							return fmt.Errorf("an expression is required")
						}
						return nil
					}),

				huh.NewConfirm().
					Title("Evaluate this expression?").
					Affirmative("Evaluate").
					Negative("Cancel").
					Value(&confirmed),
			),
		).WithTheme(huh.ThemeDracula())

		if err := form.Run(); err != nil {
			if err == huh.ErrUserAborted {
				fmt.Fprintln(os.Stderr, "edit cancelled.")
				os.Exit(0)
			}
			fatalf("form error: %v", err)
		}

		if !confirmed {
			fmt.Fprintln(os.Stderr, "edit cancelled.")
			return
		}

		d.SetSource(demoDocID, source)
		value := d.Eval(demoDocID)
		fmt.Printf("document %d = %d\n", demoDocID, value)
		for _, dg := range d.Diagnostics(demoDocID) {
			fmt.Printf("  %s\n", dg.Message)
		}
	},
}
