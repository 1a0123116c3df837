package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberdb/ember/internal/demo"
)

var (
	demoInvalidateFrom string
	demoInvalidateTo   string
)

var demoInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "evaluate --from, edit the source to --to, and re-evaluate to show what recomputed",
	Run: func(cmd *cobra.Command, args []string) {
		if demoInvalidateFrom == "" || demoInvalidateTo == "" {
			fatalf("both --from and --to are required")
		}

		d := demo.New()
		defer withTelemetry(d)()
		d.SetSource(demoDocID, demoInvalidateFrom)
		before := d.Eval(demoDocID)
		fmt.Printf("before: document %d = %d\n", demoDocID, before)

		d.SetSource(demoDocID, demoInvalidateTo)
		after := d.Eval(demoDocID)
		fmt.Printf("after:  document %d = %d\n", demoDocID, after)

		if before == after {
			fmt.Println("result unchanged: a downstream reader depending only on this value would not re-execute")
		} else {
			fmt.Println("result changed: downstream readers depending on this value are invalidated")
		}
	},
}

func init() {
	demoInvalidateCmd.Flags().StringVar(&demoInvalidateFrom, "from", "", "initial source expression")
	demoInvalidateCmd.Flags().StringVar(&demoInvalidateTo, "to", "", "replacement source expression")
}
