package main

import "github.com/spf13/cobra"

var demoDocID int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "operate the arithmetic expression-graph demo database",
}

func init() {
	demoCmd.PersistentFlags().IntVar(&demoDocID, "doc", 0, "document id within the demo database")
	demoCmd.AddCommand(demoRunCmd, demoInvalidateCmd, demoWatchCmd, demoStatsCmd, demoEditCmd, demoBatchCmd)
}
