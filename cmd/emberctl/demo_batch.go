package main

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/emberdb/ember"
	"github.com/emberdb/ember/internal/demo"
)

var demoBatchSources []string

var demoBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "evaluate several expressions concurrently against one shared database",
	Run: func(cmd *cobra.Command, args []string) {
		if len(demoBatchSources) == 0 {
			fatalf("--source must be given at least once")
		}

		d := demo.New()
		defer withTelemetry(d)()

		var mu sync.Mutex
		for i, src := range demoBatchSources {
			mu.Lock()
			d.SetSource(i, src)
			mu.Unlock()
		}

		settings := ember.DefaultSettings()
		var g errgroup.Group
		if settings.ExecutorParallelism > 0 {
			g.SetLimit(settings.ExecutorParallelism)
		} else {
			g.SetLimit(runtime.NumCPU())
		}

		values := make([]int64, len(demoBatchSources))
		for i := range demoBatchSources {
			i := i
			g.Go(func() error {
				reader := d.Snapshot()
				defer reader.Close()
				values[i] = reader.Eval(i)
				return nil
			})
		}
		_ = g.Wait()

		for i, v := range values {
			fmt.Printf("document %d = %d\n", i, v)
		}
	},
}

func init() {
	demoBatchCmd.Flags().StringArrayVar(&demoBatchSources, "source", nil, "an expression to evaluate (repeatable)")
}
