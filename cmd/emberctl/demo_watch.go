package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/emberdb/ember/internal/demo"
)

const demoWatchDebounce = 200 * time.Millisecond

// readSourceFile retries briefly on read errors: editors that save via
// rename can leave path momentarily missing between the Create and Write
// events fsnotify reports for it.
func readSourceFile(path string) ([]byte, error) {
	var data []byte
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Second
	err := backoff.Retry(func() error {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		data = b
		return nil
	}, bo)
	return data, err
}

var demoWatchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "watch a source file and re-evaluate the demo database on every save",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			fatalf("starting watcher: %v", err)
		}
		defer watcher.Close()

		dir := filepath.Dir(path)
		if err := watcher.Add(dir); err != nil {
			fatalf("watching %s: %v", dir, err)
		}

		d := demo.New()
		defer withTelemetry(d)()
		evaluate := func() {
			text, err := readSourceFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "emberctl: reading %s: %v\n", path, err)
				return
			}
			d.SetSource(demoDocID, string(text))
			value := d.Eval(demoDocID)
			fmt.Printf("document %d = %d\n", demoDocID, value)
			for _, dg := range d.Diagnostics(demoDocID) {
				fmt.Printf("  %s\n", dg.Message)
			}
		}

		evaluate()

		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(demoWatchDebounce, evaluate)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fmt.Fprintf(os.Stderr, "emberctl: watch error: %v\n", err)
			}
		}
	},
}
