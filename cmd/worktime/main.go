package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"worktime-analytics/internal/cli"
	"worktime-analytics/internal/model"
)

func main() {
	// Recover from panics to ensure graceful exits with stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(model.ExitPanic)
		}
	}()

	if err := cli.Execute(); err != nil {
		os.Exit(model.ExitCodeForError(err))
	}
}
