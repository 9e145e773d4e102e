// File: cmd/raidpilot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/raidpilot/cmd"
	"github.com/xkilldash9x/raidpilot/internal/observability"
)

const panicLogName = "panic.log"

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	osMkdirAll  = os.MkdirAll
	// Allows mocking os.Exit in tests.
	osExit = os.Exit
	// panicLogDir is where crash reports are written.
	panicLogDir = "~/.raidpilot"
)

// main is the entry point of the application.
func main() {
	defer handlePanic()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil && !errors.Is(err, context.Canceled) {
		osExit(1)
	}
}

// handlePanic writes a crash report next to the other state files and exits non-zero.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	report := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	path, err := writePanicLog([]byte(report))
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", report)
		osExit(2)
		return
	}

	fmt.Fprintf(os.Stderr, "\nraidpilot crashed. Details were written to %s\n", path)
	osExit(2)
}

func writePanicLog(report []byte) (string, error) {
	dir, err := homedir.Expand(panicLogDir)
	if err != nil {
		return "", err
	}
	if err := osMkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, panicLogName)
	if err := osWriteFile(path, report, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
