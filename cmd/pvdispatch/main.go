package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/pvdispatch/cli"
	"github.com/saylorsolutions/pvdispatch/signalx"
	"io"
	"os"
	"syscall"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(runWithSignals(os.Args[1:], os.Stdout, os.Stderr))
}

// runWithSignals releases the signal registration before returning, since os.Exit skips deferred calls.
func runWithSignals(args []string, stdout, stderr io.Writer) int {
	ctx, cancel := signalx.SignalCtx(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return run(ctx, args, stdout, stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	defer a.close()
	set := a.commands()
	if set.RespondUsage(args, "Runs control-system callbacks on dedicated per-category workers.") {
		return exitOK
	}
	err := set.Exec(ctx, args)
	switch {
	case err == nil:
		return exitOK
	case cli.IsUsageError(err):
		return exitUsage
	case errors.Is(err, cli.ErrUnknownCommand):
		set.Printer().Println(err)
		set.RespondUsage(nil, "")
		return exitUsage
	default:
		set.Printer().Println(fmt.Sprintf("Error: %v", err))
		return exitError
	}
}
