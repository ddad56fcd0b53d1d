package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/hirs-avhrr/internal/cmd"
	"github.com/felixgeelhaar/hirs-avhrr/internal/exitcode"
	"github.com/felixgeelhaar/hirs-avhrr/internal/ux"
)

func main() {
	// Cancel on SIGINT/SIGTERM; running executables are killed with the context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nOperation cancelled by signal")
			exitcode.Exit(exitcode.Interrupted)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", ux.EnhanceError(err))
		exitcode.ExitWithError(err)
	}
	exitcode.Exit(exitcode.Success)
}
