package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// rootCtx is cancelled on SIGINT/SIGTERM so running stages stop at
// their next suspension point rather than mid-parse.
var (
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := rootCmd.ExecuteContext(rootCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
