package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	session "github.com/newsportal/go-session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// A cancelled sign-in is a silent outcome, not a failure
		if session.IsFlowCancelled(err) {
			fmt.Fprintln(os.Stderr, "Sign-in cancelled.")
			os.Exit(0)
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
