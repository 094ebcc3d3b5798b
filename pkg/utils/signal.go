package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalContext is canceled on the first SIGINT/SIGTERM, a second one exits.
func SetupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
