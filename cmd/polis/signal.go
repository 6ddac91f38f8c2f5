package main

import (
	"os"
	"os/signal"
	"syscall"
)

// awaitSignal blocks until SIGINT or SIGTERM arrives, then calls cancel.
func awaitSignal(cancel func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()
}
