// Command ingest reads a groundwater CSV upload and either publishes its rows
// to the source topic or runs them through the pipeline locally.
//
// Usage:
//
//	go run ./cmd/ingest publish data/mock/groundwater_sample.csv --create-topic
//	go run ./cmd/ingest local data/mock/groundwater_sample.csv --store sqlite
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
