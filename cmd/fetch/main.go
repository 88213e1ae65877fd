package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gaborage/go-fetch/internal/commands"
)

var version = "dev" // Will be set during build

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, version, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
