package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yanun0323/logs"

	"hft/internal/terminal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := terminal.NewRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		logs.Errorf("terminal, err: %+v", err)
		stop()
		os.Exit(1)
	}
}
