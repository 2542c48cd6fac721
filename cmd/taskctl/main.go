// Command taskctl is the command-line client for the taskmaster API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logCfg.DisableStacktrace = true
	logger, err := logCfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}

	dispatcher := cli.NewDispatcher(cli.DefaultRegistry(), logger)
	dispatcher.SetLevel(logCfg.Level)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	logger.Sync()
	stop()
	os.Exit(code)
}
