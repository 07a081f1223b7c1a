package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/uvguard/internal/cli"
	"github.com/danmuck/uvguard/internal/logging"
	"github.com/danmuck/uvguard/internal/observability"
)

func main() {
	logging.ConfigureRuntime()
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	settings, err := cli.Execute(ctx, os.Args[1:], cli.Options{})
	stop()

	if werr := observability.WriteTextfile(settings.MetricsTextfile); werr != nil {
		log.Warn().Err(werr).Str("path", settings.MetricsTextfile).Msg("metrics textfile not written")
	}
	cli.PrintError(os.Stderr, err)
	os.Exit(cli.ExitCode(err))
}
