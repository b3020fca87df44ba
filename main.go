package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edtenz/imgsch/cmd"
	"github.com/edtenz/imgsch/imgsch"
	"github.com/edtenz/imgsch/pkg/rlog"
)

func main() {
	cfg, err := imgsch.ParseConfig(os.Args[1:])
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			os.Exit(0)
		case errors.Is(err, imgsch.ErrPrintVersion):
			cfg.BuildInfo.Print()
			os.Exit(0)
		}
		rlog.Errorf("invalid config: %s", err)
		os.Exit(2)
	}

	rlog.SetLevel(cfg.LogLevel)
	if cfg.LogLevel == rlog.LevelDebug {
		cfg.BuildInfo.Print()
		cfg.Print()
	}

	app := cmd.NewApp(cfg)

	// Always shutdown the app to flush metrics, even after errors.
	var exitCode int
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.Shutdown(ctx); err != nil {
			rlog.Error(err)
		}

		os.Exit(exitCode)
	}()

	if err := app.Prepare(); err != nil {
		rlog.Error(err)
		exitCode = 1
		return
	}

	termCtx, termCtxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer termCtxCancel()

	if err := app.Run(termCtx); err != nil {
		rlog.Error(err)
		exitCode = 1
		return
	}
}
