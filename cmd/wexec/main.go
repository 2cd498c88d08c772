// wexec runs one command on many Windows machines over WinRM and folds the
// per-host results into a single exit status.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/andrej220/wexec/internal/app"
	"github.com/andrej220/wexec/internal/dispatch"
	"github.com/andrej220/wexec/internal/lg"
	"github.com/andrej220/wexec/internal/session"
	"github.com/andrej220/wexec/pkg/models"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseArgs(args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return models.ExitSuccess
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return models.ExitFatal
	}

	logger := lg.New(opts.Log)
	defer logger.Sync()

	settings, err := opts.settings()
	if err != nil {
		logger.Error("cannot load settings", lg.Err(err))
		return models.ExitFatal
	}

	searcher, closeInventory, err := app.BuildSearcher(settings.Inventory)
	if err != nil {
		logger.Error("cannot open inventory", lg.Err(err))
		return models.ExitFatal
	}
	defer closeInventory()

	sink, err := app.BuildSink(settings.Report)
	if err != nil {
		logger.Error("cannot open report sink", lg.Err(err))
		return models.ExitFatal
	}
	if sink != nil {
		defer sink.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(settings, app.Deps{
		Searcher:        searcher,
		Opener:          session.NewWinRM(),
		Sink:            sink,
		Logger:          logger,
		DispatchOptions: []dispatch.Option{dispatch.WithOutput(os.Stdout, os.Stderr)},
		Windows:         runtime.GOOS == "windows",
	})
	res, err := a.Run(ctx, app.Invocation{Query: opts.Query, Command: opts.Command})

	code := app.ExitStatus(res, err)
	switch {
	case err != nil:
		logger.Error(app.Describe(err), lg.Int("exit_code", code))
	case res.ExitCode == models.StatusUnauthorized:
		logger.Info("authentication failure suppressed", lg.Int("status", res.ExitCode))
	}
	return code
}
