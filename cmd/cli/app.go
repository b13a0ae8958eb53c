package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/dvloznov/financial-control/internal/config"
	"github.com/dvloznov/financial-control/internal/datastore"
	"github.com/dvloznov/financial-control/internal/jobs"
	"github.com/dvloznov/financial-control/internal/logger"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// app holds what the subcommands share. A CLI run is short lived, so the
// store is opened once per command.
type app struct {
	cfg *config.Config

	out io.Writer
	err io.Writer
}

func (a *app) stdout() io.Writer {
	if a.out != nil {
		return a.out
	}
	return os.Stdout
}

func (a *app) stderr() io.Writer {
	if a.err != nil {
		return a.err
	}
	return os.Stderr
}

func (a *app) logger() zerolog.Logger {
	return logger.New(a.cfg.LogLevel)
}

// openStore opens the configured backend and the store over it.
func (a *app) openStore(ctx context.Context) (*datastore.Store, func() error, error) {
	backend, closeFn, err := config.OpenBackend(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := datastore.New(ctx, backend, datastore.WithLogger(a.logger()))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}

// syncRunner builds a Drive adapter from the environment credentials and
// signs in. Sign-in happens before the sync timeout starts since it waits
// for the user.
func (a *app) syncRunner(ctx context.Context, store *datastore.Store) (*jobs.SyncRunner, *cloudsync.Adapter, error) {
	creds, ok := a.cfg.DriveCredentials()
	if !ok {
		return nil, nil, errors.New("google drive is not configured: set GOOGLE_API_KEY and GOOGLE_CLIENT_ID")
	}
	log := a.logger()
	adapter := cloudsync.NewAdapter(
		cloudsync.WithAuthenticator(&cloudsync.LoopbackAuthenticator{Out: a.stderr()}),
		cloudsync.WithLogger(log),
	)
	adapter.SetCredentials(creds)
	if err := adapter.Initialize(ctx); err != nil {
		return nil, nil, err
	}
	if err := adapter.SignIn(ctx); err != nil {
		return nil, nil, err
	}
	return jobs.NewSyncRunner(store, adapter, a.cfg.SyncTimeout, log), adapter, nil
}

// fail prints err and returns the failure status.
func (a *app) fail(format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(a.stderr(), "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// printMarkdown renders md for the terminal, or prints it as is when plain
// is set or rendering fails.
func (a *app) printMarkdown(md string, plain bool) {
	if !plain {
		r, err := glamour.NewTermRenderer(glamour.WithStandardStyle("dark"), glamour.WithWordWrap(100))
		if err == nil {
			if out, err := r.Render(md); err == nil {
				fmt.Fprint(a.stdout(), out)
				return
			}
		}
	}
	fmt.Fprint(a.stdout(), md)
}
