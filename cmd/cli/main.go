// Command cli manages the financial document from the terminal.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/dvloznov/financial-control/internal/config"
	"github.com/google/subcommands"
)

func main() {
	_ = config.LoadDotEnv(".env")
	cfg := config.Load()
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}

	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the financial document (file backend)")
	flag.StringVar(&cfg.StorageBackend, "backend", cfg.StorageBackend, "Storage backend: file, gcs or memory")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	register(commander, &app{cfg: cfg})

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// register adds every subcommand, grouped as in the help output.
func register(c *subcommands.Commander, a *app) {
	c.Register(&addCmd{app: a}, "transactions")
	c.Register(&editCmd{app: a}, "transactions")
	c.Register(&listCmd{app: a}, "transactions")
	c.Register(&removeCmd{app: a}, "transactions")
	c.Register(&statsCmd{app: a}, "transactions")

	c.Register(&exportCmd{app: a}, "backup")
	c.Register(&importCmd{app: a}, "backup")
	c.Register(&clearCmd{app: a}, "backup")

	c.Register(&driveSaveCmd{app: a}, "google drive")
	c.Register(&driveLoadCmd{app: a}, "google drive")
	c.Register(&driveListCmd{app: a}, "google drive")
}
