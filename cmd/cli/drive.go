package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/google/subcommands"
)

type driveSaveCmd struct {
	app *app
}

func (*driveSaveCmd) Name() string     { return "drive-save" }
func (*driveSaveCmd) Synopsis() string { return "Back up the document to Google Drive" }
func (*driveSaveCmd) Usage() string {
	return `drive-save:
  Upload the document to "Financial Control/financial-control-backup.json" in
  Google Drive, replacing the previous backup. Opens a sign-in URL on first use.
`
}

func (*driveSaveCmd) SetFlags(*flag.FlagSet) {}

func (c *driveSaveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	runner, _, err := c.app.syncRunner(ctx, store)
	if err != nil {
		return c.app.fail("%v", err)
	}
	rf, err := runner.Upload(ctx)
	if err != nil {
		return c.app.fail("saving to Google Drive: %v", err)
	}
	fmt.Fprintf(c.app.stdout(), "Saved backup %s (%s)\n", rf.Name, rf.ID)
	return subcommands.ExitSuccess
}

type driveLoadCmd struct {
	app *app
}

func (*driveLoadCmd) Name() string     { return "drive-load" }
func (*driveLoadCmd) Synopsis() string { return "Restore the document from Google Drive" }
func (*driveLoadCmd) Usage() string {
	return `drive-load:
  Download the Google Drive backup and replace all local data with it.
`
}

func (*driveLoadCmd) SetFlags(*flag.FlagSet) {}

func (c *driveLoadCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	runner, _, err := c.app.syncRunner(ctx, store)
	if err != nil {
		return c.app.fail("%v", err)
	}
	doc, err := runner.Download(ctx)
	if errors.Is(err, cloudsync.ErrNotFound) {
		return c.app.fail("no backup found in Google Drive")
	}
	if err != nil {
		return c.app.fail("loading from Google Drive: %v", err)
	}
	fmt.Fprintf(c.app.stdout(), "Restored %d transactions from Google Drive\n", len(doc.Transactions))
	return subcommands.ExitSuccess
}

type driveListCmd struct {
	app   *app
	plain bool
}

func (*driveListCmd) Name() string     { return "drive-list" }
func (*driveListCmd) Synopsis() string { return "List backups stored in Google Drive" }
func (*driveListCmd) Usage() string {
	return `drive-list [-plain]:
  List the backup files in the Google Drive folder.
`
}

func (c *driveListCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "Print raw markdown")
}

func (c *driveListCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	_, adapter, err := c.app.syncRunner(ctx, store)
	if err != nil {
		return c.app.fail("%v", err)
	}
	files, err := adapter.ListBackups(ctx)
	if err != nil {
		return c.app.fail("listing backups: %v", err)
	}
	c.app.printMarkdown(backupsMarkdown(files), c.plain)
	return subcommands.ExitSuccess
}
