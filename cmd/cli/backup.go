package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
)

type exportCmd struct {
	app    *app
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "Write the whole document to a JSON file" }
func (*exportCmd) Usage() string {
	return `export [-o FILE]:
  Export the document. The default file name is financial-data-YYYY-MM-DD.json;
  use -o - to write to stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file, or - for stdout")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	if c.output == "-" {
		if err := store.ExportJSON(ctx, c.app.stdout()); err != nil {
			return c.app.fail("exporting: %v", err)
		}
		return subcommands.ExitSuccess
	}

	name := c.output
	if name == "" {
		name = store.ExportFileName()
	}
	out, err := os.Create(name)
	if err != nil {
		return c.app.fail("creating %s: %v", name, err)
	}
	if err := store.ExportJSON(ctx, out); err != nil {
		out.Close()
		return c.app.fail("exporting: %v", err)
	}
	if err := out.Close(); err != nil {
		return c.app.fail("writing %s: %v", name, err)
	}
	fmt.Fprintf(c.app.stdout(), "Exported to %s\n", name)
	return subcommands.ExitSuccess
}

type importCmd struct {
	app *app
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "Replace the document with a JSON export" }
func (*importCmd) Usage() string {
	return `import FILE:
  Replace all data with the contents of FILE (use - for stdin). The file must
  contain version, user, transacoes and contas.
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(c.app.stderr(), "Error: import takes exactly one file")
		return subcommands.ExitUsageError
	}

	var in io.Reader = os.Stdin
	if name := f.Arg(0); name != "-" {
		file, err := os.Open(name)
		if err != nil {
			return c.app.fail("opening %s: %v", name, err)
		}
		defer file.Close()
		in = file
	}

	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	doc, err := store.ImportJSON(ctx, in)
	if err != nil {
		return c.app.fail("importing: %v", err)
	}
	fmt.Fprintf(c.app.stdout(), "Imported %d transactions and %d accounts\n", len(doc.Transactions), len(doc.Accounts))
	return subcommands.ExitSuccess
}

type clearCmd struct {
	app *app
	yes bool
	in  io.Reader
}

func (*clearCmd) Name() string     { return "clear" }
func (*clearCmd) Synopsis() string { return "Reset all data to the defaults" }
func (*clearCmd) Usage() string {
	return `clear [-yes]:
  Delete every transaction and restore the default accounts and settings.
`
}

func (c *clearCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "Do not ask for confirmation")
}

func (c *clearCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes && !c.confirm() {
		fmt.Fprintln(c.app.stdout(), "Aborted")
		return subcommands.ExitSuccess
	}

	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	if _, err := store.ClearAllData(ctx); err != nil {
		return c.app.fail("clearing data: %v", err)
	}
	fmt.Fprintln(c.app.stdout(), "All data cleared")
	return subcommands.ExitSuccess
}

func (c *clearCmd) confirm() bool {
	in := c.in
	if in == nil {
		in = os.Stdin
	}
	fmt.Fprint(c.app.stdout(), "This deletes all transactions. Continue? [y/N] ")
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
