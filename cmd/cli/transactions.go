package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/dvloznov/financial-control/internal/datastore"
	"github.com/dvloznov/financial-control/internal/domain"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

// txFlags are the transaction fields shared by add and edit.
type txFlags struct {
	tipo      string
	categoria string
	descricao string
	valor     string
	data      string
	conta     string
}

func (f *txFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.tipo, "tipo", "", "Transaction type: gasto or receita")
	fs.StringVar(&f.categoria, "categoria", "", "Category, e.g. Alimentação or Salário")
	fs.StringVar(&f.descricao, "descricao", "", "Free-text description")
	fs.StringVar(&f.valor, "valor", "", "Amount, e.g. 150.75")
	fs.StringVar(&f.data, "data", "", "Date as YYYY-MM-DD (default today)")
	fs.StringVar(&f.conta, "conta", "", "Account name")
}

// apply copies the flags that were set on fs into base.
func (f *txFlags) apply(fs *flag.FlagSet, base domain.NewTransaction) (domain.NewTransaction, error) {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "tipo":
			base.Type = domain.TransactionType(f.tipo)
		case "categoria":
			base.Category = f.categoria
		case "descricao":
			base.Description = f.descricao
		case "conta":
			base.Account = f.conta
		case "valor":
			base.Amount, err = parseAmount(f.valor)
		case "data":
			base.Date, err = domain.ParseDate(f.data)
			if err != nil {
				err = fmt.Errorf("invalid -data %q: want YYYY-MM-DD", f.data)
			}
		}
	})
	if err != nil {
		return base, err
	}
	if !base.Type.Valid() {
		return base, fmt.Errorf("invalid -tipo %q: want %s or %s", base.Type, domain.TransactionExpense, domain.TransactionIncome)
	}
	return base, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid -valor %q", s)
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("-valor must be greater than zero")
	}
	return v, nil
}

func toNewTransaction(t domain.Transaction) domain.NewTransaction {
	return domain.NewTransaction{
		Type:        t.Type,
		Category:    t.Category,
		Description: t.Description,
		Amount:      t.Amount,
		Date:        t.Date,
		Account:     t.Account,
	}
}

type addCmd struct {
	app *app
	fs  *flag.FlagSet
	txFlags
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "Record an expense or income" }
func (*addCmd) Usage() string {
	return `add -tipo gasto|receita -valor AMOUNT [-categoria C] [-descricao D] [-data YYYY-MM-DD] [-conta A]:
  Record a new transaction.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	c.fs = f
	c.register(f)
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.valor == "" {
		fmt.Fprintln(c.app.stderr(), "Error: -valor is required")
		return subcommands.ExitUsageError
	}
	in, err := c.apply(c.fs, domain.NewTransaction{})
	if err != nil {
		fmt.Fprintf(c.app.stderr(), "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	t, err := store.AddTransaction(ctx, in)
	if err != nil {
		return c.app.fail("adding transaction: %v", err)
	}
	fmt.Fprintf(c.app.stdout(), "Added transaction %d\n", t.ID)
	return subcommands.ExitSuccess
}

type editCmd struct {
	app *app
	fs  *flag.FlagSet
	id  int64
	txFlags
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "Change fields of a transaction" }
func (*editCmd) Usage() string {
	return `edit -id ID [-tipo T] [-valor V] [-categoria C] [-descricao D] [-data YYYY-MM-DD] [-conta A]:
  Update a transaction. Fields whose flag is not given keep their value.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	c.fs = f
	f.Int64Var(&c.id, "id", 0, "Transaction id")
	c.register(f)
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.id == 0 {
		fmt.Fprintln(c.app.stderr(), "Error: -id is required")
		return subcommands.ExitUsageError
	}

	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	doc, err := store.GetAllData(ctx)
	if err != nil {
		return c.app.fail("loading data: %v", err)
	}
	i := doc.FindTransaction(c.id)
	if i < 0 {
		return c.app.fail("transaction %d not found", c.id)
	}
	in, err := c.apply(c.fs, toNewTransaction(doc.Transactions[i]))
	if err != nil {
		fmt.Fprintf(c.app.stderr(), "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	if _, err := store.UpdateTransaction(ctx, c.id, in); err != nil {
		return c.app.fail("updating transaction: %v", err)
	}
	fmt.Fprintf(c.app.stdout(), "Updated transaction %d\n", c.id)
	return subcommands.ExitSuccess
}

type listCmd struct {
	app       *app
	tipo      string
	categoria string
	from      string
	to        string
	limit     int
	asJSON    bool
	plain     bool
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "List transactions, most recent first" }
func (*listCmd) Usage() string {
	return `list [-tipo T] [-categoria C] [-from YYYY-MM-DD] [-to YYYY-MM-DD] [-limit N] [-json]:
  Print the matching transactions.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tipo, "tipo", "", "Only this type: gasto or receita")
	f.StringVar(&c.categoria, "categoria", "", "Only this category")
	f.StringVar(&c.from, "from", "", "Earliest date, inclusive")
	f.StringVar(&c.to, "to", "", "Latest date, inclusive")
	f.IntVar(&c.limit, "limit", 0, "Maximum number of transactions (0 for all)")
	f.BoolVar(&c.asJSON, "json", false, "Print JSON instead of a table")
	f.BoolVar(&c.plain, "plain", false, "Print raw markdown")
}

func (c *listCmd) filter() (datastore.Filter, error) {
	flt := datastore.Filter{
		Type:     domain.TransactionType(c.tipo),
		Category: c.categoria,
		Limit:    c.limit,
	}
	if c.tipo != "" && !flt.Type.Valid() {
		return flt, fmt.Errorf("invalid -tipo %q", c.tipo)
	}
	if c.limit < 0 {
		return flt, errors.New("-limit must not be negative")
	}
	var err error
	if c.from != "" {
		if flt.From, err = domain.ParseDate(c.from); err != nil {
			return flt, fmt.Errorf("invalid -from %q", c.from)
		}
	}
	if c.to != "" {
		if flt.To, err = domain.ParseDate(c.to); err != nil {
			return flt, fmt.Errorf("invalid -to %q", c.to)
		}
	}
	return flt, nil
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	flt, err := c.filter()
	if err != nil {
		fmt.Fprintf(c.app.stderr(), "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	txs, err := store.ListTransactions(ctx, flt)
	if err != nil {
		return c.app.fail("listing transactions: %v", err)
	}

	if c.asJSON {
		enc := json.NewEncoder(c.app.stdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(txs); err != nil {
			return c.app.fail("encoding: %v", err)
		}
		return subcommands.ExitSuccess
	}

	doc, err := store.GetAllData(ctx)
	if err != nil {
		return c.app.fail("loading data: %v", err)
	}
	c.app.printMarkdown(transactionsMarkdown(txs, doc.Settings.Currency), c.plain)
	return subcommands.ExitSuccess
}

type removeCmd struct {
	app *app
	id  int64
}

func (*removeCmd) Name() string     { return "remove" }
func (*removeCmd) Synopsis() string { return "Delete a transaction" }
func (*removeCmd) Usage() string {
	return `remove -id ID:
  Delete the transaction with the given id. Unknown ids change nothing.
`
}

func (c *removeCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.id, "id", 0, "Transaction id")
}

func (c *removeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	id := c.id
	if id == 0 && f.NArg() == 1 {
		v, err := strconv.ParseInt(f.Arg(0), 10, 64)
		if err != nil {
			fmt.Fprintf(c.app.stderr(), "Error: invalid id %q\n", f.Arg(0))
			return subcommands.ExitUsageError
		}
		id = v
	}
	if id == 0 {
		fmt.Fprintln(c.app.stderr(), "Error: -id is required")
		return subcommands.ExitUsageError
	}

	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	doc, err := store.GetAllData(ctx)
	if err != nil {
		return c.app.fail("loading data: %v", err)
	}
	if doc.FindTransaction(id) < 0 {
		fmt.Fprintf(c.app.stdout(), "No transaction with id %d\n", id)
		return subcommands.ExitSuccess
	}

	if err := store.RemoveTransaction(ctx, id); err != nil {
		return c.app.fail("removing transaction: %v", err)
	}
	fmt.Fprintf(c.app.stdout(), "Removed transaction %d\n", id)
	return subcommands.ExitSuccess
}
