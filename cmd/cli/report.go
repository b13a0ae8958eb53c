package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/dvloznov/financial-control/internal/domain"
	"github.com/google/subcommands"
)

type statsCmd struct {
	app   *app
	plain bool
}

func (*statsCmd) Name() string     { return "stats" }
func (*statsCmd) Synopsis() string { return "Show income, expenses and balance" }
func (*statsCmd) Usage() string {
	return `stats [-plain]:
  Print the totals derived from all transactions.
`
}

func (c *statsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.plain, "plain", false, "Print raw markdown")
}

func (c *statsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, closeFn, err := c.app.openStore(ctx)
	if err != nil {
		return c.app.fail("opening store: %v", err)
	}
	defer closeFn()

	doc, err := store.GetAllData(ctx)
	if err != nil {
		return c.app.fail("loading data: %v", err)
	}
	c.app.printMarkdown(statisticsMarkdown(domain.ComputeStatistics(doc), doc.Settings.Currency), c.plain)
	return subcommands.ExitSuccess
}

func statisticsMarkdown(s domain.Statistics, currency string) string {
	var b strings.Builder
	b.WriteString("# Summary\n\n")
	b.WriteString("| | Amount |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Income | %s |\n", domain.FormatAmount(s.TotalIncome, currency))
	fmt.Fprintf(&b, "| Expenses | %s |\n", domain.FormatAmount(s.TotalExpenses, currency))
	fmt.Fprintf(&b, "| **Balance** | **%s** |\n", domain.FormatAmount(s.Balance, currency))
	fmt.Fprintf(&b, "\n%d transactions, last updated %s\n", s.TotalTransactions, s.LastUpdated.Local().Format(time.DateTime))
	return b.String()
}

func transactionsMarkdown(txs []domain.Transaction, currency string) string {
	if len(txs) == 0 {
		return "No transactions.\n"
	}
	var b strings.Builder
	b.WriteString("| ID | Date | Type | Category | Description | Account | Amount |\n")
	b.WriteString("|---:|---|---|---|---|---|---:|\n")
	for _, t := range txs {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s |\n",
			t.ID, t.Date, t.Type, cell(t.Category), cell(t.Description), cell(t.Account),
			domain.FormatAmount(t.Amount, currency))
	}
	return b.String()
}

func backupsMarkdown(files []cloudsync.RemoteFile) string {
	if len(files) == 0 {
		return "No backups in Google Drive.\n"
	}
	var b strings.Builder
	b.WriteString("| Name | Modified | Size |\n|---|---|---:|\n")
	for _, f := range files {
		modified := "-"
		if !f.ModifiedTime.IsZero() {
			modified = f.ModifiedTime.Local().Format(time.DateTime)
		}
		fmt.Fprintf(&b, "| %s | %s | %d |\n", cell(f.Name), modified, f.Size)
	}
	return b.String()
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
