package domain

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Statistics are values derived from the transactions; they are never persisted.
type Statistics struct {
	TotalIncome       decimal.Decimal `json:"totalReceitas"`
	TotalExpenses     decimal.Decimal `json:"totalGastos"`
	Balance           decimal.Decimal `json:"saldo"`
	TotalTransactions int             `json:"totalTransacoes"`
	LastUpdated       time.Time       `json:"ultimaAtualizacao"`
}

// ComputeStatistics sums amounts per type in a single pass.
// Transactions of an unknown type only count towards TotalTransactions.
func ComputeStatistics(doc *FinancialDocument) Statistics {
	s := Statistics{
		TotalIncome:       decimal.Zero,
		TotalExpenses:     decimal.Zero,
		TotalTransactions: len(doc.Transactions),
		LastUpdated:       doc.LastUpdated,
	}
	for _, t := range doc.Transactions {
		switch t.Type {
		case TransactionIncome:
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		case TransactionExpense:
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	return s
}

// FormatAmount renders amount in the given ISO currency, e.g. "R$5.000,00".
func FormatAmount(amount decimal.Decimal, currency string) string {
	cur := money.New(0, currency).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, currency).Display()
}
