package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes expenses from income.
type TransactionType string

const (
	// TransactionExpense is an expense ("gasto").
	TransactionExpense TransactionType = "gasto"
	// TransactionIncome is an income ("receita").
	TransactionIncome TransactionType = "receita"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionExpense || t == TransactionIncome
}

// Transaction is one recorded expense or income event.
// Insertion order in the document is the historical order; it is not sorted.
//
// Records are decoded leniently: a member that does not fit its field is
// kept in Extra together with unknown members, and a record that is not a
// JSON object is kept in Raw. Both are written back unchanged.
type Transaction struct {
	ID          int64
	Type        TransactionType
	Category    string
	Description string
	Amount      decimal.Decimal // non-negative by convention, not enforced
	Date        Date
	Account     string
	CreatedAt   time.Time

	Extra Fields
	Raw   json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (t Transaction) MarshalJSON() ([]byte, error) {
	if t.Raw != nil {
		return t.Raw, nil
	}
	w := newObjectWriter(t.Extra)
	w.field("id", t.ID, t.ID == 0)
	w.field("tipo", t.Type, t.Type == "")
	w.field("categoria", t.Category, t.Category == "")
	w.field("descricao", t.Description, t.Description == "")
	w.field("valor", t.Amount, t.Amount.IsZero())
	w.field("data", t.Date, t.Date.IsZero())
	w.field("conta", t.Account, t.Account == "")
	w.optional("criado_em", t.CreatedAt, t.CreatedAt.IsZero())
	return w.finish()
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	f, err := splitObject(data)
	if err != nil {
		*t = Transaction{Raw: compactJSON(data)}
		return nil
	}
	var v Transaction
	take(f, "id", &v.ID)
	take(f, "tipo", &v.Type)
	take(f, "categoria", &v.Category)
	take(f, "descricao", &v.Description)
	take(f, "valor", &v.Amount)
	take(f, "data", &v.Date)
	take(f, "conta", &v.Account)
	take(f, "criado_em", &v.CreatedAt)
	v.Extra = f.orNil()
	*t = v
	return nil
}

func (t Transaction) clone() Transaction {
	t.Extra = t.Extra.Clone()
	t.Raw = cloneRawMessage(t.Raw)
	return t
}

// NewTransaction holds the caller-provided fields of a transaction.
// ID and CreatedAt are assigned by the store; a zero Date means "today".
type NewTransaction struct {
	Type        TransactionType `json:"tipo"`
	Category    string          `json:"categoria"`
	Description string          `json:"descricao"`
	Amount      decimal.Decimal `json:"valor"`
	Date        Date            `json:"data"`
	Account     string          `json:"conta"`
}

// Categories lists the suggested categories per transaction type.
var Categories = map[TransactionType][]string{
	TransactionExpense: {"Alimentação", "Transporte", "Moradia", "Saúde", "Educação", "Lazer", "Compras", "Outros"},
	TransactionIncome:  {"Salário", "Freelance", "Investimentos", "Vendas", "Outros"},
}

// IsKnownCategory reports whether category is in the catalogue for t.
func IsKnownCategory(t TransactionType, category string) bool {
	for _, c := range Categories[t] {
		if c == category {
			return true
		}
	}
	return false
}
