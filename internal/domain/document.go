// Package domain holds the financial document model shared by the store,
// the sync adapter and the API.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Documents carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	// DocumentVersion is the informational schema version of new documents.
	DocumentVersion = "1.0.0"
	// DefaultUser is the static user identifier of new documents.
	DefaultUser = "bragabarreto"
)

// RequiredKeys are the top-level keys a document must carry to be imported.
var RequiredKeys = []string{"version", "user", "transacoes", "contas"}

// FinancialDocument is the single aggregate holding all of a user's records.
// Members the model does not know, and known members whose value has an
// unexpected shape, are kept in Extra and written back unchanged.
type FinancialDocument struct {
	Version      string
	LastUpdated  time.Time
	User         string
	Transactions []Transaction
	Accounts     []Account
	Investments  []json.RawMessage
	Goals        []json.RawMessage
	Settings     Settings

	Extra Fields
}

// MarshalJSON implements json.Marshaler.
func (d FinancialDocument) MarshalJSON() ([]byte, error) {
	w := newObjectWriter(d.Extra)
	w.field("version", d.Version, d.Version == "")
	w.field("lastUpdated", d.LastUpdated, d.LastUpdated.IsZero())
	w.field("user", d.User, d.User == "")
	w.field("transacoes", d.Transactions, d.Transactions == nil)
	w.field("contas", d.Accounts, d.Accounts == nil)
	w.field("investimentos", d.Investments, d.Investments == nil)
	w.field("metas", d.Goals, d.Goals == nil)
	w.field("configuracoes", d.Settings, d.Settings.isZero())
	return w.finish()
}

// UnmarshalJSON implements json.Unmarshaler. It fails only when data is not
// a JSON object; records are decoded leniently.
func (d *FinancialDocument) UnmarshalJSON(data []byte) error {
	f, err := splitObject(data)
	if err != nil {
		return err
	}
	*d = documentFrom(f)
	return nil
}

func documentFrom(f Fields) FinancialDocument {
	var d FinancialDocument
	take(f, "version", &d.Version)
	take(f, "lastUpdated", &d.LastUpdated)
	take(f, "user", &d.User)
	take(f, "transacoes", &d.Transactions)
	take(f, "contas", &d.Accounts)
	take(f, "investimentos", &d.Investments)
	take(f, "metas", &d.Goals)
	take(f, "configuracoes", &d.Settings)
	for i, r := range d.Investments {
		d.Investments[i] = compactJSON(r)
	}
	for i, r := range d.Goals {
		d.Goals[i] = compactJSON(r)
	}
	d.Extra = f.orNil()
	return d
}

// Account is a bank account or credit card. Extra and Raw work as in
// Transaction.
type Account struct {
	ID      int64
	Name    string
	Type    string
	Balance *decimal.Decimal
	Limit   *decimal.Decimal
	Used    *decimal.Decimal
	Bank    string

	Extra Fields
	Raw   json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (a Account) MarshalJSON() ([]byte, error) {
	if a.Raw != nil {
		return a.Raw, nil
	}
	w := newObjectWriter(a.Extra)
	w.field("id", a.ID, a.ID == 0)
	w.field("nome", a.Name, a.Name == "")
	w.field("tipo", a.Type, a.Type == "")
	w.optional("saldo", a.Balance, a.Balance == nil)
	w.optional("limite", a.Limit, a.Limit == nil)
	w.optional("usado", a.Used, a.Used == nil)
	w.field("banco", a.Bank, a.Bank == "")
	return w.finish()
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (a *Account) UnmarshalJSON(data []byte) error {
	f, err := splitObject(data)
	if err != nil {
		*a = Account{Raw: compactJSON(data)}
		return nil
	}
	var v Account
	take(f, "id", &v.ID)
	take(f, "nome", &v.Name)
	take(f, "tipo", &v.Type)
	take(f, "saldo", &v.Balance)
	take(f, "limite", &v.Limit)
	take(f, "usado", &v.Used)
	take(f, "banco", &v.Bank)
	v.Extra = f.orNil()
	*a = v
	return nil
}

func (a Account) clone() Account {
	a.Balance = cloneDec(a.Balance)
	a.Limit = cloneDec(a.Limit)
	a.Used = cloneDec(a.Used)
	a.Extra = a.Extra.Clone()
	a.Raw = cloneRawMessage(a.Raw)
	return a
}

// Settings are the static user preferences.
type Settings struct {
	Currency      string
	Theme         string
	Notifications bool

	Extra Fields
}

func (s Settings) isZero() bool {
	return s.Currency == "" && s.Theme == "" && !s.Notifications && s.Extra == nil
}

// MarshalJSON implements json.Marshaler.
func (s Settings) MarshalJSON() ([]byte, error) {
	w := newObjectWriter(s.Extra)
	w.field("moeda", s.Currency, s.Currency == "")
	w.field("tema", s.Theme, s.Theme == "")
	w.field("notificacoes", s.Notifications, !s.Notifications)
	return w.finish()
}

// UnmarshalJSON implements json.Unmarshaler. Anything but an object is an
// error, which keeps the value in the document's Extra.
func (s *Settings) UnmarshalJSON(data []byte) error {
	f, err := splitObject(data)
	if err != nil {
		return err
	}
	var v Settings
	take(f, "moeda", &v.Currency)
	take(f, "tema", &v.Theme)
	take(f, "notificacoes", &v.Notifications)
	v.Extra = f.orNil()
	*s = v
	return nil
}

// DefaultSettings returns the settings of a new document.
func DefaultSettings() Settings {
	return Settings{Currency: "BRL", Theme: "light", Notifications: true}
}

// DefaultAccounts returns the two demo accounts seeded on first run.
func DefaultAccounts() []Account {
	return []Account{
		{ID: 1, Name: "Conta Corrente", Type: "corrente", Balance: dec("5000.00"), Bank: "Banco do Brasil"},
		{ID: 2, Name: "Cartão de Crédito", Type: "credito", Limit: dec("3000.00"), Used: dec("800.00"), Bank: "Nubank"},
	}
}

// DefaultDocument synthesizes the document used on first run and after a clear.
func DefaultDocument(now time.Time) *FinancialDocument {
	return &FinancialDocument{
		Version:      DocumentVersion,
		LastUpdated:  now,
		User:         DefaultUser,
		Transactions: []Transaction{},
		Accounts:     DefaultAccounts(),
		Investments:  []json.RawMessage{},
		Goals:        []json.RawMessage{},
		Settings:     DefaultSettings(),
	}
}

// Clone returns a deep copy of the document.
func (d *FinancialDocument) Clone() *FinancialDocument {
	if d == nil {
		return nil
	}
	c := *d
	if d.Transactions != nil {
		c.Transactions = make([]Transaction, len(d.Transactions))
		for i, t := range d.Transactions {
			c.Transactions[i] = t.clone()
		}
	}
	if d.Accounts != nil {
		c.Accounts = make([]Account, len(d.Accounts))
		for i, a := range d.Accounts {
			c.Accounts[i] = a.clone()
		}
	}
	c.Investments = cloneRaw(d.Investments)
	c.Goals = cloneRaw(d.Goals)
	c.Settings.Extra = d.Settings.Extra.Clone()
	c.Extra = d.Extra.Clone()
	return &c
}

// FindTransaction returns the index of the transaction with id, or -1.
func (d *FinancialDocument) FindTransaction(id int64) int {
	for i, t := range d.Transactions {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// MaxTransactionID returns the largest transaction id in the document, or 0.
func (d *FinancialDocument) MaxTransactionID() int64 {
	var max int64
	for _, t := range d.Transactions {
		if t.ID > max {
			max = t.ID
		}
	}
	return max
}

func dec(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func cloneDec(p *decimal.Decimal) *decimal.Decimal {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneRaw(in []json.RawMessage) []json.RawMessage {
	if in == nil {
		return nil
	}
	out := make([]json.RawMessage, len(in))
	for i, r := range in {
		out[i] = append(json.RawMessage(nil), r...)
	}
	return out
}
