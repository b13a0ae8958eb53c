// Package datastore owns the persisted FinancialDocument. Every read and
// write of the document goes through a Store; each mutation rewrites the
// whole document.
package datastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/financial-control/internal/domain"
	"github.com/dvloznov/financial-control/internal/metrics"
	"github.com/dvloznov/financial-control/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultKey is the storage key of the document.
const DefaultKey = "financial-control-data"

// Store is the local store. It is safe for concurrent use; all access to the
// document is serialized.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	key     string
	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for timestamps, default dates and ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// New creates a store over backend and makes sure a document exists,
// persisting the default document on first run.
func New(ctx context.Context, backend storage.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.loadLocked(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// loadLocked returns the persisted document, seeding the default when it is
// absent, not a JSON object, or lacks a required key. Records with an
// unexpected shape never trigger a reseed.
func (s *Store) loadLocked(ctx context.Context) (*domain.FinancialDocument, error) {
	data, err := s.backend.Get(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.log.Info().Str("key", s.key).Msg("No document found, creating default")
		return s.seedLocked(ctx)
	case err != nil:
		return nil, fmt.Errorf("load document: %w", err)
	}

	doc, err := domain.DecodeDocument(data)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("Persisted document is unreadable, replacing with default")
		return s.seedLocked(ctx)
	}
	return doc, nil
}

func (s *Store) seedLocked(ctx context.Context) (*domain.FinancialDocument, error) {
	doc := domain.DefaultDocument(s.now())
	if err := s.saveLocked(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// saveLocked stamps lastUpdated and writes the whole document.
func (s *Store) saveLocked(ctx context.Context, doc *domain.FinancialDocument) error {
	prev := doc.LastUpdated
	doc.LastUpdated = s.now()

	data, err := domain.EncodeDocument(doc)
	if err != nil {
		doc.LastUpdated = prev
		return err
	}
	if err := s.backend.Set(ctx, s.key, data); err != nil {
		doc.LastUpdated = prev
		return &domain.PersistenceError{Key: s.key, Err: err}
	}

	s.metrics.DocumentSize(len(data))
	s.log.Debug().
		Str("key", s.key).
		Int("bytes", len(data)).
		Int("transactions", len(doc.Transactions)).
		Msg("Document saved")
	return nil
}

// GetAllData returns a copy of the current document.
func (s *Store) GetAllData(ctx context.Context) (*domain.FinancialDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx)
	s.metrics.StoreOp("get", err)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Save replaces the persisted document with doc, stamping lastUpdated.
// On error the previously persisted document is unchanged.
func (s *Store) Save(ctx context.Context, doc *domain.FinancialDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.saveLocked(ctx, doc)
	s.metrics.StoreOp("save", err)
	return err
}

// UpdateData runs fn on the current document and persists the result.
// If fn returns an error nothing is written.
func (s *Store) UpdateData(ctx context.Context, fn func(*domain.FinancialDocument) error) (*domain.FinancialDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.updateLocked(ctx, fn)
	s.metrics.StoreOp("update", err)
	return doc, err
}

func (s *Store) updateLocked(ctx context.Context, fn func(*domain.FinancialDocument) error) (*domain.FinancialDocument, error) {
	doc, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	if err := s.saveLocked(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// AddTransaction appends a transaction, assigning its id and creation time.
// A zero date defaults to today.
func (s *Store) AddTransaction(ctx context.Context, in domain.NewTransaction) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created domain.Transaction
	_, err := s.updateLocked(ctx, func(doc *domain.FinancialDocument) error {
		now := s.now()
		created = domain.Transaction{
			ID:          nextID(now, doc.MaxTransactionID()),
			Type:        in.Type,
			Category:    in.Category,
			Description: in.Description,
			Amount:      in.Amount,
			Date:        in.Date,
			Account:     in.Account,
			CreatedAt:   now,
		}
		if created.Date.IsZero() {
			created.Date = domain.DateOf(now)
		}
		doc.Transactions = append(doc.Transactions, created)
		return nil
	})
	s.metrics.StoreOp("add", err)
	if err != nil {
		return domain.Transaction{}, err
	}

	s.log.Info().
		Int64("transaction_id", created.ID).
		Str("tipo", string(created.Type)).
		Str("valor", created.Amount.String()).
		Msg("Transaction added")
	return created, nil
}

// UpdateTransaction replaces the editable fields of transaction id, keeping
// its id and creation time. A zero date keeps the current date.
func (s *Store) UpdateTransaction(ctx context.Context, id int64, in domain.NewTransaction) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated domain.Transaction
	_, err := s.updateLocked(ctx, func(doc *domain.FinancialDocument) error {
		i := doc.FindTransaction(id)
		if i < 0 {
			return fmt.Errorf("transaction %d: %w", id, domain.ErrTransactionNotFound)
		}
		t := doc.Transactions[i]
		t.Type = in.Type
		t.Category = in.Category
		t.Description = in.Description
		t.Amount = in.Amount
		t.Account = in.Account
		t.Extra = t.Extra.Without("tipo", "categoria", "descricao", "valor", "conta")
		if !in.Date.IsZero() {
			t.Date = in.Date
			t.Extra = t.Extra.Without("data")
		}
		doc.Transactions[i] = t
		updated = t
		return nil
	})
	s.metrics.StoreOp("edit", err)
	if err != nil {
		return domain.Transaction{}, err
	}
	return updated, nil
}

// RemoveTransaction deletes transaction id. Removing an unknown id is a no-op.
func (s *Store) RemoveTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx)
	if err == nil {
		if i := doc.FindTransaction(id); i >= 0 {
			kept := doc.Transactions[:0]
			for _, t := range doc.Transactions {
				if t.ID != id {
					kept = append(kept, t)
				}
			}
			doc.Transactions = kept
			err = s.saveLocked(ctx, doc)
		} else {
			s.log.Debug().Int64("transaction_id", id).Msg("Remove of unknown transaction ignored")
		}
	}
	s.metrics.StoreOp("remove", err)
	return err
}

// Filter selects transactions in ListTransactions. Zero fields match everything.
type Filter struct {
	Type     domain.TransactionType
	Category string
	From     domain.Date // inclusive
	To       domain.Date // inclusive
	Limit    int
}

func (f Filter) match(t domain.Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	return true
}

// ListTransactions returns the matching transactions, most recent date first.
// Transactions on the same date keep their insertion order.
func (s *Store) ListTransactions(ctx context.Context, f Filter) ([]domain.Transaction, error) {
	doc, err := s.GetAllData(ctx)
	if err != nil {
		return nil, err
	}

	result := []domain.Transaction{}
	for _, t := range doc.Transactions {
		if f.match(t) {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.After(result[j].Date)
	})
	if f.Limit > 0 && f.Limit < len(result) {
		result = result[:f.Limit]
	}
	return result, nil
}

// Statistics computes the totals of the current document.
func (s *Store) Statistics(ctx context.Context) (domain.Statistics, error) {
	doc, err := s.GetAllData(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	return domain.ComputeStatistics(doc), nil
}

// ExportFileName returns the conventional export file name for the day of now.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("financial-data-%s.json", domain.DateOf(now))
}

// ExportFileName returns the export file name for today, per the store clock.
func (s *Store) ExportFileName() string {
	return ExportFileName(s.now())
}

// ExportJSON writes the persisted document to w in its storage format.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	s.mu.Lock()
	doc, err := s.loadLocked(ctx)
	var data []byte
	if err == nil {
		data, err = domain.EncodeDocument(doc)
	}
	s.mu.Unlock()

	s.metrics.StoreOp("export", err)
	if err != nil {
		return fmt.Errorf("export document: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// ImportJSON reads a whole document from r and replaces the persisted one.
// An unparseable payload or one missing a required key returns an
// *domain.InvalidFormatError and leaves the persisted document untouched.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (*domain.FinancialDocument, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}

	doc, err := domain.DecodeDocument(buf.Bytes())
	if err != nil {
		s.metrics.StoreOp("import", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	err = s.saveLocked(ctx, doc)
	s.metrics.StoreOp("import", err)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("transactions", len(doc.Transactions)).Msg("Document imported")
	return doc.Clone(), nil
}

// ClearAllData deletes the persisted document and returns a fresh default one.
func (s *Store) ClearAllData(ctx context.Context) (*domain.FinancialDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Remove(ctx, s.key); err != nil {
		s.metrics.StoreOp("clear", err)
		return nil, &domain.PersistenceError{Key: s.key, Err: err}
	}
	doc, err := s.seedLocked(ctx)
	s.metrics.StoreOp("clear", err)
	if err != nil {
		return nil, err
	}

	s.log.Info().Msg("All data cleared")
	return doc.Clone(), nil
}
