package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/dvloznov/financial-control/internal/datastore"
	"github.com/dvloznov/financial-control/internal/domain"
	"github.com/dvloznov/financial-control/internal/storage"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakeDrive struct {
	saved   []byte
	loadErr error
	saveErr error
}

func (d *fakeDrive) SaveToDrive(ctx context.Context, payload []byte) (cloudsync.RemoteFile, error) {
	if d.saveErr != nil {
		return cloudsync.RemoteFile{}, d.saveErr
	}
	d.saved = append([]byte(nil), payload...)
	return cloudsync.RemoteFile{ID: "remote-1", Name: cloudsync.BackupFileName}, nil
}

func (d *fakeDrive) LoadFromDrive(ctx context.Context) ([]byte, error) {
	if d.loadErr != nil {
		return nil, d.loadErr
	}
	if d.saved == nil {
		return nil, &cloudsync.NotFoundError{Name: cloudsync.BackupFileName}
	}
	return d.saved, nil
}

func newStore(t *testing.T) *datastore.Store {
	t.Helper()
	s, err := datastore.New(context.Background(), storage.NewMemoryBackend(0))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSyncRunner_UploadThenDownload(t *testing.T) {
	ctx := context.Background()
	drive := &fakeDrive{}

	src := newStore(t)
	if _, err := src.AddTransaction(ctx, domain.NewTransaction{
		Type: domain.TransactionIncome, Category: "Salário", Amount: decimal.NewFromInt(5000),
	}); err != nil {
		t.Fatal(err)
	}

	up := &SyncJob{JobID: "up", Direction: DirectionUpload}
	if err := NewSyncRunner(src, drive, time.Minute, zerolog.Nop()).Handle(ctx, up); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if up.RemoteFileID != "remote-1" {
		t.Errorf("RemoteFileID = %q", up.RemoteFileID)
	}

	dst := newStore(t)
	down := &SyncJob{JobID: "down", Direction: DirectionDownload}
	if err := NewSyncRunner(dst, drive, 0, zerolog.Nop()).Handle(ctx, down); err != nil {
		t.Fatalf("download: %v", err)
	}

	doc, err := dst.GetAllData(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Transactions) != 1 || doc.Transactions[0].Category != "Salário" {
		t.Errorf("downloaded transactions = %+v", doc.Transactions)
	}
}

func TestSyncRunner_DownloadWithoutBackup(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	r := NewSyncRunner(store, &fakeDrive{}, 0, zerolog.Nop())

	err := r.Handle(ctx, &SyncJob{Direction: DirectionDownload})
	if !errors.Is(err, cloudsync.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncRunner_DownloadInvalidBackupKeepsLocal(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	before, _ := store.GetAllData(ctx)

	drive := &fakeDrive{saved: []byte(`{"version":"1.0.0"}`)}
	_, err := NewSyncRunner(store, drive, 0, zerolog.Nop()).Download(ctx)
	if !errors.Is(err, domain.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}

	after, _ := store.GetAllData(ctx)
	if !after.LastUpdated.Equal(before.LastUpdated) {
		t.Error("local document changed after a rejected backup")
	}
}

func TestSyncRunner_UnknownDirection(t *testing.T) {
	r := NewSyncRunner(newStore(t), &fakeDrive{}, 0, zerolog.Nop())
	if err := r.Handle(context.Background(), &SyncJob{Direction: "sideways"}); err == nil {
		t.Error("expected error for unknown direction")
	}
}
