package jobs

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/dvloznov/financial-control/internal/datastore"
	"github.com/dvloznov/financial-control/internal/domain"
	"github.com/rs/zerolog"
)

// Drive is the part of the sync adapter the runner needs.
type Drive interface {
	SaveToDrive(ctx context.Context, payload []byte) (cloudsync.RemoteFile, error)
	LoadFromDrive(ctx context.Context) ([]byte, error)
}

// SyncRunner moves the document between the local store and Google Drive.
// Its Handle method is the JobHandler of the sync queue.
type SyncRunner struct {
	store   *datastore.Store
	drive   Drive
	timeout time.Duration
	log     zerolog.Logger
}

// NewSyncRunner returns a runner. A timeout <= 0 means no per-job deadline.
func NewSyncRunner(store *datastore.Store, drive Drive, timeout time.Duration, log zerolog.Logger) *SyncRunner {
	return &SyncRunner{store: store, drive: drive, timeout: timeout, log: log}
}

// Upload exports the local document and saves it to Drive.
func (r *SyncRunner) Upload(ctx context.Context) (cloudsync.RemoteFile, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var buf bytes.Buffer
	if err := r.store.ExportJSON(ctx, &buf); err != nil {
		return cloudsync.RemoteFile{}, err
	}
	return r.drive.SaveToDrive(ctx, buf.Bytes())
}

// Download loads the Drive backup and imports it, replacing the local document.
func (r *SyncRunner) Download(ctx context.Context) (*domain.FinancialDocument, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	payload, err := r.drive.LoadFromDrive(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ImportJSON(ctx, bytes.NewReader(payload))
}

// Handle runs job in its direction.
func (r *SyncRunner) Handle(ctx context.Context, job *SyncJob) error {
	log := r.log.With().Str("job_id", job.JobID).Str("direction", string(job.Direction)).Logger()
	log.Info().Msg("Processing sync job")

	switch job.Direction {
	case DirectionUpload:
		rf, err := r.Upload(ctx)
		if err != nil {
			return err
		}
		job.RemoteFileID = rf.ID
	case DirectionDownload:
		doc, err := r.Download(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("transactions", len(doc.Transactions)).Msg("Local document replaced from backup")
	default:
		return fmt.Errorf("unknown sync direction %q", job.Direction)
	}
	return nil
}

func (r *SyncRunner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}
