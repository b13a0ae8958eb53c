package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/dvloznov/financial-control/internal/api/middleware"
	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/dvloznov/financial-control/internal/jobs"
	"github.com/dvloznov/financial-control/internal/logger"
)

// DriveBackups is the part of the sync adapter the handler reads from directly.
type DriveBackups interface {
	HasCredentials() bool
	IsAuthenticated() bool
	ListBackups(ctx context.Context) ([]cloudsync.RemoteFile, error)
}

// SyncHandler enqueues Drive transfers and lists remote backups.
type SyncHandler struct {
	drive     DriveBackups
	publisher jobs.Publisher
	timeout   time.Duration
}

// NewSyncHandler creates a new sync handler. A timeout > 0 bounds direct
// Drive calls made while serving a request.
func NewSyncHandler(drive DriveBackups, publisher jobs.Publisher, timeout time.Duration) *SyncHandler {
	return &SyncHandler{drive: drive, publisher: publisher, timeout: timeout}
}

// SaveToDrive handles POST /api/v1/sync/drive/save
func (h *SyncHandler) SaveToDrive(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, jobs.DirectionUpload)
}

// LoadFromDrive handles POST /api/v1/sync/drive/load
func (h *SyncHandler) LoadFromDrive(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, jobs.DirectionDownload)
}

func (h *SyncHandler) enqueue(w http.ResponseWriter, r *http.Request, dir jobs.Direction) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if !h.drive.HasCredentials() {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Google Drive sync is not configured")
		return
	}

	job := &jobs.SyncJob{Direction: dir}
	if err := h.publisher.Publish(ctx, job); err != nil {
		log.Error().Err(err).Str("direction", string(dir)).Msg("Failed to enqueue sync job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("direction", string(dir)).Msg("Sync job enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.JobID,
		"direction": string(job.Direction),
		"status":    string(job.Status),
	})
}

// ListBackups handles GET /api/v1/sync/drive/backups
func (h *SyncHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.drive.HasCredentials() {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Google Drive sync is not configured")
		return
	}
	// Sign-in is interactive and only happens in sync jobs.
	if !h.drive.IsAuthenticated() {
		middleware.WriteError(w, http.StatusConflict, "Google Drive sign-in required: run a save or load sync first")
		return
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	files, err := h.drive.ListBackups(ctx)
	if err != nil {
		writeErr(w, logger.FromContext(ctx), err, "Failed to list backups")
		return
	}
	if files == nil {
		files = []cloudsync.RemoteFile{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"backups": files,
		"count":   len(files),
	})
}
