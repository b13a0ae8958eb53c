package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/financial-control/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.SyncJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state %+v", jobID, want, job)
	return nil
}

func TestQueue_RunsJobsOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	var downloads int32
	err := q.Start(ctx, func(ctx context.Context, job *jobs.SyncJob) error {
		if job.Direction == jobs.DirectionDownload {
			atomic.AddInt32(&downloads, 1)
			return errors.New("backup not found")
		}
		job.RemoteFileID = "file-1"
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	upload := &jobs.SyncJob{Direction: jobs.DirectionUpload}
	download := &jobs.SyncJob{Direction: jobs.DirectionDownload}
	for _, j := range []*jobs.SyncJob{upload, download} {
		if err := q.Publish(ctx, j); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		if j.JobID == "" || j.Status != jobs.JobStatusPending || j.CreatedAt.IsZero() {
			t.Errorf("published job not initialized: %+v", j)
		}
	}

	done := waitForStatus(t, store, upload.JobID, jobs.JobStatusCompleted)
	if done.RemoteFileID != "file-1" || done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("completed job = %+v", done)
	}

	failed := waitForStatus(t, store, download.JobID, jobs.JobStatusFailed)
	if failed.Error != "backup not found" {
		t.Errorf("error = %q", failed.Error)
	}

	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&downloads); n != 1 {
		t.Errorf("failed job ran %d times, want 1", n)
	}
}

func TestQueue_HandlerPanicFailsJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(1, store, WithWorkers(2))
	defer q.Close()
	q.Start(ctx, func(ctx context.Context, job *jobs.SyncJob) error {
		panic("nil drive")
	})

	job := &jobs.SyncJob{Direction: jobs.DirectionUpload}
	if err := q.Publish(ctx, job); err != nil {
		t.Fatal(err)
	}
	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.Error != "job panicked: nil drive" {
		t.Errorf("error = %q", failed.Error)
	}
}

func TestQueue_PublishValidation(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(1, NewStore())

	if err := q.Publish(ctx, &jobs.SyncJob{Direction: "sideways"}); err == nil {
		t.Error("expected error for unknown direction")
	}

	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(ctx, &jobs.SyncJob{Direction: jobs.DirectionUpload}); err == nil {
		t.Error("expected error publishing to a closed queue")
	}
	if err := q.Start(ctx, nil); err == nil {
		t.Error("expected error starting a closed queue")
	}
}
