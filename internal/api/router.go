// Package api wires the HTTP handlers of the local store, the Drive sync
// and the job status endpoints into a chi router.
package api

import (
	"net/http"
	"time"

	"github.com/dvloznov/financial-control/internal/api/handlers"
	"github.com/dvloznov/financial-control/internal/api/middleware"
	"github.com/dvloznov/financial-control/internal/datastore"
	"github.com/dvloznov/financial-control/internal/jobs"
	"github.com/dvloznov/financial-control/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Deps are the services the router serves.
type Deps struct {
	Store     *datastore.Store
	Drive     handlers.DriveBackups
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
	Metrics   *metrics.Metrics
	Log       zerolog.Logger

	// SyncTimeout bounds Drive calls made while serving a request.
	SyncTimeout time.Duration
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.CORS)
	r.Use(middleware.Metrics(d.Metrics))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	transactions := handlers.NewTransactionsHandler(d.Store)
	data := handlers.NewDataHandler(d.Store)
	syncH := handlers.NewSyncHandler(d.Drive, d.Publisher, d.SyncTimeout)
	jobsH := handlers.NewJobsHandler(d.Jobs)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/transacoes", transactions.ListTransactions)
		r.Post("/transacoes", transactions.CreateTransaction)
		r.Put("/transacoes/{id}", transactions.UpdateTransaction)
		r.Delete("/transacoes/{id}", transactions.DeleteTransaction)

		r.Get("/dados", data.GetData)
		r.Get("/estatisticas", data.GetStatistics)
		r.Get("/export", data.Export)
		r.Post("/import", data.Import)
		r.Post("/clear", data.Clear)

		r.Post("/sync/drive/save", syncH.SaveToDrive)
		r.Post("/sync/drive/load", syncH.LoadFromDrive)
		r.Get("/sync/drive/backups", syncH.ListBackups)

		r.Get("/jobs", jobsH.ListJobs)
		r.Get("/jobs/{id}", jobsH.GetJob)
	})

	return r
}
