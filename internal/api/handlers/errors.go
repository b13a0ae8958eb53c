package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dvloznov/financial-control/internal/api/middleware"
	"github.com/dvloznov/financial-control/internal/cloudsync"
	"github.com/dvloznov/financial-control/internal/domain"
	"github.com/dvloznov/financial-control/internal/jobs"
	"github.com/rs/zerolog"
)

// statusFor maps store, sync and job errors to HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, jobs.ErrJobNotFound),
		errors.Is(err, cloudsync.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusInsufficientStorage
	case errors.Is(err, cloudsync.ErrSync),
		errors.Is(err, cloudsync.ErrAuthentication),
		errors.Is(err, cloudsync.ErrInitialization):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeErr logs err and writes it with its mapped status. Internal errors
// are reported to the client as msg only.
func writeErr(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}
	log.Warn().Err(err).Int("status", status).Msg(msg)
	middleware.WriteError(w, status, err.Error())
}
