package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dvloznov/financial-control/internal/api/middleware"
	"github.com/dvloznov/financial-control/internal/datastore"
	"github.com/dvloznov/financial-control/internal/logger"
)

// MaxImportBytes bounds the body of an import request.
const MaxImportBytes = 10 << 20

// DataHandler serves the whole document: read, statistics, backup and reset.
type DataHandler struct {
	store *datastore.Store
}

// NewDataHandler creates a new data handler.
func NewDataHandler(store *datastore.Store) *DataHandler {
	return &DataHandler{store: store}
}

// GetData handles GET /api/v1/dados
func (h *DataHandler) GetData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	doc, err := h.store.GetAllData(ctx)
	if err != nil {
		writeErr(w, logger.FromContext(ctx), err, "Failed to load data")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// GetStatistics handles GET /api/v1/estatisticas
func (h *DataHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.store.Statistics(ctx)
	if err != nil {
		writeErr(w, logger.FromContext(ctx), err, "Failed to compute statistics")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, stats)
}

// Export handles GET /api/v1/export. The document is sent as a file download.
func (h *DataHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var buf bytes.Buffer
	if err := h.store.ExportJSON(ctx, &buf); err != nil {
		writeErr(w, logger.FromContext(ctx), err, "Failed to export data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.store.ExportFileName()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Import handles POST /api/v1/import. The body is either the raw document or
// a multipart form with the document in the "file" field.
func (h *DataHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes)

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		file, header, err := r.FormFile("file")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Import file is too large")
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Multipart import requires a \"file\" field")
			return
		}
		defer file.Close()
		log.Debug().Str("filename", header.Filename).Int64("size", header.Size).Msg("Importing uploaded file")
		src = file
	}

	doc, err := h.store.ImportJSON(ctx, src)
	if err != nil {
		writeErr(w, log, err, "Failed to import data")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, doc)
}

// Clear handles POST /api/v1/clear
func (h *DataHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	doc, err := h.store.ClearAllData(ctx)
	if err != nil {
		writeErr(w, logger.FromContext(ctx), err, "Failed to clear data")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, doc)
}
