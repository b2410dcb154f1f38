package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/serumledger/internal/domain"
	"github.com/alanyoungcy/serumledger/internal/service"
)

// ExportService defines what the export handler needs from the service layer.
type ExportService interface {
	Export(ctx context.Context, account string, format service.ExportFormat) (service.ExportResult, error)
}

// ExportHandler triggers ledger exports to object storage.
type ExportHandler struct {
	exports ExportService
	logger  *slog.Logger
}

// NewExportHandler creates an ExportHandler.
func NewExportHandler(exports ExportService, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{exports: exports, logger: logHandler(logger, "export")}
}

// ExportLedger writes the ledger of an account to object storage and returns
// the object path.
// POST /api/accounts/{account}/exports?format=csv|jsonl
func (h *ExportHandler) ExportLedger(w http.ResponseWriter, r *http.Request) {
	format, err := service.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	account := pathParam(r, "account")
	res, err := h.exports.Export(r.Context(), account, format)
	if errors.Is(err, domain.ErrLockHeld) {
		writeError(w, http.StatusConflict, "export already in progress")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: export failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to export transactions")
		return
	}

	writeJSON(w, http.StatusCreated, res)
}
