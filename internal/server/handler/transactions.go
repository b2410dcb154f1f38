package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/serumledger/internal/domain"
	"github.com/alanyoungcy/serumledger/internal/ledger"
)

// LedgerService defines what the transactions handler needs from the service
// layer.
type LedgerService interface {
	GetLedger(ctx context.Context, account string) (domain.Ledger, error)
}

// TransactionsHandler serves reconstructed account ledgers.
type TransactionsHandler struct {
	ledgers LedgerService
	logger  *slog.Logger
}

// NewTransactionsHandler creates a TransactionsHandler.
func NewTransactionsHandler(ledgers LedgerService, logger *slog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		ledgers: ledgers,
		logger:  logHandler(logger, "transactions"),
	}
}

type transactionsResponse struct {
	Data    []domain.Transaction `json:"data"`
	Columns []string             `json:"columns"`
	Dropped *int64               `json:"dropped,omitempty"`
}

// FormTransactions reads the account from the owner_pubkey form field. A
// missing field is treated as the empty account.
// POST /transactions_api
func (h *TransactionsHandler) FormTransactions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	h.serve(w, r, r.PostFormValue("owner_pubkey"))
}

// AccountTransactions returns the ledger of the account in the path.
// GET /api/accounts/{account}/transactions
func (h *TransactionsHandler) AccountTransactions(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, pathParam(r, "account"))
}

func (h *TransactionsHandler) serve(w http.ResponseWriter, r *http.Request, account string) {
	l, err := h.ledgers.GetLedger(r.Context(), account)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: load transactions failed",
			slog.String("account", account),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	data := l.Transactions
	if data == nil {
		data = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactionsResponse{
		Data:    data,
		Columns: ledger.Columns,
		Dropped: l.Dropped,
	})
}
