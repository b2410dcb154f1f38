package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/serumledger/internal/domain"
	"github.com/alanyoungcy/serumledger/internal/ledger"
)

// ExportFormat selects the encoding of an exported ledger.
type ExportFormat string

const (
	ExportCSV   ExportFormat = "csv"
	ExportJSONL ExportFormat = "jsonl"
)

// ParseExportFormat accepts "csv" or "jsonl", case-insensitively.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case ExportCSV, ExportJSONL:
		return f, nil
	case "":
		return ExportCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f ExportFormat) contentType() string {
	if f == ExportJSONL {
		return "application/x-ndjson"
	}
	return "text/csv"
}

// LedgerSource is the part of LedgerService the exporter needs.
type LedgerSource interface {
	GetLedger(ctx context.Context, account string) (domain.Ledger, error)
}

// ExportResult describes an uploaded export.
type ExportResult struct {
	Path     string       `json:"path"`
	Format   ExportFormat `json:"format"`
	Accounts int          `json:"accounts"`
	Rows     int          `json:"rows"`
}

// ExportService writes reconstructed ledgers to object storage.
type ExportService struct {
	ledgers  LedgerSource
	writer   domain.BlobWriter
	audit    domain.AuditStore
	prefix   string
	partSize int64
	locks    domain.LockManager
	lockTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewExportService creates an ExportService writing under prefix. audit may
// be nil.
func NewExportService(
	ledgers LedgerSource,
	writer domain.BlobWriter,
	audit domain.AuditStore,
	prefix string,
	logger *slog.Logger,
) *ExportService {
	return &ExportService{
		ledgers:  ledgers,
		writer:   writer,
		audit:    audit,
		prefix:   strings.Trim(prefix, "/"),
		partSize: 8 * 1024 * 1024,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "export_service")),
	}
}

// WithLocks makes exports of the same account mutually exclusive across
// instances. A lock is held for at most ttl.
func (s *ExportService) WithLocks(locks domain.LockManager, ttl time.Duration) *ExportService {
	s.locks = locks
	s.lockTTL = ttl
	return s
}

// Export uploads the ledger of one account. It fails with domain.ErrLockHeld
// while another export of the account is running.
func (s *ExportService) Export(ctx context.Context, account string, format ExportFormat) (ExportResult, error) {
	release, err := s.lock(ctx, "export:"+account)
	if err != nil {
		return ExportResult{}, err
	}
	defer release()

	l, err := s.ledgers.GetLedger(ctx, account)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export_service: %w", err)
	}

	var buf bytes.Buffer
	enc := newLedgerEncoder(&buf, format, false)
	if err := enc.write(l); err != nil {
		return ExportResult{}, fmt.Errorf("export_service: encode %q: %w", account, err)
	}
	if err := enc.flush(); err != nil {
		return ExportResult{}, fmt.Errorf("export_service: encode %q: %w", account, err)
	}

	res := ExportResult{
		Path:     s.objectPath(account, format),
		Format:   format,
		Accounts: 1,
		Rows:     len(l.Transactions),
	}
	if err := s.writer.Put(ctx, res.Path, &buf, format.contentType()); err != nil {
		return ExportResult{}, fmt.Errorf("export_service: upload: %w", err)
	}

	s.record(ctx, res, []string{account})
	return res, nil
}

// ExportBatch streams the ledgers of several accounts into one object. Each
// row is prefixed with its account. Nothing is left behind in the bucket when
// any ledger fails: the upload is aborted with the error.
func (s *ExportService) ExportBatch(ctx context.Context, accounts []string, format ExportFormat) (ExportResult, error) {
	if len(accounts) == 0 {
		return ExportResult{}, fmt.Errorf("export_service: no accounts")
	}

	release, err := s.lock(ctx, "export:batch")
	if err != nil {
		return ExportResult{}, err
	}
	defer release()

	res := ExportResult{
		Path:     s.objectPath("batch", format),
		Format:   format,
		Accounts: len(accounts),
	}

	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		enc := newLedgerEncoder(pw, format, true)
		for _, account := range accounts {
			l, err := s.ledgers.GetLedger(gctx, account)
			if err != nil {
				pw.CloseWithError(err)
				return fmt.Errorf("export_service: %w", err)
			}
			if err := enc.write(l); err != nil {
				pw.CloseWithError(err)
				return fmt.Errorf("export_service: encode %q: %w", account, err)
			}
			res.Rows += len(l.Transactions)
		}
		if err := enc.flush(); err != nil {
			pw.CloseWithError(err)
			return fmt.Errorf("export_service: encode: %w", err)
		}
		return pw.Close()
	})

	g.Go(func() error {
		err := s.writer.PutMultipart(gctx, res.Path, pr, s.partSize)
		// Unblock the producer if the upload stopped reading early.
		pr.CloseWithError(err)
		if err != nil {
			return fmt.Errorf("export_service: upload: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return ExportResult{}, err
	}

	s.record(ctx, res, accounts)
	return res, nil
}

func (s *ExportService) lock(ctx context.Context, key string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	release, err := s.locks.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("export_service: %w", err)
	}
	return release, nil
}

func (s *ExportService) objectPath(name string, format ExportFormat) string {
	ts := s.now().Format("20060102T150405Z")
	return fmt.Sprintf("%s/%s/%s-%s.%s", s.prefix, name, ts, uuid.NewString(), format)
}

func (s *ExportService) record(ctx context.Context, res ExportResult, accounts []string) {
	s.logger.InfoContext(ctx, "export_service: ledger exported",
		slog.String("path", res.Path),
		slog.String("format", string(res.Format)),
		slog.Int("accounts", res.Accounts),
		slog.Int("rows", res.Rows),
	)
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, "ledger_exported", map[string]any{
		"path":     res.Path,
		"format":   string(res.Format),
		"accounts": accounts,
		"rows":     res.Rows,
	}); err != nil {
		s.logger.WarnContext(ctx, "export_service: audit log failed",
			slog.String("error", err.Error()),
		)
	}
}

// ledgerEncoder writes transactions as CSV or JSON lines.
type ledgerEncoder struct {
	format      ExportFormat
	withAccount bool
	csv         *csv.Writer
	json        *json.Encoder
	wroteHeader bool
}

func newLedgerEncoder(w io.Writer, format ExportFormat, withAccount bool) *ledgerEncoder {
	e := &ledgerEncoder{format: format, withAccount: withAccount}
	if format == ExportJSONL {
		e.json = json.NewEncoder(w)
	} else {
		e.csv = csv.NewWriter(w)
	}
	return e
}

type accountTransaction struct {
	Account string `json:"account"`
	domain.Transaction
}

func (e *ledgerEncoder) write(l domain.Ledger) error {
	if e.format == ExportJSONL {
		for _, tx := range l.Transactions {
			var v any = tx
			if e.withAccount {
				v = accountTransaction{Account: l.Account, Transaction: tx}
			}
			if err := e.json.Encode(v); err != nil {
				return err
			}
		}
		return nil
	}

	if !e.wroteHeader {
		header := ledger.Columns
		if e.withAccount {
			header = append([]string{"account"}, ledger.Columns...)
		}
		if err := e.csv.Write(header); err != nil {
			return err
		}
		e.wroteHeader = true
	}
	for _, tx := range l.Transactions {
		rec := csvRecord(tx)
		if e.withAccount {
			rec = append([]string{l.Account}, rec...)
		}
		if err := e.csv.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (e *ledgerEncoder) flush() error {
	if e.csv == nil {
		return nil
	}
	if !e.wroteHeader {
		if err := e.write(domain.Ledger{}); err != nil {
			return err
		}
	}
	e.csv.Flush()
	return e.csv.Error()
}

// csvRecord renders tx in ledger.Columns order. Null references are empty.
func csvRecord(tx domain.Transaction) []string {
	return []string{
		tx.DateAndTime.UTC().Format(time.RFC3339),
		tx.TransactionType,
		tx.SentQuantity.String(),
		tx.SentCurrency,
		tx.SendingSource,
		tx.ReceivedQuantity.String(),
		tx.ReceivedCurrency,
		tx.ReceivingDestination,
		tx.Fee.String(),
		tx.FeeCurrency,
		deref(tx.ExchangeTransactionID),
		deref(tx.BlockchainTransactionHash),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
