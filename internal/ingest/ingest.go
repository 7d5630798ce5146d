// Package ingest stores parsed statement rows and hands the user's
// uncategorised labels to the match dispatcher.
//
// Classification is best effort: once transactions are stored the import
// succeeds even when the dispatch cannot be made.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/grouper/internal/classify"
	"github.com/MrJamesThe3rd/grouper/internal/transaction"
)

//go:generate mockgen -source=ingest.go -destination=ingest_mock.go -package=ingest
type Transactions interface {
	ImportBatch(ctx context.Context, userID uuid.UUID, params []transaction.CreateParams) (*transaction.ImportResult, error)
	CreateBatch(ctx context.Context, userID uuid.UUID, params []transaction.CreateParams) ([]*transaction.Transaction, error)
	List(ctx context.Context, filter transaction.ListFilter) ([]*transaction.Transaction, error)
}

type Categories interface {
	Labels(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, userID uuid.UUID, labels, knownCategoryLabels []string) (*classify.DispatchResult, error)
}

type Classification string

const (
	// ClassificationRequested means a match request is on the broker.
	ClassificationRequested Classification = "requested"
	// ClassificationSkipped means every label was already known and the
	// result was applied locally.
	ClassificationSkipped Classification = "skipped"
	// ClassificationUnavailable means the rows were stored but could not be
	// handed to the classifier.
	ClassificationUnavailable Classification = "unavailable"
)

type Outcome struct {
	Imported  []*transaction.Transaction
	New       []transaction.CreateParams
	Conflicts []transaction.Conflict

	// Classification is empty when nothing was stored.
	Classification Classification
	CorrelationID  string
	Reason         string
}

// HasConflicts reports whether the import is waiting for the caller to
// confirm which rows to keep.
func (o *Outcome) HasConflicts() bool {
	return len(o.Conflicts) > 0
}

type Service struct {
	txs        Transactions
	categories Categories
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewService(txs Transactions, categories Categories, dispatcher Dispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		txs:        txs,
		categories: categories,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Import stores the rows unless some of them duplicate existing
// transactions, in which case nothing is stored and the conflicts are
// returned for confirmation.
func (s *Service) Import(ctx context.Context, userID uuid.UUID, params []transaction.CreateParams) (*Outcome, error) {
	result, err := s.txs.ImportBatch(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("import transactions: %w", err)
	}

	if len(result.Conflicts) > 0 {
		return &Outcome{New: result.New, Conflicts: result.Conflicts}, nil
	}

	out := &Outcome{Imported: result.Imported}
	if len(out.Imported) > 0 {
		s.classify(ctx, userID, out)
	}

	return out, nil
}

// Confirm stores the rows the caller kept after reviewing conflicts.
func (s *Service) Confirm(ctx context.Context, userID uuid.UUID, params []transaction.CreateParams) (*Outcome, error) {
	txs, err := s.txs.CreateBatch(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("create transactions: %w", err)
	}

	out := &Outcome{Imported: txs}
	if len(txs) > 0 {
		s.classify(ctx, userID, out)
	}

	return out, nil
}

// Classify dispatches every uncategorised label of the user, not only the
// ones just imported, so earlier rows left unresolved get another chance.
func (s *Service) Classify(ctx context.Context, userID uuid.UUID) *Outcome {
	out := &Outcome{}
	s.classify(ctx, userID, out)

	return out
}

func (s *Service) classify(ctx context.Context, userID uuid.UUID, out *Outcome) {
	res, err := s.dispatch(ctx, userID)
	if err != nil {
		s.logger.Warn("classification unavailable", "user_id", userID, "error", err)

		out.Classification = ClassificationUnavailable
		out.Reason = err.Error()

		return
	}

	out.CorrelationID = res.CorrelationID
	out.Classification = ClassificationRequested

	if res.Skipped {
		out.Classification = ClassificationSkipped
	}
}

func (s *Service) dispatch(ctx context.Context, userID uuid.UUID) (*classify.DispatchResult, error) {
	pending, err := s.txs.List(ctx, transaction.ListFilter{UserID: userID, Uncategorized: true})
	if err != nil {
		return nil, fmt.Errorf("list uncategorised transactions: %w", err)
	}

	categories, err := s.categories.Labels(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list category labels: %w", err)
	}

	return s.dispatcher.Dispatch(ctx, userID, transaction.UnmatchedLabels(pending), categories)
}
