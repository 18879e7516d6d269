package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/virtualwallet/backend/internal/models"
	"go.uber.org/zap"
)

// HistoryService serves read-only transaction views.
type HistoryService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewHistoryService(db *sql.DB, logger *zap.Logger) *HistoryService {
	return &HistoryService{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var t models.Transaction
	var status int
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.SenderID, &t.ReceiverID,
		&t.CategoryID, &t.Amount, &t.CurrencyCode,
		&t.OriginalAmount, &t.OriginalCurrencyCode, &status,
		&t.IsRecurring, &t.CreatedAt, &t.SenderUsername, &t.ReceiverUsername,
	)
	t.Status = models.TransactionStatus(status)
	return t, err
}

// Page returns one page of transactions matching f together with totals
// computed from the same predicates in the same snapshot.
func (s *HistoryService) Page(ctx context.Context, f models.TransactionFilter) (*models.TransactionPage, error) {
	q, err := BuildTransactionQueries(f)
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var total uint64
	if err := tx.QueryRowContext(ctx, q.Count.SQL, q.Count.Args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}

	page := &models.TransactionPage{
		Transactions: []models.Transaction{},
		TotalCount:   total,
		TotalPages:   q.TotalPages(total),
		Limit:        q.Limit,
		Offset:       q.Offset,
	}
	if total == 0 || q.Offset >= total {
		return page, tx.Commit()
	}

	rows, err := tx.QueryContext(ctx, q.Page.SQL, q.Page.Args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		page.Transactions = append(page.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	return page, tx.Commit()
}

// Get returns a transaction visible to userID, which must be one of its parties.
func (s *HistoryService) Get(ctx context.Context, txID, userID int64) (*models.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT t.id, t.name, t.description, t.sender_id, t.receiver_id,
			COALESCE(t.category_id, 0), t.amount, t.currency_code,
			t.original_amount, t.original_currency_code, t.is_accepted,
			t.is_recurring, t.created_at, su.username, ru.username
		FROM transactions t
		JOIN users su ON su.id = t.sender_id
		JOIN users ru ON ru.id = t.receiver_id
		WHERE t.id = $1 AND (t.sender_id = $2 OR t.receiver_id = $2)`, txID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Resource: "transaction", ID: strconv.FormatInt(txID, 10)}
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
