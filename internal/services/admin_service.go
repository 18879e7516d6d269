package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/virtualwallet/backend/internal/hsm"
	"github.com/virtualwallet/backend/internal/models"
	"go.uber.org/zap"
)

// TransactionCanceller reverses a pending transaction without a receiver check.
type TransactionCanceller interface {
	CancelTransaction(ctx context.Context, txID int64) (bool, error)
}

// HistoryPager pages through transactions.
type HistoryPager interface {
	Page(ctx context.Context, f models.TransactionFilter) (*models.TransactionPage, error)
}

// AdminService backs the admin panel API.
type AdminService struct {
	db      *sql.DB
	ledger  TransactionCanceller
	history HistoryPager
	audit   *hsm.AuditLogger
	logger  *zap.Logger
}

func NewAdminService(db *sql.DB, ledger TransactionCanceller, history HistoryPager, audit *hsm.AuditLogger, logger *zap.Logger) *AdminService {
	return &AdminService{db: db, ledger: ledger, history: history, audit: audit, logger: logger}
}

// ListUsers returns one page of users matching f.
func (s *AdminService) ListUsers(ctx context.Context, f models.UserFilter) (*models.UserPage, error) {
	q, err := BuildUserQueries(f)
	if err != nil {
		return nil, fmt.Errorf("build user query: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var total uint64
	if err := tx.QueryRowContext(ctx, q.Count.SQL, q.Count.Args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	page := &models.UserPage{
		Users:      []models.UserSummary{},
		TotalCount: total,
		TotalPages: q.TotalPages(total),
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if total == 0 || q.Offset >= total {
		return page, tx.Commit()
	}

	rows, err := tx.QueryContext(ctx, q.Page.SQL, q.Page.Args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PhoneNumber, &u.IsBlocked,
			&u.IsVerified, &u.IsAdmin, &u.CreatedAt, &u.AvatarURL); err != nil {
			return nil, err
		}
		page.Users = append(page.Users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	return page, tx.Commit()
}

// ApproveUser marks a user as verified.
func (s *AdminService) ApproveUser(ctx context.Context, adminID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_verified = TRUE WHERE id = $1`, userID)
	if err := affectedOne(res, err, "user", userID); err != nil {
		return err
	}
	s.audit.LogOperation("USER_APPROVED", adminID, "APPROVE_USER", fmt.Sprintf("user %d", userID))
	return nil
}

// SetBlocked blocks or unblocks a user. Admins cannot block themselves.
func (s *AdminService) SetBlocked(ctx context.Context, adminID, userID int64, blocked bool) error {
	if adminID == userID {
		return &ErrInvalidState{Reason: "cannot change your own block status"}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_blocked = $1 WHERE id = $2`, blocked, userID)
	if err := affectedOne(res, err, "user", userID); err != nil {
		return err
	}

	event, op := "USER_UNBLOCKED", "UNBLOCK_USER"
	if blocked {
		event, op = "USER_BLOCKED", "BLOCK_USER"
	}
	s.audit.LogOperation(event, adminID, op, fmt.Sprintf("user %d", userID))
	return nil
}

// Transactions lists every transaction, or one user's when f.UserID is set.
func (s *AdminService) Transactions(ctx context.Context, f models.TransactionFilter) (*models.TransactionPage, error) {
	return s.history.Page(ctx, f)
}

// DenyTransaction declines a pending transaction and refunds the sender.
// It reports false when the transaction is missing or no longer pending.
func (s *AdminService) DenyTransaction(ctx context.Context, adminID, txID int64) (bool, error) {
	ok, err := s.ledger.CancelTransaction(ctx, txID)
	if err != nil {
		return false, err
	}
	if ok {
		s.audit.LogOperation("TRANSACTION_DENIED", adminID, "DENY_TRANSACTION", fmt.Sprintf("transaction %d", txID))
	}
	return ok, nil
}
