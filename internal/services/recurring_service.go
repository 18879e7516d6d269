package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/virtualwallet/backend/internal/models"
	"go.uber.org/zap"
)

// CreateRecurringRequest attaches a schedule to an existing transaction.
type CreateRecurringRequest struct {
	TransactionID int64               `json:"transaction_id" validate:"required,gt=0"`
	Interval      int                 `json:"interval" validate:"required,gte=1,lte=10000"`
	IntervalType  models.IntervalType `json:"interval_type" validate:"required,oneof=DAYS HOURS MINUTES"`
	NextExecDate  *time.Time          `json:"next_exec_date,omitempty"`
}

// RecurringService manages recurring rules. It is also the store the
// scheduler reads due rules from.
type RecurringService struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewRecurringService(db *sql.DB, logger *zap.Logger) *RecurringService {
	return &RecurringService{db: db, logger: logger, now: time.Now}
}

// Create adds a rule for a transaction the user sent. A transaction can carry
// at most one rule.
func (s *RecurringService) Create(ctx context.Context, userID int64, req CreateRecurringRequest) (int64, error) {
	if req.Interval <= 0 {
		return 0, &ErrValidation{Field: "interval", Message: "must be positive"}
	}
	if _, err := req.IntervalType.Unit(); err != nil {
		return 0, &ErrValidation{Field: "interval_type", Message: err.Error()}
	}

	var owned int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE id = $1 AND sender_id = $2`,
		req.TransactionID, userID).Scan(&owned)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &ErrNotFound{Resource: "transaction", ID: strconv.FormatInt(req.TransactionID, 10)}
	}
	if err != nil {
		return 0, fmt.Errorf("check transaction owner: %w", err)
	}

	next := s.now().UTC()
	if req.NextExecDate != nil {
		next = req.NextExecDate.UTC()
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO recurring (transaction_id, "interval", interval_type, next_exec_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transaction_id) DO NOTHING
		RETURNING id`,
		req.TransactionID, req.Interval, string(req.IntervalType), next).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return 0, &ErrConflict{Message: "recurring rule for this transaction already exists"}
	}
	if err != nil {
		return 0, fmt.Errorf("insert recurring rule: %w", err)
	}

	s.logger.Info("recurring rule created",
		zap.Int64("rule_id", id),
		zap.Int64("transaction_id", req.TransactionID),
		zap.Int("interval", req.Interval),
		zap.String("interval_type", string(req.IntervalType)),
	)
	return id, nil
}

// ListForUser returns the user's rules, soonest first.
func (s *RecurringService) ListForUser(ctx context.Context, userID int64) ([]models.RecurringRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.transaction_id, r."interval", r.interval_type, r.next_exec_date
		FROM recurring r
		JOIN transactions t ON r.transaction_id = t.id
		WHERE t.sender_id = $1
		ORDER BY r.next_exec_date ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []models.RecurringRule{}
	for rows.Next() {
		var r models.RecurringRule
		var intervalType string
		if err := rows.Scan(&r.ID, &r.TransactionID, &r.Interval, &intervalType, &r.NextExecDate); err != nil {
			return nil, err
		}
		r.IntervalType = models.IntervalType(intervalType)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Delete removes a rule owned by userID. It reports false when no such rule exists.
func (s *RecurringService) Delete(ctx context.Context, userID, ruleID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM recurring r
		USING transactions t
		WHERE r.id = $1 AND r.transaction_id = t.id AND t.sender_id = $2`,
		ruleID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DueRules returns every rule with next_exec_date <= now joined with the
// frozen template of its transaction.
func (s *RecurringService) DueRules(ctx context.Context, now time.Time) ([]models.DueRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.transaction_id, r."interval", r.interval_type, r.next_exec_date,
			t.sender_id, t.receiver_id, COALESCE(t.category_id, 0), t.original_amount,
			t.original_currency_code, t.name, t.description
		FROM recurring r
		JOIN transactions t ON r.transaction_id = t.id
		WHERE r.next_exec_date <= $1
		ORDER BY r.next_exec_date ASC`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("query due rules: %w", err)
	}
	defer rows.Close()

	var due []models.DueRule
	for rows.Next() {
		var d models.DueRule
		var intervalType string
		if err := rows.Scan(
			&d.Rule.ID, &d.Rule.TransactionID, &d.Rule.Interval, &intervalType, &d.Rule.NextExecDate,
			&d.Template.SenderID, &d.Template.ReceiverID, &d.Template.CategoryID, &d.Template.Amount,
			&d.Template.CurrencyCode, &d.Template.Name, &d.Template.Description,
		); err != nil {
			return nil, err
		}
		d.Rule.IntervalType = models.IntervalType(intervalType)
		due = append(due, d)
	}
	return due, rows.Err()
}

// RescheduleTx moves a rule to next inside tx. The update is guarded on the
// next_exec_date the scheduler read, so a rule is advanced once per due time
// even if two schedulers race.
func (s *RecurringService) RescheduleTx(ctx context.Context, tx *sql.Tx, rule models.RecurringRule, next time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE recurring SET next_exec_date = $1 WHERE id = $2 AND next_exec_date = $3`,
		next.UTC(), rule.ID, rule.NextExecDate)
	if err != nil {
		return fmt.Errorf("reschedule rule %d: %w", rule.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ErrConflict{Message: fmt.Sprintf("recurring rule %d was changed or removed", rule.ID)}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
