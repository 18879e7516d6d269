package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/virtualwallet/backend/internal/currency"
	"github.com/virtualwallet/backend/internal/hsm"
	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/observability"
	"go.uber.org/zap"
)

// Converter converts an amount between two currency codes.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

// CurrencySet reports whether a currency code is supported.
type CurrencySet interface {
	Has(code string) bool
}

// CreateTransactionRequest is a user initiated transfer.
type CreateTransactionRequest struct {
	ReceiverUsername string          `json:"receiver_username" validate:"required,min=2,max=32"`
	Amount           decimal.Decimal `json:"amount"`
	CategoryID       int64           `json:"category_id" validate:"required,gt=0"`
	Name             string          `json:"name" validate:"required,min=1,max=45"`
	Description      string          `json:"description" validate:"max=255"`
}

// LedgerService owns every balance mutation. Funds are debited from the
// sender when a transaction is created and either credited to the receiver
// on confirm or refunded to the sender on decline.
type LedgerService struct {
	db         *sql.DB
	converter  Converter
	currencies CurrencySet
	audit      *hsm.AuditLogger
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewLedgerService(db *sql.DB, converter Converter, currencies CurrencySet, audit *hsm.AuditLogger, metrics *observability.Metrics, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		db:         db,
		converter:  converter,
		currencies: currencies,
		audit:      audit,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

type account struct {
	ID           int64
	Username     string
	Balance      decimal.Decimal
	CurrencyCode string
	IsBlocked    bool
}

const accountColumns = `SELECT id, username, balance, currency_code, is_blocked FROM users`

func (s *LedgerService) loadAccount(ctx context.Context, where string, arg any, label string) (*account, error) {
	var a account
	err := s.db.QueryRowContext(ctx, accountColumns+" WHERE "+where+" = $1", arg).
		Scan(&a.ID, &a.Username, &a.Balance, &a.CurrencyCode, &a.IsBlocked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Resource: "user", ID: label}
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", label, err)
	}
	return &a, nil
}

// transfer is a validated transaction ready to be written.
type transfer struct {
	sender      *account
	receiver    *account
	categoryID  int64
	amount      decimal.Decimal
	converted   decimal.Decimal
	name        string
	description string
	recurring   bool
}

// CreateTransaction debits the sender and records a pending transaction
// addressed to req.ReceiverUsername.
func (s *LedgerService) CreateTransaction(ctx context.Context, senderID int64, req CreateTransactionRequest) (int64, error) {
	sender, err := s.loadAccount(ctx, "id", senderID, strconv.FormatInt(senderID, 10))
	if err != nil {
		return 0, s.fail("create", err)
	}
	receiver, err := s.loadAccount(ctx, "username", req.ReceiverUsername, req.ReceiverUsername)
	if err != nil {
		return 0, s.fail("create", err)
	}

	t, err := s.prepare(ctx, sender, receiver, req.CategoryID, req.Amount)
	if err != nil {
		return 0, s.fail("create", err)
	}
	t.name = req.Name
	t.description = req.Description

	return s.commitTransfer(ctx, t, nil)
}

// CreateFromTemplate re-runs a frozen transaction template. within, when not
// nil, runs inside the same database transaction as the debit and insert, so
// the caller's write commits or rolls back with them.
func (s *LedgerService) CreateFromTemplate(ctx context.Context, tmpl models.TransactionTemplate, within func(*sql.Tx) error) (int64, error) {
	sender, err := s.loadAccount(ctx, "id", tmpl.SenderID, strconv.FormatInt(tmpl.SenderID, 10))
	if err != nil {
		return 0, s.fail("create_recurring", err)
	}
	receiver, err := s.loadAccount(ctx, "id", tmpl.ReceiverID, strconv.FormatInt(tmpl.ReceiverID, 10))
	if err != nil {
		return 0, s.fail("create_recurring", err)
	}

	amount := tmpl.Amount
	if tmpl.CurrencyCode != "" && tmpl.CurrencyCode != sender.CurrencyCode {
		amount, err = s.converter.Convert(ctx, tmpl.Amount, tmpl.CurrencyCode, sender.CurrencyCode)
		if err != nil {
			return 0, s.fail("create_recurring", conversionError(err, tmpl.CurrencyCode, sender.CurrencyCode))
		}
	}

	t, err := s.prepare(ctx, sender, receiver, tmpl.CategoryID, amount)
	if err != nil {
		return 0, s.fail("create_recurring", err)
	}
	t.name = tmpl.Name
	t.description = tmpl.Description
	t.recurring = true

	return s.commitTransfer(ctx, t, within)
}

// prepare checks every precondition and performs the currency conversion.
// No database transaction is open while the rate service is called.
func (s *LedgerService) prepare(ctx context.Context, sender, receiver *account, categoryID int64, amount decimal.Decimal) (*transfer, error) {
	if sender.IsBlocked {
		return nil, &ErrAccountBlocked{UserID: sender.ID}
	}
	if !amount.IsPositive() {
		return nil, &ErrValidation{Field: "amount", Message: "must be greater than zero"}
	}
	if !hasCents(amount) {
		return nil, &ErrValidation{Field: "amount", Message: "at most two decimal places"}
	}
	if sender.ID == receiver.ID {
		return nil, &ErrInvalidState{Reason: "cannot send money to yourself"}
	}

	var found int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM transaction_categories WHERE id = $1 AND user_id = $2`,
		categoryID, sender.ID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Resource: "category", ID: strconv.FormatInt(categoryID, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("check category: %w", err)
	}

	for _, code := range []string{sender.CurrencyCode, receiver.CurrencyCode} {
		if !s.currencies.Has(code) {
			return nil, &ErrNotFound{Resource: "currency", ID: code}
		}
	}

	if sender.Balance.LessThan(amount) {
		return nil, &ErrInsufficientFunds{Available: sender.Balance, Required: amount}
	}

	converted, err := s.converter.Convert(ctx, amount, sender.CurrencyCode, receiver.CurrencyCode)
	if err != nil {
		return nil, conversionError(err, sender.CurrencyCode, receiver.CurrencyCode)
	}
	if !converted.IsPositive() {
		return nil, errTooSmallToConvert
	}

	return &transfer{
		sender:     sender,
		receiver:   receiver,
		categoryID: categoryID,
		amount:     amount,
		converted:  converted,
	}, nil
}

func (s *LedgerService) commitTransfer(ctx context.Context, t *transfer, within func(*sql.Tx) error) (int64, error) {
	op := "create"
	if t.recurring {
		op = "create_recurring"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.fail(op, err)
	}
	defer tx.Rollback()

	// The guard re-checks balance, block flag and currency atomically with the debit.
	res, err := tx.ExecContext(ctx, `
		UPDATE users SET balance = balance - $1
		WHERE id = $2 AND balance >= $1 AND is_blocked = FALSE AND currency_code = $3`,
		t.amount, t.sender.ID, t.sender.CurrencyCode)
	if err != nil {
		return 0, s.fail(op, fmt.Errorf("debit sender: %w", err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, s.fail(op, err)
	} else if n == 0 {
		return 0, s.fail(op, s.explainDebitFailure(ctx, tx, t.sender.ID, t.sender.CurrencyCode, t.amount))
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO transactions (name, description, sender_id, receiver_id, category_id,
			amount, currency_code, original_amount, original_currency_code,
			is_accepted, is_recurring, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		t.name, t.description, t.sender.ID, t.receiver.ID, t.categoryID,
		t.converted, t.receiver.CurrencyCode, t.amount, t.sender.CurrencyCode,
		int(models.StatusPending), t.recurring, s.now().UTC()).Scan(&id)
	if err != nil {
		return 0, s.fail(op, fmt.Errorf("insert transaction: %w", err))
	}

	if within != nil {
		if err := within(tx); err != nil {
			return 0, s.fail(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, s.fail(op, err)
	}

	s.metrics.IncrLedgerOp(op, "ok")
	s.audit.LogTransfer("TRANSACTION_CREATED", id, t.sender.ID, t.receiver.ID, t.amount, t.sender.CurrencyCode)
	return id, nil
}

// explainDebitFailure re-reads the user inside tx to report why the guarded debit matched no row.
func (s *LedgerService) explainDebitFailure(ctx context.Context, tx *sql.Tx, userID int64, currencyCode string, required decimal.Decimal) error {
	var (
		balance decimal.Decimal
		blocked bool
		code    string
	)
	err := tx.QueryRowContext(ctx,
		`SELECT balance, is_blocked, currency_code FROM users WHERE id = $1`, userID).
		Scan(&balance, &blocked, &code)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &ErrNotFound{Resource: "user", ID: strconv.FormatInt(userID, 10)}
	case err != nil:
		return err
	case blocked:
		return &ErrAccountBlocked{UserID: userID}
	case code != currencyCode:
		return &ErrConflict{Message: "account currency changed, retry the transaction"}
	default:
		return &ErrInsufficientFunds{Available: balance, Required: required}
	}
}

// settlementRecord is what confirm and decline need to know about a transaction.
type settlementRecord struct {
	ID                   int64
	SenderID             int64
	ReceiverID           int64
	Amount               decimal.Decimal
	CurrencyCode         string
	OriginalAmount       decimal.Decimal
	OriginalCurrencyCode string
	Status               models.TransactionStatus
	SenderCurrency       string
	ReceiverCurrency     string
}

func (s *LedgerService) loadSettlement(ctx context.Context, txID int64) (*settlementRecord, error) {
	r := settlementRecord{ID: txID}
	var status int
	err := s.db.QueryRowContext(ctx, `
		SELECT t.sender_id, t.receiver_id, t.amount, t.currency_code,
			t.original_amount, t.original_currency_code, t.is_accepted,
			su.currency_code, ru.currency_code
		FROM transactions t
		JOIN users su ON su.id = t.sender_id
		JOIN users ru ON ru.id = t.receiver_id
		WHERE t.id = $1`, txID).
		Scan(&r.SenderID, &r.ReceiverID, &r.Amount, &r.CurrencyCode,
			&r.OriginalAmount, &r.OriginalCurrencyCode, &status,
			&r.SenderCurrency, &r.ReceiverCurrency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load transaction %d: %w", txID, err)
	}
	r.Status = models.TransactionStatus(status)
	return &r, nil
}

// ConfirmTransaction credits the receiver and marks the transaction confirmed.
// It returns false without side effects when userID is not the receiver or
// the transaction is missing or already settled.
func (s *LedgerService) ConfirmTransaction(ctx context.Context, txID, userID int64) (bool, error) {
	rec, err := s.loadSettlement(ctx, txID)
	if err != nil {
		return false, s.fail("confirm", err)
	}
	if rec == nil || rec.ReceiverID != userID || rec.Status != models.StatusPending || rec.SenderID == rec.ReceiverID {
		s.metrics.IncrLedgerOp("confirm", "noop")
		return false, nil
	}

	// the receiver may have switched currency since the transaction was created
	credit, err := s.converter.Convert(ctx, rec.Amount, rec.CurrencyCode, rec.ReceiverCurrency)
	if err != nil {
		return false, s.fail("confirm", conversionError(err, rec.CurrencyCode, rec.ReceiverCurrency))
	}
	if !credit.IsPositive() {
		return false, s.fail("confirm", errTooSmallToConvert)
	}

	guard := userID
	return s.settle(ctx, "confirm", rec, models.StatusConfirmed, &guard, rec.ReceiverID, credit, rec.ReceiverCurrency)
}

// DeclineTransaction refunds the sender and marks the transaction declined.
// Same no-op rules as ConfirmTransaction.
func (s *LedgerService) DeclineTransaction(ctx context.Context, txID, userID int64) (bool, error) {
	rec, err := s.loadSettlement(ctx, txID)
	if err != nil {
		return false, s.fail("decline", err)
	}
	if rec == nil || rec.ReceiverID != userID || rec.Status != models.StatusPending {
		s.metrics.IncrLedgerOp("decline", "noop")
		return false, nil
	}

	refund, err := s.refundAmount(ctx, rec)
	if err != nil {
		return false, s.fail("decline", err)
	}

	guard := userID
	return s.settle(ctx, "decline", rec, models.StatusDeclined, &guard, rec.SenderID, refund, rec.SenderCurrency)
}

// CancelTransaction is the admin decline: any pending transaction is refunded
// to its sender regardless of who asks.
func (s *LedgerService) CancelTransaction(ctx context.Context, txID int64) (bool, error) {
	rec, err := s.loadSettlement(ctx, txID)
	if err != nil {
		return false, s.fail("cancel", err)
	}
	if rec == nil || rec.Status != models.StatusPending {
		s.metrics.IncrLedgerOp("cancel", "noop")
		return false, nil
	}

	refund, err := s.refundAmount(ctx, rec)
	if err != nil {
		return false, s.fail("cancel", err)
	}

	return s.settle(ctx, "cancel", rec, models.StatusDeclined, nil, rec.SenderID, refund, rec.SenderCurrency)
}

func (s *LedgerService) refundAmount(ctx context.Context, rec *settlementRecord) (decimal.Decimal, error) {
	refund, err := s.converter.Convert(ctx, rec.OriginalAmount, rec.OriginalCurrencyCode, rec.SenderCurrency)
	if err != nil {
		return decimal.Zero, conversionError(err, rec.OriginalCurrencyCode, rec.SenderCurrency)
	}
	if !refund.IsPositive() {
		return decimal.Zero, errTooSmallToConvert
	}
	return refund, nil
}

// settle flips the status out of pending and credits beneficiaryID in one
// database transaction. The status guard makes concurrent settle calls race
// safely: only one of them matches the pending row.
func (s *LedgerService) settle(ctx context.Context, op string, rec *settlementRecord, status models.TransactionStatus, receiverGuard *int64, beneficiaryID int64, amount decimal.Decimal, currencyCode string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, s.fail(op, err)
	}
	defer tx.Rollback()

	var res sql.Result
	if receiverGuard != nil {
		res, err = tx.ExecContext(ctx,
			`UPDATE transactions SET is_accepted = $1 WHERE id = $2 AND receiver_id = $3 AND is_accepted = 0`,
			int(status), rec.ID, *receiverGuard)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE transactions SET is_accepted = $1 WHERE id = $2 AND is_accepted = 0`,
			int(status), rec.ID)
	}
	if err != nil {
		return false, s.fail(op, fmt.Errorf("update transaction status: %w", err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, s.fail(op, err)
	} else if n == 0 {
		s.metrics.IncrLedgerOp(op, "noop")
		return false, nil
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2 AND currency_code = $3`,
		amount, beneficiaryID, currencyCode)
	if err != nil {
		return false, s.fail(op, fmt.Errorf("credit user %d: %w", beneficiaryID, err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, s.fail(op, err)
	} else if n == 0 {
		return false, s.fail(op, &ErrConflict{Message: "account currency changed, retry"})
	}

	if err := tx.Commit(); err != nil {
		return false, s.fail(op, err)
	}

	s.metrics.IncrLedgerOp(op, "ok")
	s.audit.LogTransfer("TRANSACTION_"+strings.ToUpper(status.String()), rec.ID, rec.SenderID, rec.ReceiverID, amount, currencyCode)
	return true, nil
}

// TopUp credits money arriving from outside the wallet, such as a card
// withdrawal, to userID's balance. currencyCode must be the wallet's currency.
func (s *LedgerService) TopUp(ctx context.Context, userID int64, amount decimal.Decimal, currencyCode string) error {
	if !amount.IsPositive() {
		return s.fail("topup", &ErrValidation{Field: "amount", Message: "must be greater than zero"})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("topup", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2 AND currency_code = $3`,
		amount, userID, currencyCode)
	if err != nil {
		return s.fail("topup", fmt.Errorf("credit user %d: %w", userID, err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return s.fail("topup", err)
	} else if n == 0 {
		return s.fail("topup", &ErrConflict{Message: "account currency changed, retry"})
	}

	if err := tx.Commit(); err != nil {
		return s.fail("topup", err)
	}

	s.metrics.IncrLedgerOp("topup", "ok")
	s.audit.LogTransfer("WALLET_TOPUP", 0, 0, userID, amount, currencyCode)
	return nil
}

// Withdraw debits userID's balance for money leaving the wallet. The same
// guard as a transfer debit applies: enough balance, not blocked and still in
// currencyCode.
func (s *LedgerService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, currencyCode string) error {
	if !amount.IsPositive() {
		return s.fail("withdraw", &ErrValidation{Field: "amount", Message: "must be greater than zero"})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("withdraw", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE users SET balance = balance - $1
		WHERE id = $2 AND balance >= $1 AND is_blocked = FALSE AND currency_code = $3`,
		amount, userID, currencyCode)
	if err != nil {
		return s.fail("withdraw", fmt.Errorf("debit user %d: %w", userID, err))
	}
	if n, err := res.RowsAffected(); err != nil {
		return s.fail("withdraw", err)
	} else if n == 0 {
		return s.fail("withdraw", s.explainDebitFailure(ctx, tx, userID, currencyCode, amount))
	}

	if err := tx.Commit(); err != nil {
		return s.fail("withdraw", err)
	}

	s.metrics.IncrLedgerOp("withdraw", "ok")
	s.audit.LogTransfer("WALLET_WITHDRAWAL", 0, userID, 0, amount, currencyCode)
	return nil
}

func (s *LedgerService) fail(op string, err error) error {
	s.metrics.IncrLedgerOp(op, "error")
	if HTTPStatus(err) >= 500 {
		s.logger.Error("ledger operation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}

var errTooSmallToConvert = &ErrValidation{Field: "amount", Message: "too small to convert"}

// hasCents reports whether amount carries no more than two significant
// decimal places. Trailing zeros do not count.
func hasCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(2))
}

func conversionError(err error, from, to string) error {
	if errors.Is(err, currency.ErrUnsupportedPair) {
		return &ErrNotFound{Resource: "currency", ID: from + "/" + to}
	}
	return &ErrExternalService{Service: "currency conversion", Err: err}
}
