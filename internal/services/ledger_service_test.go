package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virtualwallet/backend/internal/currency"
	"github.com/virtualwallet/backend/internal/hsm"
	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/observability"
	"go.uber.org/zap"
)

type fakeConverter struct {
	rates map[string]decimal.Decimal
	err   error
	calls int
}

func (f *fakeConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	rate, ok := f.rates[from+":"+to]
	if !ok {
		return decimal.Zero, currency.ErrUnsupportedPair
	}
	return amount.Mul(rate).Round(2), nil
}

type fakeCurrencies map[string]bool

func (f fakeCurrencies) Has(code string) bool { return f[code] }

var userCols = []string{"id", "username", "balance", "currency_code", "is_blocked"}

var settlementCols = []string{
	"sender_id", "receiver_id", "amount", "currency_code",
	"original_amount", "original_currency_code", "is_accepted",
	"sender_currency", "receiver_currency",
}

const (
	qUserByID       = `SELECT id, username, balance, currency_code, is_blocked FROM users WHERE id = \$1`
	qUserByUsername = `SELECT id, username, balance, currency_code, is_blocked FROM users WHERE username = \$1`
	qCategory       = `SELECT id FROM transaction_categories WHERE id = \$1 AND user_id = \$2`
	qDebit          = `UPDATE users SET balance = balance - \$1`
	qInsertTx       = `INSERT INTO transactions`
	qSettlement     = `SELECT t.sender_id, t.receiver_id, t.amount, t.currency_code`
	qStatusGuarded  = `UPDATE transactions SET is_accepted = \$1 WHERE id = \$2 AND receiver_id = \$3 AND is_accepted = 0`
	qStatusAdmin    = `UPDATE transactions SET is_accepted = \$1 WHERE id = \$2 AND is_accepted = 0`
	qCredit         = `UPDATE users SET balance = balance \+ \$1 WHERE id = \$2 AND currency_code = \$3`
)

func newTestLedger(t *testing.T) (*LedgerService, sqlmock.Sqlmock, *fakeConverter) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conv := &fakeConverter{rates: map[string]decimal.Decimal{"USD:EUR": decimal.RequireFromString("0.5")}}
	svc := NewLedgerService(db, conv, fakeCurrencies{"USD": true, "EUR": true},
		hsm.NewAuditLogger(zap.NewNop()), observability.NewMetrics(), zap.NewNop())
	return svc, mock, conv
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rentRequest(amount string) CreateTransactionRequest {
	return CreateTransactionRequest{
		ReceiverUsername: "bob",
		Amount:           dec(amount),
		CategoryID:       7,
		Name:             "Rent",
	}
}

func expectParties(mock sqlmock.Sqlmock, senderBalance, receiverCurrency string) {
	mock.ExpectQuery(qUserByID).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", senderBalance, "USD", false))
	mock.ExpectQuery(qUserByUsername).WithArgs("bob").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "bob", "0", receiverCurrency, false))
}

func TestLedgerService_CreateTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("debits sender and records pending transaction", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectParties(mock, "100.00", "USD")
		mock.ExpectQuery(qCategory).WithArgs(7, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectBegin()
		mock.ExpectExec(qDebit).WithArgs(dec("40"), 1, "USD").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(qInsertTx).
			WithArgs("Rent", "", 1, 2, 7, dec("40"), "USD", dec("40"), "USD", 0, false, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
		mock.ExpectCommit()

		id, err := svc.CreateTransaction(ctx, 1, rentRequest("40"))
		assert.NoError(t, err)
		assert.Equal(t, int64(10), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stores converted amount for foreign receiver", func(t *testing.T) {
		svc, mock, conv := newTestLedger(t)
		expectParties(mock, "100.00", "EUR")
		mock.ExpectQuery(qCategory).WithArgs(7, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectBegin()
		mock.ExpectExec(qDebit).WithArgs(dec("40"), 1, "USD").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(qInsertTx).
			WithArgs("Rent", "", 1, 2, 7, dec("20"), "EUR", dec("40"), "USD", 0, false, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectCommit()

		id, err := svc.CreateTransaction(ctx, 1, rentRequest("40"))
		assert.NoError(t, err)
		assert.Equal(t, int64(11), id)
		assert.Equal(t, 1, conv.calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectParties(mock, "30.00", "USD")
		mock.ExpectQuery(qCategory).WithArgs(7, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("40"))
		var insufficient *ErrInsufficientFunds
		assert.ErrorAs(t, err, &insufficient)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self transfer", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qUserByID).WithArgs(1).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", "100", "USD", false))
		mock.ExpectQuery(qUserByUsername).WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", "100", "USD", false))

		req := rentRequest("40")
		req.ReceiverUsername = "alice"
		_, err := svc.CreateTransaction(ctx, 1, req)
		var invalid *ErrInvalidState
		assert.ErrorAs(t, err, &invalid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown receiver", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qUserByID).WithArgs(1).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", "100", "USD", false))
		mock.ExpectQuery(qUserByUsername).WithArgs("bob").WillReturnError(sql.ErrNoRows)

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("40"))
		var notFound *ErrNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "user", notFound.Resource)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blocked sender", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qUserByID).WithArgs(1).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", "100", "USD", true))
		mock.ExpectQuery(qUserByUsername).WithArgs("bob").
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "bob", "0", "USD", false))

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("40"))
		var blocked *ErrAccountBlocked
		assert.ErrorAs(t, err, &blocked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("category owned by someone else", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectParties(mock, "100", "USD")
		mock.ExpectQuery(qCategory).WithArgs(7, 1).WillReturnError(sql.ErrNoRows)

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("40"))
		var notFound *ErrNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "category", notFound.Resource)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unsupported receiver currency", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectParties(mock, "100", "XAU")
		mock.ExpectQuery(qCategory).WithArgs(7, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("40"))
		var notFound *ErrNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "currency", notFound.Resource)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conversion outage opens no transaction", func(t *testing.T) {
		svc, mock, conv := newTestLedger(t)
		conv.err = currency.ErrUnavailable
		expectParties(mock, "100", "EUR")
		mock.ExpectQuery(qCategory).WithArgs(7, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("40"))
		var external *ErrExternalService
		assert.ErrorAs(t, err, &external)
		assert.True(t, errors.Is(err, currency.ErrUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-positive amount", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectParties(mock, "100", "USD")

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("0"))
		var validation *ErrValidation
		assert.ErrorAs(t, err, &validation)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent spend loses the debit guard", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectParties(mock, "100", "USD")
		mock.ExpectQuery(qCategory).WithArgs(7, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectBegin()
		mock.ExpectExec(qDebit).WithArgs(dec("40"), 1, "USD").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT balance, is_blocked, currency_code FROM users WHERE id = \$1`).WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"balance", "is_blocked", "currency_code"}).AddRow("10", false, "USD"))
		mock.ExpectRollback()

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("40"))
		var insufficient *ErrInsufficientFunds
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "10", insufficient.Available.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_CreateFromTemplate(t *testing.T) {
	ctx := context.Background()
	tmpl := models.TransactionTemplate{
		SenderID: 1, ReceiverID: 2, CategoryID: 7, Amount: dec("15"), CurrencyCode: "USD", Name: "Gym",
	}

	expectTemplateParties := func(mock sqlmock.Sqlmock) {
		mock.ExpectQuery(qUserByID).WithArgs(1).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, "alice", "100", "USD", false))
		mock.ExpectQuery(qUserByID).WithArgs(2).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "bob", "0", "USD", false))
		mock.ExpectQuery(qCategory).WithArgs(7, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectBegin()
		mock.ExpectExec(qDebit).WithArgs(dec("15"), 1, "USD").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(qInsertTx).
			WithArgs("Gym", "", 1, 2, 7, dec("15"), "USD", dec("15"), "USD", 0, true, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
	}

	t.Run("runs callback in the same transaction", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectTemplateParties(mock)
		mock.ExpectExec(`UPDATE recurring`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		id, err := svc.CreateFromTemplate(ctx, tmpl, func(tx *sql.Tx) error {
			_, err := tx.Exec(`UPDATE recurring SET next_exec_date = now()`)
			return err
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(20), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("callback failure rolls back the debit", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectTemplateParties(mock)
		mock.ExpectRollback()

		_, err := svc.CreateFromTemplate(ctx, tmpl, func(tx *sql.Tx) error {
			return &ErrConflict{Message: "rule already advanced"}
		})
		var conflict *ErrConflict
		assert.ErrorAs(t, err, &conflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func pendingRow(status int) *sqlmock.Rows {
	return sqlmock.NewRows(settlementCols).
		AddRow(1, 2, "40", "USD", "40", "USD", status, "USD", "USD")
}

func TestLedgerService_ConfirmTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("receiver confirms pending transaction", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qSettlement).WithArgs(10).WillReturnRows(pendingRow(0))
		mock.ExpectBegin()
		mock.ExpectExec(qStatusGuarded).WithArgs(1, 10, 2).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(qCredit).WithArgs(dec("40"), 2, "USD").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := svc.ConfirmTransaction(ctx, 10, 2)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second confirm is a no-op", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qSettlement).WithArgs(10).WillReturnRows(pendingRow(1))

		ok, err := svc.ConfirmTransaction(ctx, 10, 2)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sender cannot confirm", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qSettlement).WithArgs(10).WillReturnRows(pendingRow(0))

		ok, err := svc.ConfirmTransaction(ctx, 10, 1)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing transaction", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qSettlement).WithArgs(99).WillReturnError(sql.ErrNoRows)

		ok, err := svc.ConfirmTransaction(ctx, 99, 2)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost race against decline", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qSettlement).WithArgs(10).WillReturnRows(pendingRow(0))
		mock.ExpectBegin()
		mock.ExpectExec(qStatusGuarded).WithArgs(1, 10, 2).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		ok, err := svc.ConfirmTransaction(ctx, 10, 2)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("receiver changed currency since creation", func(t *testing.T) {
		svc, mock, conv := newTestLedger(t)
		mock.ExpectQuery(qSettlement).WithArgs(10).
			WillReturnRows(sqlmock.NewRows(settlementCols).AddRow(1, 2, "40", "USD", "40", "USD", 0, "USD", "EUR"))
		mock.ExpectBegin()
		mock.ExpectExec(qStatusGuarded).WithArgs(1, 10, 2).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(qCredit).WithArgs(dec("20"), 2, "EUR").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := svc.ConfirmTransaction(ctx, 10, 2)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, conv.calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_DeclineTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("refunds sender then second decline is a no-op", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qSettlement).WithArgs(10).WillReturnRows(pendingRow(0))
		mock.ExpectBegin()
		mock.ExpectExec(qStatusGuarded).WithArgs(-1, 10, 2).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(qCredit).WithArgs(dec("40"), 1, "USD").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		ok, err := svc.DeclineTransaction(ctx, 10, 2)
		assert.NoError(t, err)
		assert.True(t, ok)

		mock.ExpectQuery(qSettlement).WithArgs(10).WillReturnRows(pendingRow(-1))
		ok, err = svc.DeclineTransaction(ctx, 10, 2)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("third party cannot decline", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qSettlement).WithArgs(10).WillReturnRows(pendingRow(0))

		ok, err := svc.DeclineTransaction(ctx, 10, 3)
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed refund leaves status pending", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		mock.ExpectQuery(qSettlement).WithArgs(10).WillReturnRows(pendingRow(0))
		mock.ExpectBegin()
		mock.ExpectExec(qStatusGuarded).WithArgs(-1, 10, 2).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(qCredit).WithArgs(dec("40"), 1, "USD").WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		ok, err := svc.DeclineTransaction(ctx, 10, 2)
		assert.Error(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_CancelTransaction(t *testing.T) {
	svc, mock, _ := newTestLedger(t)
	mock.ExpectQuery(qSettlement).WithArgs(10).WillReturnRows(pendingRow(0))
	mock.ExpectBegin()
	mock.ExpectExec(qStatusAdmin).WithArgs(-1, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(qCredit).WithArgs(dec("40"), 1, "USD").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := svc.CancelTransaction(context.Background(), 10)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerService_AmountPrecision(t *testing.T) {
	ctx := context.Background()

	t.Run("trailing zeros are accepted", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectParties(mock, "100.00", "USD")
		mock.ExpectQuery(qCategory).WithArgs(7, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectBegin()
		mock.ExpectExec(qDebit).WithArgs(dec("40"), 1, "USD").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(qInsertTx).
			WithArgs("Rent", "", 1, 2, 7, dec("40"), "USD", dec("40"), "USD", 0, false, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
		mock.ExpectCommit()

		id, err := svc.CreateTransaction(ctx, 1, rentRequest("40.000"))
		assert.NoError(t, err)
		assert.Equal(t, int64(12), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fractions of a cent are rejected", func(t *testing.T) {
		svc, mock, _ := newTestLedger(t)
		expectParties(mock, "100.00", "USD")

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("1.005"))
		var validation *ErrValidation
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "amount", validation.Field)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	assert.True(t, hasCents(dec("12.30")))
	assert.True(t, hasCents(dec("7")))
	assert.False(t, hasCents(dec("0.001")))
}

func TestLedgerService_ConversionRoundsToZero(t *testing.T) {
	ctx := context.Background()

	t.Run("create debits nothing", func(t *testing.T) {
		svc, mock, conv := newTestLedger(t)
		conv.rates["USD:EUR"] = dec("0.1")
		expectParties(mock, "100.00", "EUR")
		mock.ExpectQuery(qCategory).WithArgs(7, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		_, err := svc.CreateTransaction(ctx, 1, rentRequest("0.01"))
		var validation *ErrValidation
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "amount", validation.Field)
		assert.Equal(t, 1, conv.calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("confirm leaves the transaction pending", func(t *testing.T) {
		svc, mock, conv := newTestLedger(t)
		conv.rates["USD:EUR"] = dec("0.1")
		mock.ExpectQuery(qSettlement).WithArgs(10).
			WillReturnRows(sqlmock.NewRows(settlementCols).AddRow(1, 2, "0.01", "USD", "0.01", "USD", 0, "USD", "EUR"))

		ok, err := svc.ConfirmTransaction(ctx, 10, 2)
		var validation *ErrValidation
		require.ErrorAs(t, err, &validation)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decline refunds nothing", func(t *testing.T) {
		svc, mock, conv := newTestLedger(t)
		conv.rates["USD:EUR"] = dec("0.1")
		mock.ExpectQuery(qSettlement).WithArgs(10).
			WillReturnRows(sqlmock.NewRows(settlementCols).AddRow(1, 2, "0.01", "EUR", "0.01", "USD", 0, "EUR", "EUR"))

		ok, err := svc.DeclineTransaction(ctx, 10, 2)
		var validation *ErrValidation
		require.ErrorAs(t, err, &validation)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
