package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRService(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdb, rmock := redismock.NewClientMock()

	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	svc := NewQRService(db, rdb)
	svc.now = func() time.Time { return now }
	svc.newNonce = func() (string, error) { return "nonce-1", nil }

	want := PaymentRequest{
		ReceiverID:       4,
		ReceiverUsername: "carol",
		Amount:           dec("12.50"),
		CurrencyCode:     "EUR",
		Nonce:            "nonce-1",
		ExpiresAt:        now.Add(5 * time.Minute),
	}
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	t.Run("generate stores the request for five minutes", func(t *testing.T) {
		mock.ExpectQuery(`SELECT username, currency_code FROM users WHERE id = \$1`).
			WithArgs(4).
			WillReturnRows(sqlmock.NewRows([]string{"username", "currency_code"}).AddRow("carol", "EUR"))
		rmock.ExpectSet("qr:nonce-1", payload, 5*time.Minute).SetVal("OK")

		code, image, err := svc.GenerateQRCode(ctx, 4, dec("12.50"))
		require.NoError(t, err)
		assert.Equal(t, "nonce-1", code)
		png, err := base64.StdEncoding.DecodeString(image)
		require.NoError(t, err)
		assert.Equal(t, "\x89PNG", string(png[:4]))
	})

	t.Run("owner cannot pay it", func(t *testing.T) {
		rmock.ExpectGetDel("qr:nonce-1").SetVal(string(payload))
		rmock.ExpectSetNX("qr:nonce-1", payload, 5*time.Minute).SetVal(true)

		_, err := svc.ProcessQRCode(ctx, 4, "nonce-1")
		var invalid *ErrInvalidState
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("payer resolves it once", func(t *testing.T) {
		rmock.ExpectGetDel("qr:nonce-1").SetVal(string(payload))

		req, err := svc.ProcessQRCode(ctx, 5, "nonce-1")
		require.NoError(t, err)
		assert.Equal(t, "carol", req.ReceiverUsername)
		assert.True(t, req.Amount.Equal(dec("12.5")))

		rmock.ExpectGetDel("qr:nonce-1").RedisNil()
		_, err = svc.ProcessQRCode(ctx, 5, "nonce-1")
		var notFound *ErrNotFound
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("amount must be positive", func(t *testing.T) {
		_, _, err := svc.GenerateQRCode(ctx, 4, dec("0"))
		var validation *ErrValidation
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("amount with fractional cents", func(t *testing.T) {
		_, _, err := svc.GenerateQRCode(ctx, 4, dec("1.005"))
		var validation *ErrValidation
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("lookup failure reports the store as unavailable", func(t *testing.T) {
		rmock.ExpectGetDel("qr:nonce-2").SetErr(errors.New("connection refused"))

		_, err := svc.ProcessQRCode(ctx, 5, "nonce-2")
		var external *ErrExternalService
		assert.ErrorAs(t, err, &external)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestQRService_NonceFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	rdb, rmock := redismock.NewClientMock()

	svc := NewQRService(db, rdb)
	svc.newNonce = func() (string, error) { return "", errors.New("entropy unavailable") }

	_, _, err = svc.GenerateQRCode(context.Background(), 4, dec("5"))
	assert.ErrorContains(t, err, "entropy unavailable")
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestGenerateNonce(t *testing.T) {
	a, err := generateNonce()
	require.NoError(t, err)
	b, err := generateNonce()
	require.NoError(t, err)
	assert.Len(t, a, 22)
	assert.NotEqual(t, a, b)
}
