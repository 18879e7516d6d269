package hsm

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virtualwallet/backend/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testCard() *models.CardDetails {
	return &models.CardDetails{
		Number:         "4111111111111111",
		ExpirationDate: "12/29",
		CardHolder:     "Ada Lovelace",
		CheckNumber:    "123",
	}
}

func TestNewVaultRequiresSecrets(t *testing.T) {
	_, err := NewVault(Config{Salt: "0123456789abcdef"})
	assert.EqualError(t, err, "master key required")

	_, err = NewVault(Config{MasterKey: "secret", Salt: "short"})
	assert.EqualError(t, err, "vault salt must be at least 8 bytes")
}

func TestVaultRoundTrip(t *testing.T) {
	v, err := NewVault(Config{MasterKey: "master-secret", Salt: "0123456789abcdef"})
	require.NoError(t, err)

	first, err := v.EncryptCardData(testCard())
	require.NoError(t, err)
	second, err := v.EncryptCardData(testCard())
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each encryption uses a fresh nonce")
	assert.NotContains(t, first, "4111")

	got, err := v.DecryptCardData(first)
	require.NoError(t, err)
	assert.Equal(t, testCard(), got)
}

func TestVaultRejectsForeignOrTamperedData(t *testing.T) {
	v, err := NewVault(Config{MasterKey: "master-secret", Salt: "0123456789abcdef"})
	require.NoError(t, err)
	other, err := NewVault(Config{MasterKey: "other-secret", Salt: "0123456789abcdef"})
	require.NoError(t, err)

	sealed, err := v.EncryptCardData(testCard())
	require.NoError(t, err)

	_, err = other.DecryptCardData(sealed)
	assert.ErrorContains(t, err, "failed to decrypt card data")

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = v.DecryptCardData(base64.StdEncoding.EncodeToString(raw))
	assert.ErrorContains(t, err, "failed to decrypt card data")

	_, err = v.DecryptCardData("not base64!")
	assert.ErrorContains(t, err, "invalid encrypted data format")

	_, err = v.DecryptCardData(base64.StdEncoding.EncodeToString([]byte("tiny")))
	assert.ErrorContains(t, err, "ciphertext too short")
}

func TestAuditLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	audit := NewAuditLogger(zap.New(core))

	_, err := NewVault(Config{MasterKey: "m", Salt: "0123456789abcdef", AuditLogger: audit})
	require.NoError(t, err)

	audit.LogTransfer("TRANSFER_CREATED", 10, 1, 2, decimal.RequireFromString("12.5"), "EUR")
	audit.LogError("TRANSFER_FAILED", 10, 1, errors.New("boom"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, "VAULT_INIT", entries[0].Message)
	assert.Equal(t, "audit", entries[0].LoggerName)

	transfer := entries[1].ContextMap()
	assert.Equal(t, "TRANSFER_CREATED", entries[1].Message)
	assert.Equal(t, "12.50", transfer["amount"])
	assert.Equal(t, int64(2), transfer["receiver_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])
}
