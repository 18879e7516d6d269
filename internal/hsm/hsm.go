package hsm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/virtualwallet/backend/internal/models"
	"golang.org/x/crypto/argon2"
)

// CardVault encrypts and decrypts linked bank card payloads at rest.
type CardVault interface {
	EncryptCardData(details *models.CardDetails) (string, error)
	DecryptCardData(encrypted string) (*models.CardDetails, error)
}

// Vault implements CardVault with AES-256-GCM under an argon2 derived key.
type Vault struct {
	key   []byte
	audit *AuditLogger
}

// Config holds vault configuration
type Config struct {
	MasterKey   string
	Salt        string
	AuditLogger *AuditLogger
}

// NewVault derives the vault key from the master secret.
func NewVault(config Config) (*Vault, error) {
	if config.MasterKey == "" {
		return nil, errors.New("master key required")
	}
	if len(config.Salt) < 8 {
		return nil, errors.New("vault salt must be at least 8 bytes")
	}

	v := &Vault{
		key:   deriveKey(config.MasterKey, config.Salt, 32),
		audit: config.AuditLogger,
	}
	if v.audit != nil {
		v.audit.LogOperation("", 0, "VAULT_INIT", "card vault initialized")
	}
	return v, nil
}

// EncryptCardData encrypts card details to a base64 string
func (v *Vault) EncryptCardData(details *models.CardDetails) (string, error) {
	data, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("failed to marshal card data: %w", err)
	}

	encrypted, err := v.seal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt card data: %w", err)
	}

	return base64.StdEncoding.EncodeToString(encrypted), nil
}

// DecryptCardData decrypts base64 encoded card details
func (v *Vault) DecryptCardData(encrypted string) (*models.CardDetails, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("invalid encrypted data format: %w", err)
	}

	plain, err := v.open(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt card data: %w", err)
	}

	var details models.CardDetails
	if err := json.Unmarshal(plain, &details); err != nil {
		return nil, fmt.Errorf("failed to unmarshal card data: %w", err)
	}

	return &details, nil
}

func (v *Vault) seal(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

func (v *Vault) open(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func deriveKey(password, salt string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), []byte(salt), 3, 32*1024, 4, keyLen)
}
