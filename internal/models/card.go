package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// BankCard is an external card linked to a wallet. The card details are only
// ever stored encrypted in EncryptedPayload.
type BankCard struct {
	ID               int64     `json:"id" db:"id"`
	UserID           int64     `json:"user_id" db:"user_id"`
	EncryptedPayload string    `json:"-" db:"encrypted_payload"`
	LastFour         string    `json:"last_four" db:"last_four"`
	Type             string    `json:"type" db:"type"`
	Nickname         *string   `json:"nickname,omitempty" db:"nickname"`
	ImageURL         *string   `json:"image_url,omitempty" db:"image_url"`
	IsDeactivated    bool      `json:"is_deactivated" db:"is_deactivated"`
	Metadata         Metadata  `json:"metadata,omitempty" db:"metadata"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// BankCardSummary is the card view shown on the account page.
type BankCardSummary struct {
	ID            int64   `json:"id"`
	Type          string  `json:"type"`
	LastFour      string  `json:"last_four"`
	IsDeactivated bool    `json:"is_deactivated"`
	Nickname      *string `json:"nickname,omitempty"`
	ImageURL      *string `json:"image_url,omitempty"`
}

// CardDetails is the plaintext card payload.
type CardDetails struct {
	Number         string `json:"number" validate:"required,numeric,len=16"`
	ExpirationDate string `json:"expiration_date" validate:"required,len=5"`
	CardHolder     string `json:"card_holder" validate:"required,min=2,max=30"`
	CheckNumber    string `json:"check_number" validate:"required,numeric,len=3"`
}

// Card types
const (
	CardTypeDebit  = "DEBIT"
	CardTypeCredit = "CREDIT"
)

// Metadata type for JSONB fields
type Metadata map[string]any

// Value implements driver.Valuer for Metadata
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Metadata
func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(b, m)
}
