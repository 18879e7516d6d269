package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus mirrors the is_accepted column.
type TransactionStatus int

const (
	StatusDeclined  TransactionStatus = -1
	StatusPending   TransactionStatus = 0
	StatusConfirmed TransactionStatus = 1
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusDeclined:
		return "declined"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsTerminal reports whether no further balance mutation may happen against the record.
func (s TransactionStatus) IsTerminal() bool {
	return s != StatusPending
}

// ParseStatus maps a filter value to a status.
func ParseStatus(s string) (TransactionStatus, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "confirmed":
		return StatusConfirmed, true
	case "declined":
		return StatusDeclined, true
	}
	return 0, false
}

// Transaction is a money transfer record. Amount is in the receiver's currency
// (CurrencyCode); OriginalAmount is what was debited from the sender.
type Transaction struct {
	ID                   int64             `json:"id" db:"id"`
	Name                 string            `json:"name" db:"name"`
	Description          string            `json:"description" db:"description"`
	SenderID             int64             `json:"sender_id" db:"sender_id"`
	ReceiverID           int64             `json:"receiver_id" db:"receiver_id"`
	CategoryID           int64             `json:"category_id" db:"category_id"`
	Amount               decimal.Decimal   `json:"amount" db:"amount"`
	CurrencyCode         string            `json:"currency_code" db:"currency_code"`
	OriginalAmount       decimal.Decimal   `json:"original_amount" db:"original_amount"`
	OriginalCurrencyCode string            `json:"original_currency_code" db:"original_currency_code"`
	Status               TransactionStatus `json:"is_accepted" db:"is_accepted"`
	IsRecurring          bool              `json:"is_recurring" db:"is_recurring"`
	CreatedAt            time.Time         `json:"created_at" db:"created_at"`
	SenderUsername       string            `json:"sender_username,omitempty"`
	ReceiverUsername     string            `json:"receiver_username,omitempty"`
}

// DisplayLine renders the record from the point of view of userID.
func (t *Transaction) DisplayLine(userID int64) string {
	switch userID {
	case t.SenderID:
		return fmt.Sprintf("You sent %s %s (converted to %s %s)",
			t.OriginalAmount.StringFixed(2), t.OriginalCurrencyCode, t.Amount.StringFixed(2), t.CurrencyCode)
	case t.ReceiverID:
		return fmt.Sprintf("You received %s %s", t.Amount.StringFixed(2), t.CurrencyCode)
	default:
		return ""
	}
}

// TransactionPage is one page of a filtered history view.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	TotalCount   uint64        `json:"total_count"`
	TotalPages   uint64        `json:"total_pages"`
	Limit        uint64        `json:"limit"`
	Offset       uint64        `json:"offset"`
}
