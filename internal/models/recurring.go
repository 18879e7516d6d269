package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IntervalType is the time unit of a recurring rule.
type IntervalType string

const (
	IntervalDays    IntervalType = "DAYS"
	IntervalHours   IntervalType = "HOURS"
	IntervalMinutes IntervalType = "MINUTES"
)

// Unit returns the duration of one interval step.
func (t IntervalType) Unit() (time.Duration, error) {
	switch t {
	case IntervalDays:
		return 24 * time.Hour, nil
	case IntervalHours:
		return time.Hour, nil
	case IntervalMinutes:
		return time.Minute, nil
	}
	return 0, fmt.Errorf("invalid interval type %q", string(t))
}

// RecurringRule re-executes the referenced transaction every Interval units.
type RecurringRule struct {
	ID            int64        `json:"id"`
	TransactionID int64        `json:"transaction_id"`
	Interval      int          `json:"interval"`
	IntervalType  IntervalType `json:"interval_type"`
	NextExecDate  time.Time    `json:"next_exec_date"`
}

// TransactionTemplate is the frozen intent of a transaction used to re-run it.
// Amount is what the sender paid, in CurrencyCode.
type TransactionTemplate struct {
	SenderID     int64
	ReceiverID   int64
	CategoryID   int64
	Amount       decimal.Decimal
	CurrencyCode string
	Name         string
	Description  string
}

// DueRule is a rule joined with its template, as read by the scheduler.
type DueRule struct {
	Rule     RecurringRule
	Template TransactionTemplate
}
