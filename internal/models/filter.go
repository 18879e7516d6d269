package models

import "time"

// Transaction directions relative to the viewing user.
const (
	DirectionAll      = "all"
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// TransactionFilter drives the history and admin transaction views.
// UserID scopes the view to one party; zero means all users (admin).
type TransactionFilter struct {
	UserID     int64      `json:"-"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Direction  string     `json:"direction,omitempty" validate:"omitempty,oneof=all incoming outgoing"`
	CategoryID int64      `json:"category_id,omitempty" validate:"gte=0"`
	Status     string     `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed declined"`
	SortBy     string     `json:"sort_by,omitempty"`
	SortOrder  string     `json:"sort_order,omitempty"`
	Limit      uint64     `json:"limit" validate:"lte=100"`
	Offset     uint64     `json:"offset"`
}

// UserFilter drives the admin user list.
type UserFilter struct {
	Search     string `json:"search,omitempty" validate:"max=64"`
	IsVerified *bool  `json:"is_verified,omitempty"`
	IsBlocked  *bool  `json:"is_blocked,omitempty"`
	Limit      uint64 `json:"limit" validate:"lte=100"`
	Offset     uint64 `json:"offset"`
}

// UserPage is one page of the admin user list.
type UserPage struct {
	Users      []UserSummary `json:"users"`
	TotalCount uint64        `json:"total_count"`
	TotalPages uint64        `json:"total_pages"`
	Limit      uint64        `json:"limit"`
	Offset     uint64        `json:"offset"`
}
