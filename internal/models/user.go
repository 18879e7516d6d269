package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a wallet account. Balance is held in CurrencyCode.
type User struct {
	ID           int64           `json:"id" example:"1"`
	Username     string          `json:"username" example:"johndoe"`
	Email        string          `json:"email" example:"user@example.com"`
	PhoneNumber  string          `json:"phone_number" example:"+359888123456"`
	PasswordHash string          `json:"-"`
	IsAdmin      bool            `json:"is_admin"`
	IsBlocked    bool            `json:"is_blocked"`
	IsVerified   bool            `json:"is_verified"`
	Balance      decimal.Decimal `json:"balance" example:"100.00"`
	CurrencyCode string          `json:"currency_code" example:"USD"`
	AvatarURL    *string         `json:"avatar_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// UserSummary is the admin panel view of a user.
type UserSummary struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	IsBlocked   bool      `json:"is_blocked"`
	IsVerified  bool      `json:"is_verified"`
	IsAdmin     bool      `json:"is_admin"`
	CreatedAt   time.Time `json:"created_at"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
}

// UserInfo is returned by the account endpoint.
type UserInfo struct {
	User  User              `json:"user"`
	Cards []BankCardSummary `json:"cards"`
}

// Contact is another user saved to the caller's contact list.
type Contact struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
