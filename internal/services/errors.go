package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates a user, transaction, category or currency does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidState covers wrong-party actions, terminal transitions and self transfers.
type ErrInvalidState struct {
	Reason string
}

func (e *ErrInvalidState) Error() string {
	return "invalid state: " + e.Reason
}

type ErrInsufficientFunds struct {
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: available=%s required=%s",
		e.Available.StringFixed(2), e.Required.StringFixed(2))
}

type ErrAccountBlocked struct {
	UserID int64
}

func (e *ErrAccountBlocked) Error() string {
	return fmt.Sprintf("account %d is blocked", e.UserID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return "forbidden: " + e.Action
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// HTTPStatus maps a service error to the status code the handlers respond with.
func HTTPStatus(err error) int {
	var (
		notFound     *ErrNotFound
		invalidState *ErrInvalidState
		insufficient *ErrInsufficientFunds
		blocked      *ErrAccountBlocked
		validation   *ErrValidation
		external     *ErrExternalService
		conflict     *ErrConflict
		forbidden    *ErrForbidden
		unauthorized *ErrUnauthorized
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation), errors.As(err, &invalidState), errors.As(err, &insufficient):
		return http.StatusBadRequest
	case errors.As(err, &blocked), errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &external):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns a message safe to show to the caller.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	var external *ErrExternalService
	if errors.As(err, &external) {
		return external.Service + " is unavailable, try again later"
	}
	return err.Error()
}
