package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/services"
	"go.uber.org/zap"
)

// Ledger is the money-moving part of the transaction API.
type Ledger interface {
	CreateTransaction(ctx context.Context, senderID int64, req services.CreateTransactionRequest) (int64, error)
	ConfirmTransaction(ctx context.Context, txID, userID int64) (bool, error)
	DeclineTransaction(ctx context.Context, txID, userID int64) (bool, error)
}

// History serves read-only transaction views.
type History interface {
	Page(ctx context.Context, f models.TransactionFilter) (*models.TransactionPage, error)
	Get(ctx context.Context, txID, userID int64) (*models.Transaction, error)
}

// RecurringRules manages recurring rules.
type RecurringRules interface {
	Create(ctx context.Context, userID int64, req services.CreateRecurringRequest) (int64, error)
	ListForUser(ctx context.Context, userID int64) ([]models.RecurringRule, error)
	Delete(ctx context.Context, userID, ruleID int64) (bool, error)
}

// RecurringBlock asks for the new transaction to repeat.
type RecurringBlock struct {
	Interval     int                 `json:"interval" validate:"gte=1,lte=10000"`
	IntervalType models.IntervalType `json:"interval_type" validate:"oneof=DAYS HOURS MINUTES"`
	NextExecDate *time.Time          `json:"next_exec_date,omitempty"`
}

// CreateTransactionBody is the POST /transactions payload.
type CreateTransactionBody struct {
	services.CreateTransactionRequest
	Recurring *RecurringBlock `json:"recurring,omitempty"`
}

type transactionView struct {
	models.Transaction
	Display string `json:"display"`
}

type transactionPageView struct {
	Transactions []transactionView `json:"transactions"`
	TotalCount   uint64            `json:"total_count"`
	TotalPages   uint64            `json:"total_pages"`
	Limit        uint64            `json:"limit"`
	Offset       uint64            `json:"offset"`
}

func viewPage(page *models.TransactionPage, userID int64) transactionPageView {
	v := transactionPageView{
		Transactions: make([]transactionView, 0, len(page.Transactions)),
		TotalCount:   page.TotalCount,
		TotalPages:   page.TotalPages,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	for _, t := range page.Transactions {
		v.Transactions = append(v.Transactions, transactionView{Transaction: t, Display: t.DisplayLine(userID)})
	}
	return v
}

type TransactionHandler struct {
	ledger    Ledger
	history   History
	recurring RecurringRules
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewTransactionHandler(ledger Ledger, history History, recurring RecurringRules, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		ledger:    ledger,
		history:   history,
		recurring: recurring,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

// Create sends money to another user. The sender is debited immediately and
// the transaction stays pending until the receiver confirms or declines it.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var body CreateTransactionBody
	if err := services.DecodeJSON(w, r, &body); err != nil {
		services.SendError(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&body); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	txID, err := h.ledger.CreateTransaction(r.Context(), userID, body.CreateTransactionRequest)
	if err != nil {
		services.SendError(w, err)
		return
	}

	resp := map[string]any{"id": txID}
	if body.Recurring != nil {
		ruleID, err := h.recurring.Create(r.Context(), userID, services.CreateRecurringRequest{
			TransactionID: txID,
			Interval:      body.Recurring.Interval,
			IntervalType:  body.Recurring.IntervalType,
			NextExecDate:  body.Recurring.NextExecDate,
		})
		if err != nil {
			// the transfer itself is committed, report it with the rule failure
			h.logger.Error("recurring rule not created", zap.Int64("transaction_id", txID), zap.Error(err))
			resp["recurring_error"] = services.PublicMessage(err)
		} else {
			resp["recurring_id"] = ruleID
		}
	}

	services.WriteJSON(w, http.StatusCreated, resp)
}

func (h *TransactionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, "confirmed", h.ledger.ConfirmTransaction)
}

func (h *TransactionHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, "declined", h.ledger.DeclineTransaction)
}

func (h *TransactionHandler) settle(w http.ResponseWriter, r *http.Request, outcome string, op func(context.Context, int64, int64) (bool, error)) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathID(w, r, "txId")
	if !ok {
		return
	}

	done, err := op(r.Context(), txID, userID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	if !done {
		services.SendError(w, &services.ErrInvalidState{Reason: "transaction is not pending or not addressed to you"})
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]any{"id": txID, "status": outcome})
}

// List returns the caller's transactions, newest first.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	limit, err := parseUint(r.URL.Query().Get("limit"))
	if err != nil {
		services.SendError(w, &services.ErrValidation{Field: "limit", Message: "must be a non-negative integer"})
		return
	}
	offset, err := parseUint(r.URL.Query().Get("offset"))
	if err != nil {
		services.SendError(w, &services.ErrValidation{Field: "offset", Message: "must be a non-negative integer"})
		return
	}

	page, err := h.history.Page(r.Context(), models.TransactionFilter{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, viewPage(page, userID))
}

// History returns one filtered, sorted page of the caller's transactions.
func (h *TransactionHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	f, err := parseTransactionFilter(r, h.validator)
	if err != nil {
		services.SendError(w, err)
		return
	}
	f.UserID = userID

	page, err := h.history.Page(r.Context(), f)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, viewPage(page, userID))
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathID(w, r, "txId")
	if !ok {
		return
	}

	t, err := h.history.Get(r.Context(), txID, userID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, transactionView{Transaction: *t, Display: t.DisplayLine(userID)})
}
