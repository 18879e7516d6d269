package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/services"
)

type Admin interface {
	ListUsers(ctx context.Context, f models.UserFilter) (*models.UserPage, error)
	ApproveUser(ctx context.Context, adminID, userID int64) error
	SetBlocked(ctx context.Context, adminID, userID int64, blocked bool) error
	Transactions(ctx context.Context, f models.TransactionFilter) (*models.TransactionPage, error)
	DenyTransaction(ctx context.Context, adminID, txID int64) (bool, error)
}

type AdminHandler struct {
	admin     Admin
	validator *services.ValidationHelper
}

func NewAdminHandler(admin Admin) *AdminHandler {
	return &AdminHandler{admin: admin, validator: services.NewValidationHelper()}
}

func parseBool(v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.UserFilter{Search: q.Get("search")}

	var err error
	if f.IsVerified, err = parseBool(q.Get("is_verified")); err != nil {
		services.SendError(w, &services.ErrValidation{Field: "is_verified", Message: "must be true or false"})
		return
	}
	if f.IsBlocked, err = parseBool(q.Get("is_blocked")); err != nil {
		services.SendError(w, &services.ErrValidation{Field: "is_blocked", Message: "must be true or false"})
		return
	}
	if f.Limit, err = parseUint(q.Get("limit")); err != nil {
		services.SendError(w, &services.ErrValidation{Field: "limit", Message: "must be a non-negative integer"})
		return
	}
	if f.Offset, err = parseUint(q.Get("offset")); err != nil {
		services.SendError(w, &services.ErrValidation{Field: "offset", Message: "must be a non-negative integer"})
		return
	}
	if err := h.validator.Validate(&f); err != nil {
		services.SendError(w, err)
		return
	}

	page, err := h.admin.ListUsers(r.Context(), f)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, "approved", func(ctx context.Context, adminID, userID int64) error {
		return h.admin.ApproveUser(ctx, adminID, userID)
	})
}

func (h *AdminHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, "blocked", func(ctx context.Context, adminID, userID int64) error {
		return h.admin.SetBlocked(ctx, adminID, userID, true)
	})
}

func (h *AdminHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	h.userAction(w, r, "unblocked", func(ctx context.Context, adminID, userID int64) error {
		return h.admin.SetBlocked(ctx, adminID, userID, false)
	})
}

func (h *AdminHandler) userAction(w http.ResponseWriter, r *http.Request, outcome string, action func(context.Context, int64, int64) error) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	if err := action(r.Context(), adminID, userID); err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]any{"id": userID, "status": outcome})
}

// Transactions lists all users' transactions, or one user's with ?user_id=.
func (h *AdminHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseTransactionFilter(r, h.validator)
	if err != nil {
		services.SendError(w, err)
		return
	}
	if v := r.URL.Query().Get("user_id"); v != "" {
		if f.UserID, err = strconv.ParseInt(v, 10, 64); err != nil || f.UserID <= 0 {
			services.SendError(w, &services.ErrValidation{Field: "user_id", Message: "must be a positive integer"})
			return
		}
	}

	page, err := h.admin.Transactions(r.Context(), f)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, viewPage(page, f.UserID))
}

// DenyTransaction declines a pending transaction on the receiver's behalf.
func (h *AdminHandler) DenyTransaction(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	txID, ok := pathID(w, r, "txId")
	if !ok {
		return
	}

	denied, err := h.admin.DenyTransaction(r.Context(), adminID, txID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	if !denied {
		services.SendError(w, &services.ErrInvalidState{Reason: "transaction is missing or no longer pending"})
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]any{"id": txID, "status": "declined"})
}
