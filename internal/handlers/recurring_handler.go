package handlers

import (
	"net/http"
	"strconv"

	"github.com/virtualwallet/backend/internal/services"
)

type RecurringHandler struct {
	rules     RecurringRules
	validator *services.ValidationHelper
}

func NewRecurringHandler(rules RecurringRules) *RecurringHandler {
	return &RecurringHandler{rules: rules, validator: services.NewValidationHelper()}
}

// Create schedules an existing transaction the caller sent to repeat.
func (h *RecurringHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req services.CreateRecurringRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	id, err := h.rules.Create(r.Context(), userID, req)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *RecurringHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	rules, err := h.rules.ListForUser(r.Context(), userID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, rules)
}

func (h *RecurringHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	ruleID, ok := pathID(w, r, "ruleId")
	if !ok {
		return
	}

	deleted, err := h.rules.Delete(r.Context(), userID, ruleID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	if !deleted {
		services.SendError(w, &services.ErrNotFound{Resource: "recurring rule", ID: strconv.FormatInt(ruleID, 10)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
