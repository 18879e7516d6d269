package handlers

import (
	"context"
	"net/http"

	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/services"
)

type Contacts interface {
	Add(ctx context.Context, userID int64, username string) (*models.Contact, error)
	Remove(ctx context.Context, userID, contactID int64) error
	List(ctx context.Context, userID int64) ([]models.Contact, error)
}

type ContactsHandler struct {
	contacts  Contacts
	validator *services.ValidationHelper
}

func NewContactsHandler(contacts Contacts) *ContactsHandler {
	return &ContactsHandler{contacts: contacts, validator: services.NewValidationHelper()}
}

func (h *ContactsHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username" validate:"required,max=20"`
	}
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	c, err := h.contacts.Add(r.Context(), userID, req.Username)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusCreated, c)
}

func (h *ContactsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.contacts.List(r.Context(), userID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, list)
}

func (h *ContactsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	contactID, ok := pathID(w, r, "contactId")
	if !ok {
		return
	}
	if err := h.contacts.Remove(r.Context(), userID, contactID); err != nil {
		services.SendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
