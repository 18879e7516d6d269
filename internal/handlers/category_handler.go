package handlers

import (
	"context"
	"net/http"

	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/services"
)

type Categories interface {
	Create(ctx context.Context, userID int64, req services.CategoryRequest) (*models.Category, error)
	List(ctx context.Context, userID int64) ([]models.Category, error)
	Get(ctx context.Context, userID, categoryID int64) (*models.Category, error)
	Update(ctx context.Context, userID, categoryID int64, req services.CategoryRequest) (*models.Category, error)
	Delete(ctx context.Context, userID, categoryID int64) error
}

type CategoryHandler struct {
	categories Categories
}

func NewCategoryHandler(categories Categories) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req services.CategoryRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}

	c, err := h.categories.Create(r.Context(), userID, req)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusCreated, c)
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.categories.List(r.Context(), userID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, list)
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	c, err := h.categories.Get(r.Context(), userID, id)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, c)
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	var req services.CategoryRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}

	c, err := h.categories.Update(r.Context(), userID, id, req)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, c)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "categoryId")
	if !ok {
		return
	}
	if err := h.categories.Delete(r.Context(), userID, id); err != nil {
		services.SendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
