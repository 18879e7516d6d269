package handlers

import (
	"context"
	"net/http"

	"github.com/virtualwallet/backend/internal/middleware"
	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/services"
	"go.uber.org/zap"
)

type Accounts interface {
	Register(ctx context.Context, req services.RegisterRequest) (*services.AuthResponse, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, userID int64) (*models.UserInfo, error)
}

type AuthHandler struct {
	accounts Accounts
	logger   *zap.Logger
}

func NewAuthHandler(accounts Accounts, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, logger: logger}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}

	resp, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		h.logger.Info("registration rejected", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}

	resp, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
		return
	}
	if err := h.accounts.Logout(r.Context(), token); err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	info, err := h.accounts.Me(r.Context(), userID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, info)
}
