package handlers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/virtualwallet/backend/internal/services"
)

type PaymentRequests interface {
	GenerateQRCode(ctx context.Context, userID int64, amount decimal.Decimal) (string, string, error)
	ProcessQRCode(ctx context.Context, payerID int64, qrData string) (*services.PaymentRequest, error)
}

type QRHandler struct {
	service   PaymentRequests
	validator *services.ValidationHelper
}

func NewQRHandler(service PaymentRequests) *QRHandler {
	return &QRHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR creates a payment request QR code for the caller.
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}

	qrCode, qrImage, err := h.service.GenerateQRCode(r.Context(), userID, req.Amount)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"qrCode":  qrCode,
		"qrImage": qrImage,
	})
}

// ProcessQR resolves a scanned code into the transaction the caller should send.
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req struct {
		QRData string `json:"qrData" validate:"required,max=64"`
	}
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ProcessQRCode(r.Context(), userID, req.QRData)
	if err != nil {
		services.SendError(w, err)
		return
	}

	services.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    result,
	})
}
