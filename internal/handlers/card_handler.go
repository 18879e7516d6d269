package handlers

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/services"
)

type Cards interface {
	Add(ctx context.Context, userID int64, req services.AddCardRequest) (*models.BankCard, error)
	List(ctx context.Context, userID int64) ([]models.BankCardSummary, error)
	Details(ctx context.Context, userID, cardID int64) (*models.CardDetails, error)
	Update(ctx context.Context, userID, cardID int64, req services.UpdateCardRequest) error
	Deactivate(ctx context.Context, userID, cardID int64) error
}

// Funding moves money between a linked card and the wallet.
type Funding interface {
	TopUpFromCard(ctx context.Context, userID, cardID int64, amount decimal.Decimal) (*services.FundingReceipt, error)
	DepositToCard(ctx context.Context, userID, cardID int64, amount decimal.Decimal) (*services.FundingReceipt, error)
}

type CardHandler struct {
	cards   Cards
	funding Funding
}

func NewCardHandler(cards Cards, funding Funding) *CardHandler {
	return &CardHandler{cards: cards, funding: funding}
}

func (h *CardHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req services.AddCardRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}

	card, err := h.cards.Add(r.Context(), userID, req)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusCreated, models.BankCardSummary{
		ID:       card.ID,
		Type:     card.Type,
		LastFour: card.LastFour,
		Nickname: card.Nickname,
		ImageURL: card.ImageURL,
	})
}

func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	cards, err := h.cards.List(r.Context(), userID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, cards)
}

func (h *CardHandler) Details(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardId")
	if !ok {
		return
	}
	details, err := h.cards.Details(r.Context(), userID, cardID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, details)
}

func (h *CardHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardId")
	if !ok {
		return
	}
	if err := h.cards.Deactivate(r.Context(), userID, cardID); err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]any{"id": cardID, "status": "deactivated"})
}

func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardId")
	if !ok {
		return
	}
	var req services.UpdateCardRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}
	if err := h.cards.Update(r.Context(), userID, cardID, req); err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, map[string]any{"id": cardID, "status": "updated"})
}

// Withdraw moves money from the card into the wallet.
func (h *CardHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.fund(w, r, h.funding.TopUpFromCard)
}

// Deposit moves money from the wallet onto the card.
func (h *CardHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.fund(w, r, h.funding.DepositToCard)
}

func (h *CardHandler) fund(w http.ResponseWriter, r *http.Request, move func(context.Context, int64, int64, decimal.Decimal) (*services.FundingReceipt, error)) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	cardID, ok := pathID(w, r, "cardId")
	if !ok {
		return
	}
	var req services.FundingRequest
	if err := services.DecodeJSON(w, r, &req); err != nil {
		services.SendError(w, err)
		return
	}

	receipt, err := move(r.Context(), userID, cardID, req.Amount)
	if err != nil {
		services.SendError(w, err)
		return
	}
	services.WriteJSON(w, http.StatusOK, receipt)
}
