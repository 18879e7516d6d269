package handlers

import (
	"net/http"

	"github.com/virtualwallet/backend/internal/currency"
	"github.com/virtualwallet/backend/internal/services"
)

// CurrencyLister is the startup-loaded currency table.
type CurrencyLister interface {
	List() []currency.Currency
}

type CurrencyHandler struct {
	table CurrencyLister
}

func NewCurrencyHandler(table CurrencyLister) *CurrencyHandler {
	return &CurrencyHandler{table: table}
}

func (h *CurrencyHandler) List(w http.ResponseWriter, r *http.Request) {
	services.WriteJSON(w, http.StatusOK, h.table.List())
}
