// Package bankcards talks to the external bank-card API that holds the real
// money behind linked cards.
package bankcards

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/resilience"
)

var (
	ErrUnavailable       = errors.New("bank card API unavailable")
	ErrCardNotFound      = errors.New("card not known to the bank")
	ErrInsufficientFunds = errors.New("card has insufficient funds")
	ErrRejected          = errors.New("bank rejected the request")
)

// CardLookup is the bank's view of a card.
type CardLookup struct {
	Hash         string          `json:"card_lookup_hash"`
	Balance      decimal.Decimal `json:"balance"`
	CurrencyCode string          `json:"currency_code"`
}

// Transfer is the bank's receipt for a withdraw or deposit.
type Transfer struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	TransferType string          `json:"transfer_type"`
}

type transferRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	retry   resilience.Config
}

func NewClient(cfg ClientConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		cb:      resilience.NewCircuitBreaker("bank-cards-api"),
		retry:   resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.Backoff},
	}
}

// Lookup checks that the bank knows card and returns its lookup hash.
func (c *Client) Lookup(ctx context.Context, card models.CardDetails) (*CardLookup, error) {
	var out CardLookup
	if err := c.call(ctx, http.MethodGet, "/bankcards", card, &out, true); err != nil {
		return nil, err
	}
	if out.Hash == "" {
		return nil, fmt.Errorf("%w: empty lookup hash", ErrUnavailable)
	}
	return &out, nil
}

// Withdraw takes amount off the card identified by lookupHash.
func (c *Client) Withdraw(ctx context.Context, lookupHash string, amount decimal.Decimal, currencyCode string) (*Transfer, error) {
	return c.transfer(ctx, "withdraw", lookupHash, amount, currencyCode)
}

// Deposit puts amount onto the card identified by lookupHash.
func (c *Client) Deposit(ctx context.Context, lookupHash string, amount decimal.Decimal, currencyCode string) (*Transfer, error) {
	return c.transfer(ctx, "deposit", lookupHash, amount, currencyCode)
}

func (c *Client) transfer(ctx context.Context, kind, lookupHash string, amount decimal.Decimal, currencyCode string) (*Transfer, error) {
	var out Transfer
	path := "/bankcards/" + kind + "/" + url.PathEscape(lookupHash)
	// withdraw and deposit are sent once
	err := c.call(ctx, http.MethodPut, path, transferRequest{Amount: amount, CurrencyCode: currencyCode}, &out, false)
	if err != nil {
		return nil, err
	}
	if !out.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive %s amount", ErrUnavailable, kind)
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any, retry bool) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	cfg := c.retry
	if !retry {
		cfg.MaxRetries = 0
	}

	res, err := c.cb.Execute(func() (any, error) {
		err := resilience.RetryWithBackoff(ctx, cfg, func() error {
			return c.do(ctx, method, c.baseURL+path, body, out)
		})
		// card-level answers do not count as breaker failures
		if errors.Is(err, ErrCardNotFound) || errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrRejected) {
			return err, nil
		}
		return nil, err
	})
	if cardErr, ok := res.(error); ok {
		return cardErr
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	if err != nil {
		if errors.Is(err, ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("bank card API returned %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return resilience.Permanent(ErrCardNotFound)
	case resp.StatusCode == http.StatusPaymentRequired:
		return resilience.Permanent(ErrInsufficientFunds)
	case resp.StatusCode >= 400:
		var e errorResponse
		_ = json.Unmarshal(raw, &e)
		return resilience.Permanent(fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, e.Detail))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return resilience.Permanent(fmt.Errorf("%w: decode: %v", ErrUnavailable, err))
	}
	return nil
}
