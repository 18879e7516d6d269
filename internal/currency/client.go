// Package currency holds the supported currency table and the exchange
// rate lookup used by the ledger.
package currency

import (
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
	"github.com/virtualwallet/backend/internal/resilience"
)

// ErrUnavailable is returned when the rate service cannot answer.
var ErrUnavailable = errors.New("exchange rate service unavailable")

// ErrUnsupportedPair is returned when the service does not know one of the codes.
var ErrUnsupportedPair = errors.New("unsupported currency pair")

// ClientConfig configures the exchange rate API client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// Client talks to an exchangerate-api v6 compatible service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	retry   resilience.Config
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		cb:      resilience.NewCircuitBreaker("exchange-rate-api"),
		retry: resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.Backoff,
		},
	}
}

type pairResponse struct {
	Result         string          `json:"result"`
	ErrorType      string          `json:"error-type"`
	ConversionRate decimal.Decimal `json:"conversion_rate"`
}

type codesResponse struct {
	Result         string      `json:"result"`
	ErrorType      string      `json:"error-type"`
	SupportedCodes [][2]string `json:"supported_codes"`
}

// Rate returns how many units of to one unit of from buys.
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	var resp pairResponse
	path := fmt.Sprintf("/pair/%s/%s", url.PathEscape(from), url.PathEscape(to))
	if err := c.get(ctx, path, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.Result != "success" {
		if resp.ErrorType == "unsupported-code" {
			return decimal.Zero, fmt.Errorf("%w: %s/%s", ErrUnsupportedPair, from, to)
		}
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnavailable, resp.ErrorType)
	}
	if !resp.ConversionRate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate for %s/%s", ErrUnavailable, from, to)
	}
	return resp.ConversionRate, nil
}

// Codes returns the supported (code, name) pairs.
func (c *Client) Codes(ctx context.Context) ([][2]string, error) {
	var resp codesResponse
	if err := c.get(ctx, "/codes", &resp); err != nil {
		return nil, err
	}
	if resp.Result != "success" {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, resp.ErrorType)
	}
	return resp.SupportedCodes, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	endpoint := c.baseURL + "/" + url.PathEscape(c.apiKey) + path

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.retry, func() error {
			return c.doGet(ctx, endpoint, out)
		})
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open", ErrUnavailable)
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUnsupportedPair) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("rate service returned %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound:
		// the API reports unknown codes as 404 with an error-type body
		return resilience.Permanent(fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resilience.Permanent(fmt.Errorf("%w: decode: %v", ErrUnavailable, err))
	}
	return nil
}
