package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const paymentRequestTTL = 5 * time.Minute

// PaymentRequest is what a scanned QR code resolves to: who to pay and how much.
type PaymentRequest struct {
	ReceiverID       int64           `json:"receiver_id"`
	ReceiverUsername string          `json:"receiver_username"`
	Amount           decimal.Decimal `json:"amount"`
	CurrencyCode     string          `json:"currency_code"`
	Nonce            string          `json:"nonce"`
	ExpiresAt        time.Time       `json:"expires_at"`
}

type QRService struct {
	db       *sql.DB
	redis    *redis.Client
	now      func() time.Time
	newNonce func() (string, error)
}

func NewQRService(db *sql.DB, redis *redis.Client) *QRService {
	return &QRService{
		db:       db,
		redis:    redis,
		now:      time.Now,
		newNonce: generateNonce,
	}
}

// GenerateQRCode creates a single-use payment request for userID and returns
// its code with a base64 PNG rendering.
func (s *QRService) GenerateQRCode(ctx context.Context, userID int64, amount decimal.Decimal) (string, string, error) {
	if !amount.IsPositive() || !hasCents(amount) {
		return "", "", &ErrValidation{Field: "amount", Message: "must be positive with at most two decimal places"}
	}
	if s.redis == nil {
		return "", "", &ErrExternalService{Service: "payment requests", Err: errors.New("redis not configured")}
	}

	nonce, err := s.newNonce()
	if err != nil {
		return "", "", fmt.Errorf("generate nonce: %w", err)
	}

	req := PaymentRequest{
		ReceiverID: userID,
		Amount:     amount,
		Nonce:      nonce,
		ExpiresAt:  s.now().Add(paymentRequestTTL).UTC(),
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT username, currency_code FROM users WHERE id = $1`, userID,
	).Scan(&req.ReceiverUsername, &req.CurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", &ErrNotFound{Resource: "user", ID: strconv.FormatInt(userID, 10)}
	}
	if err != nil {
		return "", "", fmt.Errorf("load user: %w", err)
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", "", err
	}

	qrCode := req.Nonce
	if err := s.redis.Set(ctx, qrKey(qrCode), jsonData, paymentRequestTTL).Err(); err != nil {
		return "", "", &ErrExternalService{Service: "payment requests", Err: err}
	}

	qr, err := qrcode.New(qrCode, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return qrCode, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ProcessQRCode resolves a scanned code for payerID. A code can be used once
// and never by the user who created it.
func (s *QRService) ProcessQRCode(ctx context.Context, payerID int64, qrData string) (*PaymentRequest, error) {
	if s.redis == nil {
		return nil, &ErrExternalService{Service: "payment requests", Err: errors.New("redis not configured")}
	}

	// GETDEL hands the request to exactly one caller.
	key := qrKey(qrData)
	data, err := s.redis.GetDel(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, &ErrNotFound{Resource: "payment request", ID: qrData}
	}
	if err != nil {
		return nil, &ErrExternalService{Service: "payment requests", Err: err}
	}

	var req PaymentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode payment request: %w", err)
	}
	if req.ReceiverID == payerID {
		// put it back so the intended payer can still use it
		if ttl := req.ExpiresAt.Sub(s.now()); ttl > 0 {
			if err := s.redis.SetNX(ctx, key, data, ttl).Err(); err != nil {
				return nil, &ErrExternalService{Service: "payment requests", Err: err}
			}
		}
		return nil, &ErrInvalidState{Reason: "cannot pay your own payment request"}
	}

	return &req, nil
}

func qrKey(code string) string {
	return "qr:" + code
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
