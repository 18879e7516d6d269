package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/virtualwallet/backend/internal/hsm"
	"github.com/virtualwallet/backend/internal/models"
	"go.uber.org/zap"
)

// AddCardRequest links an external bank card to the caller's wallet.
type AddCardRequest struct {
	Card     models.CardDetails `json:"card"`
	Type     string             `json:"type" validate:"required,oneof=DEBIT CREDIT"`
	Nickname *string            `json:"nickname,omitempty" validate:"omitempty,max=32"`
	ImageURL *string            `json:"image_url,omitempty" validate:"omitempty,url,max=255"`
}

// CardService stores linked cards. Card details only leave the vault masked.
type CardService struct {
	db        *sql.DB
	vault     hsm.CardVault
	audit     *hsm.AuditLogger
	validator *ValidationHelper
	logger    *zap.Logger
	now       func() time.Time
}

func NewCardService(db *sql.DB, vault hsm.CardVault, audit *hsm.AuditLogger, logger *zap.Logger) *CardService {
	return &CardService{
		db:        db,
		vault:     vault,
		audit:     audit,
		validator: NewValidationHelper(),
		logger:    logger,
		now:       time.Now,
	}
}

// Add validates and encrypts the card and stores it.
func (s *CardService) Add(ctx context.Context, userID int64, req AddCardRequest) (*models.BankCard, error) {
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}
	if err := checkExpiry(req.Card.ExpirationDate, s.now()); err != nil {
		return nil, err
	}

	payload, err := s.vault.EncryptCardData(&req.Card)
	if err != nil {
		return nil, fmt.Errorf("encrypt card: %w", err)
	}

	card := &models.BankCard{
		UserID:           userID,
		EncryptedPayload: payload,
		LastFour:         req.Card.Number[len(req.Card.Number)-4:],
		Type:             req.Type,
		Nickname:         req.Nickname,
		ImageURL:         req.ImageURL,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO bank_cards (user_id, encrypted_payload, last_four, type, nickname, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		card.UserID, card.EncryptedPayload, card.LastFour, card.Type, card.Nickname, card.ImageURL,
	).Scan(&card.ID, &card.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert card: %w", err)
	}

	s.audit.LogOperation("CARD_ADDED", userID, "ADD_CARD", "card ending "+card.LastFour)
	return card, nil
}

// List returns the caller's card summaries.
func (s *CardService) List(ctx context.Context, userID int64) ([]models.BankCardSummary, error) {
	return listCardSummaries(ctx, s.db, userID)
}

// Details decrypts one card and returns it with the number masked and the
// check number removed.
func (s *CardService) Details(ctx context.Context, userID, cardID int64) (*models.CardDetails, error) {
	details, _, err := s.open(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	details.Number = maskCardNumber(details.Number)
	details.CheckNumber = ""
	return details, nil
}

// usable returns the plaintext details of an active card for a bank call.
func (s *CardService) usable(ctx context.Context, userID, cardID int64) (*models.CardDetails, error) {
	details, deactivated, err := s.open(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if deactivated {
		return nil, &ErrInvalidState{Reason: "card is deactivated"}
	}
	return details, nil
}

func (s *CardService) open(ctx context.Context, userID, cardID int64) (*models.CardDetails, bool, error) {
	var (
		payload     string
		deactivated bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT encrypted_payload, is_deactivated FROM bank_cards WHERE id = $1 AND user_id = $2`,
		cardID, userID).Scan(&payload, &deactivated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, &ErrNotFound{Resource: "card", ID: strconv.FormatInt(cardID, 10)}
	}
	if err != nil {
		return nil, false, fmt.Errorf("load card: %w", err)
	}

	details, err := s.vault.DecryptCardData(payload)
	if err != nil {
		s.audit.LogError("CARD_DECRYPT_FAILED", 0, userID, err)
		return nil, false, fmt.Errorf("decrypt card %d: %w", cardID, err)
	}
	return details, deactivated, nil
}

// UpdateCardRequest changes how a card is shown. Nil fields are left as they are.
type UpdateCardRequest struct {
	Nickname *string `json:"nickname,omitempty" validate:"omitempty,max=32"`
	ImageURL *string `json:"image_url,omitempty" validate:"omitempty,url,max=255"`
}

// Update sets the nickname and image of a card owned by userID.
func (s *CardService) Update(ctx context.Context, userID, cardID int64, req UpdateCardRequest) error {
	if err := s.validator.Validate(&req); err != nil {
		return err
	}
	if req.Nickname == nil && req.ImageURL == nil {
		return &ErrValidation{Field: "nickname", Message: "nothing to update"}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE bank_cards SET nickname = COALESCE($1, nickname), image_url = COALESCE($2, image_url)
		WHERE id = $3 AND user_id = $4`,
		req.Nickname, req.ImageURL, cardID, userID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return &ErrNotFound{Resource: "card", ID: strconv.FormatInt(cardID, 10)}
	}
	return nil
}

// Deactivate disables a card owned by userID.
func (s *CardService) Deactivate(ctx context.Context, userID, cardID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bank_cards SET is_deactivated = TRUE WHERE id = $1 AND user_id = $2`,
		cardID, userID)
	if err != nil {
		return fmt.Errorf("deactivate card: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return &ErrNotFound{Resource: "card", ID: strconv.FormatInt(cardID, 10)}
	}

	s.audit.LogOperation("CARD_DEACTIVATED", userID, "DEACTIVATE_CARD", "card "+strconv.FormatInt(cardID, 10))
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listCardSummaries(ctx context.Context, q queryer, userID int64) ([]models.BankCardSummary, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, type, last_four, is_deactivated, nickname, image_url
		FROM bank_cards WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	cards := []models.BankCardSummary{}
	for rows.Next() {
		var c models.BankCardSummary
		if err := rows.Scan(&c.ID, &c.Type, &c.LastFour, &c.IsDeactivated, &c.Nickname, &c.ImageURL); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// checkExpiry accepts MM/YY cards that have not expired by the end of that month.
func checkExpiry(exp string, now time.Time) error {
	t, err := time.Parse("01/06", exp)
	if err != nil {
		return &ErrValidation{Field: "expiration_date", Message: "must be MM/YY"}
	}
	if !now.Before(t.AddDate(0, 1, 0)) {
		return &ErrValidation{Field: "expiration_date", Message: "card has expired"}
	}
	return nil
}

func maskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}
