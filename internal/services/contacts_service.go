package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/virtualwallet/backend/internal/models"
	"go.uber.org/zap"
)

type ContactsService struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewContactsService(db *sql.DB, logger *zap.Logger) *ContactsService {
	return &ContactsService{db: db, logger: logger}
}

// Add saves username to userID's contacts.
func (s *ContactsService) Add(ctx context.Context, userID int64, username string) (*models.Contact, error) {
	if username == "" {
		return nil, &ErrValidation{Field: "username", Message: "required"}
	}

	var c models.Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, avatar_url FROM users WHERE username = $1`,
		username).Scan(&c.ID, &c.Username, &c.Email, &c.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Resource: "user", ID: username}
	}
	if err != nil {
		return nil, fmt.Errorf("load contact: %w", err)
	}
	if c.ID == userID {
		return nil, &ErrInvalidState{Reason: "cannot add yourself as a contact"}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (user_id, contact_id) VALUES ($1, $2) ON CONFLICT (user_id, contact_id) DO NOTHING`,
		userID, c.ID)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, &ErrConflict{Message: username + " is already a contact"}
	}
	return &c, nil
}

func (s *ContactsService) Remove(ctx context.Context, userID, contactID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE user_id = $1 AND contact_id = $2`,
		userID, contactID)
	return affectedOne(res, err, "contact", contactID)
}

func (s *ContactsService) List(ctx context.Context, userID int64) ([]models.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.avatar_url
		FROM contacts c JOIN users u ON u.id = c.contact_id
		WHERE c.user_id = $1
		ORDER BY u.username`, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []models.Contact{}
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Username, &c.Email, &c.AvatarURL); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
