package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/virtualwallet/backend/internal/models"
	"go.uber.org/zap"
)

type CategoryRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=45"`
	ImageURL *string `json:"image_url,omitempty" validate:"omitempty,url,max=255"`
}

// CategoryService manages per-user transaction categories.
type CategoryService struct {
	db        *sql.DB
	validator *ValidationHelper
	logger    *zap.Logger
}

func NewCategoryService(db *sql.DB, logger *zap.Logger) *CategoryService {
	return &CategoryService{db: db, validator: NewValidationHelper(), logger: logger}
}

func (s *CategoryService) Create(ctx context.Context, userID int64, req CategoryRequest) (*models.Category, error) {
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}

	c := &models.Category{UserID: userID, Name: req.Name, ImageURL: req.ImageURL}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO transaction_categories (user_id, name, image_url) VALUES ($1, $2, $3) RETURNING id`,
		userID, req.Name, req.ImageURL).Scan(&c.ID)
	if isUniqueViolation(err) {
		return nil, &ErrConflict{Message: "category " + req.Name + " already exists"}
	}
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) List(ctx context.Context, userID int64) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, image_url FROM transaction_categories WHERE user_id = $1 ORDER BY name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.ImageURL); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *CategoryService) Get(ctx context.Context, userID, categoryID int64) (*models.Category, error) {
	var c models.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, image_url FROM transaction_categories WHERE id = $1 AND user_id = $2`,
		categoryID, userID).Scan(&c.ID, &c.UserID, &c.Name, &c.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Resource: "category", ID: strconv.FormatInt(categoryID, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	return &c, nil
}

func (s *CategoryService) Update(ctx context.Context, userID, categoryID int64, req CategoryRequest) (*models.Category, error) {
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE transaction_categories SET name = $1, image_url = $2 WHERE id = $3 AND user_id = $4`,
		req.Name, req.ImageURL, categoryID, userID)
	if isUniqueViolation(err) {
		return nil, &ErrConflict{Message: "category " + req.Name + " already exists"}
	}
	if err := affectedOne(res, err, "category", categoryID); err != nil {
		return nil, err
	}
	return &models.Category{ID: categoryID, UserID: userID, Name: req.Name, ImageURL: req.ImageURL}, nil
}

// Delete removes the category. Transactions that used it keep no category.
func (s *CategoryService) Delete(ctx context.Context, userID, categoryID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transaction_categories WHERE id = $1 AND user_id = $2`,
		categoryID, userID)
	return affectedOne(res, err, "category", categoryID)
}

// affectedOne turns a zero-row write into ErrNotFound.
func affectedOne(res sql.Result, err error, resource string, id int64) error {
	if err != nil {
		return fmt.Errorf("write %s: %w", resource, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ErrNotFound{Resource: resource, ID: strconv.FormatInt(id, 10)}
	}
	return nil
}
