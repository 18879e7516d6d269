package services

import (
	"context"
	cryptorand "crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/virtualwallet/backend/internal/config"
	"github.com/virtualwallet/backend/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"johndoe"`
	Password string `json:"password" validate:"required,min=8" example:"password123"`
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username     string `json:"username" validate:"required,alphanum,min=2,max=20" example:"johndoe"`
	Email        string `json:"email" validate:"required,email,max=100" example:"user@example.com"`
	PhoneNumber  string `json:"phone_number" validate:"required,numeric,len=10" example:"0888123456"`
	Password     string `json:"password" validate:"required,min=8,max=64" example:"password123"`
	CurrencyCode string `json:"currency_code" validate:"required,len=3,alpha" example:"USD"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	User  models.User `json:"user"`
}

// Claims is the JWT payload issued on login.
type Claims struct {
	UserID  int64 `json:"user_id"`
	IsAdmin bool  `json:"is_admin"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Argon2    config.Argon2Config
}

type AuthService struct {
	db         *sql.DB
	redis      *redis.Client
	currencies CurrencySet
	validator  *ValidationHelper
	cfg        AuthConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, currencies CurrencySet, cfg AuthConfig, logger *zap.Logger) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &AuthService{
		db:         db,
		redis:      redisClient,
		currencies: currencies,
		validator:  NewValidationHelper(),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a wallet with a zero balance in the chosen currency and
// returns a token for it.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}
	req.CurrencyCode = strings.ToUpper(req.CurrencyCode)
	if !s.currencies.Has(req.CurrencyCode) {
		return nil, &ErrNotFound{Resource: "currency", ID: req.CurrencyCode}
	}

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PhoneNumber:  req.PhoneNumber,
		CurrencyCode: req.CurrencyCode,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, phone_number, password_hash, currency_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, balance, created_at`,
		user.Username, user.Email, user.PhoneNumber, hashed, user.CurrencyCode,
	).Scan(&user.ID, &user.Balance, &user.CreatedAt)
	if isUniqueViolation(err) {
		return nil, &ErrConflict{Message: "username, email or phone number already in use"}
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("currency", user.CurrencyCode))

	token, err := s.issueToken(user.ID, false)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

const userColumns = `SELECT id, username, email, phone_number, password_hash, is_admin,
	is_blocked, is_verified, balance, currency_code, avatar_url, created_at FROM users`

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PhoneNumber, &u.PasswordHash, &u.IsAdmin,
		&u.IsBlocked, &u.IsVerified, &u.Balance, &u.CurrencyCode, &u.AvatarURL, &u.CreatedAt)
	return u, err
}

// Login checks the credentials and issues a token. Blocked users cannot log in.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(&req); err != nil {
		return nil, err
	}

	user, err := scanUser(s.db.QueryRowContext(ctx, userColumns+` WHERE username = $1`, req.Username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrUnauthorized{Message: "invalid credentials"}
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !s.verifyPassword(req.Password, user.PasswordHash) {
		s.logger.Warn("login failed", zap.String("username", req.Username))
		return nil, &ErrUnauthorized{Message: "invalid credentials"}
	}
	if user.IsBlocked {
		return nil, &ErrAccountBlocked{UserID: user.ID}
	}

	token, err := s.issueToken(user.ID, user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// Logout blacklists the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parseToken(token)
	if err != nil {
		return err
	}
	if s.redis == nil {
		return nil
	}

	ttl := time.Second
	if claims.ExpiresAt != nil {
		if left := claims.ExpiresAt.Sub(s.now()); left > ttl {
			ttl = left
		}
	}
	if err := s.redis.Set(ctx, blacklistKey(token), "1", ttl).Err(); err != nil {
		return &ErrExternalService{Service: "session store", Err: err}
	}
	return nil
}

// VerifyToken validates the signature and expiry and rejects logged out tokens.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}
	if s.redis != nil {
		n, err := s.redis.Exists(ctx, blacklistKey(token)).Result()
		if err != nil {
			return nil, &ErrExternalService{Service: "session store", Err: err}
		}
		if n > 0 {
			return nil, &ErrUnauthorized{Message: "token revoked"}
		}
	}
	return claims, nil
}

// Me returns the caller's account with their linked card summaries.
func (s *AuthService) Me(ctx context.Context, userID int64) (*models.UserInfo, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, userColumns+` WHERE id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ErrNotFound{Resource: "user", ID: strconv.FormatInt(userID, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	cards, err := listCardSummaries(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return &models.UserInfo{User: user, Cards: cards}, nil
}

// IsAdmin reads the admin flag from the database so revoked rights apply
// before the token expires.
func (s *AuthService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var admin bool
	err := s.db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id = $1`, userID).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return admin, err
}

func blacklistKey(token string) string {
	return "blacklist:" + token
}

func (s *AuthService) issueToken(userID int64, isAdmin bool) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:  userID,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *AuthService) parseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.UserID == 0 {
		return nil, &ErrUnauthorized{Message: "invalid token"}
	}
	return claims, nil
}

func (s *AuthService) argon2Key(password string, salt []byte) []byte {
	p := s.cfg.Argon2
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLength)
}

func (s *AuthService) hashPassword(password string) (string, error) {
	salt := make([]byte, s.cfg.Argon2.SaltLength)
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}
	hash := s.argon2Key(password, salt)
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func (s *AuthService) verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(hash, s.argon2Key(password, salt)) == 1
}
