package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/virtualwallet/backend/internal/config"
	"go.uber.org/zap"
)

var testAuthConfig = AuthConfig{
	JWTSecret: "test-secret",
	TokenTTL:  24 * time.Hour,
	Argon2:    config.Argon2Config{Time: 1, Memory: 1024, Threads: 1, KeyLength: 32, SaltLength: 16},
}

var authUserCols = []string{
	"id", "username", "email", "phone_number", "password_hash", "is_admin",
	"is_blocked", "is_verified", "balance", "currency_code", "avatar_url", "created_at",
}

func newTestAuth(t *testing.T, rdb *redis.Client) (*AuthService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := NewAuthService(db, rdb, fakeCurrencies{"USD": true, "EUR": true}, testAuthConfig, zap.NewNop())
	now := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return now }
	return svc, mock
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()
	req := RegisterRequest{
		Username:     "alice",
		Email:        "Alice@Example.com",
		PhoneNumber:  "0888123456",
		Password:     "password123",
		CurrencyCode: "usd",
	}

	t.Run("successful registration", func(t *testing.T) {
		svc, mock := newTestAuth(t, nil)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("alice", "alice@example.com", "0888123456", sqlmock.AnyArg(), "USD").
			WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "created_at"}).AddRow(7, "0.00", time.Now()))

		resp, err := svc.Register(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, int64(7), resp.User.ID)
		assert.Equal(t, "USD", resp.User.CurrencyCode)
		assert.True(t, resp.User.Balance.IsZero())

		claims, err := svc.VerifyToken(ctx, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, int64(7), claims.UserID)
		assert.False(t, claims.IsAdmin)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unsupported currency", func(t *testing.T) {
		svc, mock := newTestAuth(t, nil)
		bad := req
		bad.CurrencyCode = "XYZ"

		_, err := svc.Register(ctx, bad)
		var notFound *ErrNotFound
		assert.ErrorAs(t, err, &notFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc, mock := newTestAuth(t, nil)
		mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

		_, err := svc.Register(ctx, req)
		var conflict *ErrConflict
		assert.ErrorAs(t, err, &conflict)
	})

	t.Run("invalid email", func(t *testing.T) {
		svc, _ := newTestAuth(t, nil)
		bad := req
		bad.Email = "not-an-email"

		_, err := svc.Register(ctx, bad)
		var validation *ErrValidation
		require.ErrorAs(t, err, &validation)
		assert.Equal(t, "Email", validation.Field)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	userRow := func(svc *AuthService, blocked bool) *sqlmock.Rows {
		hashed, err := svc.hashPassword("password123")
		require.NoError(t, err)
		return sqlmock.NewRows(authUserCols).
			AddRow(3, "bob", "bob@example.com", "0888000000", hashed, true, blocked, true, "50.00", "EUR", nil, time.Now())
	}

	t.Run("successful login", func(t *testing.T) {
		svc, mock := newTestAuth(t, nil)
		mock.ExpectQuery(`FROM users WHERE username = \$1`).WithArgs("bob").WillReturnRows(userRow(svc, false))

		resp, err := svc.Login(ctx, LoginRequest{Username: "bob", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, "bob", resp.User.Username)
		assert.Equal(t, "50", resp.User.Balance.String())

		claims, err := svc.VerifyToken(ctx, resp.Token)
		require.NoError(t, err)
		assert.True(t, claims.IsAdmin)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, mock := newTestAuth(t, nil)
		mock.ExpectQuery(`FROM users WHERE username`).WillReturnRows(userRow(svc, false))

		_, err := svc.Login(ctx, LoginRequest{Username: "bob", Password: "wrongpassword"})
		var unauthorized *ErrUnauthorized
		assert.ErrorAs(t, err, &unauthorized)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, mock := newTestAuth(t, nil)
		mock.ExpectQuery(`FROM users WHERE username`).WillReturnRows(sqlmock.NewRows(authUserCols))

		_, err := svc.Login(ctx, LoginRequest{Username: "nobody", Password: "password123"})
		var unauthorized *ErrUnauthorized
		assert.ErrorAs(t, err, &unauthorized)
	})

	t.Run("blocked user", func(t *testing.T) {
		svc, mock := newTestAuth(t, nil)
		mock.ExpectQuery(`FROM users WHERE username`).WillReturnRows(userRow(svc, true))

		_, err := svc.Login(ctx, LoginRequest{Username: "bob", Password: "password123"})
		var blocked *ErrAccountBlocked
		assert.ErrorAs(t, err, &blocked)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	rdb, rmock := redismock.NewClientMock()
	svc, _ := newTestAuth(t, rdb)

	token, err := svc.issueToken(5, false)
	require.NoError(t, err)

	rmock.ExpectSet("blacklist:"+token, "1", 24*time.Hour).SetVal("OK")
	require.NoError(t, svc.Logout(ctx, token))

	rmock.ExpectExists("blacklist:" + token).SetVal(1)
	_, err = svc.VerifyToken(ctx, token)
	var unauthorized *ErrUnauthorized
	assert.ErrorAs(t, err, &unauthorized)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestAuthService_VerifyToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuth(t, nil)

	t.Run("foreign signature", func(t *testing.T) {
		other := NewAuthService(nil, nil, nil, AuthConfig{JWTSecret: "other"}, zap.NewNop())
		token, err := other.issueToken(1, true)
		require.NoError(t, err)

		_, err = svc.VerifyToken(ctx, token)
		var unauthorized *ErrUnauthorized
		assert.ErrorAs(t, err, &unauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := svc.issueToken(1, false)
		require.NoError(t, err)

		later := svc.now().Add(25 * time.Hour)
		svc.now = func() time.Time { return later }
		_, err = svc.VerifyToken(ctx, token)
		var unauthorized *ErrUnauthorized
		assert.ErrorAs(t, err, &unauthorized)
	})
}

func TestAuthService_Me(t *testing.T) {
	svc, mock := newTestAuth(t, nil)
	mock.ExpectQuery(`FROM users WHERE id = \$1`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows(authUserCols).
			AddRow(3, "bob", "bob@example.com", "0888000000", "x$y", false, false, true, "12.30", "EUR", nil, time.Now()))
	mock.ExpectQuery(`FROM bank_cards WHERE user_id = \$1`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type", "last_four", "is_deactivated", "nickname", "image_url"}).
			AddRow(1, "DEBIT", "4242", false, "main", nil))

	info, err := svc.Me(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "bob", info.User.Username)
	require.Len(t, info.Cards, 1)
	assert.Equal(t, "4242", info.Cards[0].LastFour)
	assert.Equal(t, "main", *info.Cards[0].Nickname)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPasswordHashing(t *testing.T) {
	svc, _ := newTestAuth(t, nil)

	hashed, err := svc.hashPassword("password123")
	require.NoError(t, err)
	assert.True(t, svc.verifyPassword("password123", hashed))
	assert.False(t, svc.verifyPassword("password124", hashed))
	assert.False(t, svc.verifyPassword("password123", "garbage"))
}
