package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	mW "github.com/virtualwallet/backend/internal/middleware"
	"github.com/virtualwallet/backend/internal/observability"
	"github.com/virtualwallet/backend/internal/services"
	"go.uber.org/zap"
)

// RouterDeps is everything the HTTP surface needs.
type RouterDeps struct {
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Verifier  mW.TokenVerifier
	Admins    mW.AdminChecker
	StaticDir string

	Auth         *AuthHandler
	Transactions *TransactionHandler
	Recurring    *RecurringHandler
	Categories   *CategoryHandler
	Contacts     *ContactsHandler
	Cards        *CardHandler
	QR           *QRHandler
	Currencies   *CurrencyHandler
	Admin        *AdminHandler
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger, d.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		services.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}
	if d.StaticDir != "" {
		r.Handle("/static/avatars/*", http.StripPrefix("/static/avatars/", mW.StaticFileServer(d.StaticDir)))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", d.Auth.Register)
		r.Post("/auth/login", d.Auth.Login)
		r.Get("/currencies", d.Currencies.List)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(d.Verifier))

			r.Post("/auth/logout", d.Auth.Logout)
			r.Get("/users/me", d.Auth.Me)

			r.Get("/transactions", d.Transactions.List)
			r.Get("/transactions/history", d.Transactions.History)
			r.Post("/transactions", d.Transactions.Create)
			r.Get("/transactions/{txId}", d.Transactions.Get)
			r.Post("/transactions/{txId}/confirm", d.Transactions.Confirm)
			r.Post("/transactions/{txId}/decline", d.Transactions.Decline)

			r.Get("/recurring", d.Recurring.List)
			r.Post("/recurring", d.Recurring.Create)
			r.Delete("/recurring/{ruleId}", d.Recurring.Delete)

			r.Get("/categories", d.Categories.List)
			r.Post("/categories", d.Categories.Create)
			r.Get("/categories/{categoryId}", d.Categories.Get)
			r.Put("/categories/{categoryId}", d.Categories.Update)
			r.Delete("/categories/{categoryId}", d.Categories.Delete)

			r.Get("/contacts", d.Contacts.List)
			r.Post("/contacts", d.Contacts.Add)
			r.Delete("/contacts/{contactId}", d.Contacts.Remove)

			r.Get("/cards", d.Cards.List)
			r.Post("/cards", d.Cards.Add)
			r.Get("/cards/{cardId}", d.Cards.Details)
			r.Put("/cards/{cardId}", d.Cards.Update)
			r.Post("/cards/{cardId}/withdraw", d.Cards.Withdraw)
			r.Post("/cards/{cardId}/deposit", d.Cards.Deposit)
			r.Put("/cards/{cardId}/deactivate", d.Cards.Deactivate)

			r.Post("/qr/generate", d.QR.GenerateQR)
			r.Post("/qr/process", d.QR.ProcessQR)

			r.Route("/admin", func(r chi.Router) {
				r.Use(mW.RequireAdmin(d.Admins))

				r.Get("/users", d.Admin.ListUsers)
				r.Post("/users/{userId}/approve", d.Admin.ApproveUser)
				r.Post("/users/{userId}/block", d.Admin.BlockUser)
				r.Post("/users/{userId}/unblock", d.Admin.UnblockUser)
				r.Get("/transactions", d.Admin.Transactions)
				r.Post("/transactions/{txId}/deny", d.Admin.DenyTransaction)
			})
		})
	})

	return r
}
