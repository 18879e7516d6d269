package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/virtualwallet/backend/internal/middleware"
	"github.com/virtualwallet/backend/internal/models"
	"github.com/virtualwallet/backend/internal/services"
)

// currentUser returns the authenticated user id or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return 0, false
	}
	return userID, true
}

// pathID parses a positive integer URL parameter or writes a 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		services.SendError(w, &services.ErrValidation{Field: name, Message: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func parseDate(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseUint(v string) (uint64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseUint(v, 10, 64)
}

// parseTransactionFilter reads the history filters from the query string.
// A bare date as end_date covers that whole day.
func parseTransactionFilter(r *http.Request, validator *services.ValidationHelper) (models.TransactionFilter, error) {
	q := r.URL.Query()
	var (
		f   models.TransactionFilter
		err error
	)

	if f.StartDate, err = parseDate(q.Get("start_date"), false); err != nil {
		return f, &services.ErrValidation{Field: "start_date", Message: "must be YYYY-MM-DD or RFC 3339"}
	}
	if f.EndDate, err = parseDate(q.Get("end_date"), true); err != nil {
		return f, &services.ErrValidation{Field: "end_date", Message: "must be YYYY-MM-DD or RFC 3339"}
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, &services.ErrValidation{Field: "end_date", Message: "must not be before start_date"}
	}
	if v := q.Get("category_id"); v != "" {
		if f.CategoryID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return f, &services.ErrValidation{Field: "category_id", Message: "must be an integer"}
		}
	}
	if f.Limit, err = parseUint(q.Get("limit")); err != nil {
		return f, &services.ErrValidation{Field: "limit", Message: "must be a non-negative integer"}
	}
	if f.Offset, err = parseUint(q.Get("offset")); err != nil {
		return f, &services.ErrValidation{Field: "offset", Message: "must be a non-negative integer"}
	}

	f.Direction = q.Get("direction")
	f.Status = q.Get("status")
	f.SortBy = q.Get("sort_by")
	f.SortOrder = q.Get("sort_order")

	return f, validator.Validate(&f)
}
