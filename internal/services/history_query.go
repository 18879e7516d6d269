package services

import (
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/virtualwallet/backend/internal/models"
)

const (
	DefaultPageSize uint64 = 30
	MaxPageSize     uint64 = 100
)

// sortColumns is the only way a caller-supplied sort key reaches SQL.
var sortColumns = map[string]string{
	"date":   "t.created_at",
	"amount": "t.amount",
	"name":   "t.name",
}

var transactionColumns = []string{
	"t.id", "t.name", "t.description", "t.sender_id", "t.receiver_id",
	"COALESCE(t.category_id, 0)", "t.amount", "t.currency_code",
	"t.original_amount", "t.original_currency_code", "t.is_accepted",
	"t.is_recurring", "t.created_at", "su.username", "ru.username",
}

var userSummaryColumns = []string{
	"id", "username", "email", "phone_number", "is_blocked", "is_verified",
	"is_admin", "created_at", "avatar_url",
}

// SQLQuery is a rendered, parameterized statement.
type SQLQuery struct {
	SQL  string
	Args []any
}

// PagedQuery pairs a count query and a page query built from the same
// predicates, so the reported totals always describe the returned page.
type PagedQuery struct {
	Count  SQLQuery
	Page   SQLQuery
	Limit  uint64
	Offset uint64
}

// TotalPages is ceil(total / limit).
func (p *PagedQuery) TotalPages(total uint64) uint64 {
	if total == 0 || p.Limit == 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

func normalizeLimit(limit uint64) uint64 {
	switch {
	case limit == 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// transactionPredicates turns a filter into WHERE clauses on transactions t.
// UserID zero means no party scoping; direction then has no effect.
func transactionPredicates(f models.TransactionFilter) []sq.Sqlizer {
	var preds []sq.Sqlizer

	if f.UserID != 0 {
		switch f.Direction {
		case models.DirectionIncoming:
			preds = append(preds, sq.Eq{"t.receiver_id": f.UserID})
		case models.DirectionOutgoing:
			preds = append(preds, sq.Eq{"t.sender_id": f.UserID})
		default:
			preds = append(preds, sq.Or{
				sq.Eq{"t.sender_id": f.UserID},
				sq.Eq{"t.receiver_id": f.UserID},
			})
		}
	}
	if f.StartDate != nil {
		preds = append(preds, sq.GtOrEq{"t.created_at": f.StartDate.UTC()})
	}
	if f.EndDate != nil {
		preds = append(preds, sq.LtOrEq{"t.created_at": f.EndDate.UTC()})
	}
	if f.CategoryID > 0 {
		preds = append(preds, sq.Eq{"t.category_id": f.CategoryID})
	}
	if status, ok := models.ParseStatus(f.Status); ok {
		preds = append(preds, sq.Eq{"t.is_accepted": int(status)})
	}
	return preds
}

// transactionOrder resolves the sort key against the allow-list. Unknown keys
// fall back to newest first.
func transactionOrder(sortBy, sortOrder string) []string {
	column, ok := sortColumns[strings.ToLower(sortBy)]
	if !ok {
		return []string{"t.created_at DESC", "t.id DESC"}
	}

	dir := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		dir = "ASC"
	}
	return []string{column + " " + dir, "t.id " + dir}
}

// BuildTransactionQueries renders the count and page queries for a history view.
func BuildTransactionQueries(f models.TransactionFilter) (*PagedQuery, error) {
	limit := normalizeLimit(f.Limit)
	preds := transactionPredicates(f)

	count := sq.Select("COUNT(*)").From("transactions t")
	page := sq.Select(transactionColumns...).
		From("transactions t").
		Join("users su ON su.id = t.sender_id").
		Join("users ru ON ru.id = t.receiver_id")
	for _, p := range preds {
		count = count.Where(p)
		page = page.Where(p)
	}
	page = page.OrderBy(transactionOrder(f.SortBy, f.SortOrder)...).
		Limit(limit).
		Offset(f.Offset)

	return render(count, page, limit, f.Offset)
}

// BuildUserQueries renders the admin user list queries.
func BuildUserQueries(f models.UserFilter) (*PagedQuery, error) {
	limit := normalizeLimit(f.Limit)

	var preds []sq.Sqlizer
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		preds = append(preds, sq.Or{
			sq.ILike{"username": pattern},
			sq.ILike{"email": pattern},
			sq.ILike{"phone_number": pattern},
		})
	}
	if f.IsVerified != nil {
		preds = append(preds, sq.Eq{"is_verified": *f.IsVerified})
	}
	if f.IsBlocked != nil {
		preds = append(preds, sq.Eq{"is_blocked": *f.IsBlocked})
	}

	count := sq.Select("COUNT(*)").From("users")
	page := sq.Select(userSummaryColumns...).From("users")
	for _, p := range preds {
		count = count.Where(p)
		page = page.Where(p)
	}
	page = page.OrderBy("id ASC").Limit(limit).Offset(f.Offset)

	return render(count, page, limit, f.Offset)
}

func render(count, page sq.SelectBuilder, limit, offset uint64) (*PagedQuery, error) {
	countSQL, countArgs, err := count.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}
	pageSQL, pageArgs, err := page.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return nil, err
	}
	return &PagedQuery{
		Count:  SQLQuery{SQL: countSQL, Args: countArgs},
		Page:   SQLQuery{SQL: pageSQL, Args: pageArgs},
		Limit:  limit,
		Offset: offset,
	}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
