package currency

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"
)

// Currency is one supported ISO 4217 code.
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Table is the immutable set of supported currencies. It is built once at
// startup and shared by reference.
type Table struct {
	byCode map[string]string
	list   []Currency
}

// NewTable builds a table from (code, name) pairs. Codes are upper-cased and
// duplicates keep the first name seen.
func NewTable(pairs [][2]string) *Table {
	t := &Table{byCode: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		code := strings.ToUpper(strings.TrimSpace(p[0]))
		if len(code) != 3 {
			continue
		}
		if _, ok := t.byCode[code]; ok {
			continue
		}
		t.byCode[code] = p[1]
		t.list = append(t.list, Currency{Code: code, Name: p[1]})
	}
	sort.Slice(t.list, func(i, j int) bool { return t.list[i].Code < t.list[j].Code })
	return t
}

// Has reports whether code is supported.
func (t *Table) Has(code string) bool {
	_, ok := t.byCode[code]
	return ok
}

func (t *Table) Name(code string) (string, bool) {
	name, ok := t.byCode[code]
	return name, ok
}

// List returns the currencies sorted by code. The slice must not be modified.
func (t *Table) List() []Currency {
	return t.list
}

func (t *Table) Len() int {
	return len(t.list)
}

// CodeSource fetches the supported codes from upstream.
type CodeSource interface {
	Codes(ctx context.Context) ([][2]string, error)
}

// Load reads the table from cacheFile, or fetches it from src and writes the
// cache when the file is missing or empty.
func Load(ctx context.Context, cacheFile string, src CodeSource, logger *zap.Logger) (*Table, error) {
	if data, err := os.ReadFile(cacheFile); err == nil && len(data) > 0 {
		var pairs [][2]string
		if err := json.Unmarshal(data, &pairs); err != nil {
			return nil, fmt.Errorf("parse currency cache %s: %w", cacheFile, err)
		}
		logger.Info("loaded currency codes from cache", zap.String("file", cacheFile), zap.Int("count", len(pairs)))
		return NewTable(pairs), nil
	}

	pairs, err := src.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch currency codes: %w", err)
	}

	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(cacheFile, data, 0o644); err != nil {
		logger.Warn("could not write currency cache", zap.String("file", cacheFile), zap.Error(err))
	}

	logger.Info("fetched currency codes from API", zap.Int("count", len(pairs)))
	return NewTable(pairs), nil
}

// Seed inserts every currency into the currencies table, skipping existing codes.
func (t *Table) Seed(ctx context.Context, db *sql.DB) (int64, error) {
	if len(t.list) == 0 {
		return 0, nil
	}

	q := sq.Insert("currencies").Columns("code", "name")
	for _, c := range t.list {
		q = q.Values(c.Code, c.Name)
	}
	query, args, err := q.Suffix("ON CONFLICT (code) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("seed currencies: %w", err)
	}
	return res.RowsAffected()
}
