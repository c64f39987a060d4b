package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"clarity-agent/internal/domain"
)

// sqlAPI is the subset of *sql.DB used by PostgresClient.
type sqlAPI interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// OpenPostgres opens a pooled connection sized for a single-request runtime.
func OpenPostgres(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("store: database URL must not be empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// PostgresClient queries the ingredient tables over a direct connection.
type PostgresClient struct {
	db                sqlAPI
	ingredientsTable  string
	interactionsTable string
}

// NewPostgresClient creates a PostgresClient. Empty table names fall back to
// the defaults.
func NewPostgresClient(db sqlAPI, ingredientsTable, interactionsTable string) (*PostgresClient, error) {
	if db == nil {
		return nil, errors.New("store: db must not be nil")
	}
	if strings.TrimSpace(ingredientsTable) == "" {
		ingredientsTable = DefaultIngredientsTable
	}
	if strings.TrimSpace(interactionsTable) == "" {
		interactionsTable = DefaultInteractionsTable
	}
	return &PostgresClient{
		db:                db,
		ingredientsTable:  strings.TrimSpace(ingredientsTable),
		interactionsTable: strings.TrimSpace(interactionsTable),
	}, nil
}

// SearchIngredients mirrors RESTClient.SearchIngredients with ILIKE queries.
// Group root is only searched when name has no matches at all, so paging
// past the last name match returns an empty page.
func (c *PostgresClient) SearchIngredients(ctx context.Context, q domain.SearchQuery) (domain.SearchPage, error) {
	pattern := "%" + likeEscaper.Replace(q.Term) + "%"
	var page domain.SearchPage
	for _, column := range searchColumns {
		rows, err := c.queryRows(ctx, column, pattern, q)
		if err != nil {
			return domain.SearchPage{}, fmt.Errorf("store: SearchIngredients: %w", err)
		}
		page = domain.SearchPage{Rows: rows, Page: pageOf(q), PageSize: q.Limit, Total: 0}
		if len(rows) == 0 && q.Offset <= 0 {
			continue
		}
		total, err := c.count(ctx, column, pattern)
		if err != nil {
			return domain.SearchPage{}, fmt.Errorf("store: SearchIngredients count: %w", err)
		}
		page.Total = total
		if total > 0 {
			return page, nil
		}
	}
	return page, nil
}

func (c *PostgresClient) queryRows(ctx context.Context, column, pattern string, q domain.SearchQuery) ([]domain.IngredientRecord, error) {
	query := fmt.Sprintf(
		`SELECT to_jsonb(t)::text FROM %s t WHERE t.%s ILIKE $1 LIMIT $2 OFFSET $3`,
		pq.QuoteIdentifier(c.ingredientsTable), pq.QuoteIdentifier(column),
	)
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := c.db.QueryContext(ctx, query, pattern, limit, max(q.Offset, 0))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	var raw []string
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		raw = append(raw, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", column, err)
	}
	return decodeIngredients([]byte("[" + strings.Join(raw, ",") + "]"))
}

func (c *PostgresClient) count(ctx context.Context, column, pattern string) (int, error) {
	query := fmt.Sprintf(
		`SELECT count(*) FROM %s t WHERE t.%s ILIKE $1`,
		pq.QuoteIdentifier(c.ingredientsTable), pq.QuoteIdentifier(column),
	)
	var total int
	if err := c.db.QueryRowContext(ctx, query, pattern).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// LogInteraction inserts one row into the interactions table.
func (c *PostgresClient) LogInteraction(ctx context.Context, in domain.Interaction) error {
	row := newInteractionRow(in)
	history, err := json.Marshal(row.History)
	if err != nil {
		return fmt.Errorf("store: LogInteraction marshal history: %w", err)
	}
	modelResponse, err := json.Marshal(row.ModelResponse)
	if err != nil {
		return fmt.Errorf("store: LogInteraction marshal model response: %w", err)
	}
	ui, err := json.Marshal(row.UI)
	if err != nil {
		return fmt.Errorf("store: LogInteraction marshal ui: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (request_id, user_query, history, kind, model_response, ui) VALUES ($1, $2, $3::jsonb, $4, $5::jsonb, $6::jsonb)`,
		pq.QuoteIdentifier(c.interactionsTable),
	)
	if _, err := c.db.ExecContext(ctx, query, row.RequestID, row.UserQuery, string(history), string(row.Kind), string(modelResponse), string(ui)); err != nil {
		return fmt.Errorf("store: LogInteraction: %w", err)
	}
	return nil
}
