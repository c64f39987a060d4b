package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clarity-agent/internal/domain"
)

// HTTPStatusError captures non-2xx PostgREST responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("store: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// RESTClient talks to the PostgREST endpoint exposed by the hosted database.
type RESTClient struct {
	baseURL           string
	apiKey            string
	httpClient        *http.Client
	ingredientsTable  string
	interactionsTable string
}

type RESTOption func(*RESTClient)

func WithHTTPClient(httpClient *http.Client) RESTOption {
	return func(c *RESTClient) {
		c.httpClient = httpClient
	}
}

func WithIngredientsTable(table string) RESTOption {
	return func(c *RESTClient) {
		if t := strings.TrimSpace(table); t != "" {
			c.ingredientsTable = t
		}
	}
}

func WithInteractionsTable(table string) RESTOption {
	return func(c *RESTClient) {
		if t := strings.TrimSpace(table); t != "" {
			c.interactionsTable = t
		}
	}
}

// NewRESTClient creates a RESTClient for the project at baseURL.
func NewRESTClient(baseURL, apiKey string, opts ...RESTOption) (*RESTClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("store: base URL must not be empty")
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("store: api key must not be empty")
	}
	c := &RESTClient{
		baseURL:           baseURL,
		apiKey:            apiKey,
		httpClient:        &http.Client{Timeout: 10 * time.Second},
		ingredientsTable:  DefaultIngredientsTable,
		interactionsTable: DefaultInteractionsTable,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SearchIngredients runs a case-insensitive contains search on name, then on
// group_root when name matched nothing. A page past the last name match is
// returned empty rather than switching columns. Rows keep the store's order.
func (c *RESTClient) SearchIngredients(ctx context.Context, q domain.SearchQuery) (domain.SearchPage, error) {
	var page domain.SearchPage
	for _, column := range searchColumns {
		var err error
		page, err = c.searchColumn(ctx, column, q)
		if err != nil {
			return domain.SearchPage{}, fmt.Errorf("store: SearchIngredients: %w", err)
		}
		if len(page.Rows) > 0 || page.Total > 0 || (page.Total < 0 && q.Offset > 0) {
			return page, nil
		}
	}
	return page, nil
}

// restLikeEscaper makes the term a literal substring. PostgREST turns "*"
// into "%" before Postgres sees the pattern, so "*" is matched as any
// single character instead.
var restLikeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `_`)

func (c *RESTClient) searchColumn(ctx context.Context, column string, q domain.SearchQuery) (domain.SearchPage, error) {
	params := url.Values{}
	params.Set("select", strings.Join(ingredientColumns, ","))
	params.Set(column, "ilike.%"+restLikeEscaper.Replace(q.Term)+"%")
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	endpoint := c.tableURL(c.ingredientsTable) + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.SearchPage{}, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "count=estimated")

	body, header, err := c.do(req, endpoint)
	if err != nil {
		return domain.SearchPage{}, err
	}
	rows, err := decodeIngredients(body)
	if err != nil {
		return domain.SearchPage{}, err
	}
	return domain.SearchPage{
		Rows:     rows,
		Page:     pageOf(q),
		PageSize: q.Limit,
		Total:    totalFromContentRange(header.Get("Content-Range")),
	}, nil
}

type interactionRow struct {
	RequestID     string               `json:"request_id"`
	UserQuery     string               `json:"user_query"`
	History       []domain.ChatMessage `json:"history"`
	Kind          domain.Kind          `json:"kind"`
	ModelResponse any                  `json:"model_response"`
	UI            domain.UI            `json:"ui"`
}

func newInteractionRow(in domain.Interaction) interactionRow {
	history := in.History
	if history == nil {
		history = []domain.ChatMessage{}
	}
	return interactionRow{
		RequestID:     in.RequestID,
		UserQuery:     in.UserQuery,
		History:       history,
		Kind:          in.Kind,
		ModelResponse: in.ModelResponse,
		UI:            in.UI,
	}
}

// LogInteraction appends one row to the interactions table.
func (c *RESTClient) LogInteraction(ctx context.Context, in domain.Interaction) error {
	body, err := json.Marshal(newInteractionRow(in))
	if err != nil {
		return fmt.Errorf("store: LogInteraction marshal: %w", err)
	}
	endpoint := c.tableURL(c.interactionsTable)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("store: LogInteraction create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	if _, _, err := c.do(req, endpoint); err != nil {
		return fmt.Errorf("store: LogInteraction: %w", err)
	}
	return nil
}

func (c *RESTClient) tableURL(table string) string {
	return c.baseURL + "/rest/v1/" + url.PathEscape(table)
}

func (c *RESTClient) authorize(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *RESTClient) do(req *http.Request, endpoint string) ([]byte, http.Header, error) {
	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, res.Header, nil
}

// totalFromContentRange parses "0-9/57" style headers; "*" or a malformed
// header yields -1.
func totalFromContentRange(v string) int {
	i := strings.LastIndex(v, "/")
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v[i+1:]))
	if err != nil {
		return -1
	}
	return n
}
