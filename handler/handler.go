// Package handler adapts API Gateway proxy events to the answer pipeline.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"clarity-agent/internal/domain"
	"clarity-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"

	msgMissingMessage   = "Missing message in body"
	msgMethodNotAllowed = "Method not allowed"
	msgServerError      = "Server error"
)

// Answerer is implemented by usecase.ClarityService and
// usecase.MisconfiguredService.
type Answerer interface {
	Answer(ctx context.Context, in usecase.AnswerInput) (domain.Answer, error)
}

type Handler struct {
	uc     Answerer
	logger *zap.Logger
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

type pageInfo struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

type answerResponse struct {
	Kind     domain.Kind              `json:"kind"`
	Record   *domain.IngredientRecord `json:"record,omitempty"`
	Answer   *domain.GenerativeResult `json:"answer,omitempty"`
	UI       domain.UI                `json:"ui"`
	Page     *pageInfo                `json:"page,omitempty"`
	Degraded bool                     `json:"degraded,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func NewHandler(uc Answerer, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{uc: uc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.logger.With(zap.String("request_id", correlationID))

	switch strings.ToUpper(event.HTTPMethod) {
	case http.MethodOptions:
		return response(http.StatusOK, "", correlationID), nil
	case http.MethodPost:
	default:
		return jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: msgMethodNotAllowed}, correlationID), nil
	}

	body, err := requestBody(event)
	if err != nil {
		log.Info("undecodable request body", zap.Error(err))
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: msgMissingMessage}, correlationID), nil
	}
	query, ok := parseQuery(body)
	if !ok {
		return jsonResponse(http.StatusBadRequest, errorResponse{Error: msgMissingMessage}, correlationID), nil
	}

	answer, err := h.uc.Answer(ctx, usecase.AnswerInput{Query: query, RequestID: correlationID})
	if err != nil {
		status, resp := mapError(err)
		if status >= http.StatusInternalServerError {
			log.Error("answer failed", zap.Error(err))
		}
		return jsonResponse(status, resp, correlationID), nil
	}
	return jsonResponse(http.StatusOK, toResponse(answer), correlationID), nil
}

func toResponse(answer domain.Answer) answerResponse {
	switch a := answer.(type) {
	case domain.DBAnswer:
		rec := a.Record
		return answerResponse{
			Kind:   a.Kind(),
			Record: &rec,
			UI:     a.UI,
			Page:   &pageInfo{Page: a.Page.Page, PageSize: a.Page.PageSize, Total: a.Page.Total},
		}
	case domain.GPTAnswer:
		res := a.Result
		return answerResponse{
			Kind:     a.Kind(),
			Answer:   &res,
			UI:       a.UI,
			Degraded: a.Degraded,
		}
	default:
		return answerResponse{Kind: answer.Kind(), UI: answer.Canonical()}
	}
}

func requestBody(event events.APIGatewayProxyRequest) (string, error) {
	if !event.IsBase64Encoded {
		return event.Body, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(event.Body)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// parseQuery accepts a JSON object with a string "message", or a bare JSON
// string used as the message. Optional fields of the wrong type are ignored.
func parseQuery(body string) (domain.Query, bool) {
	body = strings.TrimSpace(body)
	if body == "" || !gjson.Valid(body) {
		return domain.Query{}, false
	}
	doc := gjson.Parse(body)
	if doc.Type == gjson.String {
		return domain.Query{Message: doc.Str}, strings.TrimSpace(doc.Str) != ""
	}
	if !doc.IsObject() {
		return domain.Query{}, false
	}

	msg := doc.Get("message")
	if msg.Type != gjson.String || strings.TrimSpace(msg.Str) == "" {
		return domain.Query{}, false
	}
	q := domain.Query{Message: msg.Str}
	if voice := doc.Get("mode"); voice.Type == gjson.String {
		q.Voice = voice.Str
	}
	if page := doc.Get("page"); page.Type == gjson.Number && page.Int() > 0 {
		q.Page = int(page.Int())
	}
	doc.Get("history").ForEach(func(_, turn gjson.Result) bool {
		role, content := turn.Get("role"), turn.Get("content")
		if role.Type == gjson.String && content.Type == gjson.String {
			q.History = append(q.History, domain.ChatMessage{Role: role.Str, Content: content.Str})
		}
		return true
	})
	return q, true
}

func mapError(err error) (int, errorResponse) {
	var useCaseErr *usecase.Error
	if !errors.As(err, &useCaseErr) {
		return http.StatusInternalServerError, errorResponse{Error: msgServerError}
	}
	switch useCaseErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, errorResponse{Error: msgMissingMessage}
	case usecase.ErrorConfigMissing:
		var missing *usecase.MissingConfigError
		if errors.As(err, &missing) {
			return http.StatusInternalServerError, errorResponse{Error: missing.Error()}
		}
		return http.StatusInternalServerError, errorResponse{Error: msgServerError}
	case usecase.ErrorUpstream:
		resp := errorResponse{Error: msgServerError}
		if useCaseErr.Err != nil {
			resp.Details = useCaseErr.Err.Error()
		}
		return http.StatusInternalServerError, resp
	default:
		return http.StatusInternalServerError, errorResponse{Error: msgServerError}
	}
}

func jsonResponse(status int, payload any, correlationID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"Server error"}`)
	}
	resp := response(status, string(body), correlationID)
	resp.Headers["Content-Type"] = "application/json"
	return resp
}

func response(status int, body, correlationID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": "POST, OPTIONS",
			"Access-Control-Allow-Headers": "Content-Type, Authorization",
			correlationHeader:              correlationID,
		},
		Body: body,
	}
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
