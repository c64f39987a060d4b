package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clarity-agent/internal/classify"
	"clarity-agent/internal/domain"
	"clarity-agent/internal/integrations/openai"
	"clarity-agent/internal/normalize"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.4
	defaultPageSize    = 10
	defaultLogTimeout  = 2 * time.Second
)

type IngredientStore interface {
	SearchIngredients(ctx context.Context, q domain.SearchQuery) (domain.SearchPage, error)
}

type LLMClient interface {
	Chat(ctx context.Context, in openai.ChatRequest) (string, error)
}

type InteractionLogger interface {
	LogInteraction(ctx context.Context, in domain.Interaction) error
}

// Metrics receives pipeline counters. A nil Metrics disables them.
type Metrics interface {
	ObserveAnswer(kind domain.Kind)
	Degraded()
	StoreError()
	InteractionLogError()
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type AnswerInput struct {
	Query     domain.Query
	RequestID string
}

// ClarityService answers one question: structured lookup first, generative
// fallback only when the store has no match.
type ClarityService struct {
	store        IngredientStore
	llm          LLMClient
	interactions InteractionLogger
	ranker       Ranker
	logger       *zap.Logger
	metrics      Metrics

	model         string
	temperature   float64
	pageSize      int
	articlePrefix string
	window        historyWindow
	logTimeout    time.Duration
	now           func() time.Time
}

type Option func(*ClarityService)

func WithModel(model string) Option {
	return func(s *ClarityService) {
		if m := strings.TrimSpace(model); m != "" {
			s.model = m
		}
	}
}

func WithTemperature(t float64) Option {
	return func(s *ClarityService) { s.temperature = t }
}

func WithPageSize(n int) Option {
	return func(s *ClarityService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func WithArticlePrefix(prefix string) Option {
	return func(s *ClarityService) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.articlePrefix = p
		}
	}
}

// WithHistoryWindow sets how many history messages are replayed and the
// rune limit for each.
func WithHistoryWindow(turns, chars int) Option {
	return func(s *ClarityService) {
		if turns >= 0 {
			s.window.turns = turns
		}
		if chars > 0 {
			s.window.chars = chars
		}
	}
}

func WithRanker(r Ranker) Option {
	return func(s *ClarityService) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithInteractionLogger enables the interaction log. Without it nothing is
// recorded.
func WithInteractionLogger(l InteractionLogger) Option {
	return func(s *ClarityService) { s.interactions = l }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *ClarityService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *ClarityService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewClarityService(store IngredientStore, llm LLMClient, opts ...Option) (*ClarityService, error) {
	if store == nil {
		return nil, errors.New("usecase: ingredient store must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	s := &ClarityService{
		store:         store,
		llm:           llm,
		ranker:        FirstMatch{},
		logger:        zap.NewNop(),
		metrics:       noopMetrics{},
		model:         defaultModel,
		temperature:   defaultTemperature,
		pageSize:      defaultPageSize,
		articlePrefix: normalize.DefaultArticlePrefix,
		window:        historyWindow{turns: defaultHistoryTurns, chars: defaultHistoryChars},
		logTimeout:    defaultLogTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *ClarityService) Answer(ctx context.Context, in AnswerInput) (domain.Answer, error) {
	q, err := validateQuery(in.Query)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("request_id", in.RequestID))

	var answer domain.Answer
	if page, ok := s.lookup(ctx, log, q); ok {
		rec := page.Rows[0]
		answer = domain.DBAnswer{
			Record: rec,
			UI:     normalize.FromRecord(rec, q.Message, s.articlePrefix),
			Page:   page,
		}
	} else {
		answer, err = s.generate(ctx, log, q, in.Query.Message)
		if err != nil {
			return nil, err
		}
	}

	s.metrics.ObserveAnswer(answer.Kind())
	log.Info("answered", zap.String("kind", string(answer.Kind())))
	s.logInteraction(ctx, log, in.RequestID, q, answer)
	return answer, nil
}

// lookup reports ok only when the store returned at least one row. Store
// failures are treated as no match.
func (s *ClarityService) lookup(ctx context.Context, log *zap.Logger, q domain.Query) (domain.SearchPage, bool) {
	page, err := s.store.SearchIngredients(ctx, domain.SearchQuery{
		Term:   q.Message,
		Limit:  s.pageSize,
		Offset: (q.Page - 1) * s.pageSize,
	})
	if err != nil {
		s.metrics.StoreError()
		log.Warn("ingredient lookup failed, falling back to generative answer", zap.Error(err))
		return domain.SearchPage{}, false
	}
	if len(page.Rows) == 0 {
		return page, false
	}
	page.Rows = s.ranker.Rank(q.Message, page.Rows)
	return page, true
}

// generate asks the model; rawMessage is the untrimmed input used for the
// fallback title.
func (s *ClarityService) generate(ctx context.Context, log *zap.Logger, q domain.Query, rawMessage string) (domain.Answer, error) {
	mode := classify.InferMode(q.Message, "")
	temperature := s.temperature
	raw, err := s.llm.Chat(ctx, openai.ChatRequest{
		Model:       s.model,
		Messages:    buildPromptMessages(q, mode, s.window),
		Temperature: &temperature,
		JSONObject:  true,
	})
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
			return nil, newError(ErrorUpstream, "openai_rate_limited", err)
		}
		return nil, newError(ErrorUpstream, "openai_error", err)
	}

	parsed := parseGenerative(raw, rawMessage)
	if parsed.Status == ParseDegraded {
		s.metrics.Degraded()
		log.Warn("model output unusable, using fallback answer", zap.Error(parsed.Err))
	}
	return domain.GPTAnswer{
		Result:   parsed.Value,
		UI:       normalize.FromGenerative(parsed.Value, q.Message, s.articlePrefix),
		Degraded: parsed.Status == ParseDegraded,
	}, nil
}

// logInteraction writes the log entry with its own deadline so a cancelled
// request still gets recorded. Failures never reach the caller.
func (s *ClarityService) logInteraction(ctx context.Context, log *zap.Logger, requestID string, q domain.Query, answer domain.Answer) {
	if s.interactions == nil {
		return
	}
	if requestID == "" {
		requestID = newUUID()
	}
	var modelResponse any
	switch a := answer.(type) {
	case domain.DBAnswer:
		modelResponse = a.Record
	case domain.GPTAnswer:
		modelResponse = a.Result
	}

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.logTimeout)
	defer cancel()
	err := s.interactions.LogInteraction(logCtx, domain.Interaction{
		RequestID:     requestID,
		UserQuery:     q.Message,
		History:       q.History,
		Kind:          answer.Kind(),
		ModelResponse: modelResponse,
		UI:            answer.Canonical(),
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		s.metrics.InteractionLogError()
		log.Warn("interaction log write failed", zap.Error(err))
	}
}

func validateQuery(q domain.Query) (domain.Query, error) {
	q.Message = strings.TrimSpace(q.Message)
	if q.Message == "" {
		return domain.Query{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	return q, nil
}

// MissingConfigError names the required settings that are not available.
type MissingConfigError struct {
	Vars []string
}

func (e *MissingConfigError) Error() string {
	return "Missing " + strings.Join(e.Vars, ", ")
}

// MisconfiguredService stands in for ClarityService when required settings
// are absent. It still validates input so callers see 400 before 500.
type MisconfiguredService struct {
	missing []string
}

func NewMisconfiguredService(missing []string) (*MisconfiguredService, error) {
	if len(missing) == 0 {
		return nil, errors.New("usecase: misconfigured service needs at least one missing setting")
	}
	return &MisconfiguredService{missing: append([]string(nil), missing...)}, nil
}

func (s *MisconfiguredService) Answer(_ context.Context, in AnswerInput) (domain.Answer, error) {
	if _, err := validateQuery(in.Query); err != nil {
		return nil, err
	}
	return nil, newError(ErrorConfigMissing, "config_missing", &MissingConfigError{Vars: s.missing})
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

type noopMetrics struct{}

func (noopMetrics) ObserveAnswer(domain.Kind) {}
func (noopMetrics) Degraded()                 {}
func (noopMetrics) StoreError()               {}
func (noopMetrics) InteractionLogError()      {}

var newUUID = func() string {
	return uuid.NewString()
}
