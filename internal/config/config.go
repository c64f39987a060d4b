// Package config loads runtime settings from the environment, optional
// .env files and, for secrets, AWS SSM Parameter Store.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"clarity-agent/internal/integrations/paramstore"
)

const (
	BackendREST     = "rest"
	BackendPostgres = "postgres"

	SinkStore    = "store"
	SinkDynamoDB = "dynamodb"
	SinkNone     = "none"

	RankingFirst = "first"
	RankingExact = "exact"
)

// Environment variable names.
const (
	EnvOpenAIAPIKey            = "OPENAI_API_KEY"
	EnvOpenAIModel             = "OPENAI_MODEL"
	EnvOpenAIBaseURL           = "OPENAI_BASE_URL"
	EnvOpenAITemperature       = "OPENAI_TEMPERATURE"
	EnvSupabaseURL             = "SUPABASE_URL"
	EnvSupabaseAnonKey         = "SUPABASE_ANON_KEY"
	EnvStoreBackend            = "STORE_BACKEND"
	EnvDatabaseURL             = "DATABASE_URL"
	EnvIngredientsTable        = "INGREDIENTS_TABLE"
	EnvInteractionsTable       = "INTERACTIONS_TABLE"
	EnvInteractionSink         = "INTERACTION_SINK"
	EnvInteractionsDynamoTable = "INTERACTIONS_DYNAMO_TABLE"
	EnvParamPrefix             = "PARAM_PREFIX"
	EnvPageSize                = "PAGE_SIZE"
	EnvRankingStrategy         = "RANKING_STRATEGY"
	EnvArticlePathPrefix       = "ARTICLE_PATH_PREFIX"
	EnvHistoryTurns            = "HISTORY_TURNS"
	EnvHistoryChars            = "HISTORY_CHARS"
	EnvHTTPTimeout             = "HTTP_TIMEOUT"
	EnvLogLevel                = "LOG_LEVEL"
	EnvLogFormat               = "LOG_FORMAT"
)

type Config struct {
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAITemperature float64

	SupabaseURL     string
	SupabaseAnonKey string
	StoreBackend    string
	DatabaseURL     string

	IngredientsTable        string
	InteractionsTable       string
	InteractionSink         string
	InteractionsDynamoTable string

	ParamPrefix string

	PageSize          int
	RankingStrategy   string
	ArticlePathPrefix string
	HistoryTurns      int
	HistoryChars      int
	HTTPTimeout       time.Duration

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(EnvOpenAIModel, "gpt-4o-mini")
	v.SetDefault(EnvOpenAIBaseURL, "https://api.openai.com/v1")
	v.SetDefault(EnvOpenAITemperature, 0.4)
	v.SetDefault(EnvStoreBackend, BackendREST)
	v.SetDefault(EnvIngredientsTable, "ingredients_variants")
	v.SetDefault(EnvInteractionsTable, "clarity_interactions")
	v.SetDefault(EnvInteractionSink, SinkStore)
	v.SetDefault(EnvPageSize, 10)
	v.SetDefault(EnvRankingStrategy, RankingFirst)
	v.SetDefault(EnvArticlePathPrefix, "/ingredients/")
	v.SetDefault(EnvHistoryTurns, 3)
	v.SetDefault(EnvHistoryChars, 500)
	v.SetDefault(EnvHTTPTimeout, "10s")
	v.SetDefault(EnvLogLevel, "info")
	v.SetDefault(EnvLogFormat, "json")
}

// Load reads configuration from the process environment. Any envFiles that
// exist are loaded first without overriding variables already set.
func Load(envFiles ...string) (*Config, error) {
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		OpenAIAPIKey:            str(v, EnvOpenAIAPIKey),
		OpenAIModel:             str(v, EnvOpenAIModel),
		OpenAIBaseURL:           str(v, EnvOpenAIBaseURL),
		OpenAITemperature:       v.GetFloat64(EnvOpenAITemperature),
		SupabaseURL:             str(v, EnvSupabaseURL),
		SupabaseAnonKey:         str(v, EnvSupabaseAnonKey),
		StoreBackend:            strings.ToLower(str(v, EnvStoreBackend)),
		DatabaseURL:             str(v, EnvDatabaseURL),
		IngredientsTable:        str(v, EnvIngredientsTable),
		InteractionsTable:       str(v, EnvInteractionsTable),
		InteractionSink:         strings.ToLower(str(v, EnvInteractionSink)),
		InteractionsDynamoTable: str(v, EnvInteractionsDynamoTable),
		ParamPrefix:             strings.TrimRight(str(v, EnvParamPrefix), "/"),
		PageSize:                v.GetInt(EnvPageSize),
		RankingStrategy:         strings.ToLower(str(v, EnvRankingStrategy)),
		ArticlePathPrefix:       str(v, EnvArticlePathPrefix),
		HistoryTurns:            v.GetInt(EnvHistoryTurns),
		HistoryChars:            v.GetInt(EnvHistoryChars),
		HTTPTimeout:             v.GetDuration(EnvHTTPTimeout),
		LogLevel:                strings.ToLower(str(v, EnvLogLevel)),
		LogFormat:               strings.ToLower(str(v, EnvLogFormat)),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func str(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func (c *Config) validate() error {
	var errs []error
	if !oneOf(c.StoreBackend, BackendREST, BackendPostgres) {
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", EnvStoreBackend, BackendREST, BackendPostgres, c.StoreBackend))
	}
	if !oneOf(c.InteractionSink, SinkStore, SinkDynamoDB, SinkNone) {
		errs = append(errs, fmt.Errorf("%s must be %q, %q or %q, got %q", EnvInteractionSink, SinkStore, SinkDynamoDB, SinkNone, c.InteractionSink))
	}
	if !oneOf(c.RankingStrategy, RankingFirst, RankingExact) {
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", EnvRankingStrategy, RankingFirst, RankingExact, c.RankingStrategy))
	}
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		errs = append(errs, fmt.Errorf("%s must be between 0 and 2", EnvOpenAITemperature))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvPageSize))
	}
	if c.HistoryTurns < 0 || c.HistoryChars <= 0 {
		errs = append(errs, fmt.Errorf("%s and %s must be positive", EnvHistoryTurns, EnvHistoryChars))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be a positive duration", EnvHTTPTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Missing lists the required variables that are unset for the selected
// store backend and interaction sink.
func (c *Config) Missing() []string {
	var missing []string
	if c.OpenAIAPIKey == "" {
		missing = append(missing, EnvOpenAIAPIKey)
	}
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, EnvDatabaseURL)
		}
	default:
		if c.SupabaseURL == "" {
			missing = append(missing, EnvSupabaseURL)
		}
		if c.SupabaseAnonKey == "" {
			missing = append(missing, EnvSupabaseAnonKey)
		}
	}
	if c.InteractionSink == SinkDynamoDB && c.InteractionsDynamoTable == "" {
		missing = append(missing, EnvInteractionsDynamoTable)
	}
	return missing
}

// SecretGetter reads one secret by parameter name.
type SecretGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ResolveSecrets fills empty secrets from "<PARAM_PREFIX>/<name>" parameters.
// Parameters that do not exist are skipped; the request path reports them
// as missing configuration.
func ResolveSecrets(ctx context.Context, getter SecretGetter, cfg *Config) error {
	if cfg == nil || cfg.ParamPrefix == "" || getter == nil {
		return nil
	}
	type secret struct {
		name  string
		field *string
	}
	targets := []secret{{"openai-api-key", &cfg.OpenAIAPIKey}}
	if cfg.StoreBackend == BackendPostgres {
		targets = append(targets, secret{"database-url", &cfg.DatabaseURL})
	} else {
		targets = append(targets, secret{"supabase-anon-key", &cfg.SupabaseAnonKey})
	}

	var errs []error
	for _, target := range targets {
		if *target.field != "" {
			continue
		}
		val, err := getter.GetParameter(ctx, cfg.ParamPrefix+"/"+target.name)
		if errors.Is(err, paramstore.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*target.field = val
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: resolve secrets: %w", errors.Join(errs...))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
