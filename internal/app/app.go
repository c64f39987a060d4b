// Package app wires configuration into a ready answer pipeline. Both the
// Lambda entry point and the dev server build their handler through it.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"clarity-agent/handler"
	"clarity-agent/internal/config"
	"clarity-agent/internal/integrations/openai"
	"clarity-agent/internal/integrations/paramstore"
	"clarity-agent/internal/repository"
	"clarity-agent/internal/store"
	"clarity-agent/internal/usecase"
)

// ingredientStore is satisfied by both store backends.
type ingredientStore interface {
	usecase.IngredientStore
	usecase.InteractionLogger
}

// Deps are the process-wide collaborators supplied by the entry point.
type Deps struct {
	Logger  *zap.Logger
	Metrics usecase.Metrics
	// LoadAWSConfig defaults to config.LoadDefaultConfig. It is only called
	// when SSM secrets or the DynamoDB sink are in use.
	LoadAWSConfig func(ctx context.Context) (aws.Config, error)
}

// NewAnswerer builds the answer pipeline for cfg. When required settings are
// still missing after secret resolution, it returns a service that fails
// every valid request with the list of missing settings. The returned close
// function releases backend connections.
func NewAnswerer(ctx context.Context, cfg *config.Config, deps Deps) (handler.Answerer, func(), error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loadAWS := deps.LoadAWSConfig
	if loadAWS == nil {
		loadAWS = func(ctx context.Context) (aws.Config, error) { return awsconfig.LoadDefaultConfig(ctx) }
	}
	noop := func() {}

	var awsCfg *aws.Config
	awsConfig := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := loadAWS(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	if cfg.ParamPrefix != "" {
		if err := resolveSecrets(ctx, cfg, awsConfig); err != nil {
			log.Warn("secret resolution incomplete", zap.Error(err))
		}
	}

	if missing := cfg.Missing(); len(missing) > 0 {
		log.Warn("required configuration missing", zap.Strings("missing", missing))
		svc, err := usecase.NewMisconfiguredService(missing)
		return svc, noop, err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	st, closeStore, err := newStore(cfg, httpClient)
	if err != nil {
		return nil, noop, err
	}

	llm, err := openai.NewClient(cfg.OpenAIAPIKey,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		closeStore()
		return nil, noop, err
	}

	ranker, err := usecase.RankerFor(cfg.RankingStrategy)
	if err != nil {
		closeStore()
		return nil, noop, err
	}

	opts := []usecase.Option{
		usecase.WithModel(cfg.OpenAIModel),
		usecase.WithTemperature(cfg.OpenAITemperature),
		usecase.WithPageSize(cfg.PageSize),
		usecase.WithArticlePrefix(cfg.ArticlePathPrefix),
		usecase.WithHistoryWindow(cfg.HistoryTurns, cfg.HistoryChars),
		usecase.WithRanker(ranker),
		usecase.WithLogger(log),
		usecase.WithMetrics(deps.Metrics),
	}

	switch cfg.InteractionSink {
	case config.SinkStore:
		opts = append(opts, usecase.WithInteractionLogger(st))
	case config.SinkDynamoDB:
		c, err := awsConfig()
		if err != nil {
			closeStore()
			return nil, noop, err
		}
		sink, err := repository.New(awsdynamodb.NewFromConfig(c), cfg.InteractionsDynamoTable)
		if err != nil {
			closeStore()
			return nil, noop, err
		}
		opts = append(opts, usecase.WithInteractionLogger(sink))
	}

	svc, err := usecase.NewClarityService(st, llm, opts...)
	if err != nil {
		closeStore()
		return nil, noop, err
	}
	log.Info("answer pipeline ready",
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("interaction_sink", cfg.InteractionSink),
		zap.String("ranking", cfg.RankingStrategy),
		zap.String("model", cfg.OpenAIModel),
	)
	return svc, closeStore, nil
}

func resolveSecrets(ctx context.Context, cfg *config.Config, awsConfig func() (aws.Config, error)) error {
	c, err := awsConfig()
	if err != nil {
		return err
	}
	params, err := paramstore.New(awsssm.NewFromConfig(c))
	if err != nil {
		return err
	}
	return config.ResolveSecrets(ctx, params, cfg)
}

func newStore(cfg *config.Config, httpClient *http.Client) (ingredientStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, func() {}, err
		}
		closeDB := func() { _ = db.Close() }
		pg, err := store.NewPostgresClient(db, cfg.IngredientsTable, cfg.InteractionsTable)
		if err != nil {
			closeDB()
			return nil, func() {}, err
		}
		return pg, closeDB, nil
	default:
		rest, err := store.NewRESTClient(cfg.SupabaseURL, cfg.SupabaseAnonKey,
			store.WithHTTPClient(httpClient),
			store.WithIngredientsTable(cfg.IngredientsTable),
			store.WithInteractionsTable(cfg.InteractionsTable),
		)
		if err != nil {
			return nil, func() {}, err
		}
		return rest, func() {}, nil
	}
}
