package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clarity-agent/internal/integrations/paramstore"
)

var allKeys = []string{
	EnvOpenAIAPIKey, EnvOpenAIModel, EnvOpenAIBaseURL, EnvOpenAITemperature,
	EnvSupabaseURL, EnvSupabaseAnonKey, EnvStoreBackend, EnvDatabaseURL,
	EnvIngredientsTable, EnvInteractionsTable, EnvInteractionSink,
	EnvInteractionsDynamoTable, EnvParamPrefix, EnvPageSize, EnvRankingStrategy,
	EnvArticlePathPrefix, EnvHistoryTurns, EnvHistoryChars, EnvHTTPTimeout,
	EnvLogLevel, EnvLogFormat,
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.Equal(t, "https://api.openai.com/v1", cfg.OpenAIBaseURL)
	require.Equal(t, 0.4, cfg.OpenAITemperature)
	require.Equal(t, BackendREST, cfg.StoreBackend)
	require.Equal(t, "ingredients_variants", cfg.IngredientsTable)
	require.Equal(t, "clarity_interactions", cfg.InteractionsTable)
	require.Equal(t, SinkStore, cfg.InteractionSink)
	require.Equal(t, 10, cfg.PageSize)
	require.Equal(t, RankingFirst, cfg.RankingStrategy)
	require.Equal(t, "/ingredients/", cfg.ArticlePathPrefix)
	require.Equal(t, 3, cfg.HistoryTurns)
	require.Equal(t, 500, cfg.HistoryChars)
	require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_EnvOverridesAndEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvStoreBackend, "Postgres")
	t.Setenv(EnvPageSize, "25")
	t.Setenv(EnvHTTPTimeout, "3s")
	t.Setenv(EnvParamPrefix, "/clarity/prod/")

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DATABASE_URL=postgres://u:p@localhost/db\nPAGE_SIZE=99\n"), 0o600))

	cfg, err := Load(filepath.Join(dir, "missing.env"), envFile)
	require.NoError(t, err)
	require.Equal(t, BackendPostgres, cfg.StoreBackend)
	require.Equal(t, "postgres://u:p@localhost/db", cfg.DatabaseURL)
	require.Equal(t, 25, cfg.PageSize)
	require.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	require.Equal(t, "/clarity/prod", cfg.ParamPrefix)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		EnvStoreBackend:      "mongo",
		EnvInteractionSink:   "kafka",
		EnvRankingStrategy:   "fuzzy",
		EnvOpenAITemperature: "3",
		EnvPageSize:          "0",
		EnvHTTPTimeout:       "0s",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			_, err := Load()
			require.Error(t, err)
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestMissing(t *testing.T) {
	cfg := &Config{StoreBackend: BackendREST, InteractionSink: SinkStore}
	require.Equal(t, []string{EnvOpenAIAPIKey, EnvSupabaseURL, EnvSupabaseAnonKey}, cfg.Missing())

	cfg = &Config{OpenAIAPIKey: "k", StoreBackend: BackendPostgres, InteractionSink: SinkDynamoDB}
	require.Equal(t, []string{EnvDatabaseURL, EnvInteractionsDynamoTable}, cfg.Missing())

	cfg = &Config{OpenAIAPIKey: "k", SupabaseURL: "https://x.supabase.co", SupabaseAnonKey: "anon", StoreBackend: BackendREST, InteractionSink: SinkNone}
	require.Empty(t, cfg.Missing())
}

type mockSecrets struct {
	vals  map[string]string
	err   error
	names []string
}

func (m *mockSecrets) GetParameter(_ context.Context, name string) (string, error) {
	m.names = append(m.names, name)
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.vals[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", paramstore.ErrNotFound, name)
	}
	return v, nil
}

func TestResolveSecrets(t *testing.T) {
	getter := &mockSecrets{vals: map[string]string{
		"/clarity/openai-api-key":    "sk-test",
		"/clarity/supabase-anon-key": "anon",
		"/clarity/database-url":      "postgres://ignored",
	}}
	cfg := &Config{ParamPrefix: "/clarity", StoreBackend: BackendREST, SupabaseURL: "https://x.supabase.co"}
	require.NoError(t, ResolveSecrets(context.Background(), getter, cfg))
	require.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	require.Equal(t, "anon", cfg.SupabaseAnonKey)
	require.Empty(t, cfg.DatabaseURL)
	require.Empty(t, cfg.Missing())
}

func TestResolveSecrets_KeepsExplicitValuesAndSkipsNotFound(t *testing.T) {
	getter := &mockSecrets{vals: map[string]string{}}
	cfg := &Config{ParamPrefix: "/clarity", StoreBackend: BackendPostgres, OpenAIAPIKey: "from-env"}
	require.NoError(t, ResolveSecrets(context.Background(), getter, cfg))
	require.Equal(t, "from-env", cfg.OpenAIAPIKey)
	require.Equal(t, []string{"/clarity/database-url"}, getter.names)
	require.Equal(t, []string{EnvDatabaseURL}, cfg.Missing())
}

func TestResolveSecrets_Errors(t *testing.T) {
	getter := &mockSecrets{err: errors.New("access denied")}
	cfg := &Config{ParamPrefix: "/clarity", StoreBackend: BackendREST}
	err := ResolveSecrets(context.Background(), getter, cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "access denied")
}

func TestResolveSecrets_NoPrefix(t *testing.T) {
	getter := &mockSecrets{}
	require.NoError(t, ResolveSecrets(context.Background(), getter, &Config{}))
	require.Empty(t, getter.names)
}
