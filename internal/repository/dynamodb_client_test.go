package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"clarity-agent/internal/domain"
)

type fakeDynamo struct {
	putErr       error
	lastPutInput *dynamodb.PutItemInput
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC) }
	return c
}

func strAttrOf(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %q is not a string", key)
	return v.Value
}

func TestLogInteraction_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	err := c.LogInteraction(context.Background(), domain.Interaction{
		RequestID:     "req-1",
		UserQuery:     "turmeric",
		History:       []domain.ChatMessage{{Role: "user", Content: "hi"}},
		Kind:          domain.KindDB,
		ModelResponse: domain.IngredientRecord{Name: "Turmeric"},
		UI:            domain.UI{Mode: domain.ModeIngredient},
	})
	require.NoError(t, err)

	in := db.lastPutInput
	require.NotNil(t, in)
	require.Equal(t, "test-table", *in.TableName)
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *in.ConditionExpression)
	require.Equal(t, "REQ#req-1", strAttrOf(t, in.Item, "PK"))
	require.Equal(t, "INTERACTION#2026-02-25T10:00:00Z", strAttrOf(t, in.Item, "SK"))
	require.Equal(t, "db", strAttrOf(t, in.Item, "kind"))
	require.JSONEq(t, `[{"role":"user","content":"hi"}]`, strAttrOf(t, in.Item, "history"))
	require.Contains(t, strAttrOf(t, in.Item, "modelResponse"), `"name":"Turmeric"`)
	require.Contains(t, strAttrOf(t, in.Item, "ui"), `"mode":"ingredient"`)
	ttl, ok := in.Item["ttl"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	require.NotEmpty(t, ttl.Value)
}

func TestLogInteraction_UsesProvidedTimestamp(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	ts := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, c.LogInteraction(context.Background(), domain.Interaction{RequestID: "req-2", CreatedAt: ts}))
	require.Equal(t, "INTERACTION#2026-03-01T08:30:00Z", strAttrOf(t, db.lastPutInput.Item, "SK"))
	require.Equal(t, "2026-03-01T08:30:00Z", strAttrOf(t, db.lastPutInput.Item, "createdAt"))
}

func TestLogInteraction_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)
	err := c.LogInteraction(context.Background(), domain.Interaction{RequestID: "req-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "LogInteraction")
}

func TestLogInteraction_MissingRequestID(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	err := c.LogInteraction(context.Background(), domain.Interaction{RequestID: " "})
	require.Error(t, err)
	require.Contains(t, err.Error(), "required")
	require.Nil(t, db.lastPutInput)
}

func TestRequestPK(t *testing.T) {
	require.Equal(t, "REQ#my-req", requestPK("my-req"))
}

func TestInteractionSK(t *testing.T) {
	ts := time.Date(2026, 2, 25, 10, 0, 0, 0, time.FixedZone("X", 3600))
	require.Equal(t, "INTERACTION#2026-02-25T09:00:00Z", interactionSK(ts))
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "test-table")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}
