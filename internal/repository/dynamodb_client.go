package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"clarity-agent/internal/domain"
)

const (
	pkPrefixRequest = "REQ#"
	skInteraction   = "INTERACTION#"
	ttlDuration     = 90 * 24 * time.Hour // 90-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client writes the interaction log to a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// requestPK returns the DynamoDB partition key for a request.
func requestPK(requestID string) string {
	return pkPrefixRequest + requestID
}

// interactionSK returns the sort key for an interaction written at ts.
func interactionSK(ts time.Time) string {
	return skInteraction + ts.UTC().Format(time.RFC3339Nano)
}

// LogInteraction writes one interaction item. Items are never overwritten.
func (c *Client) LogInteraction(ctx context.Context, in domain.Interaction) error {
	if strings.TrimSpace(in.RequestID) == "" {
		return errors.New("repository: LogInteraction: request id is required")
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.now()
	}
	item, err := interactionItem(in, createdAt)
	if err != nil {
		return fmt.Errorf("repository: LogInteraction encode: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: LogInteraction: %w", err)
	}
	return nil
}

func interactionItem(in domain.Interaction, createdAt time.Time) (map[string]types.AttributeValue, error) {
	history, err := jsonAttr(in.History)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	modelResponse, err := jsonAttr(in.ModelResponse)
	if err != nil {
		return nil, fmt.Errorf("model response: %w", err)
	}
	ui, err := jsonAttr(in.UI)
	if err != nil {
		return nil, fmt.Errorf("ui: %w", err)
	}
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: requestPK(in.RequestID)},
		"SK":            &types.AttributeValueMemberS{Value: interactionSK(createdAt)},
		"requestId":     &types.AttributeValueMemberS{Value: in.RequestID},
		"userQuery":     &types.AttributeValueMemberS{Value: in.UserQuery},
		"kind":          &types.AttributeValueMemberS{Value: string(in.Kind)},
		"history":       history,
		"modelResponse": modelResponse,
		"ui":            ui,
		"createdAt":     &types.AttributeValueMemberS{Value: createdAt.UTC().Format(time.RFC3339)},
		"ttl":           &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", createdAt.Add(ttlDuration).Unix())},
	}, nil
}

// jsonAttr stores nested values as JSON strings so the item schema stays flat.
func jsonAttr(v any) (types.AttributeValue, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberS{Value: string(b)}, nil
}
