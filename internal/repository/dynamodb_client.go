package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"faq-agent/internal/domain"
)

const (
	skPrefixTurn   = "TURN#"
	skMeta         = "META#"
	ttlDuration    = 30 * 24 * time.Hour // 30-day TTL
	batchWriteSize = 25
	maxBatchTries  = 3
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Client keeps session transcripts in a single DynamoDB table. Each session is a
// partition holding one META# item and one TURN#<timestamp> item per turn.
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

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "CONV#" + sessionID
}

// turnSKLayout keeps every fraction digit so keys sort in time order.
const turnSKLayout = "2006-01-02T15:04:05.000000000Z07:00"

// turnSK returns the sort key for a turn created at ts.
func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(turnSKLayout)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// CreateSession writes the session metadata item. An existing session is left untouched.
func (c *Client) CreateSession(ctx context.Context, session domain.Session) error {
	if session.ID == "" {
		return errors.New("repository: CreateSession: session id is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":           &types.AttributeValueMemberS{Value: sessionPK(session.ID)},
			"SK":           &types.AttributeValueMemberS{Value: skMeta},
			"sessionId":    &types.AttributeValueMemberS{Value: session.ID},
			"createdAt":    &types.AttributeValueMemberS{Value: session.CreatedAt.UTC().Format(time.RFC3339Nano)},
			"lastActivity": &types.AttributeValueMemberS{Value: session.CreatedAt.UTC().Format(time.RFC3339)},
			"turns":        &types.AttributeValueMemberN{Value: "0"},
			"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ttlValue(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("repository: CreateSession: %w", err)
	}
	return nil
}

// AppendTurn writes the turn and bumps the session metadata in one transaction.
func (c *Client) AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error {
	if sessionID == "" {
		return errors.New("repository: AppendTurn: session id is required")
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = c.now().UTC()
	}
	ttl := strconv.FormatInt(c.ttlValue(), 10)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(sessionID, turn, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression: aws.String("SET #turns = if_not_exists(#turns, :zero) + :one, lastActivity = :now, sessionId = :sid, #ttl = :ttl"),
					ExpressionAttributeNames: map[string]string{
						"#turns": "turns",
						"#ttl":   "ttl",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":zero": &types.AttributeValueMemberN{Value: "0"},
						":one":  &types.AttributeValueMemberN{Value: "1"},
						":now":  &types.AttributeValueMemberS{Value: turn.CreatedAt.UTC().Format(time.RFC3339)},
						":sid":  &types.AttributeValueMemberS{Value: sessionID},
						":ttl":  &types.AttributeValueMemberN{Value: ttl},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return nil
}

// Transcript returns up to limit of the most recent turns in chronological order.
func (c *Client) Transcript(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT favors the most recent turns.
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: Transcript query: %w", err)
	}

	turns := make([]domain.Turn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: Transcript unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// DeleteSession removes every item of the session partition.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	keys, err := c.sessionKeys(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("repository: DeleteSession: %w", err)
	}
	for start := 0; start < len(keys); start += batchWriteSize {
		end := min(start+batchWriteSize, len(keys))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, k := range keys[start:end] {
			reqs = append(reqs, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}
		if err := c.batchDelete(ctx, reqs); err != nil {
			return fmt.Errorf("repository: DeleteSession: %w", err)
		}
	}
	return nil
}

func (c *Client) sessionKeys(ctx context.Context, sessionID string) ([]map[string]types.AttributeValue, error) {
	var keys []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			},
			ProjectionExpression: aws.String("PK, SK"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query keys: %w", err)
		}
		for _, item := range out.Items {
			keys = append(keys, map[string]types.AttributeValue{"PK": item["PK"], "SK": item["SK"]})
		}
		if len(out.LastEvaluatedKey) == 0 {
			return keys, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (c *Client) batchDelete(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{c.tableName: reqs}
	for try := 0; try < maxBatchTries; try++ {
		out, err := c.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch write: %w", err)
		}
		if out == nil || len(out.UnprocessedItems[c.tableName]) == 0 {
			return nil
		}
		pending = out.UnprocessedItems
	}
	return fmt.Errorf("batch write: %d items unprocessed", len(pending[c.tableName]))
}

func turnItem(sessionID string, turn domain.Turn, ttl string) map[string]types.AttributeValue {
	citations := make([]types.AttributeValue, 0, len(turn.Citations))
	for _, ct := range turn.Citations {
		citations = append(citations, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"documentId":   &types.AttributeValueMemberS{Value: ct.DocumentID},
			"documentName": &types.AttributeValueMemberS{Value: ct.DocumentName},
			"location":     &types.AttributeValueMemberS{Value: ct.Location},
			"snippet":      &types.AttributeValueMemberS{Value: ct.Snippet},
		}})
	}
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK":          &types.AttributeValueMemberS{Value: turnSK(turn.CreatedAt)},
		"sessionId":   &types.AttributeValueMemberS{Value: sessionID},
		"question":    &types.AttributeValueMemberS{Value: turn.Question},
		"answer":      &types.AttributeValueMemberS{Value: turn.Answer},
		"citations":   &types.AttributeValueMemberL{Value: citations},
		"traceEvents": &types.AttributeValueMemberN{Value: strconv.Itoa(turn.TraceEvents)},
		"createdAt":   &types.AttributeValueMemberS{Value: turn.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":         &types.AttributeValueMemberN{Value: ttl},
	}
}

// itemToTurn converts a DynamoDB attribute map to a Turn.
func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	question, err := strAttr(item, "question")
	if err != nil {
		return domain.Turn{}, err
	}
	answer, err := strAttr(item, "answer")
	if err != nil {
		return domain.Turn{}, err
	}
	created, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.Turn{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("repository: parse attribute %q: %w", "createdAt", err)
	}
	traceEvents, _ := intAttr(item, "traceEvents") // allow missing

	citations := []domain.Citation{}
	if l, ok := item["citations"].(*types.AttributeValueMemberL); ok {
		for _, v := range l.Value {
			m, ok := v.(*types.AttributeValueMemberM)
			if !ok {
				return domain.Turn{}, errors.New("repository: citation is not a map")
			}
			id, err := strAttr(m.Value, "documentId")
			if err != nil {
				return domain.Turn{}, err
			}
			name, _ := strAttr(m.Value, "documentName")
			location, _ := strAttr(m.Value, "location")
			snippet, _ := strAttr(m.Value, "snippet")
			citations = append(citations, domain.Citation{DocumentID: id, DocumentName: name, Location: location, Snippet: snippet})
		}
	}

	return domain.Turn{
		Question:    question,
		Answer:      answer,
		Citations:   citations,
		TraceEvents: traceEvents,
		CreatedAt:   createdAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
