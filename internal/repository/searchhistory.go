package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"assistant-agent/internal/domain"
)

// SeenURLs returns the set of result URLs already surfaced to userID for
// topic. Research uses it to prefer unseen material.
func (s *Store) SeenURLs(ctx context.Context, userID, topic string) (map[string]bool, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.SearchHistory),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("topic = :topic"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":   &types.AttributeValueMemberS{Value: userID},
			":topic": &types.AttributeValueMemberS{Value: topic},
		},
		ProjectionExpression: aws.String("result_url, topic"),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: SeenURLs query: %w", err)
	}
	var records []domain.SearchHistoryRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, fmt.Errorf("repository: SeenURLs unmarshal: %w", err)
	}
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if r.ResultURL != "" {
			seen[r.ResultURL] = true
		}
	}
	return seen, nil
}

// SaveSearchResults records one history row per surfaced result so repeat
// queries on the topic can skip them. A failed write aborts the batch; the
// caller treats persistence as best effort.
func (s *Store) SaveSearchResults(ctx context.Context, userID, topic string, results []domain.SearchResult) error {
	now := s.nowUTC().Format(time.RFC3339)
	ttl := s.ttlValue()
	for _, res := range results {
		rec := domain.SearchHistoryRecord{
			UserID:       userID,
			SearchID:     uuid.NewString(),
			Topic:        topic,
			SearchQuery:  res.Query,
			ResultTitle:  res.Title,
			ResultURL:    res.URL,
			ResultSource: res.Source,
			SearchedAt:   now,
			TTL:          ttl,
		}
		item, err := attributevalue.MarshalMap(rec)
		if err != nil {
			return fmt.Errorf("repository: SaveSearchResults marshal: %w", err)
		}
		if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tables.SearchHistory),
			Item:      item,
		}); err != nil {
			return fmt.Errorf("repository: SaveSearchResults: %w", err)
		}
	}
	return nil
}

// DeleteExpiredSearchHistory removes rows whose TTL has already passed.
// DynamoDB reclaims expired items on its own schedule, sometimes days late;
// the admin cleanup sweep forces the issue.
func (s *Store) DeleteExpiredSearchHistory(ctx context.Context) (int, error) {
	out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tables.SearchHistory),
		FilterExpression: aws.String("#ttl <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(s.nowUTC().Unix(), 10)},
		},
		ProjectionExpression: aws.String("user_id, search_id"),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: DeleteExpiredSearchHistory scan: %w", err)
	}

	deleted := 0
	for _, item := range out.Items {
		var key struct {
			UserID   string `dynamodbav:"user_id"`
			SearchID string `dynamodbav:"search_id"`
		}
		if err := attributevalue.UnmarshalMap(item, &key); err != nil {
			continue
		}
		_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tables.SearchHistory),
			Key: map[string]types.AttributeValue{
				"user_id":   &types.AttributeValueMemberS{Value: key.UserID},
				"search_id": &types.AttributeValueMemberS{Value: key.SearchID},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("repository: DeleteExpiredSearchHistory delete: %w", err)
		}
		deleted++
	}
	return deleted, nil
}
