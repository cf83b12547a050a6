package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"assistant-agent/internal/domain"
)

// threadWindow is the recency window inside which a new turn joins the
// previous thread for the same (user, topic).
const threadWindow = 30 * time.Minute

// NewConversationID mints a sort key that orders chronologically: turns for
// a user come back time-sorted without a separate index.
func NewConversationID(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano) + "#" + uuid.NewString()[:8]
}

// SaveTurn persists one completed request/response pair.
func (s *Store) SaveTurn(ctx context.Context, turn domain.ConversationTurn) error {
	if turn.UserID == "" || turn.ConversationID == "" {
		return errors.New("repository: SaveTurn: user_id and conversation_id are required")
	}
	if turn.TTL == 0 {
		turn.TTL = s.ttlValue()
	}
	item, err := attributevalue.MarshalMap(turn)
	if err != nil {
		return fmt.Errorf("repository: SaveTurn marshal: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Conversations),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// GetConversationHistory returns up to limit turns for (userID, topic) in
// chronological order. The query reads newest first so the limit keeps the
// most recent context, then reverses. DynamoDB applies Limit before the
// topic filter, so pages are followed until enough same-topic turns are
// collected or the partition is exhausted.
func (s *Store) GetConversationHistory(ctx context.Context, userID, topic string, limit int) ([]domain.ConversationTurn, error) {
	if limit <= 0 {
		limit = 5
	}

	var turns []domain.ConversationTurn
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tables.Conversations),
			KeyConditionExpression: aws.String("user_id = :uid"),
			FilterExpression:       aws.String("topic = :topic"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid":   &types.AttributeValueMemberS{Value: userID},
				":topic": &types.AttributeValueMemberS{Value: topic},
			},
			ScanIndexForward:  aws.Bool(false),
			Limit:             aws.Int32(int32(limit * 4)), // filter discards other topics
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: GetConversationHistory query: %w", err)
		}

		var page []domain.ConversationTurn
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("repository: GetConversationHistory unmarshal: %w", err)
		}
		turns = append(turns, page...)

		if len(turns) >= limit || len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	if len(turns) > limit {
		turns = turns[:limit]
	}
	// Reverse to chronological order for prompt assembly.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// LatestTurn returns the most recent turn for (userID, topic), or nil when
// the user has no history on the topic.
func (s *Store) LatestTurn(ctx context.Context, userID, topic string) (*domain.ConversationTurn, error) {
	turns, err := s.GetConversationHistory(ctx, userID, topic, 1)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, nil
	}
	return &turns[len(turns)-1], nil
}

// ResolveThreadID applies the session rule: reuse the last thread when the
// previous turn on this topic is inside the 30-minute window, otherwise mint
// a fresh thread id. forceNew always mints.
func (s *Store) ResolveThreadID(ctx context.Context, userID, topic string, forceNew bool) (string, error) {
	if forceNew {
		return uuid.NewString(), nil
	}
	last, err := s.LatestTurn(ctx, userID, topic)
	if err != nil {
		return "", err
	}
	if last == nil || last.ThreadID == "" {
		return uuid.NewString(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, last.Timestamp)
	if err != nil {
		ts, err = time.Parse(time.RFC3339, last.Timestamp)
	}
	if err != nil {
		return uuid.NewString(), nil
	}
	if s.nowUTC().Sub(ts) < threadWindow {
		return last.ThreadID, nil
	}
	return uuid.NewString(), nil
}
