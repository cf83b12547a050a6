package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"assistant-agent/internal/domain"
)

// AddKnowledge appends an admin-curated fact to the shared knowledge table.
func (s *Store) AddKnowledge(ctx context.Context, knowledge, createdBy string) (domain.AdminKnowledge, error) {
	if knowledge == "" {
		return domain.AdminKnowledge{}, errors.New("repository: AddKnowledge: knowledge text is required")
	}
	k := domain.AdminKnowledge{
		KnowledgeID: uuid.NewString(),
		Knowledge:   knowledge,
		CreatedAt:   s.nowUTC().Format(time.RFC3339),
		CreatedBy:   createdBy,
		TTL:         s.ttlValue(),
	}
	item, err := attributevalue.MarshalMap(k)
	if err != nil {
		return domain.AdminKnowledge{}, fmt.Errorf("repository: AddKnowledge marshal: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.AdminKnowledge),
		Item:      item,
	})
	if err != nil {
		return domain.AdminKnowledge{}, fmt.Errorf("repository: AddKnowledge: %w", err)
	}
	return k, nil
}

// ListKnowledge returns every stored fact, oldest first. The table is
// account-wide, so a scan is the access path.
func (s *Store) ListKnowledge(ctx context.Context) ([]domain.AdminKnowledge, error) {
	out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.tables.AdminKnowledge),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListKnowledge scan: %w", err)
	}
	var entries []domain.AdminKnowledge
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &entries); err != nil {
		return nil, fmt.Errorf("repository: ListKnowledge unmarshal: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt < entries[j].CreatedAt })
	return entries, nil
}

// DeleteKnowledge removes one fact by id.
func (s *Store) DeleteKnowledge(ctx context.Context, knowledgeID string) error {
	if knowledgeID == "" {
		return errors.New("repository: DeleteKnowledge: knowledge_id is required")
	}
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tables.AdminKnowledge),
		Key: map[string]types.AttributeValue{
			"knowledge_id": &types.AttributeValueMemberS{Value: knowledgeID},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteKnowledge: %w", err)
	}
	return nil
}
