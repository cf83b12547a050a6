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

	"assistant-agent/internal/domain"
)

// GetUser fetches one user profile, or nil when the id is unknown.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, errors.New("repository: GetUser: user_id is required")
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tables.Users),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetUser: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("repository: GetUser unmarshal: %w", err)
	}
	return &u, nil
}

// GetUserRole returns the role for userID; unknown users default to the
// plain user role so an unprovisioned profile can still chat.
func (s *Store) GetUserRole(ctx context.Context, userID string) (string, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil || u.Role == "" {
		return domain.RoleUser, nil
	}
	return u.Role, nil
}

// PutUser creates or replaces a user profile.
func (s *Store) PutUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.UserID == "" {
		return domain.User{}, errors.New("repository: PutUser: user_id is required")
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.Status == "" {
		user.Status = "active"
	}
	if user.CreatedAt == "" {
		user.CreatedAt = s.nowUTC().Format(time.RFC3339)
	}
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: PutUser marshal: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Users),
		Item:      item,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("repository: PutUser: %w", err)
	}
	return user, nil
}

// ListUsers returns every profile, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.tables.Users),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListUsers scan: %w", err)
	}
	var users []domain.User
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, fmt.Errorf("repository: ListUsers unmarshal: %w", err)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt < users[j].CreatedAt })
	return users, nil
}

// DeleteUser removes a profile by id.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("repository: DeleteUser: user_id is required")
	}
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tables.Users),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteUser: %w", err)
	}
	return nil
}

// CountItems returns the item count for a table, used by admin statistics.
func (s *Store) CountItems(ctx context.Context, table string) (int, error) {
	out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(table),
		Select:    types.SelectCount,
	})
	if err != nil {
		return 0, fmt.Errorf("repository: CountItems %s: %w", table, err)
	}
	return int(out.Count), nil
}

// TableNames exposes the configured table set for statistics reporting.
func (s *Store) TableNames() Tables {
	return s.tables
}
