package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"assistant-agent/internal/domain"
)

// CreateReminder persists a pending reminder and returns it with its minted
// id, creation time and TTL filled in.
func (s *Store) CreateReminder(ctx context.Context, userID, text string, due time.Time) (domain.Reminder, error) {
	if userID == "" || text == "" {
		return domain.Reminder{}, errors.New("repository: CreateReminder: user_id and text are required")
	}
	r := domain.Reminder{
		UserID:       userID,
		ReminderID:   uuid.NewString(),
		ReminderText: text,
		DueDate:      due.UnixMilli(),
		Status:       domain.ReminderPending,
		CreatedAt:    s.nowUTC().Format(time.RFC3339),
		TTL:          s.ttlValue(),
	}
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return domain.Reminder{}, fmt.Errorf("repository: CreateReminder marshal: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Reminders),
		Item:      item,
	})
	if err != nil {
		return domain.Reminder{}, fmt.Errorf("repository: CreateReminder: %w", err)
	}
	return r, nil
}

// DueReminders returns the user's pending reminders with due_date <= now,
// soonest first.
func (s *Store) DueReminders(ctx context.Context, userID string, now time.Time) ([]domain.Reminder, error) {
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Reminders),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("#status = :pending AND due_date <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid":     &types.AttributeValueMemberS{Value: userID},
			":pending": &types.AttributeValueMemberS{Value: domain.ReminderPending},
			":now":     &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: DueReminders query: %w", err)
	}
	var reminders []domain.Reminder
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &reminders); err != nil {
		return nil, fmt.Errorf("repository: DueReminders unmarshal: %w", err)
	}
	sort.Slice(reminders, func(i, j int) bool { return reminders[i].DueDate < reminders[j].DueDate })
	return reminders, nil
}

// CompleteReminder marks a reminder completed. Reminders are never mutated
// any other way.
func (s *Store) CompleteReminder(ctx context.Context, userID, reminderID string) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tables.Reminders),
		Key: map[string]types.AttributeValue{
			"user_id":     &types.AttributeValueMemberS{Value: userID},
			"reminder_id": &types.AttributeValueMemberS{Value: reminderID},
		},
		UpdateExpression: aws.String("SET #status = :completed"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: domain.ReminderCompleted},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: CompleteReminder: %w", err)
	}
	return nil
}

// DeleteCompletedReminders removes completed reminders across all users and
// returns how many were deleted. Used by the admin cleanup sweep; routine
// expiry is the table's TTL.
func (s *Store) DeleteCompletedReminders(ctx context.Context) (int, error) {
	out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tables.Reminders),
		FilterExpression: aws.String("#status = :completed"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: domain.ReminderCompleted},
		},
		ProjectionExpression: aws.String("user_id, reminder_id"),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: DeleteCompletedReminders scan: %w", err)
	}

	deleted := 0
	for _, item := range out.Items {
		var key struct {
			UserID     string `dynamodbav:"user_id"`
			ReminderID string `dynamodbav:"reminder_id"`
		}
		if err := attributevalue.UnmarshalMap(item, &key); err != nil {
			continue
		}
		_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.tables.Reminders),
			Key: map[string]types.AttributeValue{
				"user_id":     &types.AttributeValueMemberS{Value: key.UserID},
				"reminder_id": &types.AttributeValueMemberS{Value: key.ReminderID},
			},
		})
		if err != nil {
			return deleted, fmt.Errorf("repository: DeleteCompletedReminders delete: %w", err)
		}
		deleted++
	}
	return deleted, nil
}
