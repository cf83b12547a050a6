// Package repository persists assistant state in DynamoDB: users,
// conversation turns, reminders, admin knowledge, the budget ledger, and
// per-user search history.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// ttlDuration matches the original deployment: every record expires after
// 30 days via the table's TTL attribute.
const ttlDuration = 30 * 24 * time.Hour

// dynamodbAPI is the minimal DynamoDB interface required by Store.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Tables names the six DynamoDB tables backing the assistant.
type Tables struct {
	Users          string
	Conversations  string
	Reminders      string
	AdminKnowledge string
	Budget         string
	SearchHistory  string
}

func (t Tables) validate() error {
	for _, name := range []string{
		t.Users, t.Conversations, t.Reminders,
		t.AdminKnowledge, t.Budget, t.SearchHistory,
	} {
		if strings.TrimSpace(name) == "" {
			return errors.New("repository: all table names are required")
		}
	}
	return nil
}

// Store wraps the DynamoDB tables for assistant state.
type Store struct {
	api    dynamodbAPI
	tables Tables

	// now is swappable in tests.
	now func() time.Time
}

// New creates a Store over the given tables.
func New(api dynamodbAPI, tables Tables) (*Store, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if err := tables.validate(); err != nil {
		return nil, err
	}
	return &Store{api: api, tables: tables, now: time.Now}, nil
}

// ttlValue returns a Unix timestamp 30 days in the future.
func (s *Store) ttlValue() int64 {
	return s.now().Add(ttlDuration).Unix()
}

func (s *Store) nowUTC() time.Time {
	return s.now().UTC()
}
