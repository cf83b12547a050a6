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
	"github.com/google/uuid"

	"assistant-agent/internal/domain"
)

// AddBudgetEntry appends a spending record to the shared ledger.
func (s *Store) AddBudgetEntry(ctx context.Context, entry domain.BudgetEntry) (domain.BudgetEntry, error) {
	if entry.UserID == "" {
		return domain.BudgetEntry{}, errors.New("repository: AddBudgetEntry: user_id is required")
	}
	if entry.BudgetID == "" {
		entry.BudgetID = uuid.NewString()
	}
	now := s.nowUTC()
	if entry.CreatedAt == "" {
		entry.CreatedAt = now.Format(time.RFC3339)
	}
	if entry.Date == "" {
		entry.Date = now.Format("2006-01-02")
	}
	if entry.TTL == 0 {
		entry.TTL = s.ttlValue()
	}
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return domain.BudgetEntry{}, fmt.Errorf("repository: AddBudgetEntry marshal: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Budget),
		Item:      item,
	})
	if err != nil {
		return domain.BudgetEntry{}, fmt.Errorf("repository: AddBudgetEntry: %w", err)
	}
	return entry, nil
}

// ListBudgetEntries returns the full shared ledger, newest first. Account
// wide like the knowledge table, so a scan is the access path.
func (s *Store) ListBudgetEntries(ctx context.Context) ([]domain.BudgetEntry, error) {
	out, err := s.api.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(s.tables.Budget),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListBudgetEntries scan: %w", err)
	}
	var entries []domain.BudgetEntry
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &entries); err != nil {
		return nil, fmt.Errorf("repository: ListBudgetEntries unmarshal: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt > entries[j].CreatedAt })
	return entries, nil
}

// BudgetSummary aggregates the ledger into a total and per-category totals.
type BudgetSummary struct {
	Total      float64
	ByCategory map[string]float64
	Entries    int
}

// SummarizeBudget computes a summary over the whole ledger.
func (s *Store) SummarizeBudget(ctx context.Context) (BudgetSummary, error) {
	entries, err := s.ListBudgetEntries(ctx)
	if err != nil {
		return BudgetSummary{}, err
	}
	summary := BudgetSummary{ByCategory: map[string]float64{}, Entries: len(entries)}
	for _, e := range entries {
		summary.Total += e.Amount
		cat := e.Category
		if cat == "" {
			cat = "uncategorized"
		}
		summary.ByCategory[cat] += e.Amount
	}
	return summary, nil
}
