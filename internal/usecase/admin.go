package usecase

import (
	"context"
	"errors"
	"strings"

	"assistant-agent/internal/domain"
	"assistant-agent/internal/repository"
)

// adminStore is the slice of repository.Store the operator surface needs.
type adminStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetUserRole(ctx context.Context, userID string) (string, error)
	PutUser(ctx context.Context, user domain.User) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	DeleteUser(ctx context.Context, userID string) error
	ListKnowledge(ctx context.Context) ([]domain.AdminKnowledge, error)
	AddKnowledge(ctx context.Context, knowledge, createdBy string) (domain.AdminKnowledge, error)
	DeleteKnowledge(ctx context.Context, knowledgeID string) error
	DeleteCompletedReminders(ctx context.Context) (int, error)
	DeleteExpiredSearchHistory(ctx context.Context) (int, error)
	CountItems(ctx context.Context, table string) (int, error)
	TableNames() repository.Tables
}

// AdminService exposes the operator surface: user management, table stats,
// knowledge curation and cleanup sweeps. Request authentication (the shared
// operator secret) happens at the transport layer; these methods assume an
// already-authorized caller.
type AdminService struct {
	verifier TokenVerifier
	store    adminStore
}

// NewAdminService wires the operator surface.
func NewAdminService(verifier TokenVerifier, store adminStore) (*AdminService, error) {
	if verifier == nil {
		return nil, errors.New("usecase: verifier must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	return &AdminService{verifier: verifier, store: store}, nil
}

// Status reports whether the bearer of token carries the admin role.
type Status struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}

// Status verifies token and resolves the caller's role. Unlike the admin
// endpoints proper, this is a user-facing check and authenticates with the
// caller's own access token.
func (s *AdminService) Status(ctx context.Context, token string) (Status, error) {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return Status{}, newError(ErrorUnauthenticated, "token verification failed", err)
	}
	role, err := s.store.GetUserRole(ctx, claims.Sub)
	if err != nil {
		return Status{}, newError(ErrorUpstream, "role lookup failed", err)
	}
	return Status{UserID: claims.Sub, IsAdmin: role == domain.RoleAdmin}, nil
}

// ListUsers returns all account profiles.
func (s *AdminService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, newError(ErrorUpstream, "list users failed", err)
	}
	return users, nil
}

// UpsertUser creates or replaces a profile. Role defaults are applied by the
// store; an explicit role must be one of the known values.
func (s *AdminService) UpsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	if strings.TrimSpace(user.UserID) == "" {
		return domain.User{}, newError(ErrorInvalidInput, "user_id is required", nil)
	}
	if user.Role != "" && user.Role != domain.RoleUser && user.Role != domain.RoleAdmin {
		return domain.User{}, newError(ErrorInvalidInput, "unknown role "+user.Role, nil)
	}
	saved, err := s.store.PutUser(ctx, user)
	if err != nil {
		return domain.User{}, newError(ErrorUpstream, "put user failed", err)
	}
	return saved, nil
}

// DeleteUser removes a profile. Deleting an absent user is NotFound so the
// operator notices typos.
func (s *AdminService) DeleteUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return newError(ErrorInvalidInput, "user_id is required", nil)
	}
	existing, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return newError(ErrorUpstream, "get user failed", err)
	}
	if existing == nil {
		return newError(ErrorNotFound, "no such user "+userID, nil)
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return newError(ErrorUpstream, "delete user failed", err)
	}
	return nil
}

// GetUser returns one profile, or NotFound.
func (s *AdminService) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, newError(ErrorInvalidInput, "user_id is required", nil)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, newError(ErrorUpstream, "get user failed", err)
	}
	if user == nil {
		return domain.User{}, newError(ErrorNotFound, "no such user "+userID, nil)
	}
	return *user, nil
}

// ListKnowledge returns all curated facts, oldest first.
func (s *AdminService) ListKnowledge(ctx context.Context) ([]domain.AdminKnowledge, error) {
	knowledge, err := s.store.ListKnowledge(ctx)
	if err != nil {
		return nil, newError(ErrorUpstream, "list knowledge failed", err)
	}
	return knowledge, nil
}

// AddKnowledge records a new curated fact attributed to createdBy.
func (s *AdminService) AddKnowledge(ctx context.Context, knowledge, createdBy string) (domain.AdminKnowledge, error) {
	if strings.TrimSpace(knowledge) == "" {
		return domain.AdminKnowledge{}, newError(ErrorInvalidInput, "knowledge text is required", nil)
	}
	saved, err := s.store.AddKnowledge(ctx, knowledge, createdBy)
	if err != nil {
		return domain.AdminKnowledge{}, newError(ErrorUpstream, "add knowledge failed", err)
	}
	return saved, nil
}

// DeleteKnowledge removes one curated fact.
func (s *AdminService) DeleteKnowledge(ctx context.Context, knowledgeID string) error {
	if strings.TrimSpace(knowledgeID) == "" {
		return newError(ErrorInvalidInput, "knowledge_id is required", nil)
	}
	if err := s.store.DeleteKnowledge(ctx, knowledgeID); err != nil {
		return newError(ErrorUpstream, "delete knowledge failed", err)
	}
	return nil
}

// TableStats maps table names to item counts.
type TableStats struct {
	Users          int `json:"users"`
	Conversations  int `json:"conversations"`
	Reminders      int `json:"reminders"`
	AdminKnowledge int `json:"admin_knowledge"`
	Budget         int `json:"budget"`
	SearchHistory  int `json:"search_history"`
}

// Stats counts items across all tables. Scans are fine here; the tables are
// small and the endpoint is operator-only.
func (s *AdminService) Stats(ctx context.Context) (TableStats, error) {
	tables := s.store.TableNames()
	var stats TableStats
	for _, c := range []struct {
		table string
		dst   *int
	}{
		{tables.Users, &stats.Users},
		{tables.Conversations, &stats.Conversations},
		{tables.Reminders, &stats.Reminders},
		{tables.AdminKnowledge, &stats.AdminKnowledge},
		{tables.Budget, &stats.Budget},
		{tables.SearchHistory, &stats.SearchHistory},
	} {
		n, err := s.store.CountItems(ctx, c.table)
		if err != nil {
			return TableStats{}, newError(ErrorUpstream, "count "+c.table+" failed", err)
		}
		*c.dst = n
	}
	return stats, nil
}

// CleanupResult reports what a maintenance sweep removed.
type CleanupResult struct {
	RemindersDeleted     int `json:"reminders_deleted"`
	SearchHistoryDeleted int `json:"search_history_deleted"`
}

// Cleanup sweeps completed reminders and overdue search-history rows.
// Routine expiry stays with DynamoDB TTL; this forces the stragglers out.
func (s *AdminService) Cleanup(ctx context.Context) (CleanupResult, error) {
	reminders, err := s.store.DeleteCompletedReminders(ctx)
	if err != nil {
		return CleanupResult{}, newError(ErrorUpstream, "reminder cleanup failed", err)
	}
	history, err := s.store.DeleteExpiredSearchHistory(ctx)
	if err != nil {
		return CleanupResult{}, newError(ErrorUpstream, "search history cleanup failed", err)
	}
	return CleanupResult{RemindersDeleted: reminders, SearchHistoryDeleted: history}, nil
}
