// Package members implements organization membership management: listing
// members, changing roles, and removing members. These are the destructive
// routes that must consult the authz guard before any store mutation.
package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stewardhq/steward/pkg/authz"
)

// ErrMemberNotFound indicates the (organization, user) pair has no
// membership row.
var ErrMemberNotFound = errors.New("members: member not found")

// Member is an organization member.
type Member struct {
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	Role           authz.Role `json:"role"`
	JoinedAt       time.Time  `json:"joined_at"`
}

// Service manages membership records.
type Service interface {
	ListMembers(ctx context.Context, orgID string) ([]*Member, error)
	GetMember(ctx context.Context, orgID, userID string) (*Member, error)
	UpdateMemberRole(ctx context.Context, orgID, userID string, role authz.Role) error
	RemoveMember(ctx context.Context, orgID, userID string) error
}

// PostgresService implements Service on the org_memberships table.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a membership service over an open pool.
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// ListMembers retrieves all members of an organization
func (s *PostgresService) ListMembers(ctx context.Context, orgID string) ([]*Member, error) {
	query := `
		SELECT user_id, organization_id, role, joined_at
		FROM org_memberships
		WHERE organization_id = $1
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		if err := rows.Scan(&member.UserID, &member.OrganizationID, &member.Role, &member.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}

// GetMember retrieves a specific member
func (s *PostgresService) GetMember(ctx context.Context, orgID, userID string) (*Member, error) {
	query := `
		SELECT user_id, organization_id, role, joined_at
		FROM org_memberships
		WHERE organization_id = $1 AND user_id = $2
	`
	member := &Member{}
	err := s.db.QueryRowContext(ctx, query, orgID, userID).Scan(
		&member.UserID, &member.OrganizationID, &member.Role, &member.JoinedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// UpdateMemberRole updates a member's role
func (s *PostgresService) UpdateMemberRole(ctx context.Context, orgID, userID string, role authz.Role) error {
	query := `UPDATE org_memberships SET role = $1 WHERE organization_id = $2 AND user_id = $3`
	result, err := s.db.ExecContext(ctx, query, role, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// RemoveMember removes a user from an organization
func (s *PostgresService) RemoveMember(ctx context.Context, orgID, userID string) error {
	query := `DELETE FROM org_memberships WHERE organization_id = $1 AND user_id = $2`
	result, err := s.db.ExecContext(ctx, query, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}
