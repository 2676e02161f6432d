package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stewardhq/steward/pkg/authz"
)

// AuthzStore implements authz.Store on PostgreSQL.
//
// Schema:
//
//	org_sessions(user_id TEXT PRIMARY KEY, organization_id TEXT NOT NULL, updated_at TIMESTAMPTZ NOT NULL)
//	org_memberships(user_id TEXT, organization_id TEXT, role TEXT NOT NULL, joined_at TIMESTAMPTZ NOT NULL,
//	                PRIMARY KEY (user_id, organization_id))
type AuthzStore struct {
	db *sql.DB
}

// NewAuthzStore creates a store over an open connection pool.
func NewAuthzStore(db *sql.DB) *AuthzStore {
	return &AuthzStore{db: db}
}

// ResolveUser fetches the user's session and all memberships in a single
// statement. The anchor subquery guarantees at least one row even for users
// with no session and no memberships, so the two reads cannot skew.
func (s *AuthzStore) ResolveUser(ctx context.Context, userID string) (*authz.UserRecord, error) {
	query := `
		SELECT s.organization_id, s.updated_at, m.organization_id, m.role, m.joined_at
		FROM (SELECT $1::text AS user_id) u
		LEFT JOIN org_sessions s ON s.user_id = u.user_id
		LEFT JOIN org_memberships m ON m.user_id = u.user_id
		ORDER BY m.joined_at ASC NULLS LAST
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	defer rows.Close()

	rec := &authz.UserRecord{}
	for rows.Next() {
		var sessionOrg, memberOrg, memberRole sql.NullString
		var sessionUpdated, joinedAt sql.NullTime
		if err := rows.Scan(&sessionOrg, &sessionUpdated, &memberOrg, &memberRole, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan user record: %w", err)
		}

		if rec.Session == nil && sessionOrg.Valid {
			rec.Session = &authz.Session{
				UserID:         userID,
				OrganizationID: sessionOrg.String,
				UpdatedAt:      sessionUpdated.Time,
			}
		}

		if memberOrg.Valid {
			m := authz.Membership{
				UserID:         userID,
				OrganizationID: memberOrg.String,
				Role:           authz.Role(memberRole.String),
			}
			if joinedAt.Valid {
				m.JoinedAt = joinedAt.Time
			}
			rec.Memberships = append(rec.Memberships, m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user record: %w", err)
	}

	return rec, nil
}

// UpsertSession points the user's session at orgID, overwriting any prior
// pointer. At most one active-organization session exists per user.
func (s *AuthzStore) UpsertSession(ctx context.Context, userID, orgID string) error {
	query := `
		INSERT INTO org_sessions (user_id, organization_id, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET organization_id = EXCLUDED.organization_id, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, userID, orgID, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// CountSuperAdmins returns the number of super_admin memberships in an
// organization.
func (s *AuthzStore) CountSuperAdmins(ctx context.Context, orgID string) (int, error) {
	query := `SELECT COUNT(*) FROM org_memberships WHERE organization_id = $1 AND role = $2`
	var count int
	if err := s.db.QueryRowContext(ctx, query, orgID, authz.RoleSuperAdmin).Scan(&count); err != nil {
		return 0, fmt.Errorf("count super_admins: %w", err)
	}
	return count, nil
}
