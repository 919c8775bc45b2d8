package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
)

// PostgresStore reads the user projection synced from the account system.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindUserByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, roles
		FROM users
		WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresStore) ListUsersByRole(ctx context.Context, role domain.Role) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, roles
		FROM users
		WHERE $1 = ANY(roles)
		ORDER BY id`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		var u User
		var roles pq.StringArray
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &roles); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Roles = toRoles(roles)
		out = append(out, &u)
	}
	return out, rows.Err()
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var roles pq.StringArray
	err := row.Scan(&u.ID, &u.Name, &u.Email, &roles)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Roles = toRoles(roles)
	return &u, nil
}

func toRoles(raw []string) []domain.Role {
	roles := make([]domain.Role, len(raw))
	for i, r := range raw {
		roles[i] = domain.Role(r)
	}
	return roles
}
