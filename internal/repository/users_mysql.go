package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"school-inventory-api/internal/model"
)

// MySQLUserRepository implements UserRepository against the school's staff
// directory database.
type MySQLUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new MySQL staff directory repository.
func NewMySQLUserRepository(db *sql.DB) *MySQLUserRepository {
	return &MySQLUserRepository{db: db}
}

// Authenticate resolves an access key to an active staff account.
func (r *MySQLUserRepository) Authenticate(ctx context.Context, accessKey string) (*model.User, error) {
	query := `
		SELECT id, name, role, department_id, is_active
		FROM staff_accounts
		WHERE access_key = ? AND is_active = 1
		LIMIT 1`

	var user model.User
	err := r.db.QueryRowContext(ctx, query, accessKey).Scan(
		&user.ID, &user.Name, &user.Role, &user.DepartmentID, &user.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	if !user.Role.Valid() {
		log.Printf("[UserRepository] Account %s has unknown role %q, treating as Staff", user.ID, user.Role)
		user.Role = model.RoleStaff
	}
	return &user, nil
}

// GetUser retrieves a staff account by id.
func (r *MySQLUserRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT id, name, role, department_id, is_active FROM staff_accounts WHERE id = ? LIMIT 1`

	var user model.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Role, &user.DepartmentID, &user.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Ensure MySQLUserRepository implements UserRepository
var _ UserRepository = (*MySQLUserRepository)(nil)
