package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stanstork/alert-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	CreateUser(ctx context.Context, email, password, firstName, lastName string, role models.UserRole) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// ListByGroup returns the active members of a recipient group.
	ListByGroup(ctx context.Context, group string) ([]models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, first_name, last_name, password_hash, is_active, role, groups`

func (u *userRepository) CreateUser(ctx context.Context, email, password, firstName, lastName string, role models.UserRole) (models.User, error) {
	if role == "" {
		role = models.RoleMember
	}
	if !models.IsValidRole(role) {
		return models.User{}, errors.New("invalid role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		PasswordHash: string(hash),
		IsActive:     true,
		Role:         role,
	}

	const query = `
		INSERT INTO alert.users (id, email, first_name, last_name, password_hash, is_active, role, groups)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err = u.db.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.IsActive,
		string(user.Role),
		pq.Array(user.Groups),
	).Scan(&user.ID)
	if err != nil {
		return models.User{}, errors.Wrap(err, "create user")
	}

	return user, nil
}

func (u *userRepository) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := u.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, errors.New("invalid credentials")
		}
		return models.User{}, err
	}

	if !user.IsActive {
		return models.User{}, errors.New("user is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, errors.New("invalid credentials")
	}

	return user, nil
}

func (u *userRepository) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM alert.users
		WHERE id = $1`
	return scanUser(u.db.QueryRowContext(ctx, query, userID))
}

func (u *userRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM alert.users
		WHERE email = $1`
	return scanUser(u.db.QueryRowContext(ctx, query, strings.TrimSpace(email)))
}

func (u *userRepository) ListByGroup(ctx context.Context, group string) ([]models.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM alert.users
		WHERE $1 = ANY(groups) AND is_active = TRUE
		ORDER BY email`

	rows, err := u.db.QueryContext(ctx, query, group)
	if err != nil {
		return nil, errors.Wrap(err, "list users by group")
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(scanner interface {
	Scan(dest ...interface{}) error
}) (models.User, error) {
	var (
		user   models.User
		role   string
		groups pq.StringArray
	)

	if err := scanner.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsActive,
		&role,
		&groups,
	); err != nil {
		return models.User{}, err
	}

	user.Role = models.UserRole(role)
	user.Groups = groups
	return user, nil
}
