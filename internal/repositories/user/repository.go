package user

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/nightshade-io/nightshade/pkg/database"
	"github.com/nightshade-io/nightshade/pkg/models"
	"github.com/nightshade-io/nightshade/pkg/tracing"
)

// UserRepository defines the interface for user operations
type UserRepository interface {
	Create(ctx context.Context, username, hashedPassword, role string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Repository implements UserRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new user repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "users"

var columns = []string{"id", "username", "role", "hashed_password", "created_at", "updated_at"}

// Create creates a new user
func (r *Repository) Create(ctx context.Context, username, hashedPassword, role string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()

	sb := sqlbuilder.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "username", "role", "hashed_password", "created_at", "updated_at")
	sb.Values(id, username, role, hashedPassword, now, now)

	query, args := sb.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":       id,
		"username": username,
	}).Info("created user")

	return r.GetByID(ctx, id)
}

// GetByID gets a user by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()

	var u models.User
	err := r.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get user by ID")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetByUsername gets a user by username
func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "UserRepository.GetByUsername")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(sb.Equal("username", username))

	query, args := sb.Build()

	var u models.User
	err := r.db.GetContext(ctx, &u, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get user by username")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}
