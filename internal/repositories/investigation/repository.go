package investigation

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

// InvestigationRepository defines the interface for investigation operations
type InvestigationRepository interface {
	Create(ctx context.Context, ownerID string, req models.CreateInvestigationRequest) (*models.Investigation, error)
	GetByID(ctx context.Context, id string) (*models.Investigation, error)
	List(ctx context.Context, filter models.InvestigationFilter, page, pageSize int) ([]models.Investigation, int, error)
	Update(ctx context.Context, id string, req models.UpdateInvestigationRequest) (*models.Investigation, error)
	Delete(ctx context.Context, id string) error
	IncrementProfileCount(ctx context.Context, id string, delta int) error
}

// Repository implements InvestigationRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new investigation repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "investigations"

var columns = []string{"id", "owner_id", "title", "description", "status", "priority", "profiles", "confidence", "created_at", "updated_at", "deleted_at"}

// Create creates a new investigation
func (r *Repository) Create(ctx context.Context, ownerID string, req models.CreateInvestigationRequest) (*models.Investigation, error) {
	ctx, span := tracing.StartSpan(ctx, "InvestigationRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()

	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}

	sb := sqlbuilder.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "owner_id", "title", "description", "status", "priority", "profiles", "confidence", "created_at", "updated_at")
	sb.Values(id, ownerID, req.Title, req.Description, models.InvestigationStatusActive, priority, 0, 0, now, now)

	query, args := sb.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create investigation")
		return nil, fmt.Errorf("failed to create investigation: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":       id,
		"owner_id": ownerID,
		"title":    req.Title,
	}).Info("created investigation")

	return r.GetByID(ctx, id)
}

// GetByID gets an investigation by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Investigation, error) {
	ctx, span := tracing.StartSpan(ctx, "InvestigationRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var inv models.Investigation
	err := r.db.GetContext(ctx, &inv, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get investigation by ID")
		return nil, fmt.Errorf("failed to get investigation: %w", err)
	}

	return &inv, nil
}

// List lists investigations with optional filters and pagination
func (r *Repository) List(ctx context.Context, filter models.InvestigationFilter, page, pageSize int) ([]models.Investigation, int, error) {
	ctx, span := tracing.StartSpan(ctx, "InvestigationRepository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	applyFilter := func(sb *sqlbuilder.SelectBuilder) {
		sb.Where(sb.IsNull("deleted_at"))
		if filter.Status != "" {
			sb.Where(sb.Equal("status", filter.Status))
		}
		if filter.Priority != "" {
			sb.Where(sb.Equal("priority", filter.Priority))
		}
		if filter.Search != "" {
			sb.Where(sb.ILike("title", "%"+filter.Search+"%"))
		}
	}

	countSb := sqlbuilder.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From(tableName)
	applyFilter(countSb)
	countQuery, countArgs := countSb.Build()

	var totalCount int
	err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count investigations")
		return nil, 0, fmt.Errorf("failed to count investigations: %w", err)
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	applyFilter(sb)
	sb.OrderBy("updated_at DESC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args := sb.Build()

	var items []models.Investigation
	err = r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list investigations")
		return nil, 0, fmt.Errorf("failed to list investigations: %w", err)
	}

	return items, totalCount, nil
}

// Update updates an investigation
func (r *Repository) Update(ctx context.Context, id string, req models.UpdateInvestigationRequest) (*models.Investigation, error) {
	ctx, span := tracing.StartSpan(ctx, "InvestigationRepository.Update")
	defer span.End()

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	sb := sqlbuilder.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(sb.Assign("updated_at", time.Now()))

	if req.Title != nil {
		sb.Set(sb.Assign("title", *req.Title))
	}
	if req.Description != nil {
		sb.Set(sb.Assign("description", *req.Description))
	}
	if req.Status != nil {
		sb.Set(sb.Assign("status", *req.Status))
	}
	if req.Priority != nil {
		sb.Set(sb.Assign("priority", *req.Priority))
	}

	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update investigation")
		return nil, fmt.Errorf("failed to update investigation: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"rows_affected": rowsAffected,
	}).Info("updated investigation")

	return r.GetByID(ctx, id)
}

// Delete soft deletes an investigation
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "InvestigationRepository.Delete")
	defer span.End()

	sb := sqlbuilder.NewUpdateBuilder()
	sb.Update(tableName)
	sb.Set(sb.Assign("deleted_at", time.Now()))
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete investigation")
		return fmt.Errorf("failed to delete investigation: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"rows_affected": rowsAffected,
	}).Info("deleted investigation")

	return nil
}

// IncrementProfileCount adjusts the cached profile count on an investigation
func (r *Repository) IncrementProfileCount(ctx context.Context, id string, delta int) error {
	ctx, span := tracing.StartSpan(ctx, "InvestigationRepository.IncrementProfileCount")
	defer span.End()

	query := fmt.Sprintf("UPDATE %s SET profiles = GREATEST(profiles + $1, 0), updated_at = $2 WHERE id = $3 AND deleted_at IS NULL", tableName)
	_, err := r.db.ExecContext(ctx, query, delta, time.Now(), id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update profile count")
		return fmt.Errorf("failed to update profile count: %w", err)
	}
	return nil
}
