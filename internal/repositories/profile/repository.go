package profile

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

// Filter narrows profile listings. Search matches name, email, or phone.
type Filter struct {
	InvestigationID string
	Search          string
}

// ProfileRepository defines the interface for profile operations
type ProfileRepository interface {
	Create(ctx context.Context, req models.CreateProfileRequest) (*models.Profile, error)
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	List(ctx context.Context, filter Filter, page, pageSize int) ([]models.Profile, int, error)
	Update(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.Profile, error)
	Delete(ctx context.Context, id string) error
}

// Repository implements ProfileRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new profile repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const tableName = "profiles"

var columns = []string{"id", "investigation_id", "name", "email", "phone", "address", "social_media", "confidence", "created_at", "updated_at", "deleted_at"}

// Create creates a new profile
func (r *Repository) Create(ctx context.Context, req models.CreateProfileRequest) (*models.Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileRepository.Create")
	defer span.End()

	now := time.Now()
	id := uuid.New().String()

	social := req.SocialMedia
	if social == nil {
		social = []models.SocialMediaLink{}
	}

	sb := sqlbuilder.NewInsertBuilder()
	sb.InsertInto(tableName)
	sb.Cols("id", "investigation_id", "name", "email", "phone", "address", "social_media", "confidence", "created_at", "updated_at")
	sb.Values(id, req.InvestigationID, req.Name, req.Email, req.Phone, req.Address, database.NewJSONB(social), 0, now, now)

	query, args := sb.Build()

	_, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create profile")
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":               id,
		"investigation_id": req.InvestigationID,
	}).Info("created profile")

	return r.GetByID(ctx, id)
}

// GetByID gets a profile by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileRepository.GetByID")
	defer span.End()

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	var p models.Profile
	err := r.db.GetContext(ctx, &p, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get profile by ID")
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

// List lists profiles with pagination, scoped by investigation and/or a
// search term over name, email, and phone
func (r *Repository) List(ctx context.Context, filter Filter, page, pageSize int) ([]models.Profile, int, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileRepository.List")
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
		if filter.InvestigationID != "" {
			sb.Where(sb.Equal("investigation_id", filter.InvestigationID))
		}
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			sb.Where(sb.Or(
				sb.ILike("name", pattern),
				sb.ILike("email", pattern),
				sb.ILike("phone", pattern),
			))
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to count profiles")
		return nil, 0, fmt.Errorf("failed to count profiles: %w", err)
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(tableName)
	applyFilter(sb)
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize)
	sb.Offset(offset)

	query, args := sb.Build()

	var items []models.Profile
	err = r.db.SelectContext(ctx, &items, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list profiles")
		return nil, 0, fmt.Errorf("failed to list profiles: %w", err)
	}

	return items, totalCount, nil
}

// Update updates a profile
func (r *Repository) Update(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "ProfileRepository.Update")
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

	if req.Name != nil {
		sb.Set(sb.Assign("name", *req.Name))
	}
	if req.Email != nil {
		sb.Set(sb.Assign("email", *req.Email))
	}
	if req.Phone != nil {
		sb.Set(sb.Assign("phone", *req.Phone))
	}
	if req.Address != nil {
		sb.Set(sb.Assign("address", *req.Address))
	}
	if req.SocialMedia != nil {
		sb.Set(sb.Assign("social_media", database.NewJSONB(*req.SocialMedia)))
	}
	if req.Confidence != nil {
		sb.Set(sb.Assign("confidence", *req.Confidence))
	}

	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to update profile")
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"rows_affected": rowsAffected,
	}).Info("updated profile")

	return r.GetByID(ctx, id)
}

// Delete soft deletes a profile
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "ProfileRepository.Delete")
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
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete profile")
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{
		"id":            id,
		"rows_affected": rowsAffected,
	}).Info("deleted profile")

	return nil
}
