package module

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	FindByModuleID(ctx context.Context, moduleID string) (*ModuleContent, error)
	Upsert(ctx context.Context, row *ModuleContent) error
	CreateRevision(ctx context.Context, revision *ContentRevision) error
	ListRevisions(ctx context.Context, moduleID string, page, pageSize int) ([]RevisionSummary, RevisionsMeta, error)
}

type RepositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) FindByModuleID(ctx context.Context, moduleID string) (*ModuleContent, error) {
	var row ModuleContent
	err := r.db.WithContext(ctx).
		Where("module_id = ?", moduleID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert stores the module's content, replacing what was saved before.
func (r *RepositoryImpl) Upsert(ctx context.Context, row *ModuleContent) error {
	now := time.Now().UTC()
	row.CreatedAt = now
	row.UpdatedAt = now

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "module_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"course_id",
			"schema_version",
			"content",
			"total_pages",
			"total_elements",
			"updated_by",
			"updated_at",
		}),
	}).Create(row).Error
}

func (r *RepositoryImpl) CreateRevision(ctx context.Context, revision *ContentRevision) error {
	if revision.CreatedAt.IsZero() {
		revision.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(revision).Error
}

type RevisionSummary struct {
	ID            string    `json:"id"`
	TotalPages    int       `json:"total_pages"`
	TotalElements int       `json:"total_elements"`
	CreatedBy     uint64    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

type RevisionsMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func (r *RepositoryImpl) ListRevisions(ctx context.Context, moduleID string, page, pageSize int) ([]RevisionSummary, RevisionsMeta, error) {
	revisions := []RevisionSummary{}
	var totalRecords int64

	db := r.db.WithContext(ctx).Model(&ContentRevision{}).Where("module_id = ?", moduleID).Session(&gorm.Session{})
	if err := db.Count(&totalRecords).Error; err != nil {
		return revisions, RevisionsMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := db.Select("id, total_pages, total_elements, created_by, created_at").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Scan(&revisions).Error

	totalPages := int((totalRecords + int64(pageSize) - 1) / int64(pageSize))

	return revisions, RevisionsMeta{
		Total:       totalRecords,
		PerPage:     pageSize,
		TotalPage:   totalPages,
		CurrentPage: page,
	}, err
}
