package module

import (
	"time"

	"gorm.io/datatypes"
)

// ModuleContent is the persisted ModuleContentV3 of one module.
type ModuleContent struct {
	ID            uint64         `gorm:"primaryKey"`
	ModuleID      string         `gorm:"size:128;not null;uniqueIndex"`
	CourseID      string         `gorm:"size:128;index"`
	SchemaVersion int            `gorm:"not null;default:3"`
	Content       datatypes.JSON `gorm:"type:jsonb;not null"`
	TotalPages    int
	TotalElements int
	UpdatedBy     uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ContentRevision is a snapshot taken after every save.
type ContentRevision struct {
	ID            string         `gorm:"type:uuid;primaryKey"`
	ModuleID      string         `gorm:"size:128;not null;index:idx_revision_module_created,priority:1"`
	Content       datatypes.JSON `gorm:"type:jsonb;not null"`
	TotalPages    int
	TotalElements int
	CreatedBy     uint64
	CreatedAt     time.Time `gorm:"index:idx_revision_module_created,priority:2,sort:desc"`
}
