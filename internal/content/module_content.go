package content

import (
	"fmt"
	"time"
)

const SchemaVersion = 3

type ModuleMetadata struct {
	ModuleID  string    `json:"moduleId"`
	CourseID  string    `json:"courseId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ModuleContentV3 is the persisted envelope of a module's content.
type ModuleContentV3 struct {
	Version  int              `json:"version"`
	Content  PaginatedContent `json:"content"`
	Metadata ModuleMetadata   `json:"metadata"`
}

func FirstPageID(moduleID string) string {
	return fmt.Sprintf("%s-page-1", moduleID)
}

// NewModuleContent returns the empty document of a module: one page, no elements.
func NewModuleContent(moduleID, courseID string, now time.Time) ModuleContentV3 {
	return ModuleContentV3{
		Version: SchemaVersion,
		Content: NewPaginatedContent(FirstPageID(moduleID), now),
		Metadata: ModuleMetadata{
			ModuleID:  moduleID,
			CourseID:  courseID,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (m ModuleContentV3) Clone() ModuleContentV3 {
	m.Content = m.Content.Clone()
	return m
}
