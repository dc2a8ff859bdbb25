package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Quai1921/SmartClass-sub000/internal/content"
	"github.com/Quai1921/SmartClass-sub000/internal/module"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(log zerolog.Logger) error {
	err := AppDb.AutoMigrate(
		&module.ModuleContent{},
		&module.ContentRevision{},
	)
	if err != nil {
		return err
	}

	log.Info().Msg("Database schema migrated successfully")
	return nil
}

const demoModuleID = "demo-module"

// SeedData stores an empty demo module (for development only)
func SeedData(ctx context.Context, log zerolog.Logger) error {
	repo := module.NewRepository(AppDb)

	_, err := repo.FindByModuleID(ctx, demoModuleID)
	if err == nil {
		log.Info().Str("module_id", demoModuleID).Msg("Demo module already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	doc := content.NewModuleContent(demoModuleID, "demo-course", time.Now().UTC())
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	row := &module.ModuleContent{
		ModuleID:      demoModuleID,
		CourseID:      doc.Metadata.CourseID,
		SchemaVersion: doc.Version,
		Content:       datatypes.JSON(raw),
		TotalPages:    doc.Content.TotalPages,
		TotalElements: doc.Content.Metadata.TotalElements,
	}
	if err := repo.Upsert(ctx, row); err != nil {
		return err
	}

	log.Info().Str("module_id", demoModuleID).Msg("Created demo module")
	return nil
}
