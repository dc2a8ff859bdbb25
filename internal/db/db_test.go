package db

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Quai1921/SmartClass-sub000/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func TestDSN(t *testing.T) {
	cfg := config.Config{DBHost: "db", DBPort: "5433", DBUser: "app", DBPassword: "pw", DBName: "pages"}

	assert.Equal(t, "host=db user=app password=pw dbname=pages port=5433 sslmode=disable", dsn(cfg))
}

func TestGormLogger_WritesThroughZerolog(t *testing.T) {
	var out bytes.Buffer
	log := zerolog.New(&out).Level(zerolog.DebugLevel)

	l := gormLogger(config.Config{Environment: "development"}, log)
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)

	assert.Contains(t, out.String(), "SELECT 1")
	assert.Contains(t, out.String(), `"component":"gorm"`)
}

func TestGormLogger_ProductionOnlyErrors(t *testing.T) {
	var out bytes.Buffer
	log := zerolog.New(&out).Level(zerolog.DebugLevel)

	l := gormLogger(config.Config{Environment: "production"}, log)
	l.Info(context.Background(), "chatty %s", "message")

	assert.Empty(t, out.String())
	assert.NotNil(t, l.LogMode(logger.Silent))
}
