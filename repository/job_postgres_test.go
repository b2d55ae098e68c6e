package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// The gorm store runs against in-memory SQLite; the SQL it issues is
// portable to Postgres.
func newSQLiteJobRepository(t *testing.T) *JobPostgresRepository {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewJobPostgresRepository(db)
	require.NoError(t, repo.Migrate())
	return repo
}

func TestJobPostgresRepository(t *testing.T) {
	runJobStoreSuite(t, func(t *testing.T) JobStore {
		return newSQLiteJobRepository(t)
	})
}

func TestJobModel_JSONColumnTypes(t *testing.T) {
	repo := newSQLiteJobRepository(t)

	columns, err := repo.db.Migrator().ColumnTypes(&JobModel{})
	require.NoError(t, err)

	types := map[string]string{}
	for _, c := range columns {
		types[c.Name()] = strings.ToUpper(c.DatabaseTypeName())
	}
	for _, name := range []string{"progress", "result", "error"} {
		assert.Equal(t, "TEXT", types[name], name)
	}
}
