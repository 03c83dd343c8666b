package database

import (
	"context"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsRegistered(t *testing.T) {
	ms := GetMigrations()
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "create_comment_tables", ms[0].Name)
	assert.Contains(t, ms[0].UpScript, "CREATE TABLE IF NOT EXISTS comments")
	assert.Contains(t, ms[0].DownScript, "DROP TABLE IF EXISTS comments")
	assert.Equal(t, "000001_create_comment_tables", ms[0].String())

	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999))
}

func TestConnect_SQLiteAutoMigrate(t *testing.T) {
	cfg := &config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBSQLitePath: ":memory:",
		DBSchemaMode: "auto",
	}

	db, err := Connect(cfg)
	require.NoError(t, err)

	for _, model := range []any{&models.User{}, &models.Post{}, &models.Comment{}} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&models.Comment{}, "idx_comments_post_status"))
	assert.True(t, db.Migrator().HasIndex(&models.Comment{}, "idx_comments_parent_id"))
}

func TestApplySchema_AutoRefusedInProduction(t *testing.T) {
	cfg := &config.Config{Env: "production", DBDriver: "sqlite", DBSQLitePath: ":memory:", DBSchemaMode: "auto"}

	db, err := ConnectWithOptions(cfg, ConnectOptions{ApplySchema: false})
	require.NoError(t, err)

	err = ApplySchema(context.Background(), db, cfg)
	assert.Error(t, err)
}

func TestGetSchemaStatus_ReportsPending(t *testing.T) {
	cfg := &config.Config{Env: "test", DBDriver: "sqlite", DBSQLitePath: ":memory:"}

	db, err := ConnectWithOptions(cfg, ConnectOptions{ApplySchema: false})
	require.NoError(t, err)

	status, err := GetSchemaStatus(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, status.AppliedVersions)
	assert.Len(t, status.PendingMigrations, len(GetMigrations()))
}
