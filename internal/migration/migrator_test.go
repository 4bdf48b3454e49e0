package migration

import (
	"errors"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tradehub/internal/config"
	"github.com/Additional-Code/tradehub/internal/database"
)

func TestModuleProvidesMigrator(t *testing.T) {
	err := fx.ValidateApp(
		fx.NopLogger,
		Module,
		fx.Supply(config.Config{Database: config.Database{Driver: "sqlite"}}),
		fx.Supply(&database.Connections{}),
		fx.Provide(zap.NewNop),
		fx.Invoke(func(*Migrator) {}),
	)
	require.NoError(t, err)
}

func TestGooseDialect(t *testing.T) {
	for driver, want := range map[string]string{
		"postgres": "postgres",
		"pg":       "postgres",
		"mysql":    "mysql",
		"sqlite":   "sqlite3",
		"sqlite3":  "sqlite3",
	} {
		got, err := gooseDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := gooseDialect("oracle")
	require.Error(t, err)
}

func TestIsNoMigrationErr(t *testing.T) {
	assert.False(t, isNoMigrationErr(nil))
	assert.False(t, isNoMigrationErr(errors.New("connection refused")))
	assert.True(t, isNoMigrationErr(goose.ErrNoNextVersion))
	assert.True(t, isNoMigrationErr(errors.New("no migrations found")))
}
