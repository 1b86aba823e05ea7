// Package testutil opens throwaway in-memory stores for package tests.
package testutil

import (
	"testing"

	"github.com/mbeoliero/beatdm/internal/entity"
	"github.com/mbeoliero/beatdm/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenMemoryDB opens a private sqlite in-memory database.
// The pool is pinned to one connection so every query sees the same database.
func OpenMemoryDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), repository.GormConfig(logger.Default.LogMode(logger.Silent)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewRepositories builds repositories over two separate in-memory stores
// with the chat schema migrated and no Redis
func NewRepositories(t testing.TB) *repository.Repositories {
	t.Helper()

	userDB := OpenMemoryDB(t)
	require.NoError(t, userDB.AutoMigrate(&entity.User{}))

	repos := repository.NewRepositoriesWith(userDB, OpenMemoryDB(t), nil, 0)
	require.NoError(t, repos.Migrate(t.Context()))
	return repos
}

// SeedUsers inserts users into the directory, one per id, named after the id
func SeedUsers(t testing.TB, repos *repository.Repositories, ids ...string) {
	t.Helper()

	for _, id := range ids {
		user := &entity.User{Id: id, Name: "Name " + id, Username: id, Avatar: "https://cdn.example/" + id + ".png"}
		require.NoError(t, repos.UserDB.Create(user).Error)
	}
}
