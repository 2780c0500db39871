package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/snippetsmaster/snippets-back/internal/db"
)

// Each test gets its own named in-memory database so pooled connections
// see the same data without bleeding across tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	return gdb
}

func newTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func createTestUser(t *testing.T, gdb *gorm.DB, userName string) *db.User {
	t.Helper()

	user := db.User{
		UserName: userName,
		Email:    userName + "@x.com",
		Password: "irrelevant-hash",
		Role:     db.RoleUser,
	}
	require.NoError(t, gdb.Create(&user).Error)
	return &user
}
