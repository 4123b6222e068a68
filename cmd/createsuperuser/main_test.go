package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/MrMohammed1/miran-search/models"
)

func TestEnsureSuperuserIsIdempotent(t *testing.T) {
	db, err := models.Open(models.DriverSQLite, ":memory:", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	users := models.NewUsersRepository(db)
	ctx := context.Background()

	created, err := ensureSuperuser(ctx, users, "testuser", "testpass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = ensureSuperuser(ctx, users, "testuser", "otherpass")
	require.NoError(t, err)
	assert.False(t, created)

	user, err := users.GetByUsername(ctx, "testuser")
	require.NoError(t, err)
	assert.True(t, user.IsSuperuser)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("testpass")),
		"an existing account keeps its password")
}
