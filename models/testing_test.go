package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(DriverSQLite, ":memory:", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func mustCategory(t *testing.T, repo *CategoriesRepository, name string) *Category {
	t.Helper()
	c := &Category{Name: name}
	require.NoError(t, repo.CreateCategory(context.Background(), c))
	return c
}

func mustProduct(t *testing.T, repo *ProductsRepository, p Product) *Product {
	t.Helper()
	require.NoError(t, repo.CreateProduct(context.Background(), &p))
	return &p
}
