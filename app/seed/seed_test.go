package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MrMohammed1/miran-search/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(models.DriverSQLite, ":memory:", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

var testCategories = []models.Category{{ID: 1, Name: "Fruits"}, {ID: 2, Name: "Dairy"}}

type recordingSink struct {
	sizes  []int
	failOn int
}

func (s *recordingSink) WriteBatch(ctx context.Context, products []models.Product) error {
	if s.failOn > 0 && len(s.sizes)+1 == s.failOn {
		return errors.New("disk full")
	}
	s.sizes = append(s.sizes, len(products))
	return nil
}

func TestGeneratorProduct(t *testing.T) {
	gen := NewGenerator(42, testCategories, nil)
	hundred := decimal.NewFromInt(100)

	for i := 0; i < 200; i++ {
		p := gen.Product()
		assert.GreaterOrEqual(t, p.Calories, 10)
		assert.LessOrEqual(t, p.Calories, 500)
		assert.Contains(t, []uint{1, 2}, p.CategoryID)
		assert.NotEmpty(t, p.Brand)
		assert.NotEmpty(t, p.Description)
		assert.Len(t, strings.Fields(p.Name), 3, p.Name)
		for _, macro := range []decimal.Decimal{p.Protein, p.Carbs, p.Fats} {
			assert.False(t, macro.IsNegative())
			assert.True(t, macro.LessThan(hundred))
			assert.LessOrEqual(t, -macro.Exponent(), int32(2))
		}
	}
}

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(7, testCategories, nil)
	b := NewGenerator(7, testCategories, nil)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Product(), b.Product())
	}
}

func TestGeneratorFallsBackWhenNamesAreTaken(t *testing.T) {
	var used []string
	for _, set := range [][3][]string{
		{arabicAdjectives, arabicProducts, arabicWords},
		{englishAdjectives, englishProducts, englishWords},
	} {
		for _, adj := range set[0] {
			for _, product := range set[1] {
				for _, word := range set[2] {
					used = append(used, adj+" "+product+" "+word)
				}
			}
		}
	}

	gen := NewGenerator(1, testCategories, used)
	p := gen.Product()
	assert.Len(t, strings.Fields(p.Name), 2, p.Name)
}

func TestRunBatches(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		batchSize int
		want      []int
	}{
		{"uneven tail", 25, 10, []int{10, 10, 5}},
		{"exact", 20, 10, []int{10, 10}},
		{"single batch", 5, 10, []int{5}},
		{"zero batch size means one batch", 7, 0, []int{7}},
		{"nothing", 0, 10, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			n, err := Run(context.Background(), NewGenerator(1, testCategories, nil), sink, tt.count, tt.batchSize, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.count, n)
			assert.Equal(t, tt.want, sink.sizes)
		})
	}
}

func TestRunKeepsCommittedBatchesOnFailure(t *testing.T) {
	sink := &recordingSink{failOn: 2}
	n, err := Run(context.Background(), NewGenerator(1, testCategories, nil), sink, 30, 10, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 10, n)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Run(ctx, NewGenerator(1, testCategories, nil), &recordingSink{}, 10, 5, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestSeedIntoSQLite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := models.NewCategoriesRepository(db)

	categories, err := EnsureCategories(ctx, repo)
	require.NoError(t, err)
	require.Len(t, categories, 5)

	again, err := EnsureCategories(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, categories[0].ID, again[0].ID, "categories are reused")

	n, err := Run(ctx, NewGenerator(3, categories, nil), NewGormSink(db), 1200, 700, nil)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)

	var stored int64
	require.NoError(t, db.Model(&models.Product{}).Count(&stored).Error)
	assert.Equal(t, int64(1200), stored)

	names, err := ExistingNames(ctx, db)
	require.NoError(t, err)
	assert.Len(t, names, 1200)

	var slugs []string
	require.NoError(t, db.Model(&models.Category{}).Order("slug").Pluck("slug", &slugs).Error)
	assert.Equal(t, []string{"dairy", "fruits", "grains", "proteins", "vegetables"}, slugs)
}
