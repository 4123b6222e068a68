package models

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrCategoryNotFound is returned when a category is not found.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrDuplicateName is returned when another category already uses the name.
	ErrDuplicateName = errors.New("category with this name already exists")
)

// slugAttempts bounds retries when a concurrent writer takes the slug we picked.
const slugAttempts = 3

type CategoriesRepository struct {
	db *gorm.DB
}

func NewCategoriesRepository(db *gorm.DB) *CategoriesRepository {
	return &CategoriesRepository{
		db: db,
	}
}

// GetAllCategories returns one page of categories ordered by name and the total count.
func (r *CategoriesRepository) GetAllCategories(ctx context.Context, offset, limit int) ([]Category, int64, error) {
	var categories []Category
	var total int64

	query := r.db.WithContext(ctx).Model(&Category{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("name ASC").Order("id ASC").Offset(offset).Limit(limit).Find(&categories).Error; err != nil {
		return nil, 0, err
	}
	return categories, total, nil
}

func (r *CategoriesRepository) GetByID(ctx context.Context, id uint) (*Category, error) {
	var category Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// CreateCategory inserts the category, deriving a unique slug from its name
// when none is set: base, base-1, base-2, ...
func (r *CategoriesRepository) CreateCategory(ctx context.Context, category *Category) error {
	db := r.db.WithContext(ctx)
	if taken, err := r.nameTaken(db, category.Name, 0); err != nil {
		return err
	} else if taken {
		return ErrDuplicateName
	}

	explicitSlug := category.Slug != ""
	for attempt := 0; attempt < slugAttempts; attempt++ {
		if !explicitSlug {
			slug, err := r.uniqueSlug(db, Slugify(category.Name), category.ID)
			if err != nil {
				return err
			}
			category.Slug = slug
		}

		err := db.Create(category).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		if taken, nameErr := r.nameTaken(db, category.Name, 0); nameErr == nil && taken {
			return ErrDuplicateName
		}
		if explicitSlug {
			return err
		}
	}
	return fmt.Errorf("create category %q: slug still taken after %d attempts", category.Name, slugAttempts)
}

// UpdateCategory saves name and description. The slug is kept as generated.
func (r *CategoriesRepository) UpdateCategory(ctx context.Context, category *Category) error {
	db := r.db.WithContext(ctx)
	if taken, err := r.nameTaken(db, category.Name, category.ID); err != nil {
		return err
	} else if taken {
		return ErrDuplicateName
	}
	if category.Slug == "" {
		slug, err := r.uniqueSlug(db, Slugify(category.Name), category.ID)
		if err != nil {
			return err
		}
		category.Slug = slug
	}

	res := db.Model(category).Select("Name", "Slug", "Description", "UpdatedAt").Updates(category)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateName
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory removes the category; its products go with it.
func (r *CategoriesRepository) DeleteCategory(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// UpsertByName returns the category whose slug equals Slugify(name), creating
// it when missing. When two writers race on the same name, the unique slug
// constraint lets one insert win and the other re-reads the winner.
func (r *CategoriesRepository) UpsertByName(ctx context.Context, name string) (*Category, error) {
	db := r.db.WithContext(ctx)
	slug := Slugify(name)

	if existing, err := r.findBy(db, "slug", slug); err == nil || !errors.Is(err, ErrCategoryNotFound) {
		return existing, err
	}

	category := &Category{
		Name:        name,
		Slug:        slug,
		Description: name + " category",
	}
	err := db.Create(category).Error
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	if winner, findErr := r.findBy(db, "slug", slug); findErr == nil {
		return winner, nil
	}
	// The name is held by a category whose slug was suffixed.
	if winner, findErr := r.findBy(db, "name", name); findErr == nil {
		return winner, nil
	}
	return nil, err
}

func (r *CategoriesRepository) findBy(db *gorm.DB, column, value string) (*Category, error) {
	var category Category
	if err := db.Where(column+" = ?", value).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

func (r *CategoriesRepository) nameTaken(db *gorm.DB, name string, excludeID uint) (bool, error) {
	var count int64
	query := db.Model(&Category{}).Where("name = ?", name)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// uniqueSlug returns base, or the first free base-N. The row being saved is
// excluded so regenerating its own slug never collides with itself.
func (r *CategoriesRepository) uniqueSlug(db *gorm.DB, base string, excludeID uint) (string, error) {
	slug := base
	for counter := 1; ; counter++ {
		var count int64
		query := db.Model(&Category{}).Where("slug = ?", slug)
		if excludeID != 0 {
			query = query.Where("id <> ?", excludeID)
		}
		if err := query.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}
