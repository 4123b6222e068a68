package models

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type ProductsRepository struct {
	db *gorm.DB
}

// ErrProductNotFound is returned when a product is not found.
var ErrProductNotFound = errors.New("product not found")

func NewProductsRepository(db *gorm.DB) *ProductsRepository {
	return &ProductsRepository{
		db: db,
	}
}

// GetProducts returns one page of products ordered by id and the total count.
func (r *ProductsRepository) GetProducts(ctx context.Context, offset, limit int) ([]Product, int64, error) {
	var products []Product
	var total int64

	query := r.db.WithContext(ctx).Model(&Product{})

	// Count total before paginating
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Preload("Category").
		Order("products.id ASC").
		Offset(offset).
		Limit(limit).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *ProductsRepository) GetByID(ctx context.Context, id uint) (*Product, error) {
	var product Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err // Other DB error
	}
	return &product, nil
}

// CreateProduct inserts the product. The category must already exist;
// CategoryID is taken from product.Category when it is set.
func (r *ProductsRepository) CreateProduct(ctx context.Context, product *Product) error {
	if product.Category.ID != 0 {
		product.CategoryID = product.Category.ID
	}
	return r.db.WithContext(ctx).Omit("Category").Create(product).Error
}

// SaveProduct writes every column of an existing product.
func (r *ProductsRepository) SaveProduct(ctx context.Context, product *Product) error {
	if product.Category.ID != 0 {
		product.CategoryID = product.Category.ID
	}
	// Select("*") writes zero values too; unlike Save it never falls back to an insert.
	res := r.db.WithContext(ctx).
		Model(product).
		Select("*").
		Omit("ID", "Category", "CreatedAt").
		Updates(product)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *ProductsRepository) DeleteProduct(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}
