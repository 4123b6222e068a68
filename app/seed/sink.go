package seed

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MrMohammed1/miran-search/app/logging"
	"github.com/MrMohammed1/miran-search/models"
)

// Sink persists one batch of generated products in its own transaction.
type Sink interface {
	WriteBatch(ctx context.Context, products []models.Product) error
}

// insertChunk keeps multi-row INSERTs under SQLite's bound parameter limit.
const insertChunk = 500

// GormSink inserts batches through gorm. It works on every supported dialect.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) WriteBatch(ctx context.Context, products []models.Product) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("Category").CreateInBatches(&products, insertChunk).Error
	})
}

// ExistingNames returns every product name already stored.
func ExistingNames(ctx context.Context, db *gorm.DB) ([]string, error) {
	var names []string
	if err := db.WithContext(ctx).Model(&models.Product{}).Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("load product names: %w", err)
	}
	return names, nil
}

// CopySink streams batches into Postgres with COPY FROM STDIN. db must be a
// connection opened with the lib/pq driver.
type CopySink struct {
	db *sql.DB
}

func NewCopySink(db *sql.DB) *CopySink {
	return &CopySink{db: db}
}

func (s *CopySink) WriteBatch(ctx context.Context, products []models.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("products",
		"name", "brand", "category_id", "description", "calories",
		"protein", "carbs", "fats", "created_at", "updated_at"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	now := time.Now()
	for _, p := range products {
		if _, err := stmt.ExecContext(ctx,
			p.Name, p.Brand, p.CategoryID, p.Description, p.Calories,
			p.Protein.String(), p.Carbs.String(), p.Fats.String(), now, now,
		); err != nil {
			stmt.Close()
			return fmt.Errorf("copy row: %w", err)
		}
	}
	// The final Exec without arguments flushes the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// Run generates count products and writes them to sink in batches of
// batchSize. Batches are committed independently, so a failure leaves the
// earlier batches in place. It returns the number of products written.
func Run(ctx context.Context, gen *Generator, sink Sink, count, batchSize int, logger *zap.Logger) (int, error) {
	logger = logging.OrNop(logger)
	if batchSize <= 0 {
		batchSize = count
	}

	inserted := 0
	batch := make([]models.Product, 0, min(batchSize, count))
	for i := 0; i < count; i++ {
		batch = append(batch, gen.Product())
		if len(batch) < batchSize && i < count-1 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		if err := sink.WriteBatch(ctx, batch); err != nil {
			return inserted, fmt.Errorf("write batch ending at %d: %w", i+1, err)
		}
		inserted += len(batch)
		batch = batch[:0]
		logger.Info("inserted products", zap.Int("inserted", inserted), zap.Int("total", count))
	}
	return inserted, nil
}
