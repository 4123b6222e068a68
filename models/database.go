package models

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/MrMohammed1/miran-search/app/trigram"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqliteDriverName is a go-sqlite3 driver with similarity() registered and
// foreign keys enforced on every connection.
const sqliteDriverName = "sqlite3_trgm"

var registerSQLite sync.Once

// Open connects to the catalog database. Postgres is the production store;
// SQLite is used for tests and local development and gets a similarity()
// function with pg_trgm semantics so the same search SQL runs on both.
func Open(driver, dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		registerSQLite.Do(func() {
			sql.Register(sqliteDriverName, &sqlite3.SQLiteDriver{
				ConnectHook: func(conn *sqlite3.SQLiteConn) error {
					if err := conn.RegisterFunc("similarity", trigram.Similarity, true); err != nil {
						return err
					}
					_, err := conn.Exec("PRAGMA foreign_keys = ON", nil)
					return err
				},
			})
		})
		dialector = sqlite.New(sqlite.Config{DriverName: sqliteDriverName, DSN: dsn})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// Every connection to ":memory:" is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates the schema. On Postgres it also enables pg_trgm
// and builds the trigram GIN indexes that serve both ILIKE containment and
// similarity() ranking.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Category{}, &Product{}, &User{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}

	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS pg_trgm",
		"CREATE INDEX IF NOT EXISTS category_name_trgm_idx ON categories USING gin (name gin_trgm_ops)",
		"CREATE INDEX IF NOT EXISTS product_name_trgm_idx ON products USING gin (name gin_trgm_ops)",
		"CREATE INDEX IF NOT EXISTS product_brand_trgm_idx ON products USING gin (brand gin_trgm_ops)",
		"CREATE INDEX IF NOT EXISTS product_description_trgm_idx ON products USING gin (description gin_trgm_ops)",
		"CREATE INDEX IF NOT EXISTS product_name_brand_trgm_idx ON products USING gin (name gin_trgm_ops, brand gin_trgm_ops)",
		"CREATE INDEX IF NOT EXISTS product_category_calories_idx ON products (category_id, calories)",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migrate %q: %w", stmt, err)
		}
	}
	return nil
}
