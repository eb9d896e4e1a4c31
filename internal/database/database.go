package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"imageupdater/internal/models"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

type Database struct {
	DB      *gorm.DB
	Dialect Dialect
}

func New(databaseURL string) (*Database, error) {
	return Open(databaseURL, logger.Warn)
}

// Open connects using the URL scheme: sqlite://path, mysql://dsn, anything
// else is handed to postgres.
func Open(databaseURL string, level logger.LogLevel) (*Database, error) {
	var (
		db      *gorm.DB
		err     error
		dialect Dialect
	)
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(level),
	}

	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		// SQLite for development and tests
		dialect = DialectSQLite
		db, err = gorm.Open(sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://")), cfg)
	case strings.HasPrefix(databaseURL, "mysql://"):
		dialect = DialectMySQL
		db, err = gorm.Open(mysql.Open(strings.TrimPrefix(databaseURL, "mysql://")), cfg)
	default:
		// PostgreSQL for production
		dialect = DialectPostgres
		db, err = gorm.Open(postgres.Open(databaseURL), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == DialectSQLite {
		// one connection so :memory: databases are shared and writes serialize
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	d := &Database{DB: db, Dialect: dialect}
	if err := d.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return d, nil
}

// column types that differ between dialects
func (d *Database) types() (serial, ts string) {
	switch d.Dialect {
	case DialectSQLite:
		return "INTEGER PRIMARY KEY AUTOINCREMENT", "DATETIME"
	case DialectMySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY", "DATETIME(6)"
	default:
		return "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}
}

func (d *Database) createTables() error {
	serial, ts := d.types()

	// Create tables manually with raw SQL, one statement per Exec since
	// MySQL refuses multi-statement strings.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS image_update_operations (
			operation_id VARCHAR(64) PRIMARY KEY,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + `,
			shop_domain VARCHAR(255) NOT NULL DEFAULT '',
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			user_name VARCHAR(255) NOT NULL DEFAULT '',
			collection_id VARCHAR(255) NOT NULL,
			collection_name VARCHAR(255) NOT NULL DEFAULT '',
			product_ids TEXT,
			before_snapshot_key VARCHAR(512) NOT NULL DEFAULT '',
			after_snapshot_key VARCHAR(512) NOT NULL DEFAULT '',
			status VARCHAR(16) NOT NULL,
			products_count INTEGER NOT NULL DEFAULT 0,
			images_updated INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			csv_uploaded BOOLEAN NOT NULL DEFAULT FALSE,
			repeat_of VARCHAR(64),
			completed_at ` + ts + `,
			rolled_back_at ` + ts + `
		)`,
		`CREATE TABLE IF NOT EXISTS image_update_rows (
			id ` + serial + `,
			operation_id VARCHAR(64) NOT NULL,
			line_no INTEGER NOT NULL,
			product_id VARCHAR(255) NOT NULL,
			product_handle VARCHAR(255) NOT NULL DEFAULT '',
			current_image_id VARCHAR(255) NOT NULL DEFAULT '',
			current_image_src TEXT,
			collection_name VARCHAR(255) NOT NULL DEFAULT '',
			new_image_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS image_changes (
			id ` + serial + `,
			operation_id VARCHAR(64) NOT NULL,
			product_id VARCHAR(255) NOT NULL,
			kind VARCHAR(16) NOT NULL,
			old_image_id VARCHAR(255) NOT NULL DEFAULT '',
			old_src TEXT,
			old_alt TEXT,
			old_position INTEGER NOT NULL DEFAULT 0,
			old_variant_ids TEXT,
			new_image_id VARCHAR(255) NOT NULL DEFAULT '',
			new_src TEXT,
			restored_image_id VARCHAR(255) NOT NULL DEFAULT '',
			created_at ` + ts + `,
			reverted_at ` + ts + `
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id ` + serial + `,
			token_hash VARCHAR(64) NOT NULL UNIQUE,
			user_name VARCHAR(255) NOT NULL DEFAULT '',
			created_at ` + ts + `,
			expires_at ` + ts + ` NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if err := d.DB.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return d.createIndexes()
}

// createIndexes goes through the migrator because CREATE INDEX IF NOT
// EXISTS is not portable.
func (d *Database) createIndexes() error {
	indexes := []struct {
		model interface{}
		name  string
	}{
		{&models.ImageUpdateOperation{}, "idx_image_update_operations_created_at"},
		{&models.ImageUpdateRow{}, "idx_image_update_rows_operation"},
		{&models.ImageChange{}, "idx_image_changes_operation"},
	}
	m := d.DB.Migrator()
	for _, idx := range indexes {
		if m.HasIndex(idx.model, idx.name) {
			continue
		}
		if err := m.CreateIndex(idx.model, idx.name); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
