// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/reino-app/bestias-backend/internal/domain"
)

// sqlitePragmas are applied on every open. WAL plus a busy timeout keeps
// concurrent readers happy while a report generation writes.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

// OpenSQLite opens (or creates) the database file at path. When trace is
// true, GORM queries are exported as OpenTelemetry spans.
func OpenSQLite(path string, trace bool) (*gorm.DB, error) {
	// A missing parent directory surfaces from the driver as a cryptic
	// "out of memory (14)"; check it up front instead.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	for _, p := range sqlitePragmas {
		db.Exec(p)
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if trace {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all domain models, including
// the unique indexes the idempotency and pair-key invariants rely on.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.UserResult{},
		&domain.Run{},
		&domain.RunAnswer{},
		&domain.ShortResult{},
		&domain.FullResult{},
		&domain.CompatReport{},
		&domain.Invite{},
		&domain.PackPurchase{},
	)
}
