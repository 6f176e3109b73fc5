package cliutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// queries slower than this are logged at WARN
const slowQueryThreshold = 500 * time.Millisecond

// ParseDatabaseURL picks a gorm dialect for a DATABASE_URL-style string.
//
// Supported forms are "sqlite://path/to/file.db", "sqlite=path",
// "postgres://..." (or "postgresql://...") and "postgres=<dsn>". For file
// backed sqlite the parent directory is created.
func ParseDatabaseURL(dburl string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(dburl, "sqlite://"), strings.HasPrefix(dburl, "sqlite="):
		path := strings.TrimPrefix(strings.TrimPrefix(dburl, "sqlite://"), "sqlite=")
		if path == "" {
			return nil, false, fmt.Errorf("empty sqlite path in database URL")
		}
		if !strings.Contains(path, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
				return nil, false, fmt.Errorf("creating sqlite directory: %w", err)
			}
		}
		return sqlite.Open(path), true, nil
	case strings.HasPrefix(dburl, "postgresql://"), strings.HasPrefix(dburl, "postgres://"):
		return postgres.Open(dburl), false, nil
	case strings.HasPrefix(dburl, "postgres="):
		return postgres.Open(strings.TrimPrefix(dburl, "postgres=")), false, nil
	default:
		return nil, false, fmt.Errorf("unsupported or unrecognized DATABASE_URL scheme")
	}
}

// SetupDatabase opens a gorm handle with query logging through logger. sqlite
// is limited to a single connection and put in WAL mode.
func SetupDatabase(dburl string, maxConnections int, logger *slog.Logger) (*gorm.DB, error) {
	dial, isSqlite, err := ParseDatabaseURL(dburl)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := gorm.Open(dial, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger: slogGorm.New(
			slogGorm.WithLogger(logger.With("component", "db")),
			slogGorm.WithSlowThreshold(slowQueryThreshold),
		),
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	openConns := maxConnections
	if isSqlite || openConns <= 0 {
		openConns = 1
	}
	sqldb.SetMaxIdleConns(openConns)
	sqldb.SetMaxOpenConns(openConns)
	sqldb.SetConnMaxIdleTime(time.Hour)

	if isSqlite {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA synchronous=normal;"} {
			if err := db.Exec(pragma).Error; err != nil {
				return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
			}
		}
	}
	return db, nil
}
