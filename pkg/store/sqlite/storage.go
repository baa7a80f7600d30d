package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const ReportsTableSchema = `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT NOT NULL,
		source_reference TEXT NOT NULL PRIMARY KEY,
		status TEXT NOT NULL,
		raw_text TEXT NOT NULL DEFAULT '',
		total_co2_kg TEXT NOT NULL DEFAULT '0',
		item_count INTEGER NOT NULL DEFAULT 0,
		factor_table_version TEXT NOT NULL DEFAULT '',
		extractor TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL DEFAULT '',
		error TEXT NULL,
		payload BLOB NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
`

const ReportsCreatedIndex = `
	CREATE INDEX IF NOT EXISTS reports_created_at ON reports (created_at DESC);
`

var bootQueries = []string{
	ReportsTableSchema,
	ReportsCreatedIndex,
}

type Settings struct {
	DbPath string
}

func dsn(path string) string {
	if path == "" || path == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
}

func NewDB(settings Settings) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(settings.DbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if inMemory(settings.DbPath) {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, query := range bootQueries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	return db, nil
}

func inMemory(path string) bool {
	return path == "" || strings.Contains(path, ":memory:")
}
