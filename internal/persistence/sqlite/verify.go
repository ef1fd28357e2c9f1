package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrCorrupt is returned when an integrity check reports problems.
var ErrCorrupt = errors.New("sqlite: integrity check failed")

// VerifyIntegrity checks an existing database file for structural corruption
// before a store opens it. Mode is "quick" (PRAGMA quick_check) or "full"
// (PRAGMA integrity_check). It returns the diagnostic rows if corruption is
// found, or nil if healthy. The file must exist.
func VerifyIntegrity(ctx context.Context, path string, mode string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat database for verification: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database for verification: %w", err)
	}
	defer db.Close()
	return check(ctx, db, mode)
}

// QuickCheck runs PRAGMA quick_check on an open database and wraps any
// reported issue in ErrCorrupt.
func QuickCheck(ctx context.Context, db *sql.DB) error {
	issues, err := check(ctx, db, "quick")
	if err != nil {
		return err
	}
	if issues != nil {
		return fmt.Errorf("%w: %s", ErrCorrupt, strings.Join(issues, "; "))
	}
	return nil
}

func check(ctx context.Context, db *sql.DB, mode string) ([]string, error) {
	pragma := "PRAGMA quick_check;"
	if mode == "full" {
		pragma = "PRAGMA integrity_check;"
	}

	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, fmt.Errorf("integrity pragma failed: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var res string
		if err := rows.Scan(&res); err != nil {
			return nil, fmt.Errorf("failed to scan integrity result row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// success is exactly a single row with "ok"
	if len(results) == 1 && strings.EqualFold(results[0], "ok") {
		return nil, nil
	}
	if len(results) == 0 {
		return []string{"no results returned from integrity check"}, nil
	}
	return results, nil
}
