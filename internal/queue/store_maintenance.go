package queue

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// CheckHealth returns detailed diagnostics about the workflow database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if _, err := os.Stat(s.path); err != nil {
		health.Error = fmt.Sprintf("database file not accessible: %v", err)
		return health, nil
	}
	health.DatabaseExists = true

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		health.Error = fmt.Sprintf("read schema version: %v", err)
		return health, nil
	}
	health.DatabaseReadable = true
	health.SchemaVersion = strconv.Itoa(version)

	var tableExists int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='workflow_items'",
	).Scan(&tableExists); err != nil {
		health.Error = fmt.Sprintf("check workflow_items table: %v", err)
		return health, nil
	}
	health.TableExists = tableExists > 0

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = fmt.Sprintf("integrity check: %v", err)
		return health, nil
	}
	health.IntegrityCheck = integrity == "ok"

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM workflow_items").Scan(&health.TotalItems); err != nil {
		health.Error = fmt.Sprintf("count items: %v", err)
		return health, nil
	}

	return health, nil
}
