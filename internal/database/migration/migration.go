package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docvault/internal/logger"
)

type migrationStep struct {
	Name string
	SQL  string
}

// sentinelRelation is created by the last step; its presence means every step ran.
// Keep it pointing at whatever steps creates last.
const sentinelRelation = "public.uq_borrows_active"

var steps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id               UUID        PRIMARY KEY,
  title            TEXT        NOT NULL,
  file_name        TEXT        NOT NULL,
  file_path        TEXT        NOT NULL,
  file_type        TEXT        NOT NULL CHECK (file_type IN ('PDF', 'DOCX')),
  total_pages      INTEGER     NOT NULL DEFAULT 0 CHECK (total_pages >= 0),
  total_copies     INTEGER     NOT NULL DEFAULT 3 CHECK (total_copies >= 1),
  copyright_status TEXT        NOT NULL DEFAULT 'UNKNOWN'
                   CHECK (copyright_status IN ('PUBLIC_DOMAIN', 'OPEN_LICENSE', 'INTERNAL_USE', 'AUTHOR_PERMISSION', 'UNKNOWN')),
  status           TEXT        NOT NULL DEFAULT 'processing'
                   CHECK (status IN ('processing', 'ready', 'failed', 'deleting')),
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at DESC, id DESC);`,
	},
	{
		Name: "create_table_borrows",
		SQL: `CREATE TABLE IF NOT EXISTS borrows (
  id          UUID        PRIMARY KEY,
  user_id     TEXT        NOT NULL,
  document_id UUID        NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
  borrow_date TIMESTAMPTZ NOT NULL,
  due_date    TIMESTAMPTZ NOT NULL,
  return_date TIMESTAMPTZ,
  status      TEXT        NOT NULL DEFAULT 'borrowed' CHECK (status IN ('borrowed', 'returned', 'overdue')),
  CHECK (due_date > borrow_date)
);`,
	},
	{
		Name: "create_index_borrows_document_status",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_borrows_document_status ON borrows (document_id, status);`,
	},
	{
		Name: "create_index_borrows_user",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_borrows_user ON borrows (user_id, borrow_date DESC);`,
	},
	{
		Name: "create_unique_index_borrows_active",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS uq_borrows_active ON borrows (user_id, document_id) WHERE status = 'borrowed';`,
	},
}

// EnsureMigrated creates the schema unless the sentinel relation already exists.
func EnsureMigrated(ctx context.Context, db *sql.DB, dbHost string) error {
	start := time.Now()
	fields := func(extra logger.Fields) logger.Fields {
		f := logger.Fields{"component": "database", "db_host": dbHost}
		for k, v := range extra {
			f[k] = v
		}
		return f
	}

	logger.Info("db_migration_check", fields(nil))

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass($1) IS NOT NULL", sentinelRelation).Scan(&exists); err != nil {
		logger.Error("db_migration_failed", fields(logger.Fields{
			"error":       fmt.Sprintf("failed to check sentinel relation: %v", err),
			"duration_ms": time.Since(start).Milliseconds(),
		}))
		return fmt.Errorf("failed to check sentinel relation: %w", err)
	}

	if exists {
		logger.Info("db_migration_skip", fields(logger.Fields{
			"reason":      "schema already exists",
			"duration_ms": time.Since(start).Milliseconds(),
		}))
		return nil
	}

	logger.Info("db_migration_start", fields(logger.Fields{"steps": len(steps)}))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			logger.Error("db_migration_failed", fields(logger.Fields{
				"migration_step":   step.Name,
				"error":            err,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			}))
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		logger.Debug("db_migration_step", fields(logger.Fields{
			"migration_step":   step.Name,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		}))
	}

	logger.Info("db_migration_success", fields(logger.Fields{"duration_ms": time.Since(start).Milliseconds()}))
	return nil
}
