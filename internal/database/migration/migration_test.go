package migration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureMigrated(t *testing.T) {
	t.Run("schema present", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT to_regclass").
			WithArgs(sentinelRelation).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		assert.NoError(t, EnsureMigrated(context.Background(), db, "localhost"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("interrupted migration resumes", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		// borrows exists but its unique index does not, so the sentinel is missing
		mock.ExpectQuery("SELECT to_regclass").
			WithArgs(sentinelRelation).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		for range steps {
			mock.ExpectExec("IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
		}

		assert.NoError(t, EnsureMigrated(context.Background(), db, "localhost"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fresh database", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT to_regclass").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_documents_created_at").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS borrows").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("idx_borrows_document_status").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("idx_borrows_user").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("uq_borrows_active").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, EnsureMigrated(context.Background(), db, "localhost"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("step failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT to_regclass").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnError(errors.New("permission denied"))

		err = EnsureMigrated(context.Background(), db, "localhost")
		assert.ErrorContains(t, err, "create_table_documents")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSentinelIsCreatedLast(t *testing.T) {
	name := strings.TrimPrefix(sentinelRelation, "public.")
	last := steps[len(steps)-1].SQL
	assert.Contains(t, last, "IF NOT EXISTS "+name+" ")
	for _, step := range steps[:len(steps)-1] {
		assert.NotContains(t, step.SQL, name, step.Name)
	}
}
