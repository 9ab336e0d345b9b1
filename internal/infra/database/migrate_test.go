package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaCarriesUniquenessConstraints(t *testing.T) {
	assert.Contains(t, schemaSQL, "CONSTRAINT follow_ups_surgery_day_key UNIQUE (surgery_id, day_number)")
	assert.Contains(t, schemaSQL, "CONSTRAINT follow_up_responses_follow_up_id_key UNIQUE (follow_up_id)")
	assert.Contains(t, schemaSQL, "patients_phone_normalized_idx")
	assert.Contains(t, schemaSQL, "'expired', 'skipped'")
}

func TestMigrateExecutesSchema(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS doctors`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
