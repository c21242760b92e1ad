package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustain-group/esg-cli/internal/model"
)

// TestNewSQLite_InvalidDSN verifies that NewSQLite returns an error for
// an invalid DSN (e.g., a path inside a nonexistent directory).
func TestNewSQLite_InvalidDSN(t *testing.T) {
	// Use a path that cannot be created (nested under a nonexistent parent).
	_, err := NewSQLite("/nonexistent-dir-xyz/sub/test.db")
	require.Error(t, err)
}

func TestNewSQLite_CloseAndReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.SaveRecord(ctx, "rec_1", sampleRecord("Acme Corp")))
	require.NoError(t, st.Close())

	// Data written before Close must survive a reopen.
	st2, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer st2.Close()

	rec, err := st2.GetRecord(ctx, "rec_1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Acme Corp", rec.BasicInformation.CompanyName)
}

func TestMigrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Migrate(ctx))
}

func TestSQLite_GetRecord_CorruptJSON(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO extracted_records (record_id, data) VALUES ('rec_x', '{not json')`,
	)
	require.NoError(t, err)

	_, err = st.GetRecord(ctx, "rec_x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal record")
}

func TestSQLite_GetBatchJob_CorruptMemberIDs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO batch_jobs (job_id, member_ids, state) VALUES ('msgbatch_x', 'nope', 'created')`,
	)
	require.NoError(t, err)

	_, err = st.GetBatchJob(ctx, "msgbatch_x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "member ids")
}

func TestSQLite_OperationsAfterClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "closed.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Close())

	ctx := context.Background()
	require.Error(t, st.UpsertStatus(ctx, model.RecordStatus{
		RecordID: "rec_1", Stage: model.StageDownload, Status: model.StatusPending,
	}))
	_, err = st.ListRecords(ctx)
	require.Error(t, err)
}

func TestRecordCompany_Fallbacks(t *testing.T) {
	assert.Equal(t, "Acme Corp", recordCompany(sampleRecord("Acme Corp")))

	rec := &model.ExtractedRecord{
		CompanyDetails: &model.CompanyDetails{LegalName: "Acme Corporation GmbH"},
	}
	assert.Equal(t, "Acme Corporation GmbH", recordCompany(rec))

	assert.Empty(t, recordCompany(&model.ExtractedRecord{}))
}
