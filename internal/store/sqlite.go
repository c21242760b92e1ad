package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sustain-group/esg-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS record_status (
	record_id  TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	message    TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (record_id, stage)
);

CREATE TABLE IF NOT EXISTS extracted_records (
	record_id  TEXT PRIMARY KEY,
	company    TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	failed     INTEGER NOT NULL DEFAULT 0,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_responses (
	id         TEXT PRIMARY KEY,
	record_id  TEXT NOT NULL,
	shape      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS batch_jobs (
	job_id     TEXT PRIMARY KEY,
	member_ids TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT 'created',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_record_status_stage_status ON record_status(stage, status);
CREATE INDEX IF NOT EXISTS idx_raw_responses_record ON raw_responses(record_id, created_at);
CREATE INDEX IF NOT EXISTS idx_batch_jobs_state ON batch_jobs(state);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SeedStatuses inserts pending rows for both stages of every record, leaving
// rows from previous runs untouched so completed work is not redone.
func (s *SQLiteStore) SeedStatuses(ctx context.Context, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: seed statuses begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO record_status (record_id, stage, status, message, updated_at) VALUES (?, ?, ?, '', ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: seed statuses prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, id := range recordIDs {
		for _, stage := range []model.Stage{model.StageDownload, model.StageExtraction} {
			if _, err := stmt.ExecContext(ctx, id, string(stage), string(model.StatusPending), now); err != nil {
				return eris.Wrapf(err, "sqlite: seed status %s/%s", id, stage)
			}
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: seed statuses commit")
}

func (s *SQLiteStore) UpsertStatus(ctx context.Context, st model.RecordStatus) error {
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO record_status (record_id, stage, status, message, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (record_id, stage) DO UPDATE SET status = excluded.status, message = excluded.message, updated_at = excluded.updated_at`,
		st.RecordID, string(st.Stage), string(st.Status), st.Message, updatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert status %s/%s", st.RecordID, st.Stage)
}

func (s *SQLiteStore) GetStatuses(ctx context.Context, recordID string) ([]model.RecordStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, stage, status, message, updated_at FROM record_status WHERE record_id = ? ORDER BY stage`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get statuses %s", recordID)
	}
	defer rows.Close()
	return scanStatuses(rows)
}

func (s *SQLiteStore) ListStatuses(ctx context.Context, filter StatusFilter) ([]model.RecordStatus, error) {
	query := `SELECT record_id, stage, status, message, updated_at FROM record_status WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY record_id, stage`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list statuses")
	}
	defer rows.Close()
	return scanStatuses(rows)
}

// ResetFailed flips failed rows back to pending for one stage so the next run
// picks them up again.
func (s *SQLiteStore) ResetFailed(ctx context.Context, stage model.Stage) (int, error) {
	query := `UPDATE record_status SET status = ?, message = '', updated_at = ? WHERE status = ?`
	args := []any{string(model.StatusPending), time.Now().UTC(), string(model.StatusFailed)}
	if stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(stage))
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset failed")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, recordID string, rec *model.ExtractedRecord) error {
	dataJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extracted_records (record_id, company, industry, failed, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (record_id) DO UPDATE SET company = excluded.company, industry = excluded.industry,
		   failed = excluded.failed, data = excluded.data, updated_at = excluded.updated_at`,
		recordID, recordCompany(rec), rec.Industry, boolToInt(rec.Failed()), string(dataJSON), now, now,
	)
	return eris.Wrapf(err, "sqlite: save record %s", recordID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, recordID string) (*model.ExtractedRecord, error) {
	var dataJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM extracted_records WHERE record_id = ?`,
		recordID,
	).Scan(&dataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", recordID)
	}
	return unmarshalRecord(dataJSON)
}

func (s *SQLiteStore) ListRecords(ctx context.Context) ([]StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, data FROM extracted_records ORDER BY record_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var sr StoredRecord
		var dataJSON string
		if err := rows.Scan(&sr.RecordID, &dataJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		if sr.Record, err = unmarshalRecord(dataJSON); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) SaveRawResponse(ctx context.Context, recordID, shape, body string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_responses (id, record_id, shape, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), recordID, shape, body, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save raw response %s", recordID)
}

// GetRawResponse returns the most recent raw response body for a record, or
// "" when none was recorded.
func (s *SQLiteStore) GetRawResponse(ctx context.Context, recordID string) (string, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM raw_responses WHERE record_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		recordID,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: get raw response %s", recordID)
	}
	return body, nil
}

func (s *SQLiteStore) CreateBatchJob(ctx context.Context, job *model.BatchJob) error {
	memberJSON, err := json.Marshal(job.MemberIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal member ids")
	}

	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batch_jobs (job_id, member_ids, state, created_at) VALUES (?, ?, ?, ?)`,
		job.JobID, string(memberJSON), string(job.State), createdAt,
	)
	return eris.Wrapf(err, "sqlite: create batch job %s", job.JobID)
}

func (s *SQLiteStore) UpdateBatchJobState(ctx context.Context, jobID string, state model.BatchJobState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batch_jobs SET state = ? WHERE job_id = ?`,
		string(state), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch job %s", jobID)
	}
	return checkRowsAffected(res, "batch_job", jobID)
}

func (s *SQLiteStore) GetBatchJob(ctx context.Context, jobID string) (*model.BatchJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, member_ids, state, created_at FROM batch_jobs WHERE job_id = ?`,
		jobID,
	)

	job, err := scanBatchJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch job %s", jobID)
	}
	return job, nil
}

func (s *SQLiteStore) ListBatchJobs(ctx context.Context, state model.BatchJobState) ([]model.BatchJob, error) {
	query := `SELECT job_id, member_ids, state, created_at FROM batch_jobs`
	var args []any
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, string(state))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batch jobs")
	}
	defer rows.Close()

	var jobs []model.BatchJob
	for rows.Next() {
		job, err := scanBatchJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan batch job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list batch jobs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanStatuses(rows *sql.Rows) ([]model.RecordStatus, error) {
	var out []model.RecordStatus
	for rows.Next() {
		var st model.RecordStatus
		if err := rows.Scan(&st.RecordID, &st.Stage, &st.Status, &st.Message, &st.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status")
		}
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: statuses iterate")
}

func scanBatchJob(row scannable) (*model.BatchJob, error) {
	var job model.BatchJob
	var memberJSON string

	err := row.Scan(&job.JobID, &memberJSON, &job.State, &job.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(memberJSON), &job.MemberIDs); err != nil {
		return nil, eris.Wrap(err, "unmarshal member ids")
	}
	return &job, nil
}

func unmarshalRecord(dataJSON string) (*model.ExtractedRecord, error) {
	rec := &model.ExtractedRecord{}
	if err := json.Unmarshal([]byte(dataJSON), rec); err != nil {
		return nil, eris.Wrap(err, "unmarshal record")
	}
	return rec, nil
}

func recordCompany(rec *model.ExtractedRecord) string {
	if rec.BasicInformation != nil && rec.BasicInformation.CompanyName != "" {
		return rec.BasicInformation.CompanyName
	}
	if rec.CompanyDetails != nil {
		return rec.CompanyDetails.LegalName
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
