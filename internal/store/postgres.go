package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sustain-group/esg-cli/internal/db"
	"github.com/sustain-group/esg-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"upsert_status": `INSERT INTO record_status (record_id, stage, status, message, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (record_id, stage) DO UPDATE SET status = EXCLUDED.status, message = EXCLUDED.message, updated_at = EXCLUDED.updated_at`,
	"get_statuses": `SELECT record_id, stage, status, message, updated_at FROM record_status WHERE record_id = $1 ORDER BY stage`,
	"save_record": `INSERT INTO extracted_records (record_id, company, industry, failed, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (record_id) DO UPDATE SET company = EXCLUDED.company, industry = EXCLUDED.industry,
		  failed = EXCLUDED.failed, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
	"get_record":        `SELECT data FROM extracted_records WHERE record_id = $1`,
	"save_raw_response": `INSERT INTO raw_responses (id, record_id, shape, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"get_raw_response":  `SELECT body FROM raw_responses WHERE record_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
	"get_batch_job":     `SELECT job_id, member_ids, state, created_at FROM batch_jobs WHERE job_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS record_status (
	record_id  TEXT NOT NULL,
	stage      TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	message    TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (record_id, stage)
);

CREATE TABLE IF NOT EXISTS extracted_records (
	record_id  TEXT PRIMARY KEY,
	company    TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	failed     BOOLEAN NOT NULL DEFAULT false,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_responses (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	record_id  TEXT NOT NULL,
	shape      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS batch_jobs (
	job_id     TEXT PRIMARY KEY,
	member_ids JSONB NOT NULL,
	state      TEXT NOT NULL DEFAULT 'created',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_record_status_stage_status ON record_status(stage, status);
CREATE INDEX IF NOT EXISTS idx_extracted_records_failed ON extracted_records(failed);
CREATE INDEX IF NOT EXISTS idx_raw_responses_record ON raw_responses(record_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_batch_jobs_state ON batch_jobs(state);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SeedStatuses bulk-inserts pending rows for both stages of every record.
// Existing rows win the conflict, so completed stages survive a reseed.
func (s *PostgresStore) SeedStatuses(ctx context.Context, recordIDs []string) error {
	if len(recordIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(recordIDs)*2)
	for _, id := range recordIDs {
		for _, stage := range []model.Stage{model.StageDownload, model.StageExtraction} {
			rows = append(rows, []any{id, string(stage), string(model.StatusPending), "", now})
		}
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "record_status",
		Columns:      []string{"record_id", "stage", "status", "message", "updated_at"},
		ConflictKeys: []string{"record_id", "stage"},
		DoNothing:    true,
	}, rows)
	return eris.Wrap(err, "postgres: seed statuses")
}

func (s *PostgresStore) UpsertStatus(ctx context.Context, st model.RecordStatus) error {
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO record_status (record_id, stage, status, message, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (record_id, stage) DO UPDATE SET status = EXCLUDED.status, message = EXCLUDED.message, updated_at = EXCLUDED.updated_at`,
		st.RecordID, string(st.Stage), string(st.Status), st.Message, updatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert status %s/%s", st.RecordID, st.Stage)
}

func (s *PostgresStore) GetStatuses(ctx context.Context, recordID string) ([]model.RecordStatus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record_id, stage, status, message, updated_at FROM record_status WHERE record_id = $1 ORDER BY stage`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get statuses %s", recordID)
	}
	defer rows.Close()
	return scanPgStatuses(rows)
}

func (s *PostgresStore) ListStatuses(ctx context.Context, filter StatusFilter) ([]model.RecordStatus, error) {
	query := `SELECT record_id, stage, status, message, updated_at FROM record_status WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Stage != "" {
		query += fmt.Sprintf(` AND stage = $%d`, argIdx)
		args = append(args, string(filter.Stage))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY record_id, stage`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list statuses")
	}
	defer rows.Close()
	return scanPgStatuses(rows)
}

func (s *PostgresStore) ResetFailed(ctx context.Context, stage model.Stage) (int, error) {
	query := `UPDATE record_status SET status = $1, message = '', updated_at = $2 WHERE status = $3`
	args := []any{string(model.StatusPending), time.Now().UTC(), string(model.StatusFailed)}
	if stage != "" {
		query += ` AND stage = $4`
		args = append(args, string(stage))
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset failed")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, recordID string, rec *model.ExtractedRecord) error {
	dataJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO extracted_records (record_id, company, industry, failed, data, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (record_id) DO UPDATE SET company = EXCLUDED.company, industry = EXCLUDED.industry,
		   failed = EXCLUDED.failed, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		recordID, recordCompany(rec), rec.Industry, rec.Failed(), dataJSON, now, now,
	)
	return eris.Wrapf(err, "postgres: save record %s", recordID)
}

func (s *PostgresStore) GetRecord(ctx context.Context, recordID string) (*model.ExtractedRecord, error) {
	var dataJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM extracted_records WHERE record_id = $1`,
		recordID,
	).Scan(&dataJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get record %s", recordID)
	}
	return unmarshalRecord(string(dataJSON))
}

func (s *PostgresStore) ListRecords(ctx context.Context) ([]StoredRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record_id, data FROM extracted_records ORDER BY record_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var sr StoredRecord
		var dataJSON []byte
		if err := rows.Scan(&sr.RecordID, &dataJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		if sr.Record, err = unmarshalRecord(string(dataJSON)); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func (s *PostgresStore) SaveRawResponse(ctx context.Context, recordID, shape, body string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO raw_responses (id, record_id, shape, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), recordID, shape, body, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save raw response %s", recordID)
}

func (s *PostgresStore) GetRawResponse(ctx context.Context, recordID string) (string, error) {
	var body string
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM raw_responses WHERE record_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		recordID,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrapf(err, "postgres: get raw response %s", recordID)
	}
	return body, nil
}

func (s *PostgresStore) CreateBatchJob(ctx context.Context, job *model.BatchJob) error {
	memberJSON, err := json.Marshal(job.MemberIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal member ids")
	}

	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO batch_jobs (job_id, member_ids, state, created_at) VALUES ($1, $2, $3, $4)`,
		job.JobID, memberJSON, string(job.State), createdAt,
	)
	return eris.Wrapf(err, "postgres: create batch job %s", job.JobID)
}

func (s *PostgresStore) UpdateBatchJobState(ctx context.Context, jobID string, state model.BatchJobState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batch_jobs SET state = $1 WHERE job_id = $2`,
		string(state), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch_job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) GetBatchJob(ctx context.Context, jobID string) (*model.BatchJob, error) {
	var job model.BatchJob
	var memberJSON []byte
	var state string

	err := s.pool.QueryRow(ctx,
		`SELECT job_id, member_ids, state, created_at FROM batch_jobs WHERE job_id = $1`,
		jobID,
	).Scan(&job.JobID, &memberJSON, &state, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get batch job %s", jobID)
	}
	job.State = model.BatchJobState(state)
	if err := json.Unmarshal(memberJSON, &job.MemberIDs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal member ids")
	}
	return &job, nil
}

func (s *PostgresStore) ListBatchJobs(ctx context.Context, state model.BatchJobState) ([]model.BatchJob, error) {
	query := `SELECT job_id, member_ids, state, created_at FROM batch_jobs`
	args := []any{}
	if state != "" {
		query += ` WHERE state = $1`
		args = append(args, string(state))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batch jobs")
	}
	defer rows.Close()

	var jobs []model.BatchJob
	for rows.Next() {
		var job model.BatchJob
		var memberJSON []byte
		var state string
		if err := rows.Scan(&job.JobID, &memberJSON, &state, &job.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan batch job")
		}
		job.State = model.BatchJobState(state)
		if err := json.Unmarshal(memberJSON, &job.MemberIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal member ids")
		}
		jobs = append(jobs, job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list batch jobs iterate")
}

func scanPgStatuses(rows pgx.Rows) ([]model.RecordStatus, error) {
	var out []model.RecordStatus
	for rows.Next() {
		var st model.RecordStatus
		var stage, status string
		if err := rows.Scan(&st.RecordID, &stage, &status, &st.Message, &st.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status")
		}
		st.Stage = model.Stage(stage)
		st.Status = model.Status(status)
		out = append(out, st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: statuses iterate")
}
