package store

import (
	"context"

	"github.com/sustain-group/esg-cli/internal/model"
)

// StatusFilter specifies criteria for listing status rows.
type StatusFilter struct {
	Stage  model.Stage  `json:"stage,omitempty"`
	Status model.Status `json:"status,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// StoredRecord pairs a normalized record with the source record ID it was
// extracted for.
type StoredRecord struct {
	RecordID string                 `json:"record_id"`
	Record   *model.ExtractedRecord `json:"record"`
}

// Store defines the persistence interface for the extraction pipeline.
// Statuses and extracted records are keyed by the source record ID, raw
// responses are append-only so reparsing stays possible after a normalizer
// change.
type Store interface {
	// Statuses
	SeedStatuses(ctx context.Context, recordIDs []string) error
	UpsertStatus(ctx context.Context, st model.RecordStatus) error
	GetStatuses(ctx context.Context, recordID string) ([]model.RecordStatus, error)
	ListStatuses(ctx context.Context, filter StatusFilter) ([]model.RecordStatus, error)
	ResetFailed(ctx context.Context, stage model.Stage) (int, error)

	// Extracted records
	SaveRecord(ctx context.Context, recordID string, rec *model.ExtractedRecord) error
	GetRecord(ctx context.Context, recordID string) (*model.ExtractedRecord, error)
	ListRecords(ctx context.Context) ([]StoredRecord, error)

	// Raw model responses
	SaveRawResponse(ctx context.Context, recordID, shape, body string) error
	GetRawResponse(ctx context.Context, recordID string) (string, error)

	// Batch jobs
	CreateBatchJob(ctx context.Context, job *model.BatchJob) error
	UpdateBatchJobState(ctx context.Context, jobID string, state model.BatchJobState) error
	GetBatchJob(ctx context.Context, jobID string) (*model.BatchJob, error)
	ListBatchJobs(ctx context.Context, state model.BatchJobState) ([]model.BatchJob, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
