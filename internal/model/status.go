package model

import "time"

// Stage identifies one of the two independently tracked processing stages.
type Stage string

const (
	StageDownload   Stage = "download"
	StageExtraction Stage = "extraction"
)

// Status is the lifecycle state of a record within one stage. Transitions
// move forward only, except the manual failed -> pending reset.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// RecordStatus is one persisted status row, keyed by (record, stage).
type RecordStatus struct {
	RecordID  string    `json:"record_id"`
	Stage     Stage     `json:"stage"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BatchJobState is the lifecycle state of an upstream batch job.
type BatchJobState string

const (
	BatchJobCreated    BatchJobState = "created"
	BatchJobProcessing BatchJobState = "processing"
	BatchJobEnded      BatchJobState = "ended"
)

// BatchJob groups multiple source records into one upstream submission.
// The upstream job keeps running server-side after local cancellation, so a
// re-run resumes by polling JobID rather than resubmitting.
type BatchJob struct {
	JobID     string        `json:"job_id"`
	MemberIDs []string      `json:"member_ids"`
	State     BatchJobState `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
}

const (
	// BatchJobTTL is the upstream expiry window for a submitted batch.
	BatchJobTTL = 24 * time.Hour
	// BatchJobWarnAge is the soft warning threshold before expiry.
	BatchJobWarnAge = 22 * time.Hour
)

// Age returns the elapsed time since the job was created.
func (j *BatchJob) Age(now time.Time) time.Duration {
	return now.Sub(j.CreatedAt)
}

// NearExpiry reports whether the job has crossed the soft warning threshold.
func (j *BatchJob) NearExpiry(now time.Time) bool {
	return j.Age(now) >= BatchJobWarnAge
}
