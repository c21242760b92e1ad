// Package batchjob groups PDF source records into one upstream batch
// submission, tracks the job lifecycle, and fans completed results out
// through the same recovery and normalization path the per-record
// extractor uses.
package batchjob

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sustain-group/esg-cli/internal/criteria"
	"github.com/sustain-group/esg-cli/internal/model"
	"github.com/sustain-group/esg-cli/internal/normalize"
	"github.com/sustain-group/esg-cli/internal/prompt"
	"github.com/sustain-group/esg-cli/internal/recovery"
	"github.com/sustain-group/esg-cli/internal/store"
	"github.com/sustain-group/esg-cli/pkg/anthropic"
)

// Config tunes batch submissions.
type Config struct {
	Model     string
	MaxTokens int64

	// PrimeCache sends one warm-up request per distinct system prompt
	// before submitting, so batch items hit the prompt cache.
	PrimeCache   bool
	WithExtracts bool
}

const (
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 8192
)

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	return c
}

// Coordinator drives batch submissions end to end.
type Coordinator struct {
	client anthropic.Client
	store  store.Store
	cfg    Config
}

// New assembles a Coordinator.
func New(client anthropic.Client, st store.Store, cfg Config) *Coordinator {
	return &Coordinator{client: client, store: st, cfg: cfg.withDefaults()}
}

// SubmitResult reports which records were submitted and which were excluded,
// with the per-record exclusion reason.
type SubmitResult struct {
	Job       *model.BatchJob
	Submitted []string
	Skipped   map[string]string
}

// Submit filters records down to batch-eligible members, submits one
// upstream batch, and records the job. Only PDF sources are eligible;
// excluded records are marked skipped with an explicit reason before the
// batch payload is built.
func (c *Coordinator) Submit(ctx context.Context, records []model.SourceRecord) (*SubmitResult, error) {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := c.store.SeedStatuses(ctx, ids); err != nil {
		return nil, eris.Wrap(err, "batchjob: seed statuses")
	}

	result := &SubmitResult{Skipped: make(map[string]string)}
	var eligible []model.SourceRecord
	for _, rec := range records {
		if reason := eligibilityReason(rec); reason != "" {
			result.Skipped[rec.ID] = reason
			c.markSkipped(ctx, rec.ID, reason)
			continue
		}
		eligible = append(eligible, rec)
	}

	if len(eligible) == 0 {
		return result, eris.New("batchjob: no batch-eligible records")
	}

	items := make([]anthropic.BatchRequestItem, 0, len(eligible))
	systems := make(map[string]bool)
	for _, rec := range eligible {
		built := buildPrompt(rec, c.cfg.WithExtracts)
		systems[built.System] = true
		items = append(items, anthropic.BatchRequestItem{
			CustomID: rec.ID,
			Params: anthropic.MessageRequest{
				Model:     c.cfg.Model,
				MaxTokens: c.cfg.MaxTokens,
				System:    anthropic.BuildCachedSystemBlocks(built.System),
				Messages: []anthropic.Message{{
					Role:        "user",
					Content:     built.User,
					DocumentURL: rec.SourceURL,
				}},
			},
		})
	}

	if c.cfg.PrimeCache {
		c.primeCache(ctx, systems)
	}

	resp, err := c.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: create batch")
	}

	createdAt := resp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	memberIDs := make([]string, len(eligible))
	for i, rec := range eligible {
		memberIDs[i] = rec.ID
	}
	job := &model.BatchJob{
		JobID:     resp.ID,
		MemberIDs: memberIDs,
		State:     model.BatchJobCreated,
		CreatedAt: createdAt,
	}
	if err := c.store.CreateBatchJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "batchjob: record job")
	}

	for _, id := range memberIDs {
		c.setStatus(ctx, id, model.StageDownload, model.StatusComplete, "attached as document reference")
		c.setStatus(ctx, id, model.StageExtraction, model.StatusInProgress, "submitted in batch "+job.JobID)
	}

	zap.L().Info("batch submitted",
		zap.String("job_id", job.JobID),
		zap.Int("members", len(memberIDs)),
		zap.Int("skipped", len(result.Skipped)),
	)

	result.Job = job
	result.Submitted = memberIDs
	return result, nil
}

// eligibilityReason returns "" for batch-eligible records. Batch mode only
// supports PDF sources; websites need a local fetch that batch items cannot
// carry.
func eligibilityReason(rec model.SourceRecord) string {
	switch {
	case rec.SourceURL == "":
		return "no source url"
	case !rec.Update:
		return "update not requested"
	}
	switch model.ClassifySource(rec.SourceURL) {
	case model.SourceKindPDF:
		return ""
	case model.SourceKindWebsite:
		return "website sources are not batch eligible"
	default:
		return "unrecognized source url"
	}
}

// primeCache issues one message per distinct system prompt so subsequent
// batch items read the cached prefix. Failures are logged and ignored; the
// batch still works uncached.
func (c *Coordinator) primeCache(ctx context.Context, systems map[string]bool) {
	for system := range systems {
		_, err := anthropic.PrimerRequest(ctx, c.client, anthropic.MessageRequest{
			Model:     c.cfg.Model,
			MaxTokens: 16,
			System:    anthropic.BuildCachedSystemBlocks(system),
			Messages:  []anthropic.Message{{Role: "user", Content: "Reply with OK."}},
		})
		if err != nil {
			zap.L().Warn("cache priming failed", zap.Error(err))
		}
	}
}

// StatusReport is the outcome of one status check.
type StatusReport struct {
	Job        *model.BatchJob
	Upstream   *anthropic.BatchResponse
	NearExpiry bool
}

// CheckStatus polls the upstream job once and syncs the stored lifecycle
// state. Jobs past the soft age threshold are flagged so unconsumed results
// get collected before the upstream expiry window closes.
func (c *Coordinator) CheckStatus(ctx context.Context, jobID string) (*StatusReport, error) {
	job, err := c.store.GetBatchJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: load job")
	}
	if job == nil {
		return nil, eris.Errorf("batchjob: unknown job %s", jobID)
	}

	upstream, err := c.client.GetBatch(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: get batch")
	}

	state := stateFromUpstream(upstream.ProcessingStatus)
	if state != job.State {
		if err := c.store.UpdateBatchJobState(ctx, jobID, state); err != nil {
			return nil, eris.Wrap(err, "batchjob: sync state")
		}
		job.State = state
	}

	report := &StatusReport{
		Job:        job,
		Upstream:   upstream,
		NearExpiry: job.State != model.BatchJobEnded && job.NearExpiry(time.Now().UTC()),
	}
	if report.NearExpiry {
		zap.L().Warn("batch job near expiry",
			zap.String("job_id", jobID),
			zap.Duration("age", job.Age(time.Now().UTC())),
		)
	}
	return report, nil
}

func stateFromUpstream(processingStatus string) model.BatchJobState {
	switch processingStatus {
	case "ended":
		return model.BatchJobEnded
	case "in_progress", "canceling":
		return model.BatchJobProcessing
	default:
		return model.BatchJobCreated
	}
}

// ResultSummary counts fan-out outcomes.
type ResultSummary struct {
	Completed int
	Failed    int
}

// ProcessResults streams a finished batch and lands each member as a
// terminal record. Succeeded items run the recovery and normalization path;
// errored, expired, and canceled items become fallback records carrying the
// upstream reason verbatim. The records slice resolves member IDs back to
// their source rows, so callers reload the same input they submitted from.
func (c *Coordinator) ProcessResults(ctx context.Context, jobID string, records []model.SourceRecord) (*ResultSummary, error) {
	job, err := c.store.GetBatchJob(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: load job")
	}
	if job == nil {
		return nil, eris.Errorf("batchjob: unknown job %s", jobID)
	}

	upstream, err := c.client.GetBatch(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: get batch")
	}
	if upstream.ProcessingStatus != "ended" {
		return nil, eris.Errorf("batchjob: job %s still %s", jobID, upstream.ProcessingStatus)
	}

	iter, err := c.client.GetBatchResults(ctx, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: get batch results")
	}
	collected, err := anthropic.CollectBatchResultsDetailed(iter)
	if err != nil {
		return nil, eris.Wrap(err, "batchjob: collect results")
	}

	byID := make(map[string]model.SourceRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	failures := make(map[string]anthropic.BatchFailure, len(collected.Failures))
	for _, f := range collected.Failures {
		failures[f.CustomID] = f
	}

	summary := &ResultSummary{}
	for _, memberID := range job.MemberIDs {
		rec, ok := byID[memberID]
		if !ok {
			zap.L().Warn("batch member missing from input records",
				zap.String("job_id", jobID),
				zap.String("record", memberID),
			)
			rec = model.SourceRecord{ID: memberID}
		}
		if c.landMember(ctx, rec, collected.Succeeded[memberID], failures[memberID]) {
			summary.Completed++
		} else {
			summary.Failed++
		}
	}

	if err := c.store.UpdateBatchJobState(ctx, jobID, model.BatchJobEnded); err != nil {
		return nil, eris.Wrap(err, "batchjob: mark job ended")
	}

	zap.L().Info("batch results processed",
		zap.String("job_id", jobID),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// landMember persists one member's terminal record and status, returning
// true when the member completed.
func (c *Coordinator) landMember(ctx context.Context, rec model.SourceRecord, resp *anthropic.MessageResponse, failure anthropic.BatchFailure) bool {
	kind := model.ClassifySource(rec.SourceURL)
	nctx := normalize.Context{
		Industry:     rec.Industry,
		SourceURL:    rec.SourceURL,
		SourceKind:   kind,
		Criteria:     criteria.ForIndustry(rec.Industry),
		WithExtracts: c.cfg.WithExtracts,
	}

	if resp == nil {
		reason := failure.Reason
		if reason == "" {
			reason = "no result returned for member"
		}
		c.saveFallback(ctx, rec.ID, nctx, reason, "")
		return false
	}

	resp.Usage.LogCost(c.cfg.Model, "batch")
	built := buildPrompt(rec, c.cfg.WithExtracts)
	raw := resp.Text()
	if err := c.store.SaveRawResponse(ctx, rec.ID, string(built.Shape), raw); err != nil {
		zap.L().Warn("raw response not persisted",
			zap.String("record", rec.ID),
			zap.Error(err),
		)
	}

	res := recovery.Recover(raw, built.Shape)
	if !res.OK {
		c.saveFallback(ctx, rec.ID, nctx, res.Message, res.Original)
		return false
	}

	var parsed *model.ExtractedRecord
	if built.Shape == recovery.ShapeSustainabilityXML {
		parsed = normalize.FromXMLTags(res.Data, nctx)
	} else {
		parsed = normalize.Record(res.Data, nctx)
	}
	if err := c.store.SaveRecord(ctx, rec.ID, parsed); err != nil {
		c.setStatus(ctx, rec.ID, model.StageExtraction, model.StatusFailed, "persist record: "+err.Error())
		return false
	}
	c.setStatus(ctx, rec.ID, model.StageExtraction, model.StatusComplete, "")
	return true
}

func buildPrompt(rec model.SourceRecord, withExtracts bool) prompt.Built {
	return prompt.Build(prompt.Request{
		CompanyName:  rec.Name,
		Industry:     rec.Industry,
		SourceKind:   model.ClassifySource(rec.SourceURL),
		SourceURL:    rec.SourceURL,
		Criteria:     criteria.ForIndustry(rec.Industry),
		Custom:       rec.CustomPrompt,
		WithExtracts: withExtracts,
	})
}

func (c *Coordinator) saveFallback(ctx context.Context, recordID string, nctx normalize.Context, reason, rawExcerpt string) {
	fallback := normalize.Fallback(nctx, reason, rawExcerpt)
	if err := c.store.SaveRecord(ctx, recordID, fallback); err != nil {
		zap.L().Warn("fallback record not persisted",
			zap.String("record", recordID),
			zap.Error(err),
		)
	}
	c.setStatus(ctx, recordID, model.StageExtraction, model.StatusFailed, reason)
}

func (c *Coordinator) markSkipped(ctx context.Context, recordID, reason string) {
	c.setStatus(ctx, recordID, model.StageDownload, model.StatusSkipped, reason)
	c.setStatus(ctx, recordID, model.StageExtraction, model.StatusSkipped, reason)
}

func (c *Coordinator) setStatus(ctx context.Context, recordID string, stage model.Stage, status model.Status, message string) {
	err := c.store.UpsertStatus(ctx, model.RecordStatus{
		RecordID: recordID,
		Stage:    stage,
		Status:   status,
		Message:  message,
	})
	if err != nil {
		zap.L().Warn("status not persisted",
			zap.String("record", recordID),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
	}
}
