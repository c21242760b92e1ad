// Package extractor orchestrates the per-record extraction state machine:
// source classification, website content download, prompted model call,
// response recovery, normalization, and status persistence.
package extractor

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sustain-group/esg-cli/internal/criteria"
	"github.com/sustain-group/esg-cli/internal/model"
	"github.com/sustain-group/esg-cli/internal/normalize"
	"github.com/sustain-group/esg-cli/internal/prompt"
	"github.com/sustain-group/esg-cli/internal/recovery"
	"github.com/sustain-group/esg-cli/internal/resilience"
	"github.com/sustain-group/esg-cli/internal/store"
	"github.com/sustain-group/esg-cli/internal/webcontent"
	"github.com/sustain-group/esg-cli/pkg/anthropic"
)

// Config tunes a run. Zero values fall back to the defaults below.
type Config struct {
	Model             string
	MaxTokens         int64
	Concurrency       int
	RequestsPerSecond float64
	WithExtracts      bool
}

const (
	defaultModel       = "claude-sonnet-4-5-20250929"
	defaultMaxTokens   = 8192
	defaultConcurrency = 4
	defaultRPS         = 2.0
)

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = defaultRPS
	}
	return c
}

// Summary counts terminal outcomes of one run.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
}

// Extractor runs records through the extraction pipeline.
type Extractor struct {
	client anthropic.Client
	store  store.Store
	web    *webcontent.Extractor
	cfg    Config
}

// New assembles an Extractor. A nil web extractor gets the default one.
func New(client anthropic.Client, st store.Store, web *webcontent.Extractor, cfg Config) *Extractor {
	if web == nil {
		web = webcontent.NewExtractor()
	}
	return &Extractor{client: client, store: st, web: web, cfg: cfg.withDefaults()}
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeSkipped
)

// Run processes all records with capped parallelism and request pacing.
// Individual record failures are terminal statuses, not run errors; Run only
// fails on context cancellation or when seeding statuses fails.
func (e *Extractor) Run(ctx context.Context, records []model.SourceRecord) (*Summary, error) {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := e.store.SeedStatuses(ctx, ids); err != nil {
		return nil, eris.Wrap(err, "extractor: seed statuses")
	}

	limiter := rate.NewLimiter(rate.Limit(e.cfg.RequestsPerSecond), 1)

	var completed, failed, skipped atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, rec := range records {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			switch e.process(gCtx, rec, limiter) {
			case outcomeCompleted:
				completed.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	summary := &Summary{
		Total:     len(records),
		Completed: int(completed.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	zap.L().Info("extraction run finished",
		zap.Int("total", summary.Total),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, eris.Wrap(err, "extractor: run")
}

// process drives one record to a terminal state. Both stages always end in
// complete, failed, or skipped, and every non-skipped record has a persisted
// record row afterward, fallback included.
func (e *Extractor) process(ctx context.Context, rec model.SourceRecord, limiter *rate.Limiter) outcome {
	if reason := skipReason(rec); reason != "" {
		e.skip(ctx, rec.ID, reason)
		return outcomeSkipped
	}

	kind := model.ClassifySource(rec.SourceURL)
	set := criteria.ForIndustry(rec.Industry)
	nctx := normalize.Context{
		Industry:     rec.Industry,
		SourceURL:    rec.SourceURL,
		SourceKind:   kind,
		Criteria:     set,
		WithExtracts: e.cfg.WithExtracts,
	}

	e.setStatus(ctx, rec.ID, model.StageDownload, model.StatusInProgress, "")

	var pageContent string
	if kind == model.SourceKindWebsite {
		content, err := e.web.FetchReadable(ctx, rec.SourceURL)
		if err != nil {
			// No model call without source material.
			e.setStatus(ctx, rec.ID, model.StageDownload, model.StatusFailed, err.Error())
			e.failExtraction(ctx, rec.ID, nctx, "source download failed: "+err.Error(), "")
			return outcomeFailed
		}
		pageContent = content.Text
		e.setStatus(ctx, rec.ID, model.StageDownload, model.StatusComplete, "")
	} else {
		// PDF reports are attached to the model request by URL; there is
		// nothing to download locally.
		e.setStatus(ctx, rec.ID, model.StageDownload, model.StatusComplete, "attached as document reference")
	}

	e.setStatus(ctx, rec.ID, model.StageExtraction, model.StatusInProgress, "")

	built := prompt.Build(prompt.Request{
		CompanyName:  rec.Name,
		Industry:     rec.Industry,
		SourceKind:   kind,
		SourceURL:    rec.SourceURL,
		Criteria:     set,
		PageContent:  pageContent,
		Custom:       rec.CustomPrompt,
		WithExtracts: e.cfg.WithExtracts,
	})

	msg := anthropic.Message{Role: "user", Content: built.User}
	if kind == model.SourceKindPDF {
		msg.DocumentURL = rec.SourceURL
	}
	req := anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System:    []anthropic.SystemBlock{{Text: built.System}},
		Messages:  []anthropic.Message{msg},
	}

	if err := limiter.Wait(ctx); err != nil {
		e.failExtraction(ctx, rec.ID, nctx, "run cancelled", "")
		return outcomeFailed
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "create message")
	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, req)
	})
	if err != nil {
		e.failExtraction(ctx, rec.ID, nctx, "model call failed: "+err.Error(), "")
		return outcomeFailed
	}
	resp.Usage.LogCost(e.cfg.Model, "extract")

	// The raw response is persisted before any parsing so a normalizer bug
	// never loses model output.
	raw := resp.Text()
	if err := e.store.SaveRawResponse(ctx, rec.ID, string(built.Shape), raw); err != nil {
		zap.L().Warn("raw response not persisted",
			zap.String("record", rec.ID),
			zap.Error(err),
		)
	}

	res := recovery.Recover(raw, built.Shape)
	if !res.OK {
		e.failExtraction(ctx, rec.ID, nctx, res.Message, res.Original)
		return outcomeFailed
	}
	if len(res.Warnings) > 0 {
		zap.L().Debug("response recovered with warnings",
			zap.String("record", rec.ID),
			zap.String("strategy", res.Strategy),
			zap.Strings("warnings", res.Warnings),
		)
	}

	var parsed *model.ExtractedRecord
	if built.Shape == recovery.ShapeSustainabilityXML {
		parsed = normalize.FromXMLTags(res.Data, nctx)
	} else {
		parsed = normalize.Record(res.Data, nctx)
	}

	if err := e.store.SaveRecord(ctx, rec.ID, parsed); err != nil {
		e.setStatus(ctx, rec.ID, model.StageExtraction, model.StatusFailed, "persist record: "+err.Error())
		return outcomeFailed
	}
	e.setStatus(ctx, rec.ID, model.StageExtraction, model.StatusComplete, "")
	return outcomeCompleted
}

// skipReason returns a human-readable reason when the record must not be
// processed, or "" to proceed.
func skipReason(rec model.SourceRecord) string {
	switch {
	case rec.SourceURL == "":
		return "no source url"
	case !rec.Update:
		return "update not requested"
	case model.ClassifySource(rec.SourceURL) == model.SourceKindUnknown:
		return "unrecognized source url"
	}
	return ""
}

func (e *Extractor) skip(ctx context.Context, recordID, reason string) {
	e.setStatus(ctx, recordID, model.StageDownload, model.StatusSkipped, reason)
	e.setStatus(ctx, recordID, model.StageExtraction, model.StatusSkipped, reason)
	zap.L().Debug("record skipped",
		zap.String("record", recordID),
		zap.String("reason", reason),
	)
}

// failExtraction marks the extraction stage failed and persists a fallback
// record so the export still carries the row.
func (e *Extractor) failExtraction(ctx context.Context, recordID string, nctx normalize.Context, reason, rawExcerpt string) {
	fallback := normalize.Fallback(nctx, reason, rawExcerpt)
	if err := e.store.SaveRecord(ctx, recordID, fallback); err != nil {
		zap.L().Warn("fallback record not persisted",
			zap.String("record", recordID),
			zap.Error(err),
		)
	}
	e.setStatus(ctx, recordID, model.StageExtraction, model.StatusFailed, reason)
}

func (e *Extractor) setStatus(ctx context.Context, recordID string, stage model.Stage, status model.Status, message string) {
	err := e.store.UpsertStatus(ctx, model.RecordStatus{
		RecordID: recordID,
		Stage:    stage,
		Status:   status,
		Message:  message,
	})
	if err != nil {
		zap.L().Warn("status not persisted",
			zap.String("record", recordID),
			zap.String("stage", string(stage)),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}
