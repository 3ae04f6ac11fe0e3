package orchestrator

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/medextract/internal/ai"
	"github.com/local/medextract/internal/config"
	"github.com/local/medextract/internal/extract"
	"github.com/local/medextract/internal/filetype"
	"github.com/local/medextract/internal/jsonx"
	"github.com/local/medextract/internal/metrics"
	"github.com/local/medextract/internal/report"
	"github.com/local/medextract/internal/retry"
	"github.com/local/medextract/internal/sink"
	"github.com/local/medextract/internal/store"
	"github.com/local/medextract/internal/textnorm"
)

// Extractor is the text extraction engine surface the pipeline needs.
// Extraction failures arrive captured in Result.Err, not as a second
// return value.
type Extractor interface {
	Extract(ctx context.Context, path string, kind filetype.Kind, forceOCR bool) extract.Result
}

// Clients resolves and hands out provider clients.
type Clients interface {
	Resolve(raw string) string
	Client(raw string) ai.Client
}

// Request describes one document to process.
type Request struct {
	RequestID    string
	Filename     string
	Path         string
	Original     []byte
	Provider     string
	Model        string
	ForceOCR     bool
	ExtraContext string
}

// Outcome is the successful result of one pipeline run.
type Outcome struct {
	RequestID  string         `json:"request_id"`
	Data       map[string]any `json:"data"`
	Validation []string       `json:"validation,omitempty"`
	Refined    bool           `json:"refined"`
	Extraction Extraction     `json:"extraction"`
	Saved      sink.Saved     `json:"artifacts,omitempty"`
}

// Extraction summarizes how the text was obtained.
type Extraction struct {
	Kind      string  `json:"kind"`
	OCRUsed   bool    `json:"ocr_used"`
	PageCount int     `json:"page_count"`
	CharCount int     `json:"char_count"`
	WordCount int     `json:"word_count"`
	Seconds   float64 `json:"seconds"`
}

// Pipeline runs the full document flow synchronously: classify,
// extract, normalize, analyze, validate, refine at most once, archive.
type Pipeline struct {
	cfg        config.Config
	classifier *filetype.Classifier
	extractor  Extractor
	clients    Clients
	verifier   *report.Verifier
	sink       sink.Sink
	status     store.StatusStore
	retry      retry.Policy
}

func New(cfg config.Config, extractor Extractor, clients Clients, snk sink.Sink, status store.StatusStore) *Pipeline {
	if snk == nil {
		snk = sink.Nop{}
	}
	if status == nil {
		status = store.NopStatus{}
	}
	return &Pipeline{
		cfg:        cfg,
		classifier: filetype.New(),
		extractor:  extractor,
		clients:    clients,
		verifier:   report.NewVerifier(),
		sink:       snk,
		status:     status,
		retry: retry.Policy{
			MaxRetries:    cfg.Retry.MaxRetries,
			BaseDelay:     cfg.Retry.BaseDelay,
			BackoffFactor: cfg.Retry.BackoffFactor,
		},
	}
}

// Process runs one document through the pipeline. Classified failures
// come back as *PipelineError.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	logger := log.With().Str("request_id", req.RequestID).Str("file", req.Filename).Logger()

	p.setStatus(ctx, req.RequestID, store.StageReceived, 0, "request received", start)

	kind := p.classifier.Classify(req.Filename, req.Path)
	if kind == filetype.Unsupported {
		return nil, p.fail(ctx, req.RequestID, start,
			failf(KindUnsupported, "unsupported file type for %q", req.Filename))
	}

	p.setStatus(ctx, req.RequestID, store.StageExtracting, 10, "extracting text", start)
	extRes := p.extractor.Extract(ctx, req.Path, kind, req.ForceOCR)

	text := textnorm.Normalize(extRes.Text)
	if len(text) < p.cfg.Extraction.MinTextLen {
		perr := failf(KindInsufficientText, "extracted only %d characters, need at least %d", len(text), p.cfg.Extraction.MinTextLen)
		perr.Err = extRes.Err
		return nil, p.fail(ctx, req.RequestID, start, perr)
	}

	provider := p.clients.Resolve(req.Provider)
	client := p.clients.Client(provider)
	model := req.Model
	if model == "" {
		model = p.defaultModel(provider)
	}

	p.setStatus(ctx, req.RequestID, store.StageAnalyzing, 40, "analyzing with "+provider, start)
	llmStart := time.Now()
	aiReq := ai.Request{
		SystemPrompt: systemPrompt,
		Model:        model,
		Temperature:  p.cfg.Providers.Temperature,
		MaxTokens:    p.cfg.Providers.MaxTokens,
		Messages:     []ai.Message{{Role: "user", Content: userPrompt(text, req.ExtraContext)}},
	}
	resp, err := p.generate(ctx, client, aiReq)
	if err != nil {
		return nil, p.fail(ctx, req.RequestID, start,
			wrap(KindProviderFailed, "model request failed", err))
	}

	p.setStatus(ctx, req.RequestID, store.StageValidating, 70, "validating extracted data", start)
	data := jsonx.Extract(resp.Text)
	outcome := p.verifier.Verify(data)

	refined := false
	if !outcome.Valid() {
		p.setStatus(ctx, req.RequestID, store.StageRefining, 80, "refining extracted data", start)
		data, outcome, refined = p.refine(ctx, client, aiReq, resp.Text, data, outcome)
	}

	if jsonx.IsErrorResult(data) {
		return nil, p.fail(ctx, req.RequestID, start,
			failf(KindInvalidOutput, "model did not return parseable JSON"))
	}

	switch {
	case outcome.Valid() && len(outcome.Warnings) == 0:
		metrics.IncValidation("clean")
	case outcome.Valid():
		metrics.IncValidation("warnings_only")
	default:
		metrics.IncValidation("errors")
	}

	data["metadata"] = map[string]any{
		"processing_time_seconds": math.Round(time.Since(llmStart).Seconds()*100) / 100,
		"model":                   modelName(resp, model),
		"provider":                provider,
		"timestamp":               time.Now().Format(time.RFC3339),
	}

	result := &Outcome{
		RequestID:  req.RequestID,
		Data:       data,
		Validation: outcome.Messages(),
		Refined:    refined,
		Extraction: Extraction{
			Kind:      kind.String(),
			OCRUsed:   extRes.OCRUsed,
			PageCount: extRes.PageCount,
			CharCount: extRes.CharCount,
			WordCount: extRes.WordCount,
			Seconds:   extRes.Duration.Seconds(),
		},
	}

	resultJSON, err := json.Marshal(result.Data)
	if err == nil {
		saved, saveErr := p.sink.Save(ctx, sink.Artifacts{
			RequestID:    req.RequestID,
			OriginalName: req.Filename,
			Original:     req.Original,
			RawText:      text,
			ResultJSON:   resultJSON,
		})
		if saveErr != nil {
			// Archiving is best effort; the caller still gets the data.
			logger.Warn().Err(saveErr).Msg("failed to archive artifacts")
		} else {
			result.Saved = saved
		}
	}

	metrics.IncProcessed("success")
	p.setStatusDone(ctx, req.RequestID, start)
	logger.Info().
		Bool("refined", refined).
		Int("validation_messages", len(result.Validation)).
		Dur("total", time.Since(start)).
		Msg("document processed")
	return result, nil
}

// refine replays the conversation with the model's own reply and a
// feedback turn enumerating the validation errors. It runs at most
// once; if the second answer is no better the first data stands.
func (p *Pipeline) refine(ctx context.Context, client ai.Client, req ai.Request, rawReply string, data map[string]any, outcome report.Outcome) (map[string]any, report.Outcome, bool) {
	req.Messages = append(req.Messages,
		ai.Message{Role: "assistant", Content: rawReply},
		ai.Message{Role: "user", Content: feedbackMessage(outcome.Errors)},
	)

	resp, err := p.generate(ctx, client, req)
	if err != nil {
		log.Warn().Err(err).Msg("refinement call failed, keeping first answer")
		metrics.IncRefinement("failed")
		return data, outcome, false
	}

	refinedData := jsonx.Extract(resp.Text)
	refinedOutcome := p.verifier.Verify(refinedData)
	if len(refinedOutcome.Errors) > len(outcome.Errors) {
		log.Warn().Int("before", len(outcome.Errors)).Int("after", len(refinedOutcome.Errors)).
			Msg("refinement made things worse, keeping first answer")
		metrics.IncRefinement("unresolved")
		return data, outcome, false
	}

	if refinedOutcome.Valid() {
		metrics.IncRefinement("resolved")
	} else {
		metrics.IncRefinement("unresolved")
	}
	return refinedData, refinedOutcome, true
}

func (p *Pipeline) defaultModel(provider string) string {
	if provider == "grok" {
		return p.cfg.Providers.Grok.DefaultModel
	}
	return p.cfg.Providers.Claude.DefaultModel
}

func modelName(resp ai.Response, requested string) string {
	if resp.Model != "" {
		return resp.Model
	}
	return requested
}

func (p *Pipeline) setStatus(ctx context.Context, requestID, stage string, progress int, msg string, start time.Time) {
	err := p.status.Set(ctx, requestID, store.Status{
		Stage:    stage,
		Progress: progress,
		Message:  msg,
		Start:    &start,
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("status update failed")
	}
}

func (p *Pipeline) setStatusDone(ctx context.Context, requestID string, start time.Time) {
	end := time.Now()
	_ = p.status.Set(ctx, requestID, store.Status{
		Stage:    store.StageDone,
		Progress: 100,
		Message:  "completed",
		Start:    &start,
		End:      &end,
	})
}

func (p *Pipeline) fail(ctx context.Context, requestID string, start time.Time, perr *PipelineError) error {
	metrics.IncProcessed(perr.Kind)
	end := time.Now()
	_ = p.status.Set(ctx, requestID, store.Status{
		Stage:    store.StageFailed,
		Progress: 100,
		Message:  perr.Msg,
		Start:    &start,
		End:      &end,
	})
	return perr
}
