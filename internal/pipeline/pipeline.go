// Package pipeline runs one document through fetch, extract, summarize, embed, and store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/ingestor/internal/auth"
	"github.com/hyperjump/ingestor/internal/docstore"
	"github.com/hyperjump/ingestor/internal/embedding"
	"github.com/hyperjump/ingestor/internal/models"
	"github.com/hyperjump/ingestor/internal/vector"
	"github.com/hyperjump/ingestor/pkg/utils"
	"go.uber.org/zap"
)

// Extractor turns raw document bytes into text.
type Extractor interface {
	Extract(content []byte, name string) (string, error)
}

// Summarizer produces a free-text summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Embedder produces the document vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request names the document to ingest.
type Request struct {
	DocumentID string
	Bucket     string
}

// Result describes a finished run. Summary is nil when summarizing failed; SummaryError then
// holds the reason.
type Result struct {
	RunID        string
	DocumentID   string
	Summary      *string
	SummaryError error
	Stored       bool
	State        State
	Duration     time.Duration
}

// Pipeline wires the collaborators of a run. It holds no per-document state and is safe
// for concurrent use.
type Pipeline struct {
	docs       docstore.DocumentStore
	extractor  Extractor
	summarizer Summarizer
	embedder   Embedder
	collection vector.Collection

	logger      *zap.Logger
	observer    Observer
	retry       RetryConfig
	stepTimeout time.Duration
	preview     int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithObserver registers a callback for every state transition.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithRetry sets the retry policy for fetch, embed, and store.
func WithRetry(cfg RetryConfig) Option {
	return func(p *Pipeline) { p.retry = cfg }
}

// WithStepTimeout bounds each external call. Zero means no per-step deadline.
func WithStepTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.stepTimeout = d }
}

// WithContentPreview sets how many code points of text are stored as record content.
func WithContentPreview(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.preview = n
		}
	}
}

// New returns a Pipeline writing into collection.
func New(store docstore.DocumentStore, extractor Extractor, summarizer Summarizer, embedder Embedder,
	collection vector.Collection, opts ...Option) *Pipeline {
	p := &Pipeline{
		docs:       store,
		extractor:  extractor,
		summarizer: summarizer,
		embedder:   embedder,
		collection: collection,
		logger:     zap.NewNop(),
		retry:      DefaultRetryConfig,
		preview:    models.DefaultContentPreview,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type run struct {
	p     *Pipeline
	id    string
	docID string
	state State
	start time.Time
	log   *zap.Logger
}

func (r *run) enter(to State, err error) {
	from := r.state
	r.state = to
	r.log.Debug("state transition", zap.Stringer("from", from), zap.Stringer("to", to))
	if r.p.observer != nil {
		r.p.observer(Transition{
			RunID:      r.id,
			DocumentID: r.docID,
			From:       from,
			To:         to,
			Err:        err,
			Elapsed:    time.Since(r.start),
		})
	}
}

// Run ingests one document. On success the collection holds exactly one record for
// req.DocumentID, replacing any earlier one. On failure it returns a *StageError and a Result
// in StateAborted; nothing is written when the abort happens before or during storing.
//
// Runs for the same DocumentID are not serialized: when they overlap, the last upsert to
// complete wins.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	r := &run{
		p:     p,
		id:    uuid.NewString(),
		docID: req.DocumentID,
		state: StateFetching,
		start: time.Now(),
	}
	r.log = p.logger.With(zap.String("run_id", r.id), zap.String("document_id", req.DocumentID))
	res := &Result{RunID: r.id, DocumentID: req.DocumentID}

	abort := func(err error) (*Result, error) {
		stageErr := &StageError{DocumentID: req.DocumentID, State: r.state, Err: err}
		r.enter(StateAborted, err)
		res.State = StateAborted
		res.Duration = time.Since(r.start)
		r.log.Error("ingestion aborted", zap.Stringer("stage", stageErr.State), zap.Error(err),
			zap.Duration("duration", res.Duration))
		return res, stageErr
	}

	content, err := p.fetch(ctx, r.log, req)
	if err != nil {
		return abort(err)
	}

	r.enter(StateExtracting, nil)
	text, err := p.extractor.Extract(content, req.DocumentID)
	if err != nil {
		return abort(err)
	}
	r.log.Debug("text extracted", zap.Int("bytes", len(content)), zap.Int("text_len", len(text)))

	r.enter(StateSummarizing, nil)
	summary, sumErr := p.summarize(ctx, text)
	if sumErr != nil {
		res.SummaryError = sumErr
		r.log.Warn("summary unavailable", zap.Error(sumErr))
	} else {
		res.Summary = &summary
	}

	r.enter(StateEmbedding, sumErr)
	vec, err := p.embed(ctx, r.log, text)
	if err != nil {
		return abort(err)
	}

	r.enter(StateStoring, nil)
	metadata := map[string]any{
		models.MetadataFileName: req.DocumentID,
		models.MetadataContent:  utils.FirstRunes(text, p.preview),
	}
	if err := p.upsert(ctx, r.log, req.DocumentID, vec, metadata); err != nil {
		return abort(err)
	}

	r.enter(StateDone, nil)
	res.Stored = true
	res.State = StateDone
	res.Duration = time.Since(r.start)
	r.log.Info("document ingested",
		zap.Int("dimensions", len(vec)),
		zap.Bool("summarized", res.Summary != nil),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (p *Pipeline) fetch(ctx context.Context, log *zap.Logger, req Request) ([]byte, error) {
	content, err := retry(ctx, p.retry, p.stepTimeout, log, StateFetching, func(err error) bool {
		return docstore.IsNotFound(err) || docstore.IsUnauthorized(err) || errors.Is(err, docstore.ErrInvalidBucket)
	}, func(ctx context.Context) ([]byte, error) {
		return p.docs.Get(ctx, req.Bucket, req.DocumentID)
	})
	if err == nil {
		return content, nil
	}
	if docstore.IsUnauthorized(err) || errors.Is(err, auth.ErrCredential) {
		return nil, &AuthError{Err: err}
	}
	return nil, &FetchError{Bucket: req.Bucket, Key: req.DocumentID, NotFound: docstore.IsNotFound(err), Err: err}
}

func (p *Pipeline) summarize(ctx context.Context, text string) (string, error) {
	stepCtx, cancel := withTimeout(ctx, p.stepTimeout)
	defer cancel()
	summary, err := p.summarizer.Summarize(stepCtx, text)
	if err != nil {
		return "", &SummarizeError{Err: err}
	}
	return summary, nil
}

func (p *Pipeline) embed(ctx context.Context, log *zap.Logger, text string) ([]float32, error) {
	vec, err := retry(ctx, p.retry, p.stepTimeout, log, StateEmbedding, func(err error) bool {
		return errors.Is(err, embedding.ErrEmptyVector) ||
			errors.Is(err, embedding.ErrDimensionMismatch) ||
			errors.Is(err, auth.ErrUnauthorized)
	}, func(ctx context.Context) ([]float32, error) {
		return p.embedder.Embed(ctx, text)
	})
	if err == nil {
		return vec, nil
	}
	if isAuthFailure(err) {
		return nil, &AuthError{Err: err}
	}
	return nil, &EmbedError{Err: err}
}

func (p *Pipeline) upsert(ctx context.Context, log *zap.Logger, id string, vec []float32, metadata map[string]any) error {
	_, err := retry(ctx, p.retry, p.stepTimeout, log, StateStoring, func(err error) bool {
		return errors.Is(err, vector.ErrDimensionMismatch) || errors.Is(err, auth.ErrUnauthorized)
	}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.collection.Upsert(ctx, id, vec, metadata)
	})
	if err == nil {
		return nil
	}
	if isAuthFailure(err) {
		return &AuthError{Err: err}
	}
	return &StoreError{Err: fmt.Errorf("upsert %q into %s: %w", id, p.collection.Name(), err)}
}

// isAuthFailure reports a rejected credential or one that could not be obtained. A failed token
// fetch is retried like any other transient error; a rejection is not.
func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrUnauthorized) || errors.Is(err, auth.ErrCredential)
}
