// Package pipeline runs one document through loading, budget gating, keyword extraction,
// tagging and deduplication, producing ranked entries and a run summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/digest/internal/dedup"
	"github.com/hyperjump/digest/internal/extract"
	"github.com/hyperjump/digest/internal/keyword"
	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/internal/segment"
	"github.com/hyperjump/digest/internal/tagging"
	"github.com/hyperjump/digest/internal/tokens"
	"github.com/hyperjump/digest/pkg/utils"
)

// Settings are the tunables of a run.
type Settings struct {
	Budget           int
	WarningThreshold float64
	TokensPerWord    float64
	MaxSegmentChars  int
	FuzzyThreshold   float64
	Transpositions   bool
	Rules            []tagging.Rule
	DefaultCategory  string
}

// Request is one invocation.
type Request struct {
	Document models.Document
	Keywords []string
	// EstimateOnly stops after the pre-pass estimate. Prior state is not read and no entries are produced.
	EstimateOnly bool
}

// Opener opens a document for block-wise reading.
type Opener interface {
	Open(doc models.Document) (extract.BlockReader, error)
}

// Pipeline runs requests. It is not safe for concurrent use.
type Pipeline struct {
	settings  Settings
	opener    Opener
	gate      Gate
	prior     PriorState
	observer  Observer
	estimator *tokens.Estimator
	tagger    *tagging.Tagger
	clock     func() time.Time
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithGate sets the budget gate strategy. Default: PrePassGate without an approver.
func WithGate(g Gate) Option {
	return func(p *Pipeline) {
		if g != nil {
			p.gate = g
		}
	}
}

// WithPriorState sets the source of already-written unique ids.
func WithPriorState(ps PriorState) Option {
	return func(p *Pipeline) { p.prior = ps }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithOpener replaces the document loader.
func WithOpener(o Opener) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.opener = o
		}
	}
}

// WithClock sets the time source used for run timestamps and Date Added.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.clock = now
		}
	}
}

// New creates a Pipeline.
func New(settings Settings, opts ...Option) *Pipeline {
	if settings.DefaultCategory == "" {
		settings.DefaultCategory = tagging.DefaultCategory
	}
	p := &Pipeline{
		settings: settings,
		gate:     PrePassGate{},
		observer: NopObserver{},
		clock:    time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.opener == nil {
		p.opener = extract.NewExtractor(extract.WithLogger(p.logger))
	}
	p.estimator = tokens.NewEstimator(settings.TokensPerWord)
	p.tagger = tagging.NewTagger(settings.Rules, settings.DefaultCategory)
	return p
}

// run is the mutable state of one invocation.
type run struct {
	p       *Pipeline
	summary models.Summary
}

func (r *run) transition(to models.State) {
	from := r.summary.State
	r.summary.State = to
	r.p.logger.Debug("state", zap.String("from", string(from)), zap.String("to", string(to)))
	r.p.observer.StateChanged(from, to)
}

func (r *run) fail(err error) (*models.Result, error) {
	r.summary.FinishedAt = r.p.clock()
	serr := &StageError{Stage: r.summary.State, Err: err}
	r.p.logger.Error("run failed", zap.String("stage", string(serr.Stage)), zap.Error(err))
	return &models.Result{Summary: r.summary}, serr
}

func (r *run) finish(status models.Status, entries []models.Entry) (*models.Result, error) {
	r.summary.Status = status
	r.summary.EntriesKept = len(entries)
	r.summary.FinishedAt = r.p.clock()
	r.p.logger.Info("run finished",
		zap.String("run_id", r.summary.RunID),
		zap.String("status", string(status)),
		zap.Int("segments", r.summary.TotalSegments),
		zap.Int("entries", len(entries)),
		zap.Int("tokens", r.summary.FinalTokenEstimate.Cumulative),
	)
	return &models.Result{Entries: entries, Summary: r.summary}, nil
}

// Run processes one document. A *StageError aborts the run: the returned result carries the
// summary so far and no entries. Budget exhaustion is not an error; it is reported through
// the summary status together with the entries from segments that were processed.
func (p *Pipeline) Run(ctx context.Context, req Request) (*models.Result, error) {
	r := &run{p: p, summary: models.Summary{
		RunID:     uuid.NewString(),
		Document:  req.Document,
		State:     models.StateInit,
		StartedAt: p.clock(),
	}}

	// Keyword validation is the work of the init stage.
	matcher, err := keyword.NewMatcher(req.Keywords,
		keyword.WithFuzzyThreshold(p.settings.FuzzyThreshold),
		keyword.WithTranspositions(p.settings.Transpositions),
		keyword.WithLogger(p.logger),
	)
	if err != nil {
		return r.fail(fmt.Errorf("validate keywords: %w", err))
	}
	r.summary.Keywords = matcher.Keywords()

	r.transition(models.StateLoading)
	reader, err := p.opener.Open(req.Document)
	if err != nil {
		return r.fail(err)
	}
	defer reader.Close()
	segs := segment.NewSegmenter(reader, p.settings.MaxSegmentChars)

	r.transition(models.StateEstimating)
	var buffered []models.Segment
	if req.EstimateOnly || p.gate.PrePass() {
		buffered, err = segment.Collect(segs)
		if err != nil {
			return r.fail(err)
		}
		est := p.estimator.Estimate(buffered, p.settings.Budget, p.settings.WarningThreshold)
		r.summary.TotalSegments = len(buffered)
		r.summary.FinalTokenEstimate = est
		p.observer.Estimated(est)
		if est.Recommendation != models.RecommendProceed {
			r.summary.Warnings = append(r.summary.Warnings, fmt.Sprintf(
				"estimated %d tokens is %.1f%% of the %d token budget",
				est.Cumulative, utils.Percent(est.Cumulative, est.Budget), est.Budget))
		}
		if req.EstimateOnly {
			return r.finish(models.StatusEstimated, nil)
		}
		ok, err := p.gate.Admit(ctx, est)
		if err != nil {
			return r.fail(fmt.Errorf("budget approval: %w", err))
		}
		if !ok {
			r.transition(models.StateHalted)
			return r.finish(models.StatusHalted, nil)
		}
	}

	r.transition(models.StateExtracting)
	next := segs.Next
	if buffered != nil {
		next = sliceNext(buffered)
	}
	matched, exceeded, est, err := p.extract(ctx, r, next, matcher)
	if err != nil {
		return r.fail(err)
	}
	r.summary.FinalTokenEstimate = est
	r.summary.MatchedSegments = len(matched)

	r.transition(models.StateTagging)
	entries := p.label(req.Document, keyword.Rank(matched))

	r.transition(models.StateDeduplicating)
	var prior []string
	if p.prior != nil {
		prior, err = p.prior.KnownIDs(ctx)
		if err != nil {
			return r.fail(fmt.Errorf("read prior state: %w", err))
		}
	}
	d := dedup.New(prior)
	entries = d.Filter(entries)
	r.summary.DuplicatesSkipped = d.Duplicates()

	r.transition(models.StateDone)
	if exceeded {
		return r.finish(models.StatusBudgetExceeded, entries)
	}
	return r.finish(models.StatusCompleted, entries)
}

// extract charges and matches segments in document order until the stream ends or the
// budget halts.
func (p *Pipeline) extract(ctx context.Context, r *run, next func() (models.Segment, error), m *keyword.Matcher) ([]models.SegmentMatches, bool, models.TokenEstimate, error) {
	meter := tokens.NewMeter(p.settings.Budget, p.settings.WarningThreshold)
	var matched []models.SegmentMatches
	seen := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, false, meter.Snapshot(), err
		}
		seg, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, meter.Snapshot(), err
		}
		seen++

		switch meter.Charge(seg.Index, p.estimator.Cost(seg.Text)) {
		case tokens.Halt:
			est := meter.Snapshot()
			r.summary.Warnings = append(r.summary.Warnings, fmt.Sprintf(
				"token budget exhausted at segment %d: %d/%d tokens used", seg.Index, est.Cumulative, est.Budget))
			p.logger.Warn("budget exceeded", zap.Int("segment", seg.Index), zap.Int("tokens", est.Cumulative))
			p.observer.BudgetExceeded(est)
			if r.summary.TotalSegments < seen {
				r.summary.TotalSegments = seen
			}
			return matched, true, est, nil
		case tokens.Warn:
			est := meter.Snapshot()
			p.logger.Warn("budget warning", zap.Int("tokens", est.Cumulative), zap.Int("budget", est.Budget))
			p.observer.BudgetWarning(est)
		}

		sm := m.Match(seg)
		if sm.Score > 0 {
			matched = append(matched, sm)
		}
		p.observer.SegmentProcessed(seg, sm.Score > 0)
	}
	if r.summary.TotalSegments < seen {
		r.summary.TotalSegments = seen
	}
	return matched, false, meter.Snapshot(), nil
}

// label turns ranked matches into entries.
func (p *Pipeline) label(doc models.Document, ranked []models.SegmentMatches) []models.Entry {
	date := p.clock().Format(models.DateLayout)
	entries := make([]models.Entry, 0, len(ranked))
	for _, sm := range ranked {
		l := p.tagger.Label(sm)
		entries = append(entries, models.Entry{
			Title:     l.Title,
			Category:  l.Category,
			Tags:      l.Tags,
			Content:   sm.Segment.Text,
			Source:    doc.SourceName,
			Author:    doc.Author,
			DateAdded: date,
			UniqueID:  dedup.Fingerprint(sm.Segment.Text, doc.SourceName),
			Notes:     notes(doc.Format, sm),
		})
	}
	return entries
}

func notes(format models.Format, sm models.SegmentMatches) string {
	var parts []string
	switch format {
	case models.FormatPDF:
		parts = append(parts, fmt.Sprintf("page %d", sm.Segment.Block))
	case models.FormatEPUB:
		parts = append(parts, fmt.Sprintf("chapter %d", sm.Segment.Block))
	}
	for _, m := range sm.Matches {
		if m.Type == models.MatchFuzzy {
			parts = append(parts, "fuzzy: "+m.Keyword)
		}
	}
	return strings.Join(parts, "; ")
}

func sliceNext(segs []models.Segment) func() (models.Segment, error) {
	i := 0
	return func() (models.Segment, error) {
		if i >= len(segs) {
			return models.Segment{}, io.EOF
		}
		s := segs[i]
		i++
		return s, nil
	}
}
