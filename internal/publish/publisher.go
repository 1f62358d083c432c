// Package publish delivers a finished run to its sinks and notification channels.
// Every collaborator call, including prior-state reads, gets a bounded timeout and exactly
// one retry. Write and notification failures are recorded as warnings and never discard entries.
package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/digest/internal/models"
	"github.com/hyperjump/digest/internal/notify"
)

const (
	// DefaultTimeout bounds one attempt of a sink write or notification.
	DefaultTimeout = 10 * time.Second
	// DefaultRetryDelay is the pause before the single retry.
	DefaultRetryDelay = time.Second
)

// Sink receives finished entries.
type Sink interface {
	Name() string
	WriteEntries(ctx context.Context, entries []models.Entry) (int, error)
}

// PriorSource reads the unique ids a sink already holds.
type PriorSource interface {
	Name() string
	KnownIDs(ctx context.Context) ([]string, error)
}

// Notifier delivers workflow messages.
type Notifier interface {
	NotifyResults(ctx context.Context, msg string) error
	NotifyTokens(ctx context.Context, msg string) error
}

// Report is the outcome of Publish.
type Report struct {
	// Written is the number of rows each sink accepted, keyed by sink name.
	Written map[string]int
	// Added is the count reported by the first sink that succeeded.
	Added int
	// Failed lists the sinks that failed after retrying.
	Failed []string
}

// Publisher wraps sinks and a notifier with timeouts and a single retry.
type Publisher struct {
	sinks      []Sink
	notifier   Notifier
	timeout    time.Duration
	retryDelay time.Duration
	sheetURL   string
	logger     *zap.Logger

	mu       sync.Mutex
	warnings []string
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRetryDelay sets the pause before the retry.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Publisher) {
		if d >= 0 {
			p.retryDelay = d
		}
	}
}

// WithSheetURL sets the link included in the completion message.
func WithSheetURL(u string) Option {
	return func(p *Publisher) { p.sheetURL = u }
}

// New creates a Publisher. notifier may be nil.
func New(sinks []Sink, notifier Notifier, opts ...Option) *Publisher {
	p := &Publisher{
		sinks:      sinks,
		notifier:   notifier,
		timeout:    DefaultTimeout,
		retryDelay: DefaultRetryDelay,
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NotifyResults sends msg to the results channel. A failure is recorded as a warning and returned.
func (p *Publisher) NotifyResults(ctx context.Context, msg string) error {
	return p.notify(ctx, "results", msg, func(ctx context.Context) error {
		return p.notifier.NotifyResults(ctx, msg)
	})
}

// NotifyTokens sends msg to the token channel. A failure is recorded as a warning and returned.
func (p *Publisher) NotifyTokens(ctx context.Context, msg string) error {
	return p.notify(ctx, "tokens", msg, func(ctx context.Context) error {
		return p.notifier.NotifyTokens(ctx, msg)
	})
}

func (p *Publisher) notify(ctx context.Context, channel, msg string, send func(context.Context) error) error {
	if p.notifier == nil {
		return nil
	}
	if err := p.attempt(ctx, send); err != nil {
		nerr := &NotificationError{Channel: channel, Err: err}
		p.logger.Warn("notification failed", zap.String("channel", channel), zap.String("message", msg), zap.Error(err))
		p.warn(nerr.Error())
		return nerr
	}
	return nil
}

// Prior wraps src so that every read runs under the per-attempt timeout with one retry.
// A read that still fails is returned to the caller, which decides whether the run can go on.
func (p *Publisher) Prior(src PriorSource) PriorSource {
	return &boundedPrior{p: p, src: src}
}

type boundedPrior struct {
	p   *Publisher
	src PriorSource
}

func (b *boundedPrior) Name() string { return b.src.Name() }

func (b *boundedPrior) KnownIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := b.p.attempt(ctx, func(ctx context.Context) error {
		got, err := b.src.KnownIDs(ctx)
		if err != nil {
			return err
		}
		ids = got
		return nil
	})
	if err != nil {
		b.p.logger.Warn("prior state read failed", zap.String("source", b.src.Name()), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", b.src.Name(), err)
	}
	b.p.logger.Debug("prior state read", zap.String("source", b.src.Name()), zap.Int("ids", len(ids)))
	return ids, nil
}

// Publish writes the entries to every sink, sends the completion messages and appends
// all warnings recorded so far to res.Summary.Warnings.
func (p *Publisher) Publish(ctx context.Context, res *models.Result) Report {
	report := Report{Written: make(map[string]int)}
	s := &res.Summary

	if s.Status != models.StatusEstimated && s.Status != models.StatusHalted {
		_ = p.NotifyResults(ctx, notify.FormatFound(len(res.Entries)))
	}

	added := -1
	if len(res.Entries) > 0 {
		for _, sink := range p.sinks {
			n, err := p.write(ctx, sink, res.Entries)
			if err != nil {
				var werr *SinkWriteError
				if errors.As(err, &werr) {
					report.Failed = append(report.Failed, werr.Sink)
				}
				continue
			}
			report.Written[sink.Name()] = n
			if added < 0 {
				added = n
			}
		}
	}
	if added > 0 {
		report.Added = added
	}

	est := s.FinalTokenEstimate
	if s.Status == models.StatusBudgetExceeded {
		_ = p.NotifyTokens(ctx, notify.FormatBudgetExceeded(est.Cumulative, est.Budget))
	}
	if s.Status != models.StatusEstimated {
		_ = p.NotifyResults(ctx, notify.FormatComplete(*s, report.Added, p.sheetURL))
		_ = p.NotifyTokens(ctx, notify.FormatTokenStatus(est.Cumulative, est.Budget))
	}

	p.mu.Lock()
	s.Warnings = append(s.Warnings, p.warnings...)
	p.warnings = nil
	p.mu.Unlock()
	return report
}

func (p *Publisher) write(ctx context.Context, sink Sink, entries []models.Entry) (int, error) {
	var written int
	err := p.attempt(ctx, func(ctx context.Context) error {
		n, err := sink.WriteEntries(ctx, entries)
		written = n
		return err
	})
	if err != nil {
		werr := &SinkWriteError{Sink: sink.Name(), Err: err}
		p.logger.Warn("sink write failed", zap.String("sink", sink.Name()), zap.Int("entries", len(entries)), zap.Error(err))
		p.warn(werr.Error())
		return 0, werr
	}
	p.logger.Info("entries written", zap.String("sink", sink.Name()), zap.Int("written", written))
	return written, nil
}

// attempt runs fn with a bounded timeout, retrying once on failure.
func (p *Publisher) attempt(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for try := 0; try < 2; try++ {
		if try > 0 {
			p.logger.Debug("retrying", zap.Error(err))
			select {
			case <-ctx.Done():
				return err
			case <-time.After(p.retryDelay):
			}
		}
		actx, cancel := context.WithTimeout(ctx, p.timeout)
		err = fn(actx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (p *Publisher) warn(msg string) {
	p.mu.Lock()
	p.warnings = append(p.warnings, msg)
	p.mu.Unlock()
}
