// Package poller drives submit → poll → terminal-state machines for
// asynchronous provider operations, principally video synthesis. The clock
// is injectable so tests simulate elapsed time without real waiting.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"creatorlab/internal/domain"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// ProbeResult is what one status probe reports. Done=false means the
// provider says "in progress". Done=true with a non-empty Err is a provider
// rejection; Done=true otherwise carries the artifact reference.
type ProbeResult struct {
	Done        bool
	ArtifactURL string
	Err         string
}

// Probe issues one status check against the provider. A returned error is a
// transport problem, not a job outcome: the poller logs it and retries at
// the same interval.
type Probe func(ctx context.Context) (ProbeResult, error)

const (
	DefaultInterval = 10 * time.Second
	DefaultMaxWait  = 10 * time.Minute
)

// Poller owns the state transitions of the jobs it is handed. Exactly one
// terminal transition occurs per job.
type Poller struct {
	clock  Clock
	logger zerolog.Logger
}

// Option tweaks poller construction.
type Option func(*Poller)

// WithClock swaps the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// New builds a poller with the real clock unless overridden.
func New(logger zerolog.Logger, opts ...Option) *Poller {
	p := &Poller{clock: realClock{}, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait drives the job to a terminal state. On success the job carries its
// artifact URL. Provider rejection returns ErrJobFailed; exceeding the max
// wait budget returns ErrJobTimedOut, a distinct kind so callers can tell
// transient-slow from provider-rejected. A job already terminal is never
// re-polled.
func (p *Poller) Wait(ctx context.Context, job *domain.GenerationJob, probe Probe) error {
	if job.Status.Terminal() {
		return fmt.Errorf("operation %q in state %s: %w", job.Operation, job.Status, domain.ErrJobTerminal)
	}
	if job.PollInterval <= 0 {
		job.PollInterval = DefaultInterval
	}
	if job.MaxWait <= 0 {
		job.MaxWait = DefaultMaxWait
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = p.clock.Now()
	}
	job.Status = domain.JobStatusPolling

	log := p.logger.With().Str("operation", job.Operation).Logger()
	for {
		if elapsed := p.clock.Now().Sub(job.SubmittedAt); elapsed > job.MaxWait {
			job.Status = domain.JobStatusTimedOut
			job.LastError = fmt.Sprintf("gave up after %s", elapsed.Round(time.Second))
			log.Warn().Dur("elapsed", elapsed).Msg("poller: max wait exceeded")
			return fmt.Errorf("operation %q: %w", job.Operation, domain.ErrJobTimedOut)
		}

		result, err := probe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				job.Status = domain.JobStatusFailed
				job.LastError = ctx.Err().Error()
				return fmt.Errorf("operation %q: %v: %w", job.Operation, ctx.Err(), domain.ErrJobFailed)
			}
			// transport hiccup, not a job outcome
			log.Warn().Err(err).Msg("poller: probe failed, retrying")
		} else if result.Done {
			if result.Err != "" {
				job.Status = domain.JobStatusFailed
				job.LastError = result.Err
				log.Warn().Str("provider_error", result.Err).Msg("poller: job failed")
				return fmt.Errorf("operation %q: %s: %w", job.Operation, result.Err, domain.ErrJobFailed)
			}
			job.Status = domain.JobStatusCompleted
			job.ArtifactURL = result.ArtifactURL
			log.Info().Msg("poller: job completed")
			return nil
		}

		select {
		case <-ctx.Done():
			job.Status = domain.JobStatusFailed
			job.LastError = ctx.Err().Error()
			return fmt.Errorf("operation %q: %v: %w", job.Operation, ctx.Err(), domain.ErrJobFailed)
		case <-p.clock.After(job.PollInterval):
		}
	}
}
