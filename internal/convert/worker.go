package convert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresfredes/pdf2ppt/internal/domain"
	"github.com/andresfredes/pdf2ppt/internal/observability"
)

// ErrAlreadyStarted is returned when a worker is started twice.
var ErrAlreadyStarted = errors.New("conversion worker already started")

// JobBuilder runs the conversion itself.
type JobBuilder interface {
	Build(ctx context.Context, job domain.ConversionJob, events chan<- domain.StreamEvent) (string, int, error)
}

// Recorder is notified of job state transitions. Its errors are logged and
// never change the outcome.
type Recorder interface {
	JobStarted(ctx context.Context, job domain.ConversionJob) error
	JobFinished(ctx context.Context, outcome domain.ConversionOutcome) error
}

// Option configures a Worker.
type Option func(*Worker)

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(w *Worker) { w.recorder = r }
}

// WithEvents forwards progress events to ch. Sends never block.
func WithEvents(ch chan<- domain.StreamEvent) Option {
	return func(w *Worker) { w.events = ch }
}

// OnOutcome registers a callback that runs once with the outcome, before it
// is sent on the outcome channel.
func OnOutcome(fn func(domain.ConversionOutcome)) Option {
	return func(w *Worker) { w.onOutcome = fn }
}

// WithLogger sets the worker's logger.
func WithLogger(l *observability.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// Worker runs a single ConversionJob on its own goroutine and reports exactly
// one outcome. A Worker cannot be reused.
type Worker struct {
	builder   JobBuilder
	job       domain.ConversionJob
	recorder  Recorder
	events    chan<- domain.StreamEvent
	onOutcome func(domain.ConversionOutcome)
	logger    *observability.Logger

	mu      sync.Mutex
	state   domain.JobState
	outcome *domain.ConversionOutcome
	once    sync.Once
}

// NewWorker creates an idle worker for job.
func NewWorker(builder JobBuilder, job domain.ConversionJob, opts ...Option) *Worker {
	w := &Worker{
		builder: builder,
		job:     job,
		state:   domain.StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = observability.NewNop()
	}
	w.logger = w.logger.WithJob(job.ID.String())
	return w
}

// Job returns the worker's job.
func (w *Worker) Job() domain.ConversionJob {
	return w.job
}

// State returns the current lifecycle state.
func (w *Worker) State() domain.JobState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Outcome returns the outcome once the worker has reached a terminal state.
func (w *Worker) Outcome() (domain.ConversionOutcome, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.outcome == nil {
		return domain.ConversionOutcome{}, false
	}
	return *w.outcome, true
}

// Start launches the job and returns a channel that yields the outcome once
// and is then closed. The job ignores cancellation of ctx; ctx only carries
// values such as the job id for logging.
func (w *Worker) Start(ctx context.Context) (<-chan domain.ConversionOutcome, error) {
	w.mu.Lock()
	if w.state != domain.StateIdle {
		w.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	w.state = domain.StateRunning
	w.mu.Unlock()

	ctx = observability.ContextWithJobID(context.WithoutCancel(ctx), w.job.ID.String())
	out := make(chan domain.ConversionOutcome, 1)

	go func() {
		started := time.Now()
		w.record(func() error { return w.recorder.JobStarted(ctx, w.job) })

		outcome := w.execute(ctx)

		w.finish(ctx, outcome, out)
		w.logger.Info().
			Str("outcome", string(outcome.Kind)).
			Dur("duration", time.Since(started)).
			Msg("Job finished")
	}()

	return out, nil
}

// Run starts the job and blocks until its outcome is known.
func (w *Worker) Run(ctx context.Context) domain.ConversionOutcome {
	ch, err := w.Start(ctx)
	if err != nil {
		return domain.Failure(w.job.ID, err)
	}
	return <-ch
}

// execute calls the builder, turning errors and panics into a Failure.
func (w *Worker) execute(ctx context.Context) (outcome domain.ConversionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("conversion panicked: %v", r)
			w.logger.Error().Err(err).Msg("Recovered from panic")
			w.emit(domain.StreamEvent{
				Type:      domain.EventError,
				JobID:     w.job.ID,
				Payload:   err.Error(),
				Timestamp: time.Now(),
			})
			outcome = domain.Failure(w.job.ID, err)
		}
	}()

	outputPath, pages, err := w.builder.Build(ctx, w.job, w.events)
	if err != nil {
		w.logger.Error().Err(err).Msg("Conversion failed")
		return domain.Failure(w.job.ID, err)
	}
	return domain.Success(w.job.ID, outputPath, pages)
}

// finish moves to the terminal state and delivers outcome exactly once.
func (w *Worker) finish(ctx context.Context, outcome domain.ConversionOutcome, out chan<- domain.ConversionOutcome) {
	w.once.Do(func() {
		w.mu.Lock()
		if outcome.Succeeded() {
			w.state = domain.StateCompleted
		} else {
			w.state = domain.StateFailed
		}
		w.outcome = &outcome
		w.mu.Unlock()

		w.record(func() error { return w.recorder.JobFinished(ctx, outcome) })

		if w.onOutcome != nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						w.logger.Error().Str("panic", fmt.Sprint(r)).Msg("Outcome callback panicked")
					}
				}()
				w.onOutcome(outcome)
			}()
		}

		out <- outcome
		close(out)
	})
}

func (w *Worker) record(fn func() error) {
	if w.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().Str("panic", fmt.Sprint(r)).Msg("Recorder panicked")
		}
	}()
	if err := fn(); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to record job state")
	}
}

func (w *Worker) emit(event domain.StreamEvent) {
	if w.events == nil {
		return
	}
	select {
	case w.events <- event:
	default:
		w.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
	}
}
