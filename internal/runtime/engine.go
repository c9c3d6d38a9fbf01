// Package runtime executes protocol documents: it gates the API version, lays
// out the deck, loads pipettes and dispatches actions strictly in order.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/pipette/internal/logging"
	"github.com/aretw0/pipette/pkg/adapters/builtin"
	"github.com/aretw0/pipette/pkg/broker"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/aretw0/pipette/pkg/protocol"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a robot lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Minute

// Result is the outcome of one execution. It is returned even when the run fails.
type Result struct {
	RunID    string
	Protocol string
	Status   domain.RunStatus
	Log      []domain.CommandRecord
}

// Texts returns the run log texts in order.
func (r *Result) Texts() []string { return domain.Texts(r.Log) }

// Engine runs protocols against one Hardware.
type Engine struct {
	hw          ports.Hardware
	loader      ports.LabwareLoader
	store       ports.RunStore
	locker      ports.DistributedLocker
	lockKey     string
	lockTTL     time.Duration
	hooks       domain.LifecycleHooks
	subscribers []broker.Subscriber
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLoader replaces the labware loader. The default serves built-in definitions.
func WithLoader(l ports.LabwareLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithRunStore archives every finished run, including failed and rejected ones.
func WithRunStore(s ports.RunStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker holds a distributed lock on key for the duration of each run.
func WithLocker(l ports.DistributedLocker, key string, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		e.lockKey = key
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers per-action callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithSubscriber receives every run log record as it is published.
func WithSubscriber(s broker.Subscriber) Option {
	return func(e *Engine) {
		e.subscribers = append(e.subscribers, s)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source for records and run timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides how run and record IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// NewEngine creates an engine driving hw.
func NewEngine(hw ports.Hardware, opts ...Option) *Engine {
	e := &Engine{
		hw:      hw,
		loader:  builtin.NewLoader(),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Loader returns the labware loader in use.
func (e *Engine) Loader() ports.LabwareLoader { return e.loader }

// Execute runs p to completion, failure or cancellation.
//
// Cancelling ctx stops the run between actions; the action in flight always
// finishes. On abort the returned error wraps domain.ErrRunAborted. Any failure
// inside setup or an action is returned as a *domain.ProtocolError.
func (e *Engine) Execute(ctx context.Context, p *protocol.Protocol) (*Result, error) {
	started := e.now()
	res := &Result{
		RunID:    e.newID(),
		Protocol: p.Name("untitled"),
		Status:   domain.RunSucceeded,
	}
	logger := e.logger.With("run_id", res.RunID, "protocol", res.Protocol)

	err := e.execute(ctx, p, res, logger)
	switch {
	case err == nil:
		logger.Info("run finished", "actions", len(p.Actions), "records", len(res.Log))
	case errors.Is(err, domain.ErrRunAborted):
		res.Status = domain.RunAborted
		logger.Warn("run aborted", "records", len(res.Log), "error", err)
	case res.Status == domain.RunRejected:
		logger.Error("run rejected", "error", err)
	default:
		res.Status = domain.RunFailed
		logger.Error("run failed", "records", len(res.Log), "error", err)
	}

	e.archive(ctx, p, res, err, started, logger)
	return res, err
}

func (e *Engine) execute(ctx context.Context, p *protocol.Protocol, res *Result, logger *slog.Logger) error {
	if err := CheckVersion(p.APIVersion); err != nil {
		res.Status = domain.RunRejected
		return err
	}
	if err := p.Validate(); err != nil {
		res.Status = domain.RunRejected
		return fmt.Errorf("invalid protocol: %w", err)
	}

	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, e.lockKey, e.lockTTL)
		if err != nil {
			res.Status = domain.RunRejected
			return fmt.Errorf("failed to lock robot %s: %w", e.lockKey, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to release robot lock", "key", e.lockKey, "error", err)
			}
		}()
	}

	b := broker.New(broker.WithClock(e.now), broker.WithIDGenerator(e.newID))
	for _, sub := range e.subscribers {
		unsubscribe := b.Subscribe(sub)
		defer unsubscribe()
	}
	defer func() { res.Log = b.Log() }()

	// Hardware calls never observe cancellation; the run stops between actions.
	hwCtx := context.WithoutCancel(ctx)

	s, err := e.setup(hwCtx, p, b, logger)
	if err != nil {
		return &domain.ProtocolError{Position: 0, Action: "setup", Kind: domain.ErrorKind(err), Err: err}
	}

	for i, action := range p.Actions {
		position := i + 1
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("%w before action %d of %d: %w", domain.ErrRunAborted, position, len(p.Actions), cerr)
		}

		ev := &domain.ActionEvent{
			Timestamp: e.now(),
			RunID:     res.RunID,
			Position:  position,
			Kind:      action.Kind,
			Pipette:   action.Pipette,
		}
		if e.hooks.OnActionStart != nil {
			e.hooks.OnActionStart(ctx, ev)
		}

		begin := e.now()
		err := s.dispatch(hwCtx, action)
		ev.Err = err
		ev.Duration = e.now().Sub(begin)
		if e.hooks.OnActionEnd != nil {
			e.hooks.OnActionEnd(ctx, ev)
		}

		if err != nil {
			return &domain.ProtocolError{Position: position, Action: action.Kind, Kind: domain.ErrorKind(err), Err: err}
		}
		logger.Debug("action done", "position", position, "kind", action.Kind, "duration", ev.Duration)
	}
	return nil
}

func (e *Engine) archive(ctx context.Context, p *protocol.Protocol, res *Result, runErr error, started time.Time, logger *slog.Logger) {
	if e.store == nil {
		return
	}
	rec := &domain.RunRecord{
		ID:         res.RunID,
		Protocol:   res.Protocol,
		APIVersion: p.APIVersion,
		Status:     res.Status,
		Log:        res.Log,
		StartedAt:  started,
		FinishedAt: e.now(),
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := e.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("failed to archive run", "error", err)
	}
}
