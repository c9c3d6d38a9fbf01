package pipette

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/pipette/internal/logging"
	"github.com/aretw0/pipette/internal/runtime"
	"github.com/aretw0/pipette/pkg/adapters/builtin"
	loamAdapter "github.com/aretw0/pipette/pkg/adapters/loam"
	"github.com/aretw0/pipette/pkg/broker"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/gcode"
	"github.com/aretw0/pipette/pkg/hardware/simulated"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/aretw0/pipette/pkg/protocol"
)

// Result is the outcome of one execution.
type Result = runtime.Result

// Engine is the high-level entry point of the library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime      *runtime.Engine
	hw           ports.Hardware
	labwarePaths []string
	loader       ports.LabwareLoader
	logger       *slog.Logger
	runtimeOpts  []runtime.Option
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithHardware drives hw instead of a fresh simulator.
func WithHardware(hw ports.Hardware) Option {
	return func(e *Engine) {
		e.hw = hw
	}
}

// WithLabwarePaths adds directories of custom labware definitions. They are
// searched in order before the built-in definitions.
func WithLabwarePaths(dirs ...string) Option {
	return func(e *Engine) {
		e.labwarePaths = append(e.labwarePaths, dirs...)
	}
}

// WithLoader injects a custom LabwareLoader. It is searched after any labware
// paths and before the built-in definitions.
func WithLoader(l ports.LabwareLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithRunStore archives every finished run.
func WithRunStore(s ports.RunStore) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithRunStore(s))
	}
}

// WithLocker holds a lock on key while a run is in progress. A zero ttl uses
// runtime.DefaultLockTTL.
func WithLocker(l ports.DistributedLocker, key string, ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl <= 0 {
			ttl = runtime.DefaultLockTTL
		}
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithLocker(l, key, ttl))
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithLifecycleHooks(hooks))
	}
}

// WithSubscriber receives every run log record as it is published.
func WithSubscriber(s broker.Subscriber) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithSubscriber(s))
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source of run records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now))
	}
}

// WithIDGenerator overrides how run and record IDs are generated.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithIDGenerator(gen))
	}
}

// New creates an engine. Without WithHardware it drives a simulator.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.hw == nil {
		e.hw = simulated.New(simulated.WithLogger(e.logger))
	}

	var chain runtime.ChainLoader
	for _, dir := range e.labwarePaths {
		l, err := loamAdapter.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open labware path %s: %w", dir, err)
		}
		e.logger.Debug("custom labware path", "dir", l.Dir())
		chain = append(chain, l)
	}
	if e.loader != nil {
		chain = append(chain, e.loader)
	}
	chain = append(chain, builtin.NewLoader())

	rtOpts := append([]runtime.Option{
		runtime.WithLoader(chain),
		runtime.WithLogger(e.logger),
	}, e.runtimeOpts...)
	e.runtime = runtime.NewEngine(e.hw, rtOpts...)
	return e, nil
}

// Hardware returns the backend the engine drives.
func (e *Engine) Hardware() ports.Hardware { return e.hw }

// Loader returns the labware loader chain.
func (e *Engine) Loader() ports.LabwareLoader { return e.runtime.Loader() }

// Execute runs p. The Result is returned even when err is not nil.
func (e *Engine) Execute(ctx context.Context, p *protocol.Protocol) (*Result, error) {
	return e.runtime.Execute(ctx, p)
}

// ExecuteFile loads the protocol at path and runs it.
func (e *Engine) ExecuteFile(ctx context.Context, path string) (*Result, error) {
	p, err := protocol.Load(path)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, p)
}

// Simulate runs p against a fresh simulator and returns the run log.
func Simulate(ctx context.Context, p *protocol.Protocol, opts ...Option) (*Result, error) {
	opts = append(opts, WithHardware(nil))
	eng, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return eng.Execute(ctx, p)
}

// Validate checks p statically and against the supported API versions,
// without touching any hardware.
func Validate(p *protocol.Protocol) error {
	if err := runtime.CheckVersion(p.APIVersion); err != nil {
		return err
	}
	return p.Validate()
}

// Explain describes one G-code line in plain words.
func Explain(line string) (string, error) {
	return gcode.ExplainLine(line)
}
