package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aretw0/pipette"
	"github.com/aretw0/pipette/internal/logging"
	"github.com/aretw0/pipette/internal/presentation/tui"
	"github.com/aretw0/pipette/pkg/adapters/redis"
	"github.com/aretw0/pipette/pkg/adapters/sqlite"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/observability"
	"github.com/aretw0/pipette/pkg/persistence/middleware"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/aretw0/pipette/pkg/protocol"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// createLogger configures the application logger.
// In debug mode, it writes to Stderr (to separate from the Stdout run log).
func createLogger(debug bool, format string) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug, format, os.Stderr)
	}
	return logging.NewNop()
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// Common carries the flags shared by simulate and run.
type Common struct {
	ProtocolPath  string
	LabwarePaths  []string
	JSON          bool
	Debug         bool
	LogFormat     string
	Quiet         bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// RunTTL expires archived runs in Redis. Zero keeps them.
	RunTTL time.Duration
	// SQLitePath archives runs in a local SQLite file. Exclusive with RedisAddr.
	SQLitePath string
	// ArchiveKey seals archived runs with AES-256 when set (base64 or hex).
	ArchiveKey string
	// Redact lists patterns masked in archived run logs.
	Redact []string
}

// session is the shared state of one simulate or run invocation.
type session struct {
	common   Common
	stdout   io.Writer
	stderr   io.Writer
	logger   *slog.Logger
	protocol *protocol.Protocol
	printer  *tui.Printer
	store    *redis.Store
	sqlite   *sqlite.Store
	hooks    []domain.LifecycleHooks
	opts     []pipette.Option
}

func newSession(common Common, stdout, stderr io.Writer) (*session, error) {
	s := &session{
		common: common,
		stdout: stdout,
		stderr: stderr,
		logger: createLogger(common.Debug, common.LogFormat),
	}

	p, err := protocol.Load(common.ProtocolPath)
	if err != nil {
		return nil, err
	}
	s.protocol = p

	s.printer = tui.NewPrinter(stdout, tui.WithJSON(common.JSON))
	s.opts = []pipette.Option{
		pipette.WithLogger(s.logger),
		pipette.WithLabwarePaths(common.LabwarePaths...),
		pipette.WithSubscriber(s.printer.Subscriber()),
	}
	s.hooks = []domain.LifecycleHooks{observability.LogHooks(s.logger)}

	if common.RedisAddr != "" && common.SQLitePath != "" {
		return nil, errors.New("choose one run archive: Redis or SQLite")
	}
	mws, err := archiveMiddlewares(common)
	if err != nil {
		return nil, err
	}

	var archive ports.RunStore
	switch {
	case common.RedisAddr != "":
		var storeOpts []redis.Option
		if common.RunTTL > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(common.RunTTL))
		}
		s.store = redis.New(common.RedisAddr, common.RedisPassword, common.RedisDB, storeOpts...)
		archive = s.store
		s.logger.Debug("archiving runs", "redis", common.RedisAddr)
	case common.SQLitePath != "":
		if s.sqlite, err = sqlite.Open(common.SQLitePath); err != nil {
			return nil, fmt.Errorf("failed to open run archive %s: %w", common.SQLitePath, err)
		}
		archive = s.sqlite
		s.logger.Debug("archiving runs", "sqlite", common.SQLitePath)
	}
	if archive != nil {
		s.opts = append(s.opts, pipette.WithRunStore(middleware.Chain(archive, mws...)))
	}
	return s, nil
}

func archiveMiddlewares(common Common) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(common.Redact) > 0 {
		mw, err := middleware.NewRedactionMiddleware(common.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if common.ArchiveKey != "" {
		key, err := middleware.ParseKey(common.ArchiveKey)
		if err != nil {
			return nil, fmt.Errorf("invalid archive key: %w", err)
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// options returns the engine options collected so far, hooks combined last.
func (s *session) options(extra ...pipette.Option) []pipette.Option {
	opts := append([]pipette.Option{}, s.opts...)
	opts = append(opts, extra...)
	return append(opts, pipette.WithLifecycleHooks(observability.CombineHooks(s.hooks...)))
}

func (s *session) close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("failed to close run store", "error", err)
		}
	}
	if s.sqlite != nil {
		if err := s.sqlite.Close(); err != nil {
			s.logger.Warn("failed to close run store", "error", err)
		}
	}
}

// finish prints the outcome of a run and maps it to the command's error.
func (s *session) finish(res *pipette.Result, runErr error, started time.Time, sig os.Signal) error {
	if res == nil {
		return runErr
	}
	if !s.common.JSON && !s.common.Quiet {
		rec := &domain.RunRecord{
			ID:         res.RunID,
			Protocol:   res.Protocol,
			APIVersion: s.protocol.APIVersion,
			Status:     res.Status,
			Log:        res.Log,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if runErr != nil {
			rec.Error = runErr.Error()
		}
		fmt.Fprintln(s.stdout)
		if err := tui.PrintSummary(s.stdout, rec); err != nil {
			s.logger.Warn("failed to render summary", "error", err)
		}
	}
	return handleExecutionError(s.stderr, runErr, sig)
}

// handleExecutionError reports aborted runs as a message and exits cleanly;
// every other failure is returned.
func handleExecutionError(w io.Writer, err error, sig os.Signal) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRunAborted) {
		switch sig {
		case nil:
			printSystemMessage(w, "Run aborted.")
		case os.Interrupt:
			printSystemMessage(w, "[CTRL+C] Run interrupted.")
		default:
			printSystemMessage(w, "Run stopped (signal: %s).", sig)
		}
		return nil
	}
	return err
}
