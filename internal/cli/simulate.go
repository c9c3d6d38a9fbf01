package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/aretw0/pipette"
	"github.com/aretw0/pipette/internal/presentation/tui"
)

// SimulateOptions contains the configuration of the simulate command.
type SimulateOptions struct {
	Common
}

// Simulate runs a protocol against the simulator and prints its run log.
func Simulate(ctx context.Context, opts SimulateOptions, stdout, stderr io.Writer) error {
	s, err := newSession(opts.Common, stdout, stderr)
	if err != nil {
		return err
	}
	defer s.close()

	if !opts.JSON && !opts.Quiet && tui.IsTerminal(stdout) {
		tui.PrintBanner(stdout)
	}
	s.logger.Info("simulating protocol", "path", opts.ProtocolPath, "api_version", s.protocol.APIVersion)

	started := time.Now()
	res, runErr := pipette.Simulate(ctx, s.protocol, s.options()...)
	return s.finish(res, runErr, started, signalOf(ctx))
}

// signalOf returns the signal that cancelled ctx, if ctx is a SignalContext.
func signalOf(ctx context.Context) os.Signal {
	if sc, ok := ctx.(*SignalContext); ok {
		return sc.Signal()
	}
	return nil
}
