package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/pipette"
	"github.com/aretw0/pipette/pkg/adapters/redis"
	"github.com/aretw0/pipette/pkg/hardware/live"
	"github.com/aretw0/pipette/pkg/observability"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// RunOptions contains the configuration of the run command.
type RunOptions struct {
	Common
	Port    string
	Baud    int
	Timeout time.Duration
	Mount   string
	// Home homes every axis before the first action.
	Home bool
	// MetricsAddr serves Prometheus metrics for the duration of the run.
	MetricsAddr string
	// RobotID names the lock held in Redis while the run is in progress.
	RobotID string
	// OpenDriver connects to the robot. Nil opens a live serial driver.
	OpenDriver DriverOpener
}

// Driver is the hardware a run drives: the capability set plus homing and
// releasing the connection.
type Driver interface {
	ports.Hardware
	Home(ctx context.Context) error
	Close() error
}

// DriverOpener connects to the robot at path.
type DriverOpener func(path string, portOpts live.PortOptions, opts ...live.Option) (Driver, error)

// OpenLive opens a live serial driver.
func OpenLive(path string, portOpts live.PortOptions, opts ...live.Option) (Driver, error) {
	return live.Open(path, portOpts, opts...)
}

// Run executes a protocol on a robot attached to a serial port.
func Run(ctx context.Context, opts RunOptions, stdout, stderr io.Writer) error {
	if opts.Port == "" {
		return errors.New("a serial port is required (--port)")
	}
	mount := live.Mount(opts.Mount)
	switch mount {
	case "", live.MountLeft, live.MountRight:
	default:
		return fmt.Errorf("unknown mount %q (want left or right)", opts.Mount)
	}

	s, err := newSession(opts.Common, stdout, stderr)
	if err != nil {
		return err
	}
	defer s.close()

	driverOpts := []live.Option{live.WithLogger(s.logger)}
	if opts.Timeout > 0 {
		driverOpts = append(driverOpts, live.WithTimeout(opts.Timeout))
	}
	if mount != "" {
		driverOpts = append(driverOpts, live.WithMount(mount))
	}
	open := opts.OpenDriver
	if open == nil {
		open = OpenLive
	}
	dr, err := open(opts.Port, live.PortOptions{BaudRate: opts.Baud}, driverOpts...)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", opts.Port, err)
	}
	defer func() {
		if err := dr.Close(); err != nil {
			s.logger.Warn("failed to close serial port", "error", err)
		}
	}()

	var metrics *observability.Metrics
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		if metrics, err = observability.NewMetrics(reg); err != nil {
			return err
		}
		srv, err := startMetricsServer(opts.MetricsAddr, reg, s.logger)
		if err != nil {
			return fmt.Errorf("failed to serve metrics: %w", err)
		}
		defer srv.shutdown()
		s.opts = append(s.opts, pipette.WithSubscriber(metrics.Subscriber()))
		s.hooks = append(s.hooks, metrics.Hooks())
	}

	if s.store != nil {
		key := opts.RobotID
		if key == "" {
			key = opts.Port
		}
		s.opts = append(s.opts, pipette.WithLocker(redis.NewLocker(s.store.Client(), redis.DefaultPrefix), key, 0))
	}

	if opts.Home {
		s.logger.Info("homing robot", "port", opts.Port)
		if err := dr.Home(ctx); err != nil {
			return fmt.Errorf("failed to home robot: %w", err)
		}
	}

	eng, err := pipette.New(s.options(pipette.WithHardware(dr))...)
	if err != nil {
		return err
	}

	started := time.Now()
	res, runErr := eng.Execute(ctx, s.protocol)
	if metrics != nil && res != nil {
		metrics.ObserveRun(res.Status)
	}
	return s.finish(res, runErr, started, signalOf(ctx))
}
