// Package live drives a physical motion controller over a serial line.
//
// Every primitive is rendered through the gcode codec, written as one line, and
// acknowledged by the controller with "ok" before the next line is sent.
package live

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/pipette/internal/logging"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/gcode"
	"github.com/aretw0/pipette/pkg/ports"
)

// Defaults used when no option overrides them.
const (
	DefaultTimeout          = 10 * time.Second
	DefaultMicrolitersPerMM = 15.9
	DefaultTravelHeight     = 150.0
	DefaultSpeed            = 400.0 // mm/s
	DefaultPickUpPress      = 12.0  // mm below the tip top
	DefaultDropPosition     = -6.0  // plunger mm, past bottom, ejects the tip
)

// ErrPortClosed is returned when the controller stops answering because the port was closed.
var ErrPortClosed = errors.New("serial port closed")

// Mount selects which carriage the driver moves.
type Mount string

const (
	MountLeft  Mount = "left"
	MountRight Mount = "right"
)

func (m Mount) axes() (mountAxis, plungerAxis string) {
	if m == MountRight {
		return "A", "C"
	}
	return "Z", "B"
}

// Driver implements ports.Hardware against a serial motion controller.
type Driver struct {
	port   Port
	lines  chan string
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	readMu sync.Mutex
	rerr   error

	mu               sync.Mutex // one in-flight instruction
	timeout          time.Duration
	microlitersPerMM float64
	travelHeight     float64
	defaultSpeed     float64
	mountAxis        string
	plungerAxis      string
	tipLength        float64
	plunger          float64
	pos              domain.Point
	positioned       bool
	logger           *slog.Logger
}

var _ ports.Hardware = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithTimeout sets how long to wait for each acknowledgement.
func WithTimeout(d time.Duration) Option {
	return func(dr *Driver) {
		dr.timeout = d
	}
}

// WithMicrolitersPerMM sets the plunger calibration used to turn volumes into travel.
func WithMicrolitersPerMM(v float64) Option {
	return func(dr *Driver) {
		dr.microlitersPerMM = v
	}
}

// WithMount selects the carriage (left: Z/B, right: A/C).
func WithMount(m Mount) Option {
	return func(dr *Driver) {
		dr.mountAxis, dr.plungerAxis = m.axes()
	}
}

// WithTravelHeight sets the Z height used for arcs between locations.
func WithTravelHeight(z float64) Option {
	return func(dr *Driver) {
		dr.travelHeight = z
	}
}

// WithLogger sets the logger used to trace the serial exchange.
func WithLogger(logger *slog.Logger) Option {
	return func(dr *Driver) {
		dr.logger = logger
	}
}

// New wraps an open port and starts reading controller replies.
func New(port Port, opts ...Option) *Driver {
	dr := &Driver{
		port:             port,
		lines:            make(chan string, 16),
		quit:             make(chan struct{}),
		done:             make(chan struct{}),
		timeout:          DefaultTimeout,
		microlitersPerMM: DefaultMicrolitersPerMM,
		travelHeight:     DefaultTravelHeight,
		defaultSpeed:     DefaultSpeed,
		logger:           logging.NewNop(),
	}
	dr.mountAxis, dr.plungerAxis = MountLeft.axes()
	for _, opt := range opts {
		opt(dr)
	}
	go dr.monitor()
	return dr
}

// Open opens the serial device at path and returns a driver bound to it.
func Open(path string, portOpts PortOptions, opts ...Option) (*Driver, error) {
	port, err := OpenPort(path, portOpts)
	if err != nil {
		return nil, err
	}
	return New(port, opts...), nil
}

// Close releases the serial port and stops the reader.
func (dr *Driver) Close() error {
	var err error
	dr.once.Do(func() {
		close(dr.quit)
		err = dr.port.Close()
		<-dr.done
	})
	return err
}

func (dr *Driver) monitor() {
	defer close(dr.done)
	defer close(dr.lines)

	scan := bufio.NewScanner(dr.port)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		select {
		case dr.lines <- line:
		case <-dr.quit:
			return
		}
	}
	dr.readMu.Lock()
	dr.rerr = scan.Err()
	dr.readMu.Unlock()
}

func (dr *Driver) readErr() error {
	dr.readMu.Lock()
	defer dr.readMu.Unlock()
	if dr.rerr != nil {
		return fmt.Errorf("%w: %v", ErrPortClosed, dr.rerr)
	}
	return ErrPortClosed
}

// Send encodes one instruction, writes it, and blocks until the controller
// acknowledges it. wait extends the acknowledgement deadline for instructions
// that legitimately take long (dwell).
func (dr *Driver) Send(ctx context.Context, verb string, args map[string]string, wait time.Duration) error {
	line, err := gcode.Encode(verb, args)
	if err != nil {
		return err
	}

	dr.mu.Lock()
	defer dr.mu.Unlock()

	// Replies that arrived unsolicited belong to no instruction.
	for drained := false; !drained; {
		select {
		case stale, ok := <-dr.lines:
			if !ok {
				return dr.readErr()
			}
			dr.logger.Debug("discarding unsolicited reply", "line", stale)
		default:
			drained = true
		}
	}

	dr.logger.Debug("serial write", "line", line)
	payload := line + "\n"
	n, err := io.WriteString(dr.port, payload)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", line, err)
	}
	if n != len(payload) {
		return fmt.Errorf("short write for %q", line)
	}

	timeout := dr.timeout + wait
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return &domain.DeviceTimeoutError{Instruction: line, Timeout: timeout}
		case reply, ok := <-dr.lines:
			if !ok {
				return dr.readErr()
			}
			dr.logger.Debug("serial read", "line", reply)
			switch {
			case strings.EqualFold(reply, "ok"):
				return nil
			case strings.HasPrefix(strings.ToLower(reply), "error"):
				return fmt.Errorf("%w: %q answered %q", domain.ErrDeviceRejected, line, reply)
			}
		}
	}
}

func num(v float64) string {
	return gcode.FormatNumber(math.Round(v*1000) / 1000)
}

func (dr *Driver) feed(speed float64) string {
	if speed <= 0 {
		speed = dr.defaultSpeed
	}
	return num(speed * 60)
}

func (dr *Driver) mountZ(z float64) float64 {
	return z + dr.tipLength
}

// Home homes every axis.
func (dr *Driver) Home(ctx context.Context) error {
	if err := dr.Send(ctx, gcode.Home, map[string]string{"X": "", "Y": "", "Z": "", "A": "", "B": "", "C": ""}, 0); err != nil {
		return err
	}
	dr.tipLength = 0
	dr.plunger = 0
	dr.positioned = false
	return nil
}

func (dr *Driver) MoveTo(ctx context.Context, loc domain.Location, opts ports.MoveOptions) error {
	f := dr.feed(opts.Speed)
	target := loc.Point
	if !opts.ForceDirect {
		safe := math.Max(dr.travelHeight, opts.MinimumZHeight)
		if err := dr.Send(ctx, gcode.Move, map[string]string{dr.mountAxis: num(dr.mountZ(safe)), "F": f}, 0); err != nil {
			return err
		}
	}
	if err := dr.Send(ctx, gcode.Move, map[string]string{"X": num(target.X), "Y": num(target.Y), "F": f}, 0); err != nil {
		return err
	}
	if err := dr.Send(ctx, gcode.Move, map[string]string{dr.mountAxis: num(dr.mountZ(target.Z)), "F": f}, 0); err != nil {
		return err
	}
	if err := dr.Send(ctx, gcode.Wait, nil, 0); err != nil {
		return err
	}
	dr.pos, dr.positioned = target, true
	return nil
}

// ensureAt moves straight to loc unless the carriage is already there.
func (dr *Driver) ensureAt(ctx context.Context, loc domain.Location) error {
	if dr.positioned && dr.pos == loc.Point {
		return nil
	}
	return dr.MoveTo(ctx, loc, ports.MoveOptions{ForceDirect: true})
}

func (dr *Driver) plungerMove(ctx context.Context, position, rate float64) error {
	args := map[string]string{dr.plungerAxis: num(position)}
	if rate > 0 {
		args["F"] = num(rate / dr.microlitersPerMM * 60)
	}
	if err := dr.Send(ctx, gcode.Move, args, 0); err != nil {
		return err
	}
	dr.plunger = position
	return dr.Send(ctx, gcode.Wait, nil, 0)
}

func (dr *Driver) Aspirate(ctx context.Context, volume float64, loc domain.Location, rate float64) error {
	if err := dr.ensureAt(ctx, loc); err != nil {
		return err
	}
	return dr.plungerMove(ctx, dr.plunger+volume/dr.microlitersPerMM, rate)
}

func (dr *Driver) Dispense(ctx context.Context, volume float64, loc domain.Location, rate float64) error {
	if err := dr.ensureAt(ctx, loc); err != nil {
		return err
	}
	return dr.plungerMove(ctx, math.Max(0, dr.plunger-volume/dr.microlitersPerMM), rate)
}

func (dr *Driver) BlowOut(ctx context.Context, loc domain.Location) error {
	if err := dr.ensureAt(ctx, loc); err != nil {
		return err
	}
	if err := dr.plungerMove(ctx, -2, 0); err != nil {
		return err
	}
	return dr.plungerMove(ctx, 0, 0)
}

func (dr *Driver) PickUpTip(ctx context.Context, loc domain.Location, tipLength float64) error {
	if err := dr.ensureAt(ctx, loc); err != nil {
		return err
	}
	press := map[string]string{dr.mountAxis: num(dr.mountZ(loc.Point.Z - DefaultPickUpPress)), "F": num(30 * 60)}
	if err := dr.Send(ctx, gcode.Move, press, 0); err != nil {
		return err
	}
	dr.tipLength = tipLength
	lift := map[string]string{dr.mountAxis: num(dr.mountZ(loc.Point.Z))}
	if err := dr.Send(ctx, gcode.Move, lift, 0); err != nil {
		return err
	}
	return dr.Send(ctx, gcode.Wait, nil, 0)
}

func (dr *Driver) DropTip(ctx context.Context, loc domain.Location) error {
	if err := dr.ensureAt(ctx, loc); err != nil {
		return err
	}
	if err := dr.plungerMove(ctx, DefaultDropPosition, 0); err != nil {
		return err
	}
	if err := dr.Send(ctx, gcode.Home, map[string]string{dr.plungerAxis: ""}, 0); err != nil {
		return err
	}
	dr.tipLength = 0
	dr.plunger = 0
	return nil
}

func (dr *Driver) Probe(ctx context.Context, axes map[string]float64, speed float64) error {
	args := make(map[string]string, len(axes)+1)
	for axis, v := range axes {
		args[axis] = num(v)
	}
	if speed > 0 {
		args["F"] = num(speed)
	}
	if err := dr.Send(ctx, gcode.Probe, args, 0); err != nil {
		return err
	}
	return dr.Send(ctx, gcode.Wait, nil, 0)
}

func (dr *Driver) Delay(ctx context.Context, d time.Duration) error {
	if err := dr.Send(ctx, gcode.Wait, nil, 0); err != nil {
		return err
	}
	return dr.Send(ctx, gcode.Dwell, map[string]string{"P": num(float64(d.Milliseconds()))}, d)
}
