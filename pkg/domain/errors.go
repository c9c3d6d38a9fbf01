package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

var (
	// ErrMalformedInstruction is returned when a G-code line or argument map cannot be decoded.
	ErrMalformedInstruction = errors.New("malformed instruction")

	// ErrLabwareGeometry is returned when a labware or well cannot supply geometry.
	ErrLabwareGeometry = errors.New("labware geometry unavailable")

	// ErrOutOfTips is returned when no tip rack has an eligible tip.
	ErrOutOfTips = errors.New("out of tips")

	// ErrNoTip is returned when an action needs a tip and the pipette holds none.
	ErrNoTip = errors.New("pipette has no tip")

	// ErrTipPickUp is returned when a pick-up is attempted while a tip is already held.
	ErrTipPickUp = errors.New("cannot pick up tip")

	// ErrInvalidVolume is returned for non-positive or out-of-range volumes.
	ErrInvalidVolume = errors.New("invalid volume")

	// ErrDeviceTimeout is returned when the device did not acknowledge in time.
	ErrDeviceTimeout = errors.New("device timeout")

	// ErrDeviceRejected is returned when the device answered an instruction with an error.
	ErrDeviceRejected = errors.New("device rejected instruction")

	// ErrAPIDeprecation is returned when a protocol declares a version below the supported floor.
	ErrAPIDeprecation = errors.New("api version deprecated")

	// ErrAPIVersionUnsupported is returned for versions above the supported ceiling or unparsable tags.
	ErrAPIVersionUnsupported = errors.New("api version unsupported")

	// ErrLabwareNotFound is returned when no search path holds a requested labware definition.
	// It matches fs.ErrNotExist.
	ErrLabwareNotFound = fmt.Errorf("labware definition not found: %w", fs.ErrNotExist)

	// ErrSlotOccupied is returned when labware is loaded into a slot that already holds labware.
	ErrSlotOccupied = errors.New("deck slot occupied")

	// ErrNoLocation is returned when an action has no target and no previous location to reuse.
	ErrNoLocation = errors.New("no location")

	// ErrInstrumentBusy is returned when an action is dispatched while another is in flight
	// on the same instrument.
	ErrInstrumentBusy = errors.New("instrument busy")

	// ErrRunAborted is returned when an execution is cancelled between actions.
	ErrRunAborted = errors.New("run aborted")

	// ErrRunNotFound is returned when a run ID cannot be found in a RunStore.
	ErrRunNotFound = errors.New("run not found")
)

// InstructionError describes why a G-code instruction was rejected.
type InstructionError struct {
	Line   string
	Reason string
}

func (e *InstructionError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("malformed instruction: %s", e.Reason)
	}
	return fmt.Sprintf("malformed instruction %q: %s", e.Line, e.Reason)
}

func (e *InstructionError) Unwrap() error { return ErrMalformedInstruction }

// APIVersionError reports a protocol version the engine refuses to run.
type APIVersionError struct {
	Version string
	Floor   string
	Ceiling string
	Err     error // ErrAPIDeprecation or ErrAPIVersionUnsupported
}

func (e *APIVersionError) Error() string {
	if errors.Is(e.Err, ErrAPIDeprecation) {
		return fmt.Sprintf("API version %s is no longer supported (minimum is %s)", e.Version, e.Floor)
	}
	return fmt.Sprintf("API version %s is not supported (supported range %s to %s)", e.Version, e.Floor, e.Ceiling)
}

func (e *APIVersionError) Unwrap() error { return e.Err }

// DeviceTimeoutError reports an instruction the device did not acknowledge before the deadline.
type DeviceTimeoutError struct {
	Instruction string
	Timeout     time.Duration
}

func (e *DeviceTimeoutError) Error() string {
	return fmt.Sprintf("device did not acknowledge %q within %s", e.Instruction, e.Timeout)
}

func (e *DeviceTimeoutError) Unwrap() error { return ErrDeviceTimeout }

// ProtocolError wraps any failure raised while executing a protocol, annotated with
// the position of the failing action. Position is 1-based; 0 means the failure
// happened while setting up the deck, before the first action.
type ProtocolError struct {
	Position int
	Action   string
	Kind     string
	Err      error
}

func (e *ProtocolError) Error() string {
	if e.Position == 0 {
		return fmt.Sprintf("ExceptionInProtocolError: %s during setup (%s): %v", e.Kind, e.Action, e.Err)
	}
	return fmt.Sprintf("ExceptionInProtocolError: %s at action %d (%s): %v", e.Kind, e.Position, e.Action, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ErrorKind names the failure category of err, using the taxonomy shared with run
// reports. Unknown errors are reported as "Error".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedInstruction):
		return "MalformedInstructionError"
	case errors.Is(err, ErrLabwareNotFound), errors.Is(err, fs.ErrNotExist):
		return "FileNotFoundError"
	case errors.Is(err, ErrLabwareGeometry):
		return "LabwareGeometryError"
	case errors.Is(err, ErrOutOfTips):
		return "OutOfTipsError"
	case errors.Is(err, ErrNoTip):
		return "NoTipError"
	case errors.Is(err, ErrTipPickUp):
		return "TipPickUpError"
	case errors.Is(err, ErrInvalidVolume):
		return "InvalidVolumeError"
	case errors.Is(err, ErrDeviceTimeout):
		return "DeviceTimeoutError"
	case errors.Is(err, ErrDeviceRejected):
		return "DeviceError"
	case errors.Is(err, ErrAPIDeprecation):
		return "ApiDeprecationError"
	case errors.Is(err, ErrAPIVersionUnsupported):
		return "UnsupportedApiVersionError"
	case errors.Is(err, ErrSlotOccupied):
		return "DeckConflictError"
	case errors.Is(err, ErrNoLocation):
		return "NoLocationError"
	default:
		return "Error"
	}
}
