/*
Package pipette turns liquid-handling protocols into motion-controller commands.

A protocol is a YAML or JSON document that declares labware, pipettes and an
ordered list of actions (pick up a tip, aspirate, dispense, transfer, ...).
The engine loads the labware definitions, resolves every target to deck
coordinates, tracks which tips remain in each rack and drives a Hardware
implementation, recording a human-readable run log along the way.

# Backends

Two Hardware implementations ship with the module:

  - simulated: records every call and always succeeds unless told to fail.
  - live: speaks G-code to a motion controller over a serial port.

# Usage

	p, err := protocol.Load("dilution.yaml")
	if err != nil {
		log.Fatal(err)
	}

	eng, err := pipette.New(pipette.WithLabwarePaths("./labware"))
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Execute(context.Background(), p)
	for _, line := range res.Texts() {
		fmt.Println(line)
	}
	if err != nil {
		log.Fatal(err)
	}

The Result is returned even when the run fails, so the log collected up to the
failure is always available.

# Errors

Failures inside a run are reported as *domain.ProtocolError, which carries the
1-based position of the failing action and wraps the cause. Use errors.Is with
the sentinels in pkg/domain (ErrOutOfTips, ErrLabwareNotFound, ErrRunAborted,
...) to branch on the cause.
*/
package pipette
