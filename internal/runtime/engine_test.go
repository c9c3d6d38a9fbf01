package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/pipette/internal/runtime"
	"github.com/aretw0/pipette/pkg/adapters/builtin"
	"github.com/aretw0/pipette/pkg/adapters/memory"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/hardware/live"
	"github.com/aretw0/pipette/pkg/hardware/simulated"
	"github.com/aretw0/pipette/pkg/ports"
	"github.com/aretw0/pipette/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basic = `
apiVersion: "2.13"
metadata:
  protocolName: Basic
labware:
  - {name: tips, loadName: opentrons_96_tiprack_300ul, slot: "1"}
  - {name: plate, loadName: corning_96_wellplate_360ul_flat, slot: "2"}
pipettes:
  - {name: p300, mount: right, maxVolume: 300, tipRacks: [tips]}
actions:
  - {kind: pick_up_tip, pipette: p300, labware: tips, well: A1}
  - {kind: aspirate, pipette: p300, volume: 10, labware: plate, well: A1}
  - {kind: dispense, pipette: p300, volume: 10, labware: plate, well: B1}
  - {kind: drop_tip, pipette: p300, labware: tips, well: H12}
`

func parse(t *testing.T, doc string) *protocol.Protocol {
	t.Helper()
	p, err := protocol.Parse([]byte(doc), protocol.FormatYAML)
	require.NoError(t, err)
	return p
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestEngine_BasicProtocol(t *testing.T) {
	hw := simulated.New()
	store := memory.NewStore()
	engine := runtime.NewEngine(hw, runtime.WithRunStore(store), runtime.WithIDGenerator(sequentialIDs()))

	res, err := engine.Execute(context.Background(), parse(t, basic))
	require.NoError(t, err)

	assert.Equal(t, domain.RunSucceeded, res.Status)
	assert.Equal(t, "Basic", res.Protocol)
	assert.Equal(t, "id-1", res.RunID)
	assert.Equal(t, []string{
		"Picking up tip from A1 of Opentrons 96 Tip Rack 300 µL on 1",
		"Aspirating 10.0 uL from A1 of Corning 96 Well Plate 360 µL Flat on 2 at 150.0 uL/sec",
		"Dispensing 10.0 uL into B1 of Corning 96 Well Plate 360 µL Flat on 2 at 300.0 uL/sec",
		"Dropping tip into H12 of Opentrons 96 Tip Rack 300 µL on 1",
	}, res.Texts())
	assert.Equal(t, "id-2", res.Log[0].ID)

	rec, err := store.Load(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, rec.Status)
	assert.Equal(t, "2.13", rec.APIVersion)
	assert.Len(t, rec.Log, 4)
	assert.Empty(t, rec.Error)
}

// ackPort is a controller that acknowledges every line it receives.
type ackPort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newAckPort() *ackPort {
	r, w := io.Pipe()
	return &ackPort{r: r, w: w}
}

func (p *ackPort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *ackPort) Write(b []byte) (int, error) {
	if n := strings.Count(string(b), "\n"); n > 0 {
		go func() { _, _ = p.w.Write([]byte(strings.Repeat("ok\n", n))) }()
	}
	return len(b), nil
}

func (p *ackPort) Close() error {
	_ = p.w.Close()
	return p.r.Close()
}

func TestEngine_LiveAndSimulatedLogsMatch(t *testing.T) {
	simulatedRes, err := runtime.NewEngine(simulated.New()).Execute(context.Background(), parse(t, basic))
	require.NoError(t, err)

	dr := live.New(newAckPort(), live.WithTimeout(time.Second))
	defer dr.Close()
	liveRes, err := runtime.NewEngine(dr).Execute(context.Background(), parse(t, basic))
	require.NoError(t, err)

	assert.Equal(t, domain.RunSucceeded, liveRes.Status)
	require.Len(t, liveRes.Log, 4)
	assert.Equal(t, simulatedRes.Texts(), liveRes.Texts())
	for i := range liveRes.Log {
		assert.Equal(t, simulatedRes.Log[i].Kind, liveRes.Log[i].Kind)
	}
}

func TestEngine_HardwareFaultHaltsRun(t *testing.T) {
	doc := basic + `  - {kind: comment, message: never reached}
`
	hw := simulated.New()
	stall := fmt.Errorf("%w: plunger stalled", domain.ErrDeviceRejected)
	hw.FailOn(simulated.MethodDispense, 1, stall)

	res, err := runtime.NewEngine(hw).Execute(context.Background(), parse(t, doc))
	require.Error(t, err)

	var perr *domain.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Position)
	assert.Equal(t, "dispense", perr.Action)
	assert.Equal(t, "DeviceError", perr.Kind)
	assert.ErrorIs(t, err, stall)
	assert.Contains(t, err.Error(), "ExceptionInProtocolError")

	assert.Equal(t, domain.RunFailed, res.Status)
	assert.Len(t, res.Log, 2, "only actions that completed are logged")
	assert.NotContains(t, hw.Methods(), simulated.MethodDropTip)
}

func TestEngine_OutOfTips(t *testing.T) {
	doc := `
apiVersion: "2.5"
labware:
  - {name: tips, loadName: opentrons_96_tiprack_20ul, slot: "4"}
pipettes:
  - name: p20
    mount: left
    maxVolume: 20
    tipRacks: [tips]
    startingTip: {labware: tips, well: H12}
actions:
  - {kind: pick_up_tip, pipette: p20}
  - {kind: drop_tip, pipette: p20}
  - {kind: pick_up_tip, pipette: p20}
`
	res, err := runtime.NewEngine(simulated.New()).Execute(context.Background(), parse(t, doc))
	assert.ErrorIs(t, err, domain.ErrOutOfTips)

	var perr *domain.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Position)
	assert.Equal(t, "OutOfTipsError", perr.Kind)
	require.Len(t, res.Log, 2)
	assert.Equal(t, "Picking up tip from H12 of Opentrons 96 Tip Rack 20 µL on 4", res.Log[0].Text)
	assert.Equal(t, "Dropping tip into A1 of Opentrons Fixed Trash on 12", res.Log[1].Text)
}

func TestEngine_VersionGate(t *testing.T) {
	cases := []struct {
		version string
		want    error
		kind    string
	}{
		{"1.0", domain.ErrAPIDeprecation, "ApiDeprecationError"},
		{"3.0", domain.ErrAPIVersionUnsupported, "UnsupportedApiVersionError"},
		{"2.14", domain.ErrAPIVersionUnsupported, "UnsupportedApiVersionError"},
		{"latest", domain.ErrAPIVersionUnsupported, "UnsupportedApiVersionError"},
	}
	for _, tc := range cases {
		t.Run(tc.version, func(t *testing.T) {
			p := parse(t, basic)
			p.APIVersion = tc.version
			hw := simulated.New()
			store := memory.NewStore()

			res, err := runtime.NewEngine(hw, runtime.WithRunStore(store)).Execute(context.Background(), p)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.kind, domain.ErrorKind(err))
			assert.Contains(t, err.Error(), tc.version)

			var verr *domain.APIVersionError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.version, verr.Version)

			assert.Empty(t, hw.Calls())
			assert.Empty(t, res.Log)
			assert.Equal(t, domain.RunRejected, res.Status)

			rec, err := store.Load(context.Background(), res.RunID)
			require.NoError(t, err)
			assert.Equal(t, domain.RunRejected, rec.Status)
		})
	}

	assert.NoError(t, runtime.CheckVersion("2.0"))
	assert.NoError(t, runtime.CheckVersion("2.13"))
	assert.NoError(t, runtime.CheckVersion("2"))
}

func TestEngine_InvalidProtocolRejected(t *testing.T) {
	p := parse(t, basic)
	p.Actions[1].Pipette = "p1000"
	hw := simulated.New()

	res, err := runtime.NewEngine(hw).Execute(context.Background(), p)
	require.Error(t, err)
	assert.NotEmpty(t, protocol.ValidationErrors(err))
	assert.Equal(t, domain.RunRejected, res.Status)
	assert.Empty(t, hw.Calls())
}

func TestEngine_UnknownLabware(t *testing.T) {
	p := parse(t, basic)
	p.Labware[1].LoadName = "mystery_plate"
	hw := simulated.New()

	res, err := runtime.NewEngine(hw).Execute(context.Background(), p)
	assert.ErrorIs(t, err, domain.ErrLabwareNotFound)
	assert.Equal(t, "FileNotFoundError", domain.ErrorKind(err))

	var perr *domain.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, perr.Position)
	assert.Contains(t, err.Error(), "mystery_plate")
	assert.Equal(t, domain.RunFailed, res.Status)
	assert.Empty(t, hw.Calls())
}

func TestEngine_CustomLoaderShadowsBuiltins(t *testing.T) {
	var custom domain.LabwareDefinition
	for _, def := range builtin.Definitions() {
		if def.Parameters.LoadName == builtin.CorningPlate {
			custom = def
		}
	}
	custom.Metadata.DisplayName = "Calibrated Plate"
	custom.Namespace = "custom_beta"
	customLoader, err := memory.NewFromDefinitions(custom)
	require.NoError(t, err)

	chain := runtime.ChainLoader{customLoader, builtin.NewLoader()}
	res, err := runtime.NewEngine(simulated.New(), runtime.WithLoader(chain)).Execute(context.Background(), parse(t, basic))
	require.NoError(t, err)
	assert.Contains(t, res.Log[1].Text, "A1 of Calibrated Plate on 2")
	assert.Contains(t, res.Log[0].Text, "Opentrons 96 Tip Rack 300 µL")

	names, err := chain.List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, names, builtin.CorningPlate)
	assert.Contains(t, names, builtin.TipRack20)
}

func TestEngine_AbortBetweenActions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := domain.LifecycleHooks{
		OnActionEnd: func(_ context.Context, ev *domain.ActionEvent) {
			if ev.Position == 2 {
				cancel()
			}
		},
	}
	hw := simulated.New()
	res, err := runtime.NewEngine(hw, runtime.WithLifecycleHooks(hooks)).Execute(ctx, parse(t, basic))

	assert.ErrorIs(t, err, domain.ErrRunAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunAborted, res.Status)
	assert.Len(t, res.Log, 2, "the log collected so far is returned")
	assert.NotContains(t, hw.Methods(), simulated.MethodDispense)
}

func TestEngine_HooksAndSubscribers(t *testing.T) {
	var started, ended []string
	var streamed []string
	hooks := domain.LifecycleHooks{
		OnActionStart: func(_ context.Context, ev *domain.ActionEvent) {
			started = append(started, fmt.Sprintf("%d:%s", ev.Position, ev.Kind))
		},
		OnActionEnd: func(_ context.Context, ev *domain.ActionEvent) {
			assert.NoError(t, ev.Err)
			ended = append(ended, ev.Kind)
		},
	}
	engine := runtime.NewEngine(simulated.New(),
		runtime.WithLifecycleHooks(hooks),
		runtime.WithSubscriber(func(rec domain.CommandRecord) { streamed = append(streamed, rec.Text) }),
	)
	res, err := engine.Execute(context.Background(), parse(t, basic))
	require.NoError(t, err)

	assert.Equal(t, []string{"1:pick_up_tip", "2:aspirate", "3:dispense", "4:drop_tip"}, started)
	assert.Equal(t, []string{"pick_up_tip", "aspirate", "dispense", "drop_tip"}, ended)
	assert.Equal(t, res.Texts(), streamed)
}

func TestEngine_AllActionKinds(t *testing.T) {
	doc := `
apiVersion: "2.13"
labware:
  - {name: tips, loadName: opentrons_96_tiprack_300ul, slot: "1"}
  - {name: plate, loadName: corning_96_wellplate_360ul_flat, slot: "2", label: Dest Plate}
  - {name: trough, loadName: nest_12_reservoir_15ml, slot: "3"}
pipettes:
  - {name: p300, mount: right, maxVolume: 300, tipRacks: [tips]}
actions:
  - {kind: comment, message: Starting}
  - {kind: pick_up_tip, pipette: p300}
  - {kind: aspirate, pipette: p300, volume: 50, labware: trough, well: A1, rate: 100}
  - {kind: dispense, pipette: p300, volume: 50, labware: plate, well: C3}
  - {kind: blow_out, pipette: p300}
  - {kind: touch_tip, pipette: p300, labware: plate, well: C3}
  - {kind: move_to, pipette: p300, slot: "5", speed: 100}
  - {kind: probe, pipette: p300, axes: {z: -2}, speed: 5}
  - {kind: delay, minutes: 1, seconds: 30}
  - {kind: return_tip, pipette: p300}
  - kind: transfer
    pipette: p300
    volume: 400
    source: {labware: trough, well: A2}
    destination: {labware: plate, well: D4}
`
	res, err := runtime.NewEngine(simulated.New()).Execute(context.Background(), parse(t, doc))
	require.NoError(t, err)

	texts := res.Texts()
	assert.Equal(t, "Starting", texts[0])
	assert.Equal(t, "Picking up tip from A1 of Opentrons 96 Tip Rack 300 µL on 1", texts[1])
	assert.Equal(t, "Aspirating 50.0 uL from A1 of NEST 12 Well Reservoir 15 mL on 3 at 100.0 uL/sec", texts[2])
	assert.Equal(t, "Dispensing 50.0 uL into C3 of Dest Plate on 2 at 300.0 uL/sec", texts[3])
	assert.Equal(t, "Blowing out at C3 of Dest Plate on 2", texts[4])
	assert.Equal(t, "Touching tip", texts[5])
	assert.Equal(t, "Moving to 5", texts[6])
	assert.Equal(t, "Probing -2 on the Z axis, at a speed of 5", texts[7])
	assert.Equal(t, "Delaying for 1 minutes and 30.0 seconds", texts[8])
	assert.Equal(t, "Returning tip to A1 of Opentrons 96 Tip Rack 300 µL on 1", texts[9])

	// The transfer splits 400 µL into two 200 µL passes with one tip.
	transfer := texts[10:]
	require.Len(t, transfer, 6)
	assert.Equal(t, "Picking up tip from A1 of Opentrons 96 Tip Rack 300 µL on 1", transfer[0])
	assert.Equal(t, "Aspirating 200.0 uL from A2 of NEST 12 Well Reservoir 15 mL on 3 at 150.0 uL/sec", transfer[1])
	assert.Equal(t, "Dispensing 200.0 uL into D4 of Dest Plate on 2 at 300.0 uL/sec", transfer[2])
	assert.Equal(t, "Dropping tip into A1 of Opentrons Fixed Trash on 12", transfer[5])
	for _, rec := range res.Log {
		assert.NotEqual(t, "transfer", string(rec.Kind))
	}
}

type recordingLocker struct {
	keys     []string
	released int
	err      error
}

func (l *recordingLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

func TestEngine_RobotLock(t *testing.T) {
	locker := &recordingLocker{}
	engine := runtime.NewEngine(simulated.New(), runtime.WithLocker(locker, "/dev/ttyACM0", time.Minute))
	_, err := engine.Execute(context.Background(), parse(t, basic))
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/ttyACM0"}, locker.keys)
	assert.Equal(t, 1, locker.released)

	busy := &recordingLocker{err: errors.New("held elsewhere")}
	hw := simulated.New()
	res, err := runtime.NewEngine(hw, runtime.WithLocker(busy, "robot", time.Minute)).Execute(context.Background(), parse(t, basic))
	assert.ErrorContains(t, err, "held elsewhere")
	assert.Equal(t, domain.RunRejected, res.Status)
	assert.Empty(t, hw.Calls())
}
