package robot

import (
	"context"
	"fmt"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// BusBaudRate is the servo bus speed of STS servos.
const BusBaudRate = 1_000_000

// Arm represents a robot arm with multiple servos.
type Arm struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
	geometry    Geometry
}

// NewArm creates and initializes an arm connection.
func NewArm(port string, cal Calibration, geo Geometry) (*Arm, error) {
	// Open serial bus
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: BusBaudRate,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	// Create servo group from calibration IDs
	group := feetech.NewServoGroupByIDs(bus, cal.ServoIDs()...)

	return &Arm{
		bus:         bus,
		group:       group,
		calibration: cal,
		geometry:    geo,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Disable disables torque on all servos so the arm can be moved by hand.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// ReadJoints reads current positions from all servos as radians.
func (a *Arm) ReadJoints(ctx context.Context) (Joints, error) {
	// Read raw positions using sync read
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return Joints{}, fmt.Errorf("read positions: %w", err)
	}

	angles := make(map[JointName]float64, len(rawPositions))
	for id, raw := range rawPositions {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		angles[name] = cal.Radians(raw)
	}

	return JointsFromMap(angles), nil
}

// ReadState reads the joints and derives the pose from them.
func (a *Arm) ReadState(ctx context.Context) (State, error) {
	joints, err := a.ReadJoints(ctx)
	if err != nil {
		return State{}, err
	}
	return State{Joints: joints, Pose: a.geometry.Forward(joints)}, nil
}
