package robot

import (
	"context"
	"math"
	"time"
)

// SimArm produces a smooth synthetic motion for running without hardware.
type SimArm struct {
	geometry Geometry
	start    time.Time
	now      func() time.Time
}

// NewSimArm creates a simulated arm.
func NewSimArm(geo Geometry) *SimArm {
	return &SimArm{geometry: geo, start: time.Now(), now: time.Now}
}

// ReadState returns the simulated joint state at the current time.
func (s *SimArm) ReadState(_ context.Context) (State, error) {
	t := s.now().Sub(s.start).Seconds()
	joints := Joints{
		Base:      0.6 * math.Sin(0.5*t),
		Shoulder:  0.4 + 0.3*math.Sin(0.7*t),
		Elbow:     -0.8 + 0.4*math.Sin(0.9*t+1),
		WristTilt: 0.3 * math.Sin(1.1*t),
		WristRoll: 0.5 * math.Sin(0.3*t),
		Gripper:   0.6 + 0.4*math.Sin(1.3*t),
	}
	return State{Joints: joints, Pose: s.geometry.Forward(joints)}, nil
}

// Close implements io.Closer.
func (s *SimArm) Close() error {
	return nil
}
