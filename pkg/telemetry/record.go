// Package telemetry builds and emits follower position reports and decides
// when they are due.
package telemetry

import (
	"github.com/gwillem/roarm-follower/pkg/robot"
)

// Record is one position report. Field order is the wire key order.
// The wrist tilt angle is keyed "w" because "t" carries the timestamp.
type Record struct {
	ArmID     string  `json:"arm_id"`
	T         uint32  `json:"t"`
	Base      float64 `json:"b"`
	Shoulder  float64 `json:"s"`
	Elbow     float64 `json:"e"`
	WristTilt float64 `json:"w"`
	WristRoll float64 `json:"r"`
	Gripper   float64 `json:"g"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Tilt      float64 `json:"tilt"`
}

// Keys lists the record keys in emission order.
var Keys = []string{"arm_id", "t", "b", "s", "e", "w", "r", "g", "x", "y", "z", "tilt"}

// NewRecord builds a record from the current identity, timestamp and feedback state.
func NewRecord(armID string, millis uint32, st robot.State) Record {
	return Record{
		ArmID:     armID,
		T:         millis,
		Base:      st.Joints.Base,
		Shoulder:  st.Joints.Shoulder,
		Elbow:     st.Joints.Elbow,
		WristTilt: st.Joints.WristTilt,
		WristRoll: st.Joints.WristRoll,
		Gripper:   st.Joints.Gripper,
		X:         st.Pose.X,
		Y:         st.Pose.Y,
		Z:         st.Pose.Z,
		Tilt:      st.Pose.Tilt,
	}
}

// State returns the joint and pose values carried by the record.
func (r Record) State() robot.State {
	return robot.State{
		Joints: robot.Joints{
			Base:      r.Base,
			Shoulder:  r.Shoulder,
			Elbow:     r.Elbow,
			WristTilt: r.WristTilt,
			WristRoll: r.WristRoll,
			Gripper:   r.Gripper,
		},
		Pose: robot.Pose{X: r.X, Y: r.Y, Z: r.Z, Tilt: r.Tilt},
	}
}
