// Package robot reads joint feedback from a six-servo arm and derives the
// end-effector pose.
package robot

// JointName identifies a joint in the arm.
type JointName string

// Joint names, in servo ID order 1-6.
const (
	Base      JointName = "base"
	Shoulder  JointName = "shoulder"
	Elbow     JointName = "elbow"
	WristTilt JointName = "wrist_tilt"
	WristRoll JointName = "wrist_roll"
	Gripper   JointName = "gripper"
)

// AllJoints returns all joint names in order (matching servo IDs 1-6).
func AllJoints() []JointName {
	return []JointName{
		Base,
		Shoulder,
		Elbow,
		WristTilt,
		WristRoll,
		Gripper,
	}
}

// Joints holds one angle per joint, in radians.
type Joints struct {
	Base      float64
	Shoulder  float64
	Elbow     float64
	WristTilt float64
	WristRoll float64
	Gripper   float64
}

// JointsFromMap builds Joints from a per-name map. Missing joints are zero.
func JointsFromMap(m map[JointName]float64) Joints {
	return Joints{
		Base:      m[Base],
		Shoulder:  m[Shoulder],
		Elbow:     m[Elbow],
		WristTilt: m[WristTilt],
		WristRoll: m[WristRoll],
		Gripper:   m[Gripper],
	}
}

// Map returns the angles keyed by joint name.
func (j Joints) Map() map[JointName]float64 {
	return map[JointName]float64{
		Base:      j.Base,
		Shoulder:  j.Shoulder,
		Elbow:     j.Elbow,
		WristTilt: j.WristTilt,
		WristRoll: j.WristRoll,
		Gripper:   j.Gripper,
	}
}

// Pose is the end-effector position in millimetres plus its tilt in radians.
type Pose struct {
	X    float64
	Y    float64
	Z    float64
	Tilt float64
}

// State is one feedback sample: measured joints and the pose derived from them.
type State struct {
	Joints Joints
	Pose   Pose
}
