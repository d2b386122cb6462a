package robot

import "math"

// Geometry holds the arm's link lengths in millimetres.
type Geometry struct {
	BaseHeight float64 `yaml:"base_height"`
	UpperArm   float64 `yaml:"upper_arm"`
	Forearm    float64 `yaml:"forearm"`
	Hand       float64 `yaml:"hand"`
}

// DefaultGeometry approximates the RoArm-M3 link lengths.
func DefaultGeometry() Geometry {
	return Geometry{
		BaseHeight: 126.0,
		UpperArm:   236.8,
		Forearm:    144.5,
		Hand:       120.0,
	}
}

// Forward computes the end-effector pose. With all joints at zero the arm
// points straight along +X at base height; shoulder, elbow and wrist tilt
// raise the chain in the vertical plane selected by the base angle.
// Tilt is the hand's pitch relative to horizontal.
func (g Geometry) Forward(j Joints) Pose {
	a1 := j.Shoulder
	a2 := a1 + j.Elbow
	a3 := a2 + j.WristTilt

	reach := g.UpperArm*math.Cos(a1) + g.Forearm*math.Cos(a2) + g.Hand*math.Cos(a3)
	height := g.UpperArm*math.Sin(a1) + g.Forearm*math.Sin(a2) + g.Hand*math.Sin(a3)

	return Pose{
		X:    reach * math.Cos(j.Base),
		Y:    reach * math.Sin(j.Base),
		Z:    g.BaseHeight + height,
		Tilt: a3,
	}
}
