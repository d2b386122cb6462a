package robot

import (
	"math"
	"testing"
)

func TestGeometry_Forward(t *testing.T) {
	g := Geometry{BaseHeight: 100, UpperArm: 200, Forearm: 150, Hand: 50}

	tests := []struct {
		name     string
		joints   Joints
		expected Pose
	}{
		{"zero", Joints{}, Pose{X: 400, Y: 0, Z: 100, Tilt: 0}},
		{"base quarter turn", Joints{Base: math.Pi / 2}, Pose{X: 0, Y: 400, Z: 100, Tilt: 0}},
		{"shoulder up", Joints{Shoulder: math.Pi / 2}, Pose{X: 0, Y: 0, Z: 500, Tilt: math.Pi / 2}},
		{"elbow down", Joints{Elbow: -math.Pi / 2}, Pose{X: 200, Y: 0, Z: -100, Tilt: -math.Pi / 2}},
		{"wrist only", Joints{WristTilt: math.Pi / 2, WristRoll: 1, Gripper: 1}, Pose{X: 350, Y: 0, Z: 150, Tilt: math.Pi / 2}},
	}

	for _, tt := range tests {
		got := g.Forward(tt.joints)
		if math.Abs(got.X-tt.expected.X) > 1e-9 ||
			math.Abs(got.Y-tt.expected.Y) > 1e-9 ||
			math.Abs(got.Z-tt.expected.Z) > 1e-9 ||
			math.Abs(got.Tilt-tt.expected.Tilt) > 1e-9 {
			t.Errorf("%s: Forward(%+v) = %+v, want %+v", tt.name, tt.joints, got, tt.expected)
		}
	}
}
