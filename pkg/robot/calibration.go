package robot

import (
	"math"
)

// StepsPerRevolution is the resolution of the STS servo encoders.
const StepsPerRevolution = 4096

// JointCalibration holds calibration data for a single joint servo.
type JointCalibration struct {
	ID           int `yaml:"id" json:"id"`
	DriveMode    int `yaml:"drive_mode" json:"drive_mode"`
	HomingOffset int `yaml:"homing_offset" json:"homing_offset"`
	RangeMin     int `yaml:"range_min" json:"range_min"`
	RangeMax     int `yaml:"range_max" json:"range_max"`
}

// Calibration holds calibration data for all joints, keyed by joint name.
type Calibration map[JointName]JointCalibration

// Radians converts a raw servo position to an angle relative to the homing offset.
// DriveMode 1 inverts the direction.
func (c JointCalibration) Radians(raw int) float64 {
	rad := float64(raw-c.HomingOffset) * 2 * math.Pi / StepsPerRevolution
	if c.DriveMode != 0 {
		return -rad
	}
	return rad
}

// DefaultCalibration maps servo IDs 1-6 to the joints with a mid-scale home.
func DefaultCalibration() Calibration {
	cal := make(Calibration, 6)
	for i, name := range AllJoints() {
		cal[name] = JointCalibration{
			ID:           i + 1,
			HomingOffset: StepsPerRevolution / 2,
			RangeMin:     0,
			RangeMax:     StepsPerRevolution - 1,
		}
	}
	return cal
}

// ServoIDs returns the servo IDs for all joints in the calibration.
func (c Calibration) ServoIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllJoints() to ensure consistent ordering
	for _, name := range AllJoints() {
		if jc, ok := c[name]; ok {
			ids = append(ids, jc.ID)
		}
	}
	return ids
}

// ByID returns joint name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (JointName, JointCalibration, bool) {
	for name, jc := range c {
		if jc.ID == id {
			return name, jc, true
		}
	}
	return "", JointCalibration{}, false
}
