// Package roarm reports follower arm joint positions to a host computer.
//
// A follower agent samples the servo feedback of a RoArm follower, derives
// the end effector pose and writes one JSON line per report to the host link
// at 50 Hz while the arm is in follower mode. Each line carries the arm's
// persisted identity, so a host can tell several followers apart:
//
//	{"arm_id":"follower_left","t":1234,"b":0.1,"s":0.2,"e":0.3,"w":0.4,"r":0.5,"g":0.6,"x":300,"y":0,"z":120,"tilt":0.9}
//
// The identity is changed with {"T":400,"arm_id":"follower_right"} and
// survives restarts.
//
// # Installation
//
//	go install github.com/gwillem/roarm-follower/cmd/roarm@latest
//
// # Usage
//
// Find and calibrate the follower, and give it an identity:
//
//	roarm setup
//
// Then start reporting:
//
//	roarm follower
//
// On the host, record every connected follower to JSONL files:
//
//	roarm record --duration 60s --broker mqtt://localhost:1883/lab
//
// # Packages
//
//   - cmd/roarm: CLI with setup, follower, set-id, set-mode, record and monitor commands
//   - pkg/follower: device state, command handling and the main loop
//   - pkg/telemetry: report records, encoder and the 50 Hz scheduler
//   - pkg/identity: persisted arm identity
//   - pkg/prefs: namespaced key/value store with atomic writes
//   - pkg/mode: operating modes and the reporting gate
//   - pkg/robot: servo feedback, calibration, kinematics and configuration
//   - pkg/display: operator status output
//   - pkg/host: arm detection, recording, MQTT and metrics on the host
//   - pkg/logger: structured logging
package roarm
