// Package host is the computer side of the follower link: it finds follower
// arms on serial ports by their arm_id, reads their reports concurrently and
// fans them out to JSONL files, MQTT and metrics.
package host

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gwillem/roarm-follower/pkg/telemetry"
)

var errNotRecord = errors.New("line is not a position report")

// Sample is a received report stamped with the host receive time.
type Sample struct {
	telemetry.Record
	HostTime     float64 `json:"host_time"`
	HostDatetime string  `json:"host_datetime"`
}

// NewSample stamps rec with at.
func NewSample(rec telemetry.Record, at time.Time) Sample {
	return Sample{
		Record:       rec,
		HostTime:     float64(at.UnixNano()) / 1e9,
		HostDatetime: at.Format("2006-01-02T15:04:05.000000"),
	}
}

// wireRecord detects whether the timestamp key was present, which separates
// reports from command replies that also carry arm_id.
type wireRecord struct {
	telemetry.Record
	T *uint32 `json:"t"`
}

// DecodeRecord parses one report line.
func DecodeRecord(line []byte) (telemetry.Record, error) {
	var w wireRecord
	if err := json.Unmarshal(line, &w); err != nil {
		return telemetry.Record{}, err
	}
	if w.T == nil || w.ArmID == "" {
		return telemetry.Record{}, errNotRecord
	}
	rec := w.Record
	rec.T = *w.T
	return rec, nil
}

// armIDOf returns the arm_id field of any JSON object line.
func armIDOf(line []byte) (string, bool) {
	var probe struct {
		ArmID *string `json:"arm_id"`
	}
	if err := json.Unmarshal(line, &probe); err != nil || probe.ArmID == nil {
		return "", false
	}
	return *probe.ArmID, true
}
