package host

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// SampleSink receives every accepted sample of one arm.
type SampleSink interface {
	WriteSample(s Sample) error
}

// JSONLFile appends samples to <arm_id>_<YYYYMMDD_HHMMSS>.jsonl.
type JSONLFile struct {
	f    *os.File
	path string
}

// CreateJSONLFile creates the output file for armID inside dir.
func CreateJSONLFile(dir, armID string, at time.Time) (*JSONLFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.jsonl", armID, at.Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &JSONLFile{f: f, path: path}, nil
}

// Path returns the file path.
func (j *JSONLFile) Path() string {
	return j.path
}

// WriteSample implements SampleSink. Each line is written with a single
// unbuffered write so the file is usable while recording.
func (j *JSONLFile) WriteSample(s Sample) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = j.f.Write(append(data, '\n'))
	return err
}

// Close implements io.Closer.
func (j *JSONLFile) Close() error {
	return j.f.Close()
}

// Console prints a short human-readable line per sample.
type Console struct {
	W io.Writer
}

// WriteSample implements SampleSink.
func (c Console) WriteSample(s Sample) error {
	_, err := fmt.Fprintf(c.W, "[%s] t:%d b:%.2f s:%.2f e:%.2f x:%.1f y:%.1f z:%.1f\n",
		s.ArmID, s.T, s.Base, s.Shoulder, s.Elbow, s.X, s.Y, s.Z)
	return err
}
