package recorder

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Recorder captures served operations for later replay.
// Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	records []OpRecord
	stream  *json.Encoder // optional: newline-delimited copy of each record
}

// New creates a Recorder. If w is non-nil every record is also written to w
// as a JSON line when it arrives.
func New(w io.Writer) *Recorder {
	r := &Recorder{}
	if w != nil {
		r.stream = json.NewEncoder(w)
	}
	return r
}

// Record appends rec. The record is kept even if streaming it fails.
func (r *Recorder) Record(rec OpRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)
	if r.stream != nil {
		if err := r.stream.Encode(rec); err != nil {
			return errors.Wrap(err, "streaming record")
		}
	}
	return nil
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []OpRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]OpRecord, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// ExportJSON writes all records to w as an indented JSON array.
func (r *Recorder) ExportJSON(w io.Writer) error {
	records := r.Records()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// ExportFile writes all records to path, replacing any existing file.
func (r *Recorder) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := r.ExportJSON(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return f.Close()
}

// LoadJSON reads records written by ExportJSON.
func LoadJSON(r io.Reader) ([]OpRecord, error) {
	var records []OpRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "decoding records")
	}
	return records, nil
}

// LoadFile reads records from a file written by ExportFile.
func LoadFile(path string) ([]OpRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return LoadJSON(f)
}
