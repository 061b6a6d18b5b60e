// Package replay feeds recorded HTTP observations into a registry. The same
// wire format backs the batch ingestion endpoint.
package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/samijaber1/aegis-tracker/internal/registry"
)

// Record is one observation as it appears in a fixture or request body.
type Record struct {
	Route      string    `json:"route"`
	Method     string    `json:"method"`
	StatusCode int       `json:"statusCode"`
	DurationMs *float64  `json:"durationMs,omitempty"`
	Timestamp  Timestamp `json:"timestamp"`
}

// Observation converts r for RecordHTTPObservation.
func (r Record) Observation() registry.Observation {
	return registry.Observation{
		Route:      r.Route,
		Method:     r.Method,
		StatusCode: r.StatusCode,
		DurationMs: r.DurationMs,
		Timestamp:  r.Timestamp.Time,
	}
}

// Timestamp accepts RFC 3339 strings and epoch milliseconds. A missing or
// null timestamp stays zero.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("invalid timestamp %s: expected RFC 3339 string or epoch milliseconds", data)
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return fmt.Errorf("invalid timestamp %s", data)
	}
	whole, frac := math.Modf(ms)
	t.Time = time.UnixMilli(int64(whole)).Add(time.Duration(frac * float64(time.Millisecond))).UTC()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Fixture is a recorded batch of observations.
type Fixture struct {
	Observations []Record `json:"observations"`
}

// Decode reads a fixture from r. Unknown fields are rejected.
func Decode(r io.Reader) (*Fixture, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse observations: %w", err)
	}
	return &f, nil
}

// LoadFile reads a fixture from path.
func LoadFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	defer file.Close()

	f, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Latest returns the newest timestamp in the fixture, or false when no
// record carries one.
func (f *Fixture) Latest() (time.Time, bool) {
	var latest time.Time
	for _, rec := range f.Observations {
		if rec.Timestamp.After(latest) {
			latest = rec.Timestamp.Time
		}
	}
	return latest, !latest.IsZero()
}

// Recorder accepts observations. *registry.Registry satisfies it.
type Recorder interface {
	RecordHTTPObservation(registry.Observation)
}

// Result counts how a replay was received.
type Result struct {
	Accepted  int `json:"accepted"`
	Discarded int `json:"discarded"`
}

// Replay records every observation in file order. Malformed records are
// passed through so the registry counts them as discarded.
func (f *Fixture) Replay(rec Recorder) Result {
	var res Result
	for _, r := range f.Observations {
		obs := r.Observation()
		if obs.Valid() {
			res.Accepted++
		} else {
			res.Discarded++
		}
		rec.RecordHTTPObservation(obs)
	}
	return res
}
