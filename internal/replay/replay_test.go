package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samijaber1/aegis-tracker/internal/registry"
	"github.com/samijaber1/aegis-tracker/internal/slo"
)

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339", `"2026-03-01T12:05:00Z"`, time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC), false},
		{"rfc3339 offset", `"2026-03-01T13:05:00+01:00"`, time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC), false},
		{"epoch ms", `1772366700000`, time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC), false},
		{"fractional ms", `1772366700000.5`, time.Date(2026, 3, 1, 12, 5, 0, 500000, time.UTC), false},
		{"null", `null`, time.Time{}, false},
		{"bad string", `"yesterday"`, time.Time{}, true},
		{"bool", `true`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tt.input), &ts)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", ts.Time)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ts.Time)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	body := `{"observations":[
		{"route":"/api/a","method":"get","statusCode":200,"durationMs":12.5,"timestamp":"2026-03-01T12:00:00Z"},
		{"route":"/api/b","method":"POST","statusCode":503,"timestamp":1772366460000},
		{"route":"/api/c","method":"GET","statusCode":200}
	]}`

	f, err := Decode(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(f.Observations) != 3 {
		t.Fatalf("expected 3 records, got %d", len(f.Observations))
	}
	if d := f.Observations[0].DurationMs; d == nil || *d != 12.5 {
		t.Errorf("unexpected duration %v", d)
	}
	if f.Observations[1].DurationMs != nil {
		t.Error("expected missing duration to stay nil")
	}
	if !f.Observations[2].Timestamp.IsZero() {
		t.Error("expected missing timestamp to stay zero")
	}

	latest, ok := f.Latest()
	if !ok || !latest.Equal(time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)) {
		t.Errorf("unexpected latest %v (%v)", latest, ok)
	}
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"observations":[{"path":"/x"}]}`))
	if err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestReplay_FeedsRegistry(t *testing.T) {
	minRequests := 1.0
	reg, err := registry.New([]slo.RawDefinition{{
		ID:        "api",
		Indicator: slo.RawIndicator{RoutePattern: "^/api/"},
		Alerting:  &slo.RawAlerting{MinRequests: &minRequests},
	}})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}

	path := filepath.Join(t.TempDir(), "traffic.json")
	body := `{"observations":[
		{"route":"/api/a","method":"GET","statusCode":200,"timestamp":"2026-03-01T12:00:00Z"},
		{"route":"/api/a","method":"GET","statusCode":500,"timestamp":"2026-03-01T12:00:30Z"},
		{"route":"","method":"GET","statusCode":200,"timestamp":"2026-03-01T12:00:40Z"},
		{"route":"/api/a","method":"GET","statusCode":42,"timestamp":"2026-03-01T12:00:50Z"}
	]}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	res := f.Replay(reg)
	if res.Accepted != 2 || res.Discarded != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if reg.Stats().Discarded != 2 {
		t.Errorf("expected registry to count 2 discards, got %d", reg.Stats().Discarded)
	}

	snap, ok := reg.Summary("api", registry.SummaryOptions{Now: time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)})
	if !ok {
		t.Fatal("expected summary")
	}
	if snap.TotalRequests != 2 || snap.ErrorCount != 1 {
		t.Errorf("unexpected counts total=%d errors=%d", snap.TotalRequests, snap.ErrorCount)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error")
	}
}
