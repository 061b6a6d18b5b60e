package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/samijaber1/aegis-tracker/internal/policy"
	"github.com/samijaber1/aegis-tracker/internal/slo"
	"github.com/samijaber1/aegis-tracker/internal/storage"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testDefinition(t *testing.T, id string) *slo.Definition {
	t.Helper()
	def, err := slo.Normalize(slo.RawDefinition{ID: id, Indicator: slo.RawIndicator{RoutePattern: "^/api/"}}, slo.DefaultSettings())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return def
}

func availability(v float64) *float64 { return &v }

func TestStore_StoreDefinition(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	def := testDefinition(t, "public-api")

	if err := store.StoreDefinition(ctx, def); err != nil {
		t.Fatalf("failed to store definition: %v", err)
	}
	// Upsert must not conflict.
	if err := store.StoreDefinition(ctx, def); err != nil {
		t.Fatalf("failed to re-store definition: %v", err)
	}

	var name string
	var window int
	if err := store.db.QueryRow("SELECT name, window_minutes FROM slo_definitions WHERE id = ?", "public-api").Scan(&name, &window); err != nil {
		t.Fatalf("query: %v", err)
	}
	if name != "public-api" || window != 60 {
		t.Errorf("unexpected row: name=%s window=%d", name, window)
	}
}

func TestStore_StoreTransition(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.StoreDefinition(ctx, testDefinition(t, "public-api")); err != nil {
		t.Fatalf("failed to store definition: %v", err)
	}

	transitions := []storage.Transition{
		{SLOID: "public-api", To: policy.StatusNoData, Timestamp: t0},
		{
			SLOID: "public-api", From: policy.StatusNoData, To: policy.StatusWarning,
			BurnRate: 3.92, MeasuredAvailability: availability(0.98), TotalRequests: 51, ErrorCount: 1,
			Annotations: []policy.Annotation{{Severity: policy.SeverityWarning, Code: policy.CodeBurnRateWarning, Message: "burn"}},
			Timestamp:   t0.Add(time.Minute),
		},
	}
	for _, tr := range transitions {
		if err := store.StoreTransition(ctx, tr); err != nil {
			t.Fatalf("failed to store transition: %v", err)
		}
	}

	records, err := store.QueryTransitions(ctx, storage.TransitionFilter{SLOID: "public-api"})
	if err != nil {
		t.Fatalf("failed to query transitions: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	latest := records[0]
	if latest.To != policy.StatusWarning || latest.From != policy.StatusNoData {
		t.Errorf("expected newest first, got %s -> %s", latest.From, latest.To)
	}
	if latest.MeasuredAvailability == nil || *latest.MeasuredAvailability != 0.98 {
		t.Errorf("unexpected availability %v", latest.MeasuredAvailability)
	}
	if len(latest.Annotations) != 1 || latest.Annotations[0].Code != policy.CodeBurnRateWarning {
		t.Errorf("unexpected annotations %v", latest.Annotations)
	}
	if !latest.Timestamp.Equal(t0.Add(time.Minute)) {
		t.Errorf("unexpected timestamp %v", latest.Timestamp)
	}
	if records[1].MeasuredAvailability != nil || len(records[1].Annotations) != 0 {
		t.Errorf("expected empty first transition, got %+v", records[1])
	}
}

func TestStore_StoreTransitionRequiresDefinition(t *testing.T) {
	store := setupTestDB(t)

	err := store.StoreTransition(context.Background(), storage.Transition{SLOID: "unknown", To: policy.StatusHealthy, Timestamp: t0})
	if err == nil {
		t.Fatal("expected foreign key error")
	}
}

func TestStore_QueryTransitionsFilters(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := store.StoreDefinition(ctx, testDefinition(t, id)); err != nil {
			t.Fatalf("failed to store definition: %v", err)
		}
	}
	statuses := []policy.Status{policy.StatusHealthy, policy.StatusWarning, policy.StatusCritical, policy.StatusHealthy}
	for i, st := range statuses {
		for _, id := range []string{"a", "b"} {
			tr := storage.Transition{SLOID: id, To: st, Timestamp: t0.Add(time.Duration(i) * time.Minute)}
			if err := store.StoreTransition(ctx, tr); err != nil {
				t.Fatalf("failed to store transition: %v", err)
			}
		}
	}

	start := t0.Add(time.Minute)
	end := t0.Add(2 * time.Minute)

	tests := []struct {
		name   string
		filter storage.TransitionFilter
		want   int
	}{
		{"all", storage.TransitionFilter{}, 8},
		{"by slo", storage.TransitionFilter{SLOID: "a"}, 4},
		{"by status", storage.TransitionFilter{Status: string(policy.StatusHealthy)}, 4},
		{"by slo and status", storage.TransitionFilter{SLOID: "b", Status: string(policy.StatusCritical)}, 1},
		{"time range", storage.TransitionFilter{StartTime: &start, EndTime: &end}, 4},
		{"limit", storage.TransitionFilter{Limit: 3}, 3},
		{"offset", storage.TransitionFilter{SLOID: "a", Offset: 3}, 1},
		{"no match", storage.TransitionFilter{SLOID: "c"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.QueryTransitions(ctx, tt.filter)
			if err != nil {
				t.Fatalf("failed to query: %v", err)
			}
			if len(records) != tt.want {
				t.Errorf("expected %d records, got %d", tt.want, len(records))
			}
		})
	}
}

func TestStore_GetLatestState(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	if err := store.StoreDefinition(ctx, testDefinition(t, "public-api")); err != nil {
		t.Fatalf("failed to store definition: %v", err)
	}

	state, err := store.GetLatestState(ctx, "public-api")
	if err != nil {
		t.Fatalf("failed to get latest state: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state before any transition, got %+v", state)
	}

	for i, st := range []policy.Status{policy.StatusInsufficientData, policy.StatusCritical} {
		tr := storage.Transition{SLOID: "public-api", To: st, BurnRate: float64(i) * 6, TotalRequests: int64(10 * (i + 1)), Timestamp: t0.Add(time.Duration(i) * time.Minute)}
		if err := store.StoreTransition(ctx, tr); err != nil {
			t.Fatalf("failed to store transition: %v", err)
		}
	}

	state, err = store.GetLatestState(ctx, "public-api")
	if err != nil {
		t.Fatalf("failed to get latest state: %v", err)
	}
	if state == nil {
		t.Fatal("expected latest state")
	}
	if state.Status != policy.StatusCritical || state.BurnRate != 6 || state.TotalRequests != 20 {
		t.Errorf("unexpected latest state: %+v", state)
	}
	if state.MeasuredAvailability != nil {
		t.Errorf("expected null availability, got %v", *state.MeasuredAvailability)
	}
}
