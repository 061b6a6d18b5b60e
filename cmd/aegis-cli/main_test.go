package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samijaber1/aegis-tracker/internal/policy"
	"github.com/samijaber1/aegis-tracker/internal/registry"
)

const definitions = `apiVersion: aegis.dev/v1
kind: SLOList
slos:
  - name: Checkout API
    targetAvailability: 0.99
    windowMinutes: 60
    indicator:
      type: http
      routePattern: "^/api/"
    alerting:
      minRequests: 2
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunValidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", definitions)

	var stdout, stderr bytes.Buffer
	if code := runValidate([]string{"--definitions", filepath.Join(dir, "*.yaml")}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "checkout-api (window 1h, target 0.99)") {
		t.Errorf("unexpected output %q", stdout.String())
	}

	writeFile(t, dir, "bad.yaml", "slos:\n  - name: broken\n    indicator: {}\n")
	stdout.Reset()
	stderr.Reset()
	if code := runValidate([]string{"--definitions", filepath.Join(dir, "*.yaml")}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "bad.yaml") {
		t.Errorf("expected error for bad.yaml, got %q", stderr.String())
	}
}

func TestRunValidate_MissingFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := runValidate(nil, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRunReplay(t *testing.T) {
	dir := t.TempDir()
	defs := writeFile(t, dir, "slos.yaml", definitions)
	fixture := writeFile(t, dir, "traffic.json", `{"observations":[
		{"route":"/api/cart","method":"GET","statusCode":200,"durationMs":12,"timestamp":"2026-03-01T12:00:00Z"},
		{"route":"/api/cart","method":"GET","statusCode":200,"durationMs":18,"timestamp":"2026-03-01T12:10:00Z"},
		{"route":"/api/cart","method":"GET","statusCode":500,"durationMs":40,"timestamp":"2026-03-01T12:20:00Z"}
	]}`)

	var stdout, stderr bytes.Buffer
	code := runReplay([]string{"--definitions", defs, "--fixture", fixture, "--now", "2026-03-01T12:30:00Z"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}

	var report registry.Report
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(report.SLO) != 1 {
		t.Fatalf("expected one SLO, got %d", len(report.SLO))
	}
	snap := report.SLO[0]
	if snap.TotalRequests != 3 || snap.ErrorCount != 1 {
		t.Errorf("unexpected counts total=%d errors=%d", snap.TotalRequests, snap.ErrorCount)
	}
	if snap.Status != policy.StatusCritical {
		t.Errorf("expected critical status, got %s", snap.Status)
	}
	if !strings.Contains(stderr.String(), "replayed 3 observation(s), 0 discarded") {
		t.Errorf("unexpected stderr %q", stderr.String())
	}
}

func TestRunReplay_BadNow(t *testing.T) {
	dir := t.TempDir()
	defs := writeFile(t, dir, "slos.yaml", definitions)
	fixture := writeFile(t, dir, "traffic.json", `{"observations":[]}`)

	var stdout, stderr bytes.Buffer
	if code := runReplay([]string{"--definitions", defs, "--fixture", fixture, "--now", "noon"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}
