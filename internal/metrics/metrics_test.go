package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStage(t *testing.T) {
	m := New()
	now := time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.ObserveStage("script", now.Add(-2*time.Second), nil)
	m.ObserveStage("script", now.Add(-time.Second), errors.New("boom"))

	if got := testutil.ToFloat64(m.stageRuns.WithLabelValues("script", "success")); got != 1 {
		t.Fatalf("success runs = %v", got)
	}
	if got := testutil.ToFloat64(m.stageRuns.WithLabelValues("script", "failure")); got != 1 {
		t.Fatalf("failure runs = %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues("script")); got != float64(now.Unix()) {
		t.Fatalf("last success = %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.SetHealth("atom", true)
	m.SetHealth("gate", false)
	m.SetAtoms("validated", 3)
	m.SetPublished(2)
	m.SetPendingApprovals(1)

	path := filepath.Join(t.TempDir(), "textfile", "loreforge.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`loreforge_health_status{check="atom"} 1`,
		`loreforge_health_status{check="gate"} 0`,
		`loreforge_atoms{stage="validated"} 3`,
		`loreforge_published_records 2`,
		`loreforge_pending_approvals 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveStage("x", time.Now(), nil)
	m.SetHealth("x", true)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("nil WriteTextfile: %v", err)
	}
	if New().WriteTextfile("") != nil {
		t.Fatal("empty path should be a no-op")
	}
}
