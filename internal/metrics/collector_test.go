package metrics

import (
	stderr "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/objectfs/s3backend/pkg/errors"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		config := &Config{
			Enabled:   true,
			Namespace: "s3backend",
			Subsystem: "test",
			Labels:    map[string]string{"volume": "v1"},
		}
		collector, err := NewCollector(config)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.config != config {
			t.Error("collector.config does not match input config")
		}
		if collector.registry == nil {
			t.Error("collector.registry is nil")
		}
		if collector.operations == nil {
			t.Error("collector.operations map is nil")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if collector.config.Namespace != "s3backend" {
			t.Errorf("default namespace = %q, want %q", collector.config.Namespace, "s3backend")
		}
	})

	t.Run("with disabled config", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.registry != nil {
			t.Error("disabled collector should not have registry")
		}
		collector.RecordOperation("get", time.Millisecond, 1, true)
		collector.RecordEnumerationDropped(DropHead)
		if got := collector.Operation("get").Count; got != 0 {
			t.Errorf("disabled collector recorded %d operations", got)
		}
	})

	t.Run("two collectors do not collide", func(t *testing.T) {
		if _, err := NewCollector(nil); err != nil {
			t.Fatal(err)
		}
		if _, err := NewCollector(nil); err != nil {
			t.Fatal(err)
		}
	})
}

func TestRecordOperation(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(nil)
	if err != nil {
		t.Fatal(err)
	}

	collector.RecordOperation("put", 10*time.Millisecond, 100, true)
	collector.RecordOperation("put", 30*time.Millisecond, 300, false)

	op := collector.Operation("put")
	if op.Count != 2 {
		t.Errorf("Count = %d, want 2", op.Count)
	}
	if op.Errors != 1 {
		t.Errorf("Errors = %d, want 1", op.Errors)
	}
	if op.TotalSize != 400 {
		t.Errorf("TotalSize = %d, want 400", op.TotalSize)
	}
	if op.AvgDuration != 20*time.Millisecond {
		t.Errorf("AvgDuration = %v, want 20ms", op.AvgDuration)
	}
	if collector.Operation("get").Count != 0 {
		t.Error("unrecorded operation should be empty")
	}
}

func TestNilCollector(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.RecordOperation("get", time.Millisecond, 0, true)
	c.RecordError("get", stderr.New("x"))
	c.RecordEnumerationDropped(DropMetadata)

	if c.Dropped(DropMetadata) != 0 {
		t.Error("nil collector should report zero")
	}
	if c.Registry() != nil {
		t.Error("nil collector has no registry")
	}
	if len(c.GetMetrics()) != 0 {
		t.Error("nil collector should return empty metrics")
	}
}

func TestHandlerExposesSeries(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(nil)
	if err != nil {
		t.Fatal(err)
	}

	collector.RecordOperation("get", time.Millisecond, 10, true)
	collector.RecordEnumerationDropped(DropTimestamp)
	collector.RecordEnumerationDropped(DropTimestamp)
	collector.RecordError("put", errors.Wrap(stderr.New("executor closed"), errors.ErrCodeDispatchFailure, "executor", "dispatch", "rejected"))
	collector.RecordError("get", stderr.New("plain"))

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`s3backend_operations_total{operation="get",status="success"} 1`,
		`s3backend_enumeration_dropped_total{reason="timestamp"} 2`,
		`s3backend_dispatch_failures_total{operation="put"} 1`,
		`s3backend_errors_total{code="DISPATCH_FAILURE",operation="put"} 1`,
		`s3backend_errors_total{code="INTERNAL_ERROR",operation="get"} 1`,
		"s3backend_operation_duration_seconds_bucket",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}

	if got := collector.Dropped(DropTimestamp); got != 2 {
		t.Errorf("Dropped(timestamp) = %d, want 2", got)
	}
}

func TestDisabledHandler(t *testing.T) {
	t.Parallel()

	collector, _ := NewCollector(&Config{Enabled: false})
	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetMetricsAndReset(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(nil)
	if err != nil {
		t.Fatal(err)
	}
	collector.RecordOperation("delete", time.Millisecond, 0, true)
	collector.RecordEnumerationDropped(DropHead)

	m := collector.GetMetrics()
	ops, ok := m["operations"].(map[string]OperationMetrics)
	if !ok {
		t.Fatalf("operations has type %T", m["operations"])
	}
	if ops["delete"].Count != 1 {
		t.Errorf("delete count = %d, want 1", ops["delete"].Count)
	}
	if _, ok := m["uptime"]; !ok {
		t.Error("uptime missing")
	}
	if dropped, _ := m["enumeration_dropped"].(map[string]int64); dropped[DropHead] != 1 {
		t.Errorf("enumeration_dropped = %v, want head=1", m["enumeration_dropped"])
	}
}
