package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/uvguard/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordOperation("sync", 120*time.Millisecond, true)
	RecordToolInvocation("uv", "sync", 0, 80*time.Millisecond)
	RecordDriftRepairs(0)
	RecordDriftRepairs(2)
}

func TestWriteTextfile(t *testing.T) {
	testlog.Start(t)
	if err := WriteTextfile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}

	RecordToolInvocation("guardrails", "install", 1, time.Second)
	path := filepath.Join(t.TempDir(), "metrics", "uvguard.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "uvguard_tool_invocations_total") {
		t.Fatalf("missing tool counter in textfile:\n%s", data)
	}
}

func TestOperationLoggerTagsOperation(t *testing.T) {
	testlog.Start(t)
	a := OperationLogger("add")
	b := OperationLogger("add")
	if a.GetLevel() != b.GetLevel() {
		t.Fatalf("operation loggers should inherit the global level")
	}
}
