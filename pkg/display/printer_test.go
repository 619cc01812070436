package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 5_000_000, time.UTC) }

func mustEvent(t *testing.T, raw string) events.TypedEvent {
	t.Helper()
	ev, err := events.Parse([]byte(raw))
	require.NoError(t, err)
	return events.Classify(ev)
}

func TestPrinter_StatusLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithClock(fixedNow))

	p.Status("Running non-interactively as a job")
	require.Equal(t, "✔ 2024-03-01T12:00:00.005Z cli_status Running non-interactively as a job\n", buf.String())
}

func TestPrinter_TerseEvent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Event(mustEvent(t, `{
		"id": "e1",
		"timestamp": "2024-01-01T00:00:01.123Z",
		"event_type": "update_progress",
		"level": "INFO",
		"message": "Update 6f3e is RUNNING.",
		"details": {"update_progress": {"state": "RUNNING"}}
	}`), false)

	require.Equal(t, "✔ 2024-01-01T00:00:01.123Z update_progress Update 6f3e is RUNNING.\n", buf.String())
}

func TestPrinter_UnparsableTimestampKeepsRaw(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Event(mustEvent(t, `{"timestamp": "yesterday-ish", "event_type": "weird", "message": "m"}`), false)
	require.Equal(t, "✔ yesterday-ish weird m\n", buf.String())
}

func TestPrinter_VerboseShowsTypedFieldsAndRedacts(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Event(mustEvent(t, `{
		"id": "e2",
		"timestamp": "2024-01-01T00:00:02.000Z",
		"event_type": "flow_progress",
		"level": "ERROR",
		"message": "Flow 'orders' has FAILED.",
		"origin": {"pipeline_id": "p-1", "update_id": "u-1", "flow_name": "orders"},
		"details": {"flow_progress": {"status": "FAILED"}, "spark_conf": {"fs.azure.account.key": "abc", "spark.executor.cores": "4"}},
		"error": {"exceptions": [{"message": "boom", "auth_token": "dapi-123"}]}
	}`), true)

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, "✔ 2024-01-01T00:00:02.000Z flow_progress Flow 'orders' has FAILED.", lines[0])
	require.Contains(t, out, "    id: e2\n")
	require.Contains(t, out, "    flow: orders\n")
	require.Contains(t, out, "    status: FAILED\n")
	require.Contains(t, out, "    origin: flow_name=orders pipeline_id=p-1 update_id=u-1\n")
	require.Contains(t, out, `"spark.executor.cores":"4"`)
	require.Contains(t, out, "boom")
	require.NotContains(t, out, "abc")
	require.NotContains(t, out, "dapi-123")
	require.Contains(t, out, redactedValue)
}

func TestPrinter_SinkCallbacks(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithClock(fixedNow))

	p.Idle(monitor.Status{PipelineID: "p-1", Idle: 1, MaxIdle: 3})
	require.Empty(t, buf.String())

	p.Idle(monitor.Status{PipelineID: "p-1", Idle: 2, MaxIdle: 3, Verbose: true})
	require.Contains(t, buf.String(), "No new events (2/3 idle polls)")
	buf.Reset()

	p.Finished(monitor.Outcome{Kind: monitor.KindFailure, PipelineID: "p-1", Reason: "update FAILED"})
	require.Equal(t, "✔ 2024-03-01T12:00:00.005Z cli_status pipeline p-1 failed: update FAILED\n", buf.String())
	buf.Reset()

	p.Finished(monitor.Outcome{PipelineID: "p-1"})
	require.Empty(t, buf.String())
}

func TestRedactJSON(t *testing.T) {
	raw := json.RawMessage(`{"a": 1, "nested": {"password": "x", "list": [{"SECRET_VALUE": "y"}]}}`)
	require.Equal(t, `{"a":1,"nested":{"list":[{"SECRET_VALUE":"[REDACTED]"}],"password":"[REDACTED]"}}`, RedactJSON(raw))
	require.Equal(t, "", RedactJSON(nil))
	require.Equal(t, "not json", RedactJSON(json.RawMessage("not json")))

	require.Equal(t, map[string]string{"DATABRICKS_TOKEN": redactedValue, "region": "us"},
		RedactMap(map[string]string{"DATABRICKS_TOKEN": "dapi", "region": "us"}))
}
