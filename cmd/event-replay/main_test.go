package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const feed = `{"id":"1","timestamp":"2024-01-01T00:00:01.000Z","level":"INFO","event_type":"create_update","message":"Update 1 started."}
not json
{"id":"2","timestamp":"2024-01-01T00:00:02.000Z","level":"INFO","event_type":"flow_progress","message":"Flow 'a' is RUNNING.","origin":{"flow_name":"a"},"details":{"flow_progress":{"status":"RUNNING"}}}
{"id":"3","timestamp":"2024-01-01T00:00:03.000Z","level":"INFO","event_type":"update_progress","message":"Update 1 is COMPLETED.","details":{"update_progress":{"state":"COMPLETED"}}}
{"id":"4","timestamp":"2024-01-01T00:00:04.000Z","level":"INFO","event_type":"update_progress","message":"after the end"}
`

func replay(t *testing.T, input string, opts options) (string, string, error) {
	t.Helper()
	cmd := &cobra.Command{}
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := run(context.Background(), cmd, opts)
	return out.String(), errOut.String(), err
}

func TestReplay_StopsAtTerminalEvent(t *testing.T) {
	out, errOut, err := replay(t, feed, options{pipelineID: "p-1", jsTimeout: "0"})
	require.NoError(t, err)
	require.Contains(t, errOut, "line 2")
	require.Contains(t, out, "Update 1 started.")
	require.Contains(t, out, "Flow 'a' is RUNNING.")
	require.Contains(t, out, "pipeline p-1 finished: Update 1 is COMPLETED.")
	require.NotContains(t, out, "after the end")
}

func TestReplay_AppliesScripts(t *testing.T) {
	script := filepath.Join(t.TempDir(), "drop-flows.js")
	require.NoError(t, os.WriteFile(script, []byte(`
register({
  name: "drop-flows",
  filter: function (ev) { return ev.event_type !== "flow_progress"; },
});
`), 0o644))

	out, _, err := replay(t, feed, options{pipelineID: "p-1", jsTimeout: "100ms", scripts: []string{script}})
	require.NoError(t, err)
	require.NotContains(t, out, "Flow 'a' is RUNNING.")
	require.Contains(t, out, "drop-flows: seen=3 dropped=1")
}

func TestReplay_PageInputAndFailure(t *testing.T) {
	page := `{"events_json":["{\"id\":\"9\",\"timestamp\":\"2024-01-01T00:00:09.000Z\",\"level\":\"ERROR\",\"event_type\":\"update_progress\",\"message\":\"Update 9 is FAILED.\",\"details\":{\"update_progress\":{\"state\":\"FAILED\"}}}"]}`
	out, _, err := replay(t, page, options{pipelineID: "p-9", page: true, jsTimeout: "0"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "pipeline p-9 failed")
	require.Contains(t, out, "Update 9 is FAILED.")
}
