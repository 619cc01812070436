package eventjs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/stretchr/testify/require"
)

func writeTempScript(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func mustParse(t *testing.T, raw string) events.Event {
	t.Helper()
	ev, err := events.Parse([]byte(raw))
	require.NoError(t, err)
	return ev
}

const flowEvent = `{
	"id": "e1",
	"timestamp": "2024-01-01T00:00:01.000Z",
	"event_type": "flow_progress",
	"level": "INFO",
	"message": "Flow 'orders' is RUNNING.",
	"origin": {"pipeline_id": "p-1", "flow_name": "orders"},
	"details": {"flow_progress": {"status": "RUNNING"}}
}`

func TestModule_FilterAndTransform(t *testing.T) {
	p := writeTempScript(t, t.TempDir(), "quiet.js", `
register({
  name: "quiet",
  filter(event, ctx) { return event.event_type !== "flow_definition"; },
  transform(event, ctx) {
    event.message = "[" + dlt.state(event) + "] " + event.message;
    return event;
  },
});
`)
	m, err := LoadFromFile(context.Background(), p, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	require.Equal(t, "quiet", m.Name())
	require.True(t, m.Info().HasFilter)

	out, keep, err := m.Apply(context.Background(), mustParse(t, flowEvent))
	require.NoError(t, err)
	require.True(t, keep)
	require.Equal(t, "[RUNNING] Flow 'orders' is RUNNING.", out.Message)
	require.Equal(t, "e1", out.ID)

	_, keep, err = m.Apply(context.Background(), mustParse(t, `{"id": "e2", "event_type": "flow_definition"}`))
	require.NoError(t, err)
	require.False(t, keep)

	st := m.Stats()
	require.Equal(t, int64(2), st.EventsSeen)
	require.Equal(t, int64(1), st.EventsDropped)
	require.Equal(t, int64(1), st.EventsChanged)
}

func TestModule_TransformShorthands(t *testing.T) {
	m, err := Load(context.Background(), "short.js", `
register({
  name: "short",
  transform(event) {
    if (event.level === "WARN") return null;
    if (event.origin && event.origin.flow_name) return "flow " + event.origin.flow_name;
    return { message: event.message, level: "ERROR", details: { note: "escalated" } };
  },
});
`, Options{})
	require.NoError(t, err)

	out, keep, err := m.Apply(context.Background(), mustParse(t, flowEvent))
	require.NoError(t, err)
	require.True(t, keep)
	require.Equal(t, "flow orders", out.Message)

	_, keep, err = m.Apply(context.Background(), mustParse(t, `{"level": "WARN", "message": "m"}`))
	require.NoError(t, err)
	require.False(t, keep)

	out, keep, err = m.Apply(context.Background(), mustParse(t, `{"level": "INFO", "message": "m"}`))
	require.NoError(t, err)
	require.True(t, keep)
	require.Equal(t, events.LevelError, out.Level)
	require.JSONEq(t, `{"note": "escalated"}`, string(out.Details))
}

func TestModule_UntouchedDetailsKeepRawBytes(t *testing.T) {
	m, err := Load(context.Background(), "id.js", `register({ name: "id", transform(e) { return e; } });`, Options{})
	require.NoError(t, err)

	in := mustParse(t, flowEvent)
	out, keep, err := m.Apply(context.Background(), in)
	require.NoError(t, err)
	require.True(t, keep)
	require.Equal(t, string(in.Details), string(out.Details))
	require.Equal(t, int64(0), m.Stats().EventsChanged)
}

func TestModule_HookErrorLeavesEventAlone(t *testing.T) {
	m, err := Load(context.Background(), "bad.js", `
let seen = [];
register({
  name: "bad",
  filter(event) { throw new Error("nope"); },
  onError(err, payload, ctx) { ctx.state.lastHook = ctx.hook; },
});
`, Options{})
	require.NoError(t, err)

	in := mustParse(t, flowEvent)
	out, keep, err := m.Apply(context.Background(), in)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nope")
	require.True(t, keep)
	require.Equal(t, in.Message, out.Message)
	require.Equal(t, int64(1), m.Stats().HookErrors)
}

func TestModule_Timeout(t *testing.T) {
	m, err := Load(context.Background(), "loop.js", `
register({
  name: "loop",
  filter(event) { while (true) {} },
});
`, Options{HookTimeout: "10ms"})
	require.NoError(t, err)

	_, keep, err := m.Apply(context.Background(), mustParse(t, flowEvent))
	require.Error(t, err)
	require.True(t, keep)

	st := m.Stats()
	require.Equal(t, int64(1), st.HookTimeouts)
	require.Equal(t, int64(1), st.HookErrors)

	// the runtime is usable again after an interrupt
	_, _, err = m.Apply(context.Background(), mustParse(t, flowEvent))
	require.Error(t, err)
	require.Equal(t, int64(2), m.Stats().HookTimeouts)
}

func TestLoad_Validation(t *testing.T) {
	_, err := Load(context.Background(), "none.js", `var x = 1;`, Options{})
	require.ErrorIs(t, err, ErrNoRegister)

	_, err = Load(context.Background(), "noname.js", `register({ filter() { return true; } });`, Options{})
	require.Error(t, err)

	_, err = Load(context.Background(), "nohooks.js", `register({ name: "x" });`, Options{})
	require.Error(t, err)

	_, err = Load(context.Background(), "twice.js", `register({ name: "a", filter() {} }); register({ name: "b", filter() {} });`, Options{})
	require.Error(t, err)

	_, err = ParseOptions(Options{HookTimeout: "soon"})
	require.Error(t, err)
}

func TestModule_ParseTimestampHelper(t *testing.T) {
	m, err := Load(context.Background(), "ts.js", `
register({
  name: "ts",
  transform(event) {
    const d = dlt.parseTimestamp(event.timestamp);
    return d ? String(d.getUTCFullYear()) : "none";
  },
});
`, Options{})
	require.NoError(t, err)

	out, _, err := m.Apply(context.Background(), mustParse(t, flowEvent))
	require.NoError(t, err)
	require.Equal(t, "2024", out.Message)

	out, _, err = m.Apply(context.Background(), mustParse(t, `{"timestamp": "garbage"}`))
	require.NoError(t, err)
	require.Equal(t, "none", out.Message)
}

func TestChain_StopsAtFirstDrop(t *testing.T) {
	dir := t.TempDir()
	a := writeTempScript(t, dir, "a.js", `register({ name: "a", transform(e) { e.message = e.message + " a"; return e; } });`)
	b := writeTempScript(t, dir, "b.js", `register({ name: "b", filter(e) { return e.level !== "WARN"; } });`)
	c := writeTempScript(t, dir, "c.js", `register({ name: "c", transform(e) { e.message = e.message + " c"; return e; } });`)

	chain, err := LoadChainFromFiles(context.Background(), []string{a, b, "", c}, Options{})
	require.NoError(t, err)
	require.Len(t, chain.Modules, 3)

	out, keep, err := chain.Apply(context.Background(), mustParse(t, `{"level": "INFO", "message": "m"}`))
	require.NoError(t, err)
	require.True(t, keep)
	require.Equal(t, "m a c", out.Message)

	_, keep, err = chain.Apply(context.Background(), mustParse(t, `{"level": "WARN", "message": "m"}`))
	require.NoError(t, err)
	require.False(t, keep)
	require.Equal(t, int64(1), chain.Modules[2].Stats().EventsSeen)

	_, err = LoadChainFromFiles(context.Background(), nil, Options{})
	require.Error(t, err)
}
