package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracer_WritesSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := InitTracer(ServiceName, &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "monitor.poll")
	span.End()

	require.NoError(t, shutdown(context.Background()))
	require.Contains(t, buf.String(), `"Name": "monitor.poll"`)
	require.Contains(t, buf.String(), ServiceName)
}
