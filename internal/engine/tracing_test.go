package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestIngest_SpanCarriesDecisionOutcome(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	e := testEngine()
	res, err := e.Ingest(context.Background(), testRecord())
	require.NoError(t, err)

	spans := sr.Ended()
	require.NotEmpty(t, spans)
	span := spans[len(spans)-1]
	assert.Equal(t, "engine.Ingest", span.Name())

	attrs := make(map[attribute.Key]attribute.Value, len(span.Attributes()))
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "cli", attrs["event.client_type"].AsString())
	assert.Equal(t, res.EventID, attrs["event.id"].AsInt64())
	assert.Equal(t, string(res.Verdict), attrs["decision.verdict"].AsString())
	assert.Equal(t, string(res.AttackType), attrs["decision.attack_type"].AsString())
}
