package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordSave(ctx, "json.none", 10, time.Millisecond, nil)
		m.RecordSave(ctx, "json.none", 0, time.Millisecond, errors.New("x"))
		m.RecordLoad(ctx, time.Millisecond, nil)
		m.RecordRemove(ctx, true, true)
		m.RecordCatalogError(ctx, "put")
	})
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := sm.StartOpSpan(ctx, "save", "prices")
	assert.Equal(t, ctx, newCtx, "context is returned unchanged")
	assert.NotNil(t, span)
	assert.False(t, span.IsRecording())

	assert.NotPanics(t, func() {
		sm.AddSpanEvent(newCtx, "archived", attribute.Int("count", 1))
		sm.EndSpanWithError(span, errors.New("boom"))
	})
}
