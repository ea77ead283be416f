package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerProvider_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider("geodash-test", &buf)
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "bridge.get_info")
	span.SetAttributes(AttrOperation.String("get_info"))

	tid, _, ok := spanIDs(ctx)
	require.True(t, ok)
	assert.NotEmpty(t, tid)

	EndSpan(span, errors.New("remote failure"))
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "bridge.get_info")
	assert.Contains(t, buf.String(), "remote failure")
}
