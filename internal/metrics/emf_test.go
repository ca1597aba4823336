package metrics

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, on bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	wasEnabled := Enabled()
	Enable(on)
	t.Cleanup(func() {
		SetOutput(prev)
		Enable(wasEnabled)
	})
	return &buf
}

func TestNew_FunctionNameDimension(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "photo-lambda")

	r := New(Namespace)
	assert.Equal(t, Namespace, r.namespace)
	assert.Equal(t, "photo-lambda", r.dimensions["FunctionName"])
}

func TestRecorder_FlushOutput(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	buf := capture(t, true)

	New(Namespace).
		Dimension("Operation", "enhance").
		Dimension("Result", "success").
		Metric("TransformMs", 1234.5, UnitMilliseconds).
		Count("TransformCount").
		Property("model", "gemini-2.5-flash-image-preview").
		Flush()

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc), buf.String())

	assert.Equal(t, "enhance", doc["Operation"])
	assert.Equal(t, 1234.5, doc["TransformMs"])
	assert.Equal(t, 1.0, doc["TransformCount"])
	assert.Equal(t, "gemini-2.5-flash-image-preview", doc["model"])

	aws := doc["_aws"].(map[string]any)
	assert.Contains(t, aws, "Timestamp")
	cw := aws["CloudWatchMetrics"].([]any)[0].(map[string]any)
	assert.Equal(t, Namespace, cw["Namespace"])
	assert.Equal(t, []any{[]any{"Operation", "Result"}}, cw["Dimensions"])
	assert.Len(t, cw["Metrics"], 2)
}

func TestRecorder_DisabledWritesNothing(t *testing.T) {
	buf := capture(t, false)

	New(Namespace).Count("TransformCount").Flush()
	assert.Zero(t, buf.Len())
}

func TestRecorder_NoMetricsWritesNothing(t *testing.T) {
	buf := capture(t, true)

	New(Namespace).Dimension("Operation", "enhance").Flush()
	assert.Zero(t, buf.Len())
}
