package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("order-core", &buf)

	log.Info("order_placed", "Order placed", "req-1", map[string]interface{}{"order_id": 7})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Order placed", entry["msg"])
	assert.Equal(t, "order-core", entry["service"])
	assert.Equal(t, "order_placed", entry["action"])
	assert.Equal(t, "req-1", entry["request_id"])

	details, ok := entry["details"].(map[string]interface{})
	require.True(t, ok, "details group missing")
	assert.EqualValues(t, 7, details["order_id"])
}

func TestLogger_ErrorCarriesMessage(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("order-core", &buf)

	log.Error("order_rejected", "Order rejected", "req-2", errors.New("insufficient stock"), nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	errGroup, ok := entry["error"].(map[string]interface{})
	require.True(t, ok, "error group missing")
	assert.Equal(t, "insufficient stock", errGroup["msg"])
	assert.NotContains(t, entry, "details")
}

func TestLogger_ErrorWithoutCause(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("order-core", &buf)

	log.Error("validation_failed", "missing flag", "", nil, nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.NotContains(t, entry, "error")
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestRequestIDContext(t *testing.T) {
	assert.Equal(t, "", RequestIDFrom(context.Background()))

	ctx := WithRequestID(context.Background(), "req-42")
	assert.Equal(t, "req-42", RequestIDFrom(ctx))
}
