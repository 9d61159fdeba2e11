package api_response

import (
	"context"
	"testing"

	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNew_RequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), constants.APIFieldRequestID, "req-1") //nolint:staticcheck
	assert.Equal(t, "req-1", New[any](ctx).RequestID)

	_, err := uuid.Parse(New[any](context.Background()).RequestID)
	assert.NoError(t, err)
}

func TestPopulate(t *testing.T) {
	resp := New[[]float64](context.Background()).
		Populate("OK", "OK", []float64{31.5}, map[string]any{"capacity": 144}, 1)
	assert.Equal(t, "OK", resp.Code)
	assert.Equal(t, []float64{31.5}, resp.Data)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 144, resp.Meta["capacity"])

	anyResp := New[any](context.Background()).Populate("430000", "sensor not found", nil, "x", nil)
	assert.Equal(t, 0, anyResp.Count)
	assert.Equal(t, "x", anyResp.Meta["meta"])
}

func TestError(t *testing.T) {
	resp := Error[any](context.Background(), "400004", "unknown api path")
	assert.Equal(t, "400004", resp.Code)
	assert.Nil(t, resp.Data)
}
