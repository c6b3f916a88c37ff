package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addRequest struct {
	A int `json:"a" kataribe:"required"`
	B int `json:"b"`
}

func TestStructSchemaAccepts(t *testing.T) {
	v := StructSchema(addRequest{})
	out, err := v.Validate(context.Background(), map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	req, ok := out.(*addRequest)
	require.True(t, ok)
	assert.Equal(t, 2, req.A)
	assert.Equal(t, 3, req.B)
}

func TestStructSchemaRejectsMissingRequiredField(t *testing.T) {
	v := StructSchema(addRequest{})
	_, err := v.Validate(context.Background(), map[string]any{"b": 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A")
}

func TestStructSchemaRejectsUnmarshalableShape(t *testing.T) {
	v := StructSchema(addRequest{})
	_, err := v.Validate(context.Background(), map[string]any{"a": "not-a-number"})
	require.Error(t, err)
}
