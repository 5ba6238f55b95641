package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required,max=5"`
	Limit int    `json:"limit" validate:"gte=0,lte=100"`
	Kind  string `validate:"omitempty,oneof=a b"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(sample{Name: "ok", Limit: 10}))
	assert.NoError(t, Struct(&sample{Name: "ok", Kind: "a"}))
}

func TestStruct_CollectsFieldErrors(t *testing.T) {
	err := Struct(sample{Name: "", Limit: 101, Kind: "c"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 3)

	assert.Equal(t, FieldError{Field: "name", Rule: "required"}, verr.Fields[0])
	assert.Equal(t, FieldError{Field: "limit", Rule: "lte", Param: "100"}, verr.Fields[1])
	assert.Equal(t, "Kind", verr.Fields[2].Field)
	assert.Contains(t, err.Error(), "limit (lte=100)")
}
