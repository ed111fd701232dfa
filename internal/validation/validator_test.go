package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type request struct {
	ID     string `json:"id" validate:"required"`
	Rating int    `json:"userRating" validate:"min=1,max=10"`
	Note   string `json:"-" validate:"max=3"`
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := New().Validate(request{Rating: 11, Note: "long"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{
		"id":         "is required",
		"userRating": "must be at most 10",
		"Note":       "must be at most 3",
	}, verr.Fields)
	assert.Equal(t, "validation failed: Note must be at most 3; id is required; userRating must be at most 10", err.Error())
}

func TestValidatePasses(t *testing.T) {
	assert.NoError(t, New().Validate(request{ID: "tt1", Rating: 5}))
}
