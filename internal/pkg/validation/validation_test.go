package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/classroll/internal/domain"
)

type classQuery struct {
	Year       string `json:"year" validate:"required,len=4,numeric"`
	SchoolCode string `json:"school_code" validate:"required,numeric"`
}

type batch struct {
	Records []entry `json:"records" validate:"required,dive"`
}

type entry struct {
	Status string `json:"status" validate:"omitempty,oneof=present absent justified"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()

	require.NoError(t, v.Struct(classQuery{Year: "2026", SchoolCode: "12345"}))

	err := v.Struct(classQuery{Year: "26", SchoolCode: "12345"})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "year", verr.Field)
	assert.Equal(t, "must have length 4", verr.Reason)

	err = v.Struct(classQuery{Year: "2026", SchoolCode: "12a"})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "school_code", verr.Field)

	err = v.Struct(batch{Records: []entry{{Status: "present"}, {Status: "late"}}})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "records[1].status", verr.Field)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
