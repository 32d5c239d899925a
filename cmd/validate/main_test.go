package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/open-data-elt/internal/domain"
)

func TestValidate_Fixture(t *testing.T) {
	payload, err := os.ReadFile(filepath.Join("..", "..", "internal", "pipeline", "testdata", "schools.json"))
	require.NoError(t, err)

	shape, results := validateShape(payload)
	assert.True(t, shape.passed(), shape.errors)
	require.Len(t, results, 6)

	rec := domain.RawRecord{IngestedAt: time.Now().UTC(), Source: "fixture", Payload: payload}
	transform, rows := validateTransform(rec, results)
	assert.True(t, transform.passed(), transform.errors)
	require.Len(t, rows, 6)

	views := validateViews(rows)
	assert.True(t, views.passed(), views.errors)
}

func TestValidateShape_Errors(t *testing.T) {
	p, _ := validateShape([]byte(`{"resultCount":3,"results":[{"id":"1","name":"A"},{"id":"1"}]}`))
	assert.False(t, p.passed())
	assert.Len(t, p.errors, 3, p.errors)

	p, results := validateShape([]byte(`{"rows":[]}`))
	assert.False(t, p.passed())
	assert.Nil(t, results)
}

func TestValidateTransform_Errors(t *testing.T) {
	payload := []byte(`{"results":[{"id":"1","name":"A","type":"XX","operation":"K","students":"10","lat":"95","long":"13.9"}]}`)
	_, results := validateShape(payload)
	p, rows := validateTransform(domain.RawRecord{Payload: payload}, results)

	require.Len(t, rows, 1)
	assert.Len(t, p.errors, 2, p.errors)

	p, rows = validateTransform(domain.RawRecord{Payload: []byte(`{"results":[{"students":"tolv"}]}`)}, nil)
	assert.False(t, p.passed())
	assert.Nil(t, rows)
}
