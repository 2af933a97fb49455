package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/scholarship-finder/internal/models"
)

func TestReadProfile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"gpa":3.6,"major":"Nursing","state":"TX"}`), 0o600))
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"gpa":7}`), 0o600))

	p, err := readProfile(good)
	require.NoError(t, err)
	require.NotNil(t, p.GPA)
	assert.Equal(t, 3.6, *p.GPA)
	assert.Equal(t, "Nursing", p.Major)

	_, err = readProfile(bad)
	assert.ErrorContains(t, err, "invalid profile")

	_, err = readProfile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "varies", formatAmount(models.Amount{Varies: true}))
	assert.Equal(t, "-", formatAmount(models.Amount{}))
	assert.Equal(t, "$2500", formatAmount(models.Amount{Value: 2500}))
	assert.Equal(t, "-", deref(nil))
	assert.Equal(t, "x", deref(models.StringPtr("x")))
}
