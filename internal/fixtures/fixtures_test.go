package fixtures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DecodesCityFixture(t *testing.T) {
	ds, err := Load("../../data/city.json")
	require.NoError(t, err)
	assert.NotEmpty(t, ds.Routes)
	assert.NotEmpty(t, ds.Depots)
	assert.NotEmpty(t, ds.Buildings)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load("../../data/does-not-exist.json")
	assert.Error(t, err)
}
