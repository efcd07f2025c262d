package protocol

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/darkroom/internal/model"
)

func requireLoadError(t *testing.T, err error, code string) {
	t.Helper()
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, code, le.Code)
}

func TestLoadDefinitions(t *testing.T) {
	defs, err := LoadDefinitions(filepath.Join("testdata", "valid"))
	require.NoError(t, err)
	require.Len(t, defs, 3)

	assert.Equal(t, "novelty", defs[0].Name)
	assert.Equal(t, model.MetricSemanticNovelty, defs[0].Kind)
	assert.Equal(t, "3", defs[0].Parameters["baseline_window"])
	assert.Equal(t, "0.4", defs[0].Parameters["band_threshold"])

	assert.Equal(t, "synthesis", defs[1].Name)
	assert.Equal(t, model.MetricConceptualSynthesis, defs[1].Kind)

	assert.Equal(t, "drift", defs[2].Name)
	assert.Equal(t, model.MetricTemporalDynamics, defs[2].Kind)
	assert.Empty(t, defs[2].Parameters)

	// Hashes are assigned at registration, not load.
	for _, def := range defs {
		assert.Empty(t, def.DefinitionHash)
	}
}

func TestLoadDefinitionsMissingDir(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join("testdata", "nope"))
	requireLoadError(t, err, ErrCodeNotFound)
}

func TestLoadDefinitionsEmptyDir(t *testing.T) {
	_, err := LoadDefinitions(t.TempDir())
	requireLoadError(t, err, ErrCodeNoFiles)
}

func TestLoadDefinitionsUnknownKind(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join("testdata", "badkind"))
	requireLoadError(t, err, ErrCodeBadField)
	assert.Contains(t, err.Error(), "vibes")
}

func TestLoadDefinitionsNumericParameter(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join("testdata", "numparam"))
	requireLoadError(t, err, ErrCodeBadField)
	assert.Contains(t, err.Error(), "decimal strings")
}

func TestLoadDefinitionsNoProtocolStruct(t *testing.T) {
	_, err := LoadDefinitions(filepath.Join("testdata", "nodefs"))
	requireLoadError(t, err, ErrCodeBadField)
}
