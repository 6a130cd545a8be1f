package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/traffic-flood-prep/internal/config"
	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
	"github.com/couchcryptid/traffic-flood-prep/internal/observability"
)

func TestSelectStages(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	stages := buildStages(cfg, domain.NewConverter(nil, cfg.Disambiguation), nil, observability.NewMetricsForTesting())

	all, err := selectStages(stages, "all")
	require.NoError(t, err)
	require.Len(t, all, 7)
	assert.Equal(t, "csv2parquet", all[0].Name())
	assert.Equal(t, "connectivity", all[5].Name())

	one, err := selectStages(stages, "attach-grid")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "attach-grid", one[0].Name())

	one, err = selectStages(stages, "detectors")
	require.NoError(t, err)
	assert.Equal(t, "detectors", one[0].Name())

	_, err = selectStages(stages, "rainfall")
	assert.ErrorContains(t, err, "unknown stage")
}

func TestRun_Usage(t *testing.T) {
	assert.ErrorContains(t, run(nil), "usage")
}
