package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/citydata"
	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/parquet"
	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
	"github.com/couchcryptid/traffic-flood-prep/internal/mockdata"
	"github.com/couchcryptid/traffic-flood-prep/internal/observability"
	"github.com/couchcryptid/traffic-flood-prep/internal/pipeline"
)

type romeZone struct{}

func (romeZone) TimezoneFor(string) string { return "Europe/Rome" }

func init() {
	color.NoColor = true
}

// prepareRome writes a mock city with one dropped hour and runs every stage.
func prepareRome(t *testing.T) (string, citydata.City) {
	t.Helper()
	root := t.TempDir()
	opts := mockdata.Rome()
	opts.DropHours = []domain.Moment{domain.NewMoment(2024, time.March, 30, 0, 0, 0, 0)}
	city, err := mockdata.WriteCity(root, "roma", opts)
	require.NoError(t, err)

	conv := domain.NewConverter(nil, domain.Latest)
	table := parquet.NewWriter()
	metrics := observability.NewMetricsForTesting()
	runner := pipeline.NewRunner(root, 1, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)
	_, err = runner.RunAll(context.Background(),
		pipeline.NewReadingsStage(table),
		pipeline.NewDetectorsStage(table),
		pipeline.NewHourlyStage(conv, romeZone{}, table, nil, metrics),
		pipeline.NewAttachSensorsStage(),
		pipeline.NewAttachGridStage(0.25, table),
		pipeline.NewConnectivityStage(table, metrics),
		pipeline.NewMetadataStage(romeZone{}),
	)
	require.NoError(t, err)
	return root, city
}

func TestRun_PreparedCityPasses(t *testing.T) {
	root, _ := prepareRome(t)

	var out bytes.Buffer
	code := run(root, &out)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "All validations passed.")
	assert.Contains(t, out.String(), "roma (Europe/Rome): 4 days, 1 incomplete")
	assert.Contains(t, out.String(), "needs era5_rainfall_2024-03-29.grib")
}

func TestRun_MissingArtifactFails(t *testing.T) {
	root, city := prepareRome(t)
	require.NoError(t, os.Remove(city.NetworkParquetPath()))

	var out bytes.Buffer
	assert.Equal(t, 1, run(root, &out))
	assert.Contains(t, out.String(), "missing input: "+citydata.NetworkParquet)
}

func TestRun_MissingSensorMatrixFails(t *testing.T) {
	root, city := prepareRome(t)
	require.NoError(t, os.Remove(city.SensorMatrixPath("speed")))

	var out bytes.Buffer
	assert.Equal(t, 1, run(root, &out))
	assert.Contains(t, out.String(), "roma_sensor_speed.parquet")
}

func TestRun_InconsistentMetadataFails(t *testing.T) {
	root, city := prepareRome(t)

	var meta domain.CityMetadata
	require.NoError(t, citydata.ReadJSON(city.MetadataPath(), &meta))
	meta.Timezone = "Europe/Zurich"
	meta.TimeRange.End = "2024-04-30"
	require.NoError(t, citydata.WriteJSON(city.MetadataPath(), meta))

	var out bytes.Buffer
	assert.Equal(t, 1, run(root, &out))
	assert.Contains(t, out.String(), "metadata zone Europe/Zurich")
	assert.Contains(t, out.String(), "metadata range 2024-03-29..2024-04-30")
}

func TestRun_TamperedCompletenessFails(t *testing.T) {
	root, city := prepareRome(t)

	var report domain.CompletenessReport
	require.NoError(t, citydata.ReadJSON(city.CompletenessPath(), &report))
	report.IncompleteDays = 0
	report.RequiredGribFiles = nil
	require.NoError(t, citydata.WriteJSON(city.CompletenessPath(), report))

	var out bytes.Buffer
	assert.Equal(t, 1, run(root, &out))
	assert.Contains(t, out.String(), "1 incomplete days, report says 0")
	assert.Contains(t, out.String(), "not listed in required_grib_files")
}

func TestRun_EmptyRoot(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 1, run(t.TempDir(), &out))
	assert.Contains(t, out.String(), "no city directories")
}
