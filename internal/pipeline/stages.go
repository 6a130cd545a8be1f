package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/citydata"
	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
	"github.com/couchcryptid/traffic-flood-prep/internal/observability"
	"github.com/couchcryptid/traffic-flood-prep/internal/spatial"
)

// Stage names, also used as checkpoint file prefixes.
const (
	StageReadings      = "csv2parquet"
	StageDetectors     = "detectors"
	StageHourly        = "hourly"
	StageAttachSensors = "attach-sensors"
	StageAttachGrid    = "attach-grid"
	StageConnectivity  = "connectivity"
	StageMetadata      = "metadata"
)

// ZoneResolver maps a city name to its IANA zone.
type ZoneResolver interface {
	TimezoneFor(city string) string
}

// HourlyTableWriter persists the hourly table of a city.
type HourlyTableWriter interface {
	WriteHourly(path string, rows []domain.HourlyReading) error
}

// NetworkTableWriter persists the road table of a city.
type NetworkTableWriter interface {
	WriteNetwork(path string, n *spatial.Network) error
}

// ReadingsTableWriter persists the 5-minute readings of a city.
type ReadingsTableWriter interface {
	WriteReadings(path string, rows []domain.SensorReading) error
}

// DetectorTableWriter persists the detector positions of a city.
type DetectorTableWriter interface {
	WriteDetectors(path string, detectors []domain.Detector) error
}

// ConnectivityWriter persists the sensor matrices and road graph of a city.
type ConnectivityWriter interface {
	WriteSensorMatrix(path string, m domain.SensorMatrix) error
	WriteRoadIndex(path string, n *spatial.Network, t spatial.Topology) error
	WriteNodes(path string, nodes []spatial.Node) error
}

// HourlySink receives the hourly readings of each processed city.
type HourlySink interface {
	PublishHourly(ctx context.Context, readings []domain.HourlyReading) error
}

// ReadingsStage converts the 5-minute readings CSV into a Parquet table.
type ReadingsStage struct {
	table ReadingsTableWriter
}

func NewReadingsStage(table ReadingsTableWriter) *ReadingsStage {
	return &ReadingsStage{table: table}
}

func (s *ReadingsStage) Name() string { return StageReadings }

func (s *ReadingsStage) Outputs(c citydata.City) []string {
	return []string{c.ReadingsParquetPath()}
}

func (s *ReadingsStage) Process(_ context.Context, c citydata.City) (Result, error) {
	if err := citydata.Require(c.ReadingsPath()); err != nil {
		return Result{}, err
	}
	readings, err := citydata.ReadSensorReadings(c.ReadingsPath(), c.Name)
	if err != nil {
		return Result{}, err
	}
	if err := s.table.WriteReadings(c.ReadingsParquetPath(), readings); err != nil {
		return Result{}, err
	}
	return Result{RowsRead: len(readings), RowsWritten: len(readings)}, nil
}

// DetectorsStage converts detectors_public.csv into a Parquet table with a
// point geometry per detector.
type DetectorsStage struct {
	table DetectorTableWriter
}

func NewDetectorsStage(table DetectorTableWriter) *DetectorsStage {
	return &DetectorsStage{table: table}
}

func (s *DetectorsStage) Name() string { return StageDetectors }

func (s *DetectorsStage) Outputs(c citydata.City) []string {
	return []string{c.DetectorsParquetPath()}
}

func (s *DetectorsStage) Process(_ context.Context, c citydata.City) (Result, error) {
	if err := citydata.Require(c.DetectorsPath()); err != nil {
		return Result{}, err
	}
	detectors, err := citydata.ReadDetectors(c.DetectorsPath())
	if err != nil {
		return Result{}, err
	}
	if err := s.table.WriteDetectors(c.DetectorsParquetPath(), detectors); err != nil {
		return Result{}, err
	}
	return Result{RowsRead: len(detectors), RowsWritten: len(detectors)}, nil
}

// HourlyStage aggregates 5-minute readings into hours, writes the hourly
// table, and checks every local date for missing hours against the city's
// DST calendar.
type HourlyStage struct {
	conv    *domain.Converter
	zones   ZoneResolver
	table   HourlyTableWriter
	sink    HourlySink
	metrics *observability.Metrics
}

// NewHourlyStage creates the hourly stage. sink may be nil.
func NewHourlyStage(conv *domain.Converter, zones ZoneResolver, table HourlyTableWriter, sink HourlySink, metrics *observability.Metrics) *HourlyStage {
	return &HourlyStage{conv: conv, zones: zones, table: table, sink: sink, metrics: metrics}
}

func (s *HourlyStage) Name() string { return StageHourly }

func (s *HourlyStage) Outputs(c citydata.City) []string {
	return []string{c.HourlyPath(), c.CompletenessPath()}
}

func (s *HourlyStage) Process(ctx context.Context, c citydata.City) (Result, error) {
	if err := citydata.Require(c.ReadingsPath()); err != nil {
		return Result{}, err
	}
	zone := s.zones.TimezoneFor(c.Name)

	readings, err := citydata.ReadSensorReadings(c.ReadingsPath(), c.Name)
	if err != nil {
		return Result{}, err
	}
	hourly := domain.AggregateHourly(readings)

	report, err := domain.CheckCompleteness(s.conv, c.Name, zone, hourly)
	if err != nil {
		return Result{}, fmt.Errorf("completeness: %w", err)
	}

	if err := s.table.WriteHourly(c.HourlyPath(), hourly); err != nil {
		return Result{}, err
	}
	if err := citydata.WriteJSON(c.CompletenessPath(), report); err != nil {
		return Result{}, err
	}

	for _, d := range report.Days {
		if d.Transition != domain.TransitionNone {
			s.metrics.TransitionDays.WithLabelValues(string(d.Transition)).Inc()
		}
		s.metrics.MissingHours.Add(float64(len(d.Missing)))
	}

	if s.sink != nil {
		if err := s.sink.PublishHourly(ctx, hourly); err != nil {
			return Result{}, err
		}
		s.metrics.HourlyPublished.Add(float64(len(hourly)))
	}

	return Result{RowsRead: len(readings), RowsWritten: len(hourly)}, nil
}

// AttachSensorsStage links each detector to its nearest road and writes the
// selected network GeoJSON.
type AttachSensorsStage struct{}

func NewAttachSensorsStage() *AttachSensorsStage { return &AttachSensorsStage{} }

func (s *AttachSensorsStage) Name() string { return StageAttachSensors }

func (s *AttachSensorsStage) Outputs(c citydata.City) []string {
	return []string{c.NetworkGeoJSONPath()}
}

func (s *AttachSensorsStage) Process(_ context.Context, c citydata.City) (Result, error) {
	if err := citydata.Require(c.RoadsPath(), c.DetectorsPath()); err != nil {
		return Result{}, err
	}

	network, err := citydata.ReadNetwork(c.RoadsPath())
	if err != nil {
		return Result{}, err
	}
	detectors, err := citydata.ReadDetectors(c.DetectorsPath())
	if err != nil {
		return Result{}, err
	}

	network.AttachSensors(detectors)
	if err := citydata.WriteNetwork(c.NetworkGeoJSONPath(), network); err != nil {
		return Result{}, err
	}
	return Result{RowsRead: len(detectors), RowsWritten: len(network.Roads)}, nil
}

// AttachGridStage tags each road of the selected network with the weather
// grid cell holding its centroid and writes the road table.
type AttachGridStage struct {
	resolution float64
	table      NetworkTableWriter
}

func NewAttachGridStage(resolution float64, table NetworkTableWriter) *AttachGridStage {
	return &AttachGridStage{resolution: resolution, table: table}
}

func (s *AttachGridStage) Name() string { return StageAttachGrid }

func (s *AttachGridStage) Outputs(c citydata.City) []string {
	return []string{c.NetworkParquetPath()}
}

func (s *AttachGridStage) Process(_ context.Context, c citydata.City) (Result, error) {
	if err := citydata.Require(c.NetworkGeoJSONPath(), c.GridPath()); err != nil {
		return Result{}, err
	}

	network, err := citydata.ReadNetwork(c.NetworkGeoJSONPath())
	if err != nil {
		return Result{}, err
	}
	network.Restore()

	cells, err := citydata.ReadGrid(c.GridPath())
	if err != nil {
		return Result{}, err
	}
	if len(cells) == 0 {
		return Result{}, fmt.Errorf("%s has no grid cells", c.GridPath())
	}

	network.AttachGrid(spatial.NewGrid(cells, s.resolution))
	if err := s.table.WriteNetwork(c.NetworkParquetPath(), network); err != nil {
		return Result{}, err
	}
	return Result{RowsRead: len(network.Roads), RowsWritten: len(network.Roads)}, nil
}

// ConnectivityStage lays the readings of the selected network's sensor roads
// out as time × sensor-road matrices, one per metric, and writes the road
// graph with the maps between road ids, sensor columns and nodes.
type ConnectivityStage struct {
	table   ConnectivityWriter
	metrics *observability.Metrics
}

func NewConnectivityStage(table ConnectivityWriter, metrics *observability.Metrics) *ConnectivityStage {
	return &ConnectivityStage{table: table, metrics: metrics}
}

func (s *ConnectivityStage) Name() string { return StageConnectivity }

func (s *ConnectivityStage) Outputs(c citydata.City) []string {
	out := make([]string, 0, len(domain.MatrixMetrics)+2)
	for _, m := range domain.MatrixMetrics {
		out = append(out, c.SensorMatrixPath(string(m)))
	}
	return append(out, c.RoadIndexPath(), c.RoadNodesPath())
}

func (s *ConnectivityStage) Process(_ context.Context, c citydata.City) (Result, error) {
	if err := citydata.Require(c.NetworkGeoJSONPath(), c.ReadingsPath()); err != nil {
		return Result{}, err
	}

	network, err := citydata.ReadNetwork(c.NetworkGeoJSONPath())
	if err != nil {
		return Result{}, err
	}
	network.Restore()
	readings, err := citydata.ReadSensorReadings(c.ReadingsPath(), c.Name)
	if err != nil {
		return Result{}, err
	}

	topo := network.Topology()
	matrices := domain.NewSensorMatrices(readings, network.SensorColumns(topo), domain.MatrixMetrics...)
	for _, m := range matrices {
		if err := s.table.WriteSensorMatrix(c.SensorMatrixPath(string(m.Metric)), m); err != nil {
			return Result{}, fmt.Errorf("%s matrix: %w", m.Metric, err)
		}
		s.metrics.MatrixCoverage.WithLabelValues(string(m.Metric)).Observe(m.Coverage())
	}
	if err := s.table.WriteRoadIndex(c.RoadIndexPath(), network, topo); err != nil {
		return Result{}, err
	}
	if err := s.table.WriteNodes(c.RoadNodesPath(), topo.Nodes); err != nil {
		return Result{}, err
	}

	written := len(network.Roads) + len(topo.Nodes)
	if len(matrices) > 0 {
		written += len(matrices) * len(matrices[0].Times)
	}
	return Result{RowsRead: len(readings), RowsWritten: written}, nil
}

// MetadataStage writes the per-city metadata document.
type MetadataStage struct {
	zones ZoneResolver
}

func NewMetadataStage(zones ZoneResolver) *MetadataStage {
	return &MetadataStage{zones: zones}
}

func (s *MetadataStage) Name() string { return StageMetadata }

func (s *MetadataStage) Outputs(c citydata.City) []string {
	return []string{c.MetadataPath()}
}

func (s *MetadataStage) Process(_ context.Context, c citydata.City) (Result, error) {
	if err := citydata.Require(c.NetworkGeoJSONPath(), c.ReadingsPath()); err != nil {
		return Result{}, err
	}

	network, err := citydata.ReadNetwork(c.NetworkGeoJSONPath())
	if err != nil {
		return Result{}, err
	}
	readings, err := citydata.ReadSensorReadings(c.ReadingsPath(), c.Name)
	if err != nil {
		return Result{}, err
	}

	meta := domain.NewCityMetadata(c.Name, s.zones.TimezoneFor(c.Name))
	meta.DataSummary.NumSensors = meta.Summarize(readings)
	meta.DataSummary.NumRoads = len(network.Roads)
	b := network.Bound()
	meta.SpatialBounds.BBox = [4]float64{b.Left(), b.Bottom(), b.Right(), b.Top()}

	if err := citydata.WriteJSON(c.MetadataPath(), meta); err != nil {
		return Result{}, err
	}
	return Result{RowsRead: len(readings), RowsWritten: 1}, nil
}
