// Package parquet writes pipeline tables as Parquet files through Arrow.
package parquet

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	pq "github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/citydata"
	"github.com/couchcryptid/traffic-flood-prep/internal/domain"
	"github.com/couchcryptid/traffic-flood-prep/internal/spatial"
)

// localHour is a timestamp without zone: the hour column holds local wall
// clocks, not instants.
var localHour = &arrow.TimestampType{Unit: arrow.Microsecond}

// HourlySchema is the column layout of hourly_readings.parquet.
var HourlySchema = arrow.NewSchema([]arrow.Field{
	{Name: "hour", Type: localHour},
	{Name: "datetime", Type: arrow.BinaryTypes.String},
	{Name: "detid", Type: arrow.BinaryTypes.String},
	{Name: "city", Type: arrow.BinaryTypes.String},
	{Name: "samples", Type: arrow.PrimitiveTypes.Int64},
	{Name: "flow_sum", Type: arrow.PrimitiveTypes.Float64},
	{Name: "flow_mean_5min", Type: arrow.PrimitiveTypes.Float64},
	{Name: "occ_mean", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "speed_mean", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "speed_weight", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "error_mean", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

// NetworkSchema is the column layout of selected_network.parquet. Geometry is
// WKB in WGS84; the input feature properties travel as a JSON object.
var NetworkSchema = arrow.NewSchema([]arrow.Field{
	{Name: "road_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "road_length", Type: arrow.PrimitiveTypes.Float64},
	{Name: "detid", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "grid_id", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "properties", Type: arrow.BinaryTypes.String},
	{Name: "geometry", Type: arrow.BinaryTypes.Binary},
}, nil)

// ReadingsSchema is the column layout of 5min_readings.parquet.
var ReadingsSchema = arrow.NewSchema([]arrow.Field{
	{Name: "datetime", Type: arrow.BinaryTypes.String},
	{Name: "detid", Type: arrow.BinaryTypes.String},
	{Name: "flow", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "occ", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "speed", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "error", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "city", Type: arrow.BinaryTypes.String},
}, nil)

// DetectorsSchema is the column layout of detectors.parquet. Geometry is a
// WKB point in WGS84.
var DetectorsSchema = arrow.NewSchema([]arrow.Field{
	{Name: "detid", Type: arrow.BinaryTypes.String},
	{Name: "long", Type: arrow.PrimitiveTypes.Float64},
	{Name: "lat", Type: arrow.PrimitiveTypes.Float64},
	{Name: "geometry", Type: arrow.BinaryTypes.Binary},
}, nil)

// RoadIndexSchema is the column layout of <city>_road_index.parquet: one row
// per road, mapping it to its sensor column and its graph nodes.
var RoadIndexSchema = arrow.NewSchema([]arrow.Field{
	{Name: "road_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "detid", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "sensor_index", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "from_node", Type: arrow.PrimitiveTypes.Int64},
	{Name: "to_node", Type: arrow.PrimitiveTypes.Int64},
	{Name: "road_length", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// NodesSchema is the column layout of <city>_road_nodes.parquet.
var NodesSchema = arrow.NewSchema([]arrow.Field{
	{Name: "node_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "node_key", Type: arrow.BinaryTypes.String},
	{Name: "lon", Type: arrow.PrimitiveTypes.Float64},
	{Name: "lat", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// MatrixSchema is the column layout of a sensor matrix: the sample time, its
// label, then one nullable column per sensor road named by its detector id.
func MatrixSchema(columns []string) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(columns)+2)
	fields = append(fields,
		arrow.Field{Name: "time", Type: localHour},
		arrow.Field{Name: "datetime", Type: arrow.BinaryTypes.String},
	)
	for _, c := range columns {
		fields = append(fields, arrow.Field{Name: c, Type: arrow.PrimitiveTypes.Float64, Nullable: true})
	}
	return arrow.NewSchema(fields, nil)
}

// Writer encodes tables with one allocator and one set of writer properties.
type Writer struct {
	mem   memory.Allocator
	props *pq.WriterProperties
}

// NewWriter creates a Writer using snappy compression.
func NewWriter() *Writer {
	return &Writer{
		mem:   memory.NewGoAllocator(),
		props: pq.NewWriterProperties(pq.WithCompression(compress.Codecs.Snappy)),
	}
}

// WriteHourly writes the hourly table to path.
func (w *Writer) WriteHourly(path string, rows []domain.HourlyReading) error {
	b := array.NewRecordBuilder(w.mem, HourlySchema)
	defer b.Release()

	hour := b.Field(0).(*array.TimestampBuilder)
	label := b.Field(1).(*array.StringBuilder)
	detID := b.Field(2).(*array.StringBuilder)
	city := b.Field(3).(*array.StringBuilder)
	samples := b.Field(4).(*array.Int64Builder)
	flowSum := b.Field(5).(*array.Float64Builder)
	flowMean := b.Field(6).(*array.Float64Builder)
	optional := []*array.Float64Builder{
		b.Field(7).(*array.Float64Builder),
		b.Field(8).(*array.Float64Builder),
		b.Field(9).(*array.Float64Builder),
		b.Field(10).(*array.Float64Builder),
	}

	for _, r := range rows {
		hour.Append(arrow.Timestamp(r.Hour.Time().UnixMicro()))
		label.Append(r.Datetime)
		detID.Append(r.DetID)
		city.Append(r.City)
		samples.Append(int64(r.Samples))
		flowSum.Append(r.FlowSum)
		flowMean.Append(r.FlowMean5Min)
		for i, v := range []*float64{r.OccMean, r.SpeedMean, r.SpeedWeight, r.ErrorMean} {
			appendOptional(optional[i], v)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.write(path, rec)
}

// WriteNetwork writes the road table to path.
func (w *Writer) WriteNetwork(path string, n *spatial.Network) error {
	b := array.NewRecordBuilder(w.mem, NetworkSchema)
	defer b.Release()

	roadID := b.Field(0).(*array.Int64Builder)
	length := b.Field(1).(*array.Float64Builder)
	detID := b.Field(2).(*array.StringBuilder)
	gridID := b.Field(3).(*array.StringBuilder)
	props := b.Field(4).(*array.StringBuilder)
	geom := b.Field(5).(*array.BinaryBuilder)

	for _, r := range n.Roads {
		roadID.Append(int64(r.ID))
		length.Append(r.Length)
		appendOptionalString(detID, r.DetID)
		appendOptionalString(gridID, r.GridID)

		p, err := json.Marshal(r.Properties)
		if err != nil {
			return fmt.Errorf("encode properties of road %d: %w", r.ID, err)
		}
		props.Append(string(p))

		g, err := wkb.Marshal(r.Geometry)
		if err != nil {
			return fmt.Errorf("encode geometry of road %d: %w", r.ID, err)
		}
		geom.Append(g)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.write(path, rec)
}

// WriteReadings writes the 5-minute readings table to path.
func (w *Writer) WriteReadings(path string, rows []domain.SensorReading) error {
	b := array.NewRecordBuilder(w.mem, ReadingsSchema)
	defer b.Release()

	label := b.Field(0).(*array.StringBuilder)
	detID := b.Field(1).(*array.StringBuilder)
	optional := []*array.Float64Builder{
		b.Field(2).(*array.Float64Builder),
		b.Field(3).(*array.Float64Builder),
		b.Field(4).(*array.Float64Builder),
		b.Field(5).(*array.Float64Builder),
	}
	city := b.Field(6).(*array.StringBuilder)

	for _, r := range rows {
		label.Append(domain.Label(r.Time()))
		detID.Append(r.DetID)
		for i, v := range []*float64{r.Flow, r.Occ, r.Speed, r.Error} {
			appendOptional(optional[i], v)
		}
		city.Append(r.City)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.write(path, rec)
}

// WriteDetectors writes the detector table to path.
func (w *Writer) WriteDetectors(path string, detectors []domain.Detector) error {
	b := array.NewRecordBuilder(w.mem, DetectorsSchema)
	defer b.Release()

	detID := b.Field(0).(*array.StringBuilder)
	lon := b.Field(1).(*array.Float64Builder)
	lat := b.Field(2).(*array.Float64Builder)
	geom := b.Field(3).(*array.BinaryBuilder)

	for _, d := range detectors {
		detID.Append(d.DetID)
		lon.Append(d.Lon)
		lat.Append(d.Lat)

		g, err := wkb.Marshal(orb.Point{d.Lon, d.Lat})
		if err != nil {
			return fmt.Errorf("encode geometry of detector %s: %w", d.DetID, err)
		}
		geom.Append(g)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.write(path, rec)
}

// WriteSensorMatrix writes one metric matrix to path. NaN cells are null.
func (w *Writer) WriteSensorMatrix(path string, m domain.SensorMatrix) error {
	b := array.NewRecordBuilder(w.mem, MatrixSchema(m.Columns))
	defer b.Release()

	ts := b.Field(0).(*array.TimestampBuilder)
	label := b.Field(1).(*array.StringBuilder)
	cols := make([]*array.Float64Builder, len(m.Columns))
	for i := range cols {
		cols[i] = b.Field(i + 2).(*array.Float64Builder)
	}

	for t, at := range m.Times {
		ts.Append(arrow.Timestamp(at.Time().UnixMicro()))
		label.Append(domain.Label(at))
		for c, v := range m.Values[t] {
			if math.IsNaN(v) {
				cols[c].AppendNull()
				continue
			}
			cols[c].Append(v)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.write(path, rec)
}

// WriteRoadIndex writes the road to sensor and road to node maps of n.
func (w *Writer) WriteRoadIndex(path string, n *spatial.Network, t spatial.Topology) error {
	b := array.NewRecordBuilder(w.mem, RoadIndexSchema)
	defer b.Release()

	roadID := b.Field(0).(*array.Int64Builder)
	detID := b.Field(1).(*array.StringBuilder)
	sensor := b.Field(2).(*array.Int64Builder)
	from := b.Field(3).(*array.Int64Builder)
	to := b.Field(4).(*array.Int64Builder)
	length := b.Field(5).(*array.Float64Builder)

	sensors := t.SensorIndex()
	for i, e := range t.Edges {
		r := n.Roads[i]
		roadID.Append(int64(e.RoadID))
		appendOptionalString(detID, r.DetID)
		if s, ok := sensors[e.RoadID]; ok {
			sensor.Append(int64(s))
		} else {
			sensor.AppendNull()
		}
		from.Append(int64(e.From))
		to.Append(int64(e.To))
		length.Append(r.Length)
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.write(path, rec)
}

// WriteNodes writes the road graph nodes to path.
func (w *Writer) WriteNodes(path string, nodes []spatial.Node) error {
	b := array.NewRecordBuilder(w.mem, NodesSchema)
	defer b.Release()

	id := b.Field(0).(*array.Int64Builder)
	key := b.Field(1).(*array.StringBuilder)
	lon := b.Field(2).(*array.Float64Builder)
	lat := b.Field(3).(*array.Float64Builder)

	for _, nd := range nodes {
		id.Append(int64(nd.ID))
		key.Append(nd.Key)
		lon.Append(nd.Point.Lon())
		lat.Append(nd.Point.Lat())
	}

	rec := b.NewRecord()
	defer rec.Release()
	return w.write(path, rec)
}

func (w *Writer) write(path string, rec arrow.Record) error {
	return citydata.WriteAtomic(path, func(out io.Writer) error {
		// The file writer closes sinks that implement io.Closer; the temp
		// file is closed by WriteAtomic.
		sink := struct{ io.Writer }{out}
		fw, err := pqarrow.NewFileWriter(rec.Schema(), sink, w.props, pqarrow.DefaultWriterProps())
		if err != nil {
			return err
		}
		if err := fw.Write(rec); err != nil {
			fw.Close()
			return err
		}
		return fw.Close()
	})
}

func appendOptional(b *array.Float64Builder, v *float64) {
	if v == nil {
		b.AppendNull()
		return
	}
	b.Append(*v)
}

func appendOptionalString(b *array.StringBuilder, v string) {
	if v == "" {
		b.AppendNull()
		return
	}
	b.Append(v)
}
