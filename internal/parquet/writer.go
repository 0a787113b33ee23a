package parquet

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"

	"github.com/arcfield/geoimport-go/internal/mapper"
)

// AttrsToJSON converts flattened feature attributes to a JSON string.
func AttrsToJSON(attrs map[string]string) string {
	if len(attrs) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(attrs)
	return string(b)
}

// RowWriter writes mapped rows to a Parquet file. It implements the same
// loading interface as the database store so transforms can run offline;
// linkage methods are no-ops because they need PostGIS.
type RowWriter struct {
	mu        sync.Mutex
	file      *os.File
	writer    *pqarrow.FileWriter
	builder   *array.RecordBuilder
	batchSize int
	count     int
	nextID    int64
}

// NewRowWriter creates a Parquet writer for mapped rows.
func NewRowWriter(path string, batchSize int) (*RowWriter, error) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "slug", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "category", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "kind", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "attrs", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "surface", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "lanes", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "vertex_distances", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64), Nullable: true},
		{Name: "centroid_lat", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "centroid_lon", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "geom_wkt", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "source_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "owner_id", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "job_id", Type: arrow.BinaryTypes.String, Nullable: false},
	}, nil)

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithDictionaryDefault(false),
	)

	writer, err := pqarrow.NewFileWriter(schema, f, writerProps, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return nil, err
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)

	return &RowWriter{
		file:      f,
		writer:    writer,
		builder:   builder,
		batchSize: batchSize,
	}, nil
}

// InsertBatch appends the rows to the file and returns synthetic row ids.
func (w *RowWriter) InsertBatch(ctx context.Context, rows []*mapper.TargetRow) ([]int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]int64, len(rows))
	for i, row := range rows {
		if err := w.append(row); err != nil {
			return nil, err
		}
		w.nextID++
		ids[i] = w.nextID
	}
	return ids, nil
}

// LinkRegions is a no-op: spatial linkage needs the database.
func (w *RowWriter) LinkRegions(ctx context.Context, category mapper.Category, jobID string) (int64, error) {
	return 0, nil
}

// LinkCountries is a no-op: spatial linkage needs the database.
func (w *RowWriter) LinkCountries(ctx context.Context, category mapper.Category, jobID string) (int64, error) {
	return 0, nil
}

func (w *RowWriter) append(row *mapper.TargetRow) error {
	w.builder.Field(0).(*array.StringBuilder).Append(row.Slug)
	w.builder.Field(1).(*array.StringBuilder).Append(string(row.Category))
	w.builder.Field(2).(*array.StringBuilder).Append(row.Name)
	w.builder.Field(3).(*array.StringBuilder).Append(row.Kind)
	w.builder.Field(4).(*array.StringBuilder).Append(AttrsToJSON(row.Attrs))

	surface := w.builder.Field(5).(*array.StringBuilder)
	if row.Surface != "" {
		surface.Append(row.Surface)
	} else {
		surface.AppendNull()
	}

	lanes := w.builder.Field(6).(*array.Int32Builder)
	if row.Lanes > 0 {
		lanes.Append(int32(row.Lanes))
	} else {
		lanes.AppendNull()
	}

	distances := w.builder.Field(7).(*array.ListBuilder)
	if len(row.Distances) > 0 {
		distances.Append(true)
		values := distances.ValueBuilder().(*array.Float64Builder)
		for _, d := range row.Distances {
			values.Append(d)
		}
	} else {
		distances.AppendNull()
	}

	lat := w.builder.Field(8).(*array.Float64Builder)
	lon := w.builder.Field(9).(*array.Float64Builder)
	if row.HasCentroid {
		lat.Append(row.CentroidLat)
		lon.Append(row.CentroidLon)
	} else {
		lat.AppendNull()
		lon.AppendNull()
	}

	w.builder.Field(10).(*array.StringBuilder).Append(row.GeomText)

	sourceID := w.builder.Field(11).(*array.StringBuilder)
	if row.SourceID != "" {
		sourceID.Append(row.SourceID)
	} else {
		sourceID.AppendNull()
	}

	ownerID := w.builder.Field(12).(*array.StringBuilder)
	if row.OwnerID != "" {
		ownerID.Append(row.OwnerID)
	} else {
		ownerID.AppendNull()
	}

	w.builder.Field(13).(*array.StringBuilder).Append(row.JobID)

	w.count++
	if w.count >= w.batchSize {
		return w.flush()
	}
	return nil
}

func (w *RowWriter) flush() error {
	if w.count == 0 {
		return nil
	}
	rec := w.builder.NewRecord()
	defer rec.Release()
	err := w.writer.Write(rec)
	w.count = 0
	return err
}

// Close flushes buffered rows and finalizes the file.
func (w *RowWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flush(); err != nil {
		return err
	}
	if err := w.writer.Close(); err != nil {
		return err
	}
	return w.file.Close()
}
