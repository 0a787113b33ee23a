package geojson

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
)

var (
	// ErrSourceNotFound is returned when the source file does not exist.
	ErrSourceNotFound = errors.New("source file not found")

	// ErrMalformedDocument is returned when the byte stream is not valid
	// JSON or the document carries no features array.
	ErrMalformedDocument = errors.New("malformed geojson document")
)

// RawFeature is one decoded entry of a document's features array. A feature
// whose geometry could not be interpreted carries a nil Geometry; deciding
// what to do with it is the caller's concern.
type RawFeature struct {
	SourceID   string
	Geometry   orb.Geometry
	Properties orbjson.Properties
}

// FeatureReader incrementally decodes the features array of a GeoJSON
// document. Only the feature currently being decoded is held in memory, so
// documents far larger than RAM can be read. The sequence is forward-only
// and not restartable.
type FeatureReader struct {
	file    *os.File
	counter *countingReader
	dec     *json.Decoder

	totalBytes int64
	current    *RawFeature
	err        error
	done       bool
}

// Open prepares a reader positioned at the start of the features array.
func Open(path string) (*FeatureReader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	counter := &countingReader{r: bufio.NewReaderSize(f, 64*1024)}
	r := &FeatureReader{
		file:       f,
		counter:    counter,
		dec:        json.NewDecoder(counter),
		totalBytes: info.Size(),
	}

	if err := r.seekFeatures(); err != nil {
		f.Close()
		return nil, err
	}

	return r, nil
}

// seekFeatures advances the decoder to the opening bracket of the document's
// top-level features member. Other members are skipped whole, so a string
// value "features" or a features key nested in a foreign member never
// matches.
func (r *FeatureReader) seekFeatures() error {
	tok, err := r.dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: document is not a JSON object", ErrMalformedDocument)
	}

	for r.dec.More() {
		tok, err := r.dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: unexpected token %v", ErrMalformedDocument, tok)
		}

		if key == "features" {
			tok, err = r.dec.Token()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
			}
			if delim, ok := tok.(json.Delim); !ok || delim != '[' {
				return fmt.Errorf("%w: features is not an array", ErrMalformedDocument)
			}
			return nil
		}

		if err := r.skipValue(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	}

	return fmt.Errorf("%w: no features array", ErrMalformedDocument)
}

// skipValue consumes one complete JSON value. Objects and arrays are walked
// by delimiter depth so their contents are passed over without decoding.
func (r *FeatureReader) skipValue() error {
	tok, err := r.dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || (delim != '{' && delim != '[') {
		return nil
	}

	for depth := 1; depth > 0; {
		tok, err = r.dec.Token()
		if err != nil {
			return err
		}
		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

// featureEnvelope decodes the parts of a feature this pipeline cares about.
// The geometry stays raw so that a single unrecognized geometry does not
// poison the whole stream.
type featureEnvelope struct {
	ID         interface{}        `json:"id"`
	Geometry   json.RawMessage    `json:"geometry"`
	Properties orbjson.Properties `json:"properties"`
}

// Next advances to the next feature. It returns false at the end of the
// array or on a decode failure; Err distinguishes the two.
func (r *FeatureReader) Next() bool {
	if r.err != nil || r.done {
		return false
	}
	if !r.dec.More() {
		r.done = true
		return false
	}

	var env featureEnvelope
	if err := r.dec.Decode(&env); err != nil {
		r.err = fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		return false
	}

	feature := &RawFeature{
		SourceID:   sourceID(&env),
		Properties: env.Properties,
	}
	if geom := decodeGeometry(env.Geometry); geom != nil {
		feature.Geometry = geom
	}

	r.current = feature
	return true
}

// Feature returns the feature decoded by the last successful Next.
func (r *FeatureReader) Feature() *RawFeature {
	return r.current
}

// Err returns the error that terminated the stream, if any.
func (r *FeatureReader) Err() error {
	return r.err
}

// BytesRead reports how many bytes the decoder has consumed so far.
func (r *FeatureReader) BytesRead() int64 {
	return r.counter.n.Load()
}

// TotalBytes reports the size of the source file.
func (r *FeatureReader) TotalBytes() int64 {
	return r.totalBytes
}

// Close releases the underlying file.
func (r *FeatureReader) Close() error {
	return r.file.Close()
}

func decodeGeometry(raw json.RawMessage) orb.Geometry {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	g, err := orbjson.UnmarshalGeometry(raw)
	if err != nil {
		return nil
	}
	return g.Geometry()
}

// sourceID extracts the feature's external identifier: the feature-level id
// when present, otherwise an id-like property.
func sourceID(env *featureEnvelope) string {
	if s := stringValue(env.ID); s != "" {
		return s
	}
	for _, key := range []string{"@id", "id", "osm_id"} {
		if s := stringValue(env.Properties[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

// countingReader tracks bytes consumed from the wrapped reader. The count is
// read from other goroutines for progress estimates.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
