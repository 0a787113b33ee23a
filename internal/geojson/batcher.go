package geojson

import "io"

// Batcher drains a FeatureReader in fixed-size groups. Each call to Next
// drives the reader only far enough to fill one batch, so at most one
// batch's features are resident regardless of document size.
type Batcher struct {
	reader *FeatureReader
	size   int
}

// NewBatcher wraps a reader. Sizes below 1 fall back to 500.
func NewBatcher(r *FeatureReader, size int) *Batcher {
	if size < 1 {
		size = 500
	}
	return &Batcher{reader: r, size: size}
}

// Next collects up to the configured number of features. The final batch may
// be short. io.EOF signals a cleanly exhausted stream; any other error is a
// decode failure and terminates the job.
func (b *Batcher) Next() ([]*RawFeature, error) {
	batch := make([]*RawFeature, 0, b.size)
	for len(batch) < b.size && b.reader.Next() {
		batch = append(batch, b.reader.Feature())
	}

	if err := b.reader.Err(); err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, io.EOF
	}
	return batch, nil
}
