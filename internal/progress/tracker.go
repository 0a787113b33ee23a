package progress

import (
	"fmt"
	"time"
)

// EventType distinguishes progress snapshots from terminal events.
type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Snapshot is one observation of a running job, taken after a committed
// batch. EstimatedTotal is derived from bytes read versus total file size
// and is refined as the stream advances; it is 0 until enough is known.
type Snapshot struct {
	Processed      int64         `json:"processed"`
	Failed         int64         `json:"failed"`
	Filtered       int64         `json:"filtered"`
	Batches        int64         `json:"batches"`
	BytesRead      int64         `json:"bytes_read"`
	TotalBytes     int64         `json:"total_bytes"`
	EstimatedTotal int64         `json:"estimated_total"`
	Percentage     float64       `json:"percentage"`
	Elapsed        time.Duration `json:"elapsed"`
	ETA            time.Duration `json:"eta"`
	Throughput     float64       `json:"throughput"` // features per second
}

// Result is the terminal payload of a successful job.
type Result struct {
	TotalFeatures    int64 `json:"total_features"`
	TotalBatches     int64 `json:"total_batches"`
	FailedFeatures   int64 `json:"failed_features"`
	FilteredFeatures int64 `json:"filtered_features"`
	ElapsedMs        int64 `json:"elapsed_ms"`
	RegionLinks      int64 `json:"region_links"`
	CountryLinks     int64 `json:"country_links"`
}

// Event is delivered to subscribers. Snapshot is set on progress and failed
// events (failed keeps the partial counts); Result only on completion.
type Event struct {
	Type     EventType `json:"type"`
	JobID    string    `json:"job_id"`
	Category string    `json:"category"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Result   *Result   `json:"result,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Tracker derives throughput and completion estimates for one job.
type Tracker struct {
	totalBytes int64
	startTime  time.Time
}

// NewTracker starts the clock. totalBytes of 0 disables estimation.
func NewTracker(totalBytes int64) *Tracker {
	return &Tracker{
		totalBytes: totalBytes,
		startTime:  time.Now(),
	}
}

// Snapshot computes the current progress metrics. seen features is the sum
// of processed, failed and filtered, since all of them consumed bytes.
func (t *Tracker) Snapshot(processed, failed, filtered, batches, bytesRead int64) Snapshot {
	elapsed := time.Since(t.startTime)

	s := Snapshot{
		Processed:  processed,
		Failed:     failed,
		Filtered:   filtered,
		Batches:    batches,
		BytesRead:  bytesRead,
		TotalBytes: t.totalBytes,
		Elapsed:    elapsed,
	}

	if t.totalBytes > 0 && bytesRead > 0 {
		s.Percentage = float64(bytesRead) / float64(t.totalBytes) * 100
		if s.Percentage > 100 {
			s.Percentage = 100
		}

		seen := processed + failed + filtered
		if seen > 0 {
			s.EstimatedTotal = int64(float64(seen) * float64(t.totalBytes) / float64(bytesRead))
			if s.EstimatedTotal < seen {
				s.EstimatedTotal = seen
			}
		}

		if s.Percentage > 0 && s.Percentage < 100 {
			bytesPerSecond := float64(bytesRead) / elapsed.Seconds()
			if bytesPerSecond > 0 {
				remaining := t.totalBytes - bytesRead
				s.ETA = time.Duration(float64(remaining)/bytesPerSecond) * time.Second
			}
		}
	}

	if elapsed.Seconds() > 0 {
		s.Throughput = float64(processed) / elapsed.Seconds()
	}

	return s
}

// Elapsed reports time since the tracker was created.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.startTime)
}

// FormatETA formats the ETA duration in a human-readable format
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatThroughput formats throughput as human-readable items per second
func FormatThroughput(itemsPerSec float64) string {
	if itemsPerSec >= 1_000_000 {
		return fmt.Sprintf("%.1fM/s", itemsPerSec/1_000_000)
	}
	if itemsPerSec >= 1_000 {
		return fmt.Sprintf("%.1fK/s", itemsPerSec/1_000)
	}
	return fmt.Sprintf("%.0f/s", itemsPerSec)
}

// FormatBytes formats bytes in a human-readable format
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
