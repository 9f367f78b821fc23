// Package archive serializes event sets to the archive directory before
// retention deletes them (spec.md §4.6 step 4), naming files
// archive_{policy_id}_{YYYYmmdd_HHMMSS}.{ext} (spec.md §6).
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abramin/eventpipe/internal/events"
)

// ErrUnsupportedFormat is returned by Parquet's Writer, the one named
// archive format with no implementation (no example repo in the pack
// imports a Parquet library reachable from a full-tree retrieval).
var ErrUnsupportedFormat = errors.New("archive format not supported")

// Writer serializes a slice of events to a single archive file under dir
// and returns the path written.
type Writer interface {
	Extension() string
	Write(ctx context.Context, dir string, policyID, timestamp string, evts []events.Event) (path string, err error)
}

// filename builds the deterministic archive filename spec.md §6 requires.
func filename(dir, policyID, timestamp, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("archive_%s_%s.%s", policyID, timestamp, ext))
}

// ensureDir creates the archive directory (and parents) if it doesn't
// already exist, per spec.md §4.6 step 4.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// Timestamp formats an instant the way archive filenames require:
// YYYYmmdd_HHMMSS, always in UTC for determinism across hosts.
func Timestamp(t time.Time) string {
	return t.UTC().Format("20060102_150405")
}

// WriterFor resolves the Writer for a named format.
func WriterFor(format string) (Writer, error) {
	switch format {
	case "json":
		return JSONWriter{}, nil
	case "ndjson":
		return NDJSONWriter{}, nil
	case "json.gz":
		return GzipWriter{}, nil
	case "parquet":
		return ParquetWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown archive format %q", format)
	}
}
