package archive

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/abramin/eventpipe/internal/events"
)

// GzipWriter wraps the JSON array payload in gzip compression (spec.md §6:
// "gzipped forms wrap the JSON payload").
type GzipWriter struct{}

func (GzipWriter) Extension() string { return "json.gz" }

func (GzipWriter) Write(_ context.Context, dir, policyID, timestamp string, evts []events.Event) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", fmt.Errorf("ensure archive dir: %w", err)
	}
	path := filename(dir, policyID, timestamp, "json.gz")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(evts); err != nil {
		return "", fmt.Errorf("encode events: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("close gzip writer: %w", err)
	}
	return path, nil
}
