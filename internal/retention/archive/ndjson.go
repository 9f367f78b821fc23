package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/abramin/eventpipe/internal/events"
)

// NDJSONWriter serializes the event set as one JSON object per line.
type NDJSONWriter struct{}

func (NDJSONWriter) Extension() string { return "ndjson" }

func (NDJSONWriter) Write(_ context.Context, dir, policyID, timestamp string, evts []events.Event) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", fmt.Errorf("ensure archive dir: %w", err)
	}
	path := filename(dir, policyID, timestamp, "ndjson")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, e := range evts {
		if err := enc.Encode(e); err != nil {
			return "", fmt.Errorf("encode event: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush archive file: %w", err)
	}
	return path, nil
}
