package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/abramin/eventpipe/internal/events"
)

// JSONWriter serializes the event set as a single JSON array.
type JSONWriter struct{}

func (JSONWriter) Extension() string { return "json" }

func (JSONWriter) Write(_ context.Context, dir, policyID, timestamp string, evts []events.Event) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", fmt.Errorf("ensure archive dir: %w", err)
	}
	data, err := json.Marshal(evts)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	path := filename(dir, policyID, timestamp, "json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive file: %w", err)
	}
	return path, nil
}
