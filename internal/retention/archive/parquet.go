package archive

import (
	"context"

	"github.com/abramin/eventpipe/internal/events"
)

// ParquetWriter is a named, recognized archive format with no
// implementation: no example repo retrievable in full exercises a Parquet
// library, so this returns ErrUnsupportedFormat rather than silently
// falling back to another format (see DESIGN.md).
type ParquetWriter struct{}

func (ParquetWriter) Extension() string { return "parquet" }

func (ParquetWriter) Write(context.Context, string, string, string, []events.Event) (string, error) {
	return "", ErrUnsupportedFormat
}
