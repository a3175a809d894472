package output

import (
	"context"
	"io"

	"github.com/goccy/go-json"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Format renders the report payload as JSON.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	switch {
	case report.Ingest != nil:
		if f.opts.Quiet {
			// Quiet mode: counts only
			ir := *report.Ingest
			ir.Failures = nil
			return encoder.EncodeContext(ctx, ir)
		}
		return encoder.EncodeContext(ctx, report.Ingest)
	case report.Games != nil:
		return encoder.EncodeContext(ctx, report.Games)
	case report.Categories != nil:
		return encoder.EncodeContext(ctx, report.Categories)
	case report.Filters != nil:
		return encoder.EncodeContext(ctx, report.Filters)
	case report.Players != nil:
		return encoder.EncodeContext(ctx, report.Players)
	case report.Setting != nil:
		return encoder.EncodeContext(ctx, report.Setting)
	default:
		return encoder.EncodeContext(ctx, struct{}{})
	}
}
