// Package cli formats ingestion results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/ingestor/internal/models"
	"github.com/hyperjump/ingestor/pkg/utils"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one line per item.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputCompact, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteBatch writes the outcome of every processed document.
func WriteBatch(w io.Writer, resp *models.BatchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, item := range resp.Results {
			if item.Error != "" {
				fmt.Fprintf(w, "FAIL\t%s\t%s\n", item.File, item.Error)
				continue
			}
			fmt.Fprintf(w, "OK\t%s\t%s\n", item.File, oneLine(summaryText(item.Summary), 80))
		}
		return nil
	default:
		for _, item := range resp.Results {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "File: %s\n", item.File)
			if item.Error != "" {
				fmt.Fprintf(w, "Error: %s\n", item.Error)
				continue
			}
			fmt.Fprintf(w, "Stored: %t\n", item.Stored)
			fmt.Fprintf(w, "Summary:\n%s\n", summaryText(item.Summary))
		}
		fmt.Fprintf(w, "\n%d processed, %d failed\n", resp.Succeeded, resp.Failed)
		return nil
	}
}

// WriteQuery writes query hits, nearest first.
func WriteQuery(w io.Writer, resp *models.QueryResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for i, hit := range resp.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\n", i+1, hit.Distance, hit.ID)
		}
		return nil
	default:
		fmt.Fprintf(w, "\nFound %d results in %dms\n\n", len(resp.Results), resp.QueryTime)
		for i, hit := range resp.Results {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Rank: %d | Distance: %.4f\n", i+1, hit.Distance)
			fmt.Fprintf(w, "ID: %s\n", hit.ID)
			if content, ok := hit.Metadata[models.MetadataContent].(string); ok && content != "" {
				fmt.Fprintf(w, "\n%s\n", utils.Truncate(content, 200))
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}

// WriteStatus writes service status.
func WriteStatus(w io.Writer, st *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "status:             %s\n", st.Status)
	fmt.Fprintf(w, "backend:            %s\n", st.Backend)
	fmt.Fprintf(w, "collection:         %s\n", st.Collection)
	fmt.Fprintf(w, "records:            %d\n", st.Records)
	fmt.Fprintf(w, "completion_model:   %s\n", st.CompletionModel)
	fmt.Fprintf(w, "embedding_model:    %s\n", st.EmbeddingModel)
	if st.Dimensions > 0 {
		fmt.Fprintf(w, "dimensions:         %d\n", st.Dimensions)
	}
	if st.StorageBytes > 0 {
		fmt.Fprintf(w, "storage_bytes:      %d\n", st.StorageBytes)
	}
	return nil
}

func summaryText(s *string) string {
	if s == nil {
		return "(no summary)"
	}
	return *s
}

func oneLine(s string, maxLen int) string {
	return utils.Truncate(strings.Join(strings.Fields(s), " "), maxLen)
}

// ReorderArgs moves flags that follow positional arguments to the front so that
// flag.Parse sees them ("ingestor query hello -k 3").
func ReorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}
