// Package export serializes a single insight record as field,value CSV rows.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"time"

	"pulse/internal/insights/models"
)

// ContentType is the media type of Insight output.
const ContentType = "text/csv; charset=utf-8"

// Insight renders record as a two-column CSV with a field,value header, one
// row per field and one row per statistical_data entry, keys sorted.
func Insight(record models.InsightRecord) ([]byte, error) {
	rows := [][]string{
		{"field", "value"},
		{"id", record.ID},
		{"title", record.Title},
		{"short_text", record.ShortText},
		{"details", record.Details},
		{"confidence", formatFloat(float64(record.Confidence))},
		{"category", string(record.Category)},
		{"industry", record.Industry},
		{"tier", string(record.Tier)},
		{"data_slice_url", record.DataSliceURL},
		{"created_at", record.CreatedAt.UTC().Format(time.RFC3339)},
	}

	keys := make([]string, 0, len(record.StatisticalData))
	for k := range record.StatisticalData {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		rows = append(rows, []string{"statistical_data." + k, formatFloat(record.StatisticalData[k])})
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write insight csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename suggests a download name for the record with the given id.
func Filename(id string) string {
	return "insight-" + id + ".csv"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
