package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/insights/models"
)

func TestInsight(t *testing.T) {
	record := models.InsightRecord{
		ID:         "0b7a1c0e-1111-5222-8333-444455556666",
		Title:      "Finance leads GenAI adoption",
		ShortText:  "Finance leads with 70.0% adoption",
		Details:    "Finance, the leader, has \"quoted\" text",
		Confidence: 0.412,
		Category:   models.CategoryAdoptionTrends,
		Industry:   "Finance",
		Tier:       models.TierLeading,
		StatisticalData: map[string]float64{
			"rank":          1,
			"adoption_rate": 0.7,
		},
		DataSliceURL: "/api/v1/data/slice?industry=Finance&metric=adoption",
		CreatedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	out, err := Insight(record)
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"field", "value"}, rows[0])
	assert.Equal(t, []string{"id", record.ID}, rows[1])
	assert.Equal(t, []string{"details", record.Details}, rows[4])
	assert.Equal(t, []string{"confidence", "0.412"}, rows[5])
	assert.Equal(t, []string{"created_at", "2025-03-01T12:00:00Z"}, rows[10])

	tail := rows[len(rows)-2:]
	assert.Equal(t, []string{"statistical_data.adoption_rate", "0.7"}, tail[0])
	assert.Equal(t, []string{"statistical_data.rank", "1"}, tail[1])
}

func TestInsightIsDeterministic(t *testing.T) {
	record := models.InsightRecord{
		ID:              "x",
		StatisticalData: map[string]float64{"b": 2, "a": 1, "c": 3},
	}
	first, err := Insight(record)
	require.NoError(t, err)
	second, err := Insight(record)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "insight-abc.csv", Filename("abc"))
}
