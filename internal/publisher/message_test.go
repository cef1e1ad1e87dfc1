package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_news/internal/domain"
)

func TestNewBatchMessage(t *testing.T) {
	run := &domain.RunResult{
		RunID:     "run-1",
		Query:     "Apple",
		Exhausted: true,
		Articles: []domain.Article{
			{ID: 0, Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Source: "Bloomberg", Title: "a"},
			{ID: 1, Date: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), Source: "Unknown", Title: "b"},
		},
	}

	msg := NewBatchMessage(run)

	assert.Equal(t, "run-1", msg.RunID)
	assert.True(t, msg.Exhausted)
	require.Equal(t, 2, msg.Table.Len())
	assert.Equal(t, "2025-02-01 00:00:00", msg.Table.Rows[0][3])
	assert.Equal(t, "1", msg.Table.Rows[1][0])

	body, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"columns":["ID","SOURCE","AUTHOR","DATE","TITLE","URL","DESCRIPTION","CONTENT"]`)
}
