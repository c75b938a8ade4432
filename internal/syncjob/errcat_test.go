package syncjob

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dog-boarding/backend/internal/storage/models"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		msg  string
		want Category
	}{
		{"Authentication failed: Invalid credentials", CategoryAuth},
		{"Session expired. Re-authentication required.", CategoryAuth},
		{"Failed to fetch schedule: 403", CategoryAuth},
		{"Failed to fetch appointment A1: 404", CategoryNetwork},
		{"dial tcp: lookup agirlandyourdog.com: no such host", CategoryNetwork},
		{"Failed to fetch appointment A1: 429", CategoryNetwork},
		{"429 Too Many Requests", CategoryRateLimit},
		{"context deadline exceeded (Client.Timeout exceeded while awaiting headers)", CategoryTimeout},
		{"json: cannot unmarshal string into Go value", CategoryParse},
		{"inserting dog: UNIQUE constraint failed: dogs.external_id", CategorySave},
		{"something odd happened", CategoryUnknown},
		{"", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.msg))
		})
	}
}

func TestAnalyzeErrors(t *testing.T) {
	a := AnalyzeErrors([]models.SyncError{
		{ExternalID: "A1", Error: "Failed to fetch appointment A1: 404"},
		{ExternalID: "A2", Error: "Failed to fetch appointment A2: 500"},
		{ExternalID: "A3", Error: "inserting boarding: database is locked"},
	})

	assert.Equal(t, 3, a.TotalErrors)
	assert.Equal(t, map[Category]int{CategoryNetwork: 2, CategorySave: 1}, a.Stats)
	assert.Equal(t, CategoryNetwork, a.Dominant)
	assert.True(t, a.Recoverable)
	assert.Equal(t, "Check your internet connection and try again", a.RecommendedAction)
}

func TestAnalyzeErrorsTieAndEmpty(t *testing.T) {
	tie := AnalyzeErrors([]models.SyncError{
		{Error: "inserting dog: constraint"},
		{Error: "Invalid credentials"},
	})
	assert.Equal(t, CategoryAuth, tie.Dominant)
	assert.False(t, tie.Recoverable)

	empty := AnalyzeErrors(nil)
	assert.Zero(t, empty.TotalErrors)
	assert.Equal(t, CategoryUnknown, empty.Dominant)
	assert.Equal(t, "Unknown error occurred", empty.Description)
}
