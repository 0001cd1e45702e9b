package collector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/resilience"
)

func sampleRecords() []model.FeedbackRecord {
	two := 2
	return []model.FeedbackRecord{
		{
			ID:               "reco-1:1780000000000",
			RecommendationID: "reco-1",
			LureName:         "Chatterbait",
			Caught:           true,
			Count:            &two,
			Timestamp:        1780000000000,
			Location:         &model.Coordinates{Lat: 34.7, Lon: -92.3},
		},
		{
			ID:               "reco-2:1780000500000",
			RecommendationID: "reco-2",
			LureName:         "Jerkbait",
			Caught:           false,
			Timestamp:        1780000500000,
		},
	}
}

func TestUpload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var generic map[string][]map[string]any
		require.NoError(t, json.Unmarshal(raw, &generic))
		recs := generic["records"]
		require.Len(t, recs, 2)
		assert.Equal(t, "reco-1", recs[0]["recoId"])
		assert.Equal(t, true, recs[0]["caught"])
		assert.Nil(t, recs[1]["location"])
		_, hasNotes := recs[1]["notes"]
		assert.False(t, hasNotes)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithToken(" s3cret "))
	require.NoError(t, c.Upload(context.Background(), sampleRecords()))
}

func TestUpload_NoTokenNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).Upload(context.Background(), sampleRecords()))
}

func TestUpload_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewClient(srv.URL).Upload(context.Background(), sampleRecords())
			require.Error(t, err)
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
		})
	}
}

func TestUpload_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url, WithHTTPClient(&http.Client{})).Upload(context.Background(), sampleRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collector: request")
}
