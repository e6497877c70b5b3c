package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T, replyText string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		var req messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)
		assert.Equal(t, "image", req.Messages[0].Content[0].Type)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": replyText}},
		})
	}))
}

func TestAnalyzeImage(t *testing.T) {
	// The request prefills "{", so the model reply starts mid-object.
	srv := fakeAPI(t, `"name": "Strawberries", "storage": "fridge",
		"qty_type": "weight", "qty_unit": "g", "qty_value": 400,
		"best_by": "2026-09-04"}`, http.StatusOK)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	res, err := c.AnalyzeImage(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	require.NoError(t, err)

	require.NotNil(t, res.Name)
	assert.Equal(t, "Strawberries", *res.Name)
	require.NotNil(t, res.QtyValue)
	assert.Equal(t, 400.0, *res.QtyValue)
	require.NotNil(t, res.BestBy)
	assert.Equal(t, "2026-09-04", *res.BestBy)
	assert.Nil(t, res.Label)
	assert.Nil(t, res.Store)
}

func TestAnalyzeImageFencedReply(t *testing.T) {
	srv := fakeAPI(t, "\"name\": \"Milk\"}```", http.StatusOK)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	res, err := c.AnalyzeImage(context.Background(), []byte{0x01}, "image/jpeg")
	require.NoError(t, err)
	require.NotNil(t, res.Name)
	assert.Equal(t, "Milk", *res.Name)
}

func TestAnalyzeImageAPIError(t *testing.T) {
	srv := fakeAPI(t, "", http.StatusTooManyRequests)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.AnalyzeImage(context.Background(), []byte{0x01}, "image/jpeg")
	assert.Error(t, err)
}

func TestAnalyzeImageGarbageReply(t *testing.T) {
	srv := fakeAPI(t, "I see some fruit!", http.StatusOK)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	_, err := c.AnalyzeImage(context.Background(), []byte{0x01}, "image/jpeg")
	assert.Error(t, err)
}
