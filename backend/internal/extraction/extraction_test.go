package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tami-graph/backend/pkg/errors"
	"tami-graph/backend/pkg/logger"
)

func init() {
	logger.Nop()
}

func TestFilterByConfidence(t *testing.T) {
	candidates := []Candidate{
		{Value: "Sarah", Confidence: 0.9},
		{Value: "maybe", Confidence: 0.5},
		{Value: "Acme", Confidence: 0.7},
	}

	kept, dropped := FilterByConfidence(candidates, 0.7)
	assert.Equal(t, 1, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, "Sarah", kept[0].Value)
	assert.Equal(t, "Acme", kept[1].Value)

	kept, dropped = FilterByConfidence(nil, 0.7)
	assert.Empty(t, kept)
	assert.Zero(t, dropped)
}

func TestSnippet(t *testing.T) {
	text := "We met with Sarah from Acme yesterday."

	assert.Equal(t, "with Sarah from", Snippet(text, 12, 17, 5))
	assert.Equal(t, text, Snippet(text, 12, 17, 1000))
	assert.Equal(t, "We", Snippet(text, -5, 0, 2))
	assert.Equal(t, "", Snippet("", 0, 3, 10))

	// offsets are characters, not bytes
	assert.Equal(t, "Çağrı", Snippet("Çağrı ve Ömer", 0, 5, 0))
}

func TestLocate(t *testing.T) {
	start, end := locate("Ölçüm by Sarah", "Sarah")
	assert.Equal(t, 9, start)
	assert.Equal(t, 14, end)

	start, _ = locate("talked to SARAH", "Sarah")
	assert.Equal(t, 10, start)

	start, end = locate("nothing here", "Sarah")
	assert.Equal(t, -1, start)
	assert.Equal(t, -1, end)
}

func TestServiceClient_Extract(t *testing.T) {
	var gotKey string
	var gotReq extractRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"entities": []map[string]interface{}{
				{
					"type": "person", "value": "Sarah", "normalized_value": "sarah",
					"confidence": 0.95, "start_offset": 12, "end_offset": 17, "source_text": "Sarah",
				},
			},
			"total_extracted": 1,
			"language":        "en",
		})
	}))
	defer server.Close()

	client := NewServiceClient(server.URL+"/", "secret", time.Second)
	candidates, err := client.Extract(context.Background(), "We met with Sarah.", "en")
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "We met with Sarah.", gotReq.Transcript)
	assert.Equal(t, "en", gotReq.Language)

	require.Len(t, candidates, 1)
	assert.Equal(t, Candidate{
		Type: "person", Value: "Sarah", NormalizedValue: "sarah",
		Confidence: 0.95, StartOffset: 12, EndOffset: 17, SourceText: "Sarah",
	}, candidates[0])
	assert.Equal(t, "service", client.Name())
}

func TestServiceClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Invalid or missing API key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewServiceClient(server.URL, "", time.Second)
	_, err := client.Extract(context.Background(), "text", "en")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeExtraction))
	assert.Contains(t, err.Error(), "401")
}

func TestServiceClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy","service":"langextract","model":"gpt-4o-mini"}`))
	}))
	defer server.Close()

	status, err := NewServiceClient(server.URL, "", time.Second).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", status.Status)
}

func chatCompletionBody(content string) map[string]interface{} {
	return map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			},
		},
	}
}

func TestLLMExtractor_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		content := `{"entities":[
			{"type":"Person","value":"Sarah","normalized_value":"sarah","confidence":0.9},
			{"type":"organization","value":"Acme","normalized_value":"acme"},
			{"type":"topic","value":"Quantum","normalized_value":"quantum","confidence":0.8},
			{"type":"topic","value":"  ","normalized_value":""}
		]}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody(content))
	}))
	defer server.Close()

	extractor := NewLLMExtractor(server.URL+"/v1", "", "test-model")
	candidates, err := extractor.Extract(context.Background(), "We met with Sarah from Acme.", "en")
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, "person", candidates[0].Type)
	assert.Equal(t, 12, candidates[0].StartOffset)
	assert.Equal(t, 17, candidates[0].EndOffset)
	assert.Equal(t, 0.9, candidates[0].Confidence)

	assert.Equal(t, defaultLLMConfidence, candidates[1].Confidence)
	assert.Equal(t, 23, candidates[1].StartOffset)

	// not found in the transcript
	assert.Equal(t, 0.4, candidates[2].Confidence)
	assert.Equal(t, 0, candidates[2].StartOffset)
}

func TestLLMExtractor_RetriesThenFails(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer server.Close()

	extractor := NewLLMExtractor(server.URL+"/v1", "key", "test-model")
	extractor.retryDelay = time.Millisecond

	_, err := extractor.Extract(context.Background(), "text", "en")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeExtraction))
	assert.Equal(t, 3, calls)
}

func TestLLMExtractor_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionBody("not json"))
	}))
	defer server.Close()

	_, err := NewLLMExtractor(server.URL+"/v1", "", "test-model").Extract(context.Background(), "text", "en")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse entities")
}
