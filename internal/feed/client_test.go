package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(endpoint string) *Client {
	return NewClient(ClientConfig{
		Endpoint:      endpoint,
		APIKey:        "test-key",
		Timeout:       2 * time.Second,
		MaxRetries:    0,
		MaxConcurrent: 4,
	})
}

func TestSearchVideos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "physics" {
			t.Errorf("unexpected query %q", got)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"data": map[string]any{
				"count": 1,
				"results": []map[string]any{
					{"id": "1", "title": "Relativity Basics", "topic": "Physics", "educator": "Albert Einstein", "views": 12500},
				},
			},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).SearchVideos(context.Background(), "physics")
	if err != nil {
		t.Fatalf("SearchVideos failed: %v", err)
	}

	if result.Count != 1 || len(result.Results) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Results[0].Title != "Relativity Basics" {
		t.Errorf("unexpected title %q", result.Results[0].Title)
	}
}

func TestSubmitQuizAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}

		var answer QuizAnswer
		if err := json.NewDecoder(r.Body).Decode(&answer); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if answer.VideoID != "v1" || answer.AnswerIndex != 1 {
			t.Errorf("unexpected answer %+v", answer)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"data":   map[string]any{"correct": true, "xpAwarded": 100, "streakBonus": 10},
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).SubmitQuizAnswer(context.Background(), QuizAnswer{VideoID: "v1", AnswerIndex: 1})
	if err != nil {
		t.Fatalf("SubmitQuizAnswer failed: %v", err)
	}

	if !result.Correct || result.XPAwarded != 100 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestClientRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": 200,
			"data":   map[string]any{"userId": "u1", "xp": 1250},
		})
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		Endpoint:      srv.URL,
		Timeout:       2 * time.Second,
		MaxRetries:    2,
		MaxConcurrent: 1,
	})

	progress, err := client.GetUserProgress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUserProgress failed: %v", err)
	}

	if progress.XP != 1250 {
		t.Errorf("unexpected progress %+v", progress)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}

	stats := client.GetStats()
	if stats.TotalRetries != 1 {
		t.Errorf("expected 1 retry, got %d", stats.TotalRetries)
	}
	if stats.SuccessRequests != 1 {
		t.Errorf("expected 1 success, got %d", stats.SuccessRequests)
	}
}

func TestClientFailsAfterRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{
		Endpoint:      srv.URL,
		Timeout:       time.Second,
		MaxRetries:    1,
		MaxConcurrent: 1,
	})

	if _, err := client.SearchVideos(context.Background(), "x"); err == nil {
		t.Fatal("expected failure after retries exhausted")
	}

	if stats := client.GetStats(); stats.FailedRequests != 1 {
		t.Errorf("expected 1 failed request, got %d", stats.FailedRequests)
	}
}
