package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/loykin/portwatch/internal/history"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var receivedBody []byte
	var receivedURL string
	var receivedMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL, "portwatch-history")

	event := history.NewEvent(history.EventSuppressed, "5011", 5011, time.Now())
	event.Name = "api"
	event.Attempts = 3
	if err := sink.Send(context.Background(), event); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if receivedMethod != http.MethodPut {
		t.Errorf("Expected PUT method, got: %s", receivedMethod)
	}
	if want := "/portwatch-history/_doc/" + event.ID; receivedURL != want {
		t.Errorf("Expected URL path %s, got: %s", want, receivedURL)
	}

	var doc map[string]any
	if err := json.Unmarshal(receivedBody, &doc); err != nil {
		t.Fatalf("Failed to parse received JSON: %v", err)
	}
	if doc["type"] != string(history.EventSuppressed) {
		t.Errorf("Expected type %s, got: %v", history.EventSuppressed, doc["type"])
	}
	if doc["target"] != "5011" || doc["name"] != "api" {
		t.Errorf("Unexpected target fields: %v", doc)
	}
	if doc["attempts"] != float64(3) {
		t.Errorf("Expected attempts 3, got: %v", doc["attempts"])
	}
}

func TestOpenSearchSink_SendWithoutIDPosts(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sink := New(server.URL+"/", "events")
	if err := sink.Send(context.Background(), history.Event{Type: history.EventRecovered}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if method != http.MethodPost || path != "/events/_doc" {
		t.Errorf("Expected POST /events/_doc, got %s %s", method, path)
	}
}

func TestOpenSearchSink_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer server.Close()

	sink := New(server.URL, "test-index")
	err := sink.Send(context.Background(), history.NewEvent(history.EventRestart, "80", 80, time.Now()))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "opensearch sink status 400") {
		t.Errorf("Expected status error message, got: %v", err)
	}
}
