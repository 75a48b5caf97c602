package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranslatePostsUtteranceAndReturnsKorean(t *testing.T) {
	var captured requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/translate" {
			t.Errorf("expected path /translate, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(responseBody{Translated: "안녕하세요."})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithToken("token"))
	korean, err := client.Translate(context.Background(), "Hello.")
	if err != nil {
		t.Fatalf("expected translation to succeed, got %v", err)
	}
	if korean != "안녕하세요." {
		t.Fatalf("expected translated text, got %q", korean)
	}
	if captured.Text != "Hello." || captured.SourceLanguage != "en" || captured.TargetLanguage != "ko" {
		t.Fatalf("unexpected request body: %+v", captured)
	}
}

func TestTranslateAcceptsAlternateResponseKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(responseBody{Translation: "번역"})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	korean, err := client.Translate(context.Background(), "translation")
	if err != nil {
		t.Fatalf("expected translation to succeed, got %v", err)
	}
	if korean != "번역" {
		t.Fatalf("expected alternate key to be honored, got %q", korean)
	}
}

func TestTranslateSurfacesServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	if _, err := client.Translate(context.Background(), "Hello."); err == nil {
		t.Fatal("expected error for non-OK status")
	}
}

func TestTranslateFailsWithoutEndpoint(t *testing.T) {
	t.Setenv("MALANGEE_API_BASE_URL", "")

	client := NewClient()
	if _, err := client.Translate(context.Background(), "Hello."); err == nil {
		t.Fatal("expected error when no endpoint is configured")
	}
}
