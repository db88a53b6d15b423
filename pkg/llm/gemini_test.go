package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewGeminiClientRequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(context.Background(), "", ""); err == nil {
		t.Error("NewGeminiClient() should require an API key")
	}
}

func TestGeminiComplete(t *testing.T) {
	tests := []struct {
		name    string
		parts   []map[string]any
		want    string
		wantErr error
	}{
		{name: "json answer", parts: []map[string]any{{"text": `{"visualizationType":"LINE"}`}}, want: `{"visualizationType":"LINE"}`},
		{name: "empty answer", parts: []map[string]any{}, wantErr: ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotReq struct {
				Contents []struct {
					Role string `json:"role"`
				} `json:"contents"`
				SystemInstruction *struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"systemInstruction"`
				GenerationConfig struct {
					ResponseMIMEType string `json:"responseMimeType"`
				} `json:"generationConfig"`
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				json.NewDecoder(r.Body).Decode(&gotReq)

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"candidates": []map[string]any{{
						"content":      map[string]any{"role": "model", "parts": tt.parts},
						"finishReason": "STOP",
					}},
				})
			}))
			defer server.Close()

			c, err := NewGeminiClientWithBaseURL(context.Background(), "gm-test", server.URL, "gemini-test")
			if err != nil {
				t.Fatalf("NewGeminiClientWithBaseURL() error = %v", err)
			}

			got, err := c.Complete(context.Background(), []Message{
				{Role: RoleSystem, Content: "rules"},
				{Role: RoleUser, Content: "Show sales"},
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Complete() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Complete() = %q, want %q", got, tt.want)
			}
			if !strings.HasSuffix(gotPath, "/models/gemini-test:generateContent") {
				t.Errorf("path = %s", gotPath)
			}
			if gotReq.GenerationConfig.ResponseMIMEType != "application/json" {
				t.Errorf("responseMimeType = %q, want application/json", gotReq.GenerationConfig.ResponseMIMEType)
			}
			if gotReq.SystemInstruction == nil || len(gotReq.SystemInstruction.Parts) != 1 || gotReq.SystemInstruction.Parts[0].Text != "rules" {
				t.Errorf("systemInstruction = %+v", gotReq.SystemInstruction)
			}
			if len(gotReq.Contents) != 1 || gotReq.Contents[0].Role != "user" {
				t.Errorf("contents = %+v", gotReq.Contents)
			}
		})
	}
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
	})

	if system != "rules" {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("got %d contents, want 3", len(contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
	}
}
