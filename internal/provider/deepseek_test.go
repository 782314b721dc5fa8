package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"nare/internal/chat"
)

func TestDeepSeekRequest(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":" <run>df -h /</run> "},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`))
	}))
	defer srv.Close()

	d := NewDeepSeek(DeepSeekConfig{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "deepseek-chat"})
	reply, err := d.Request(context.Background(), []chat.Message{
		chat.User("disk?"),
		chat.Assistant("sure"),
		chat.User("now"),
	}, "system text")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if reply != "<run>df -h /</run>" {
		t.Fatalf("reply = %q", reply)
	}
	if got.Model != "deepseek-chat" || len(got.Messages) != 4 {
		t.Fatalf("request = %+v", got)
	}
	roles := []string{got.Messages[0].Role, got.Messages[1].Role, got.Messages[2].Role, got.Messages[3].Role}
	want := []string{"system", "user", "assistant", "user"}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("roles = %v, want %v", roles, want)
		}
	}
	if got.Messages[0].Content != "system text" {
		t.Fatalf("system message = %q", got.Messages[0].Content)
	}
}

func TestDeepSeekErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "status without body",
			status: http.StatusBadGateway,
			body:   "upstream down",
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway || se.Body != "upstream down" {
					t.Fatalf("err = %v, want *StatusError 502", err)
				}
			},
		},
		{
			name:   "status with api error",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Authentication Fails","type":"authentication_error","code":"invalid_request_error"}}`,
			check: func(t *testing.T, err error) {
				var ae *openai.APIError
				if !errors.As(err, &ae) || ae.HTTPStatusCode != http.StatusUnauthorized || ae.Message != "Authentication Fails" {
					t.Fatalf("err = %v, want *APIError 401", err)
				}
			},
		},
		{
			name:   "2xx with error field",
			status: http.StatusOK,
			body:   `{"error":{"message":"model overloaded","type":"server_error"}}`,
			check: func(t *testing.T, err error) {
				var ae *openai.APIError
				if !errors.As(err, &ae) || ae.Message != "model overloaded" {
					t.Fatalf("err = %v, want *APIError", err)
				}
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				if err == nil || !strings.Contains(err.Error(), "no choices") {
					t.Fatalf("err = %v", err)
				}
			},
		},
		{
			name:   "undecodable",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				if err == nil || !strings.Contains(err.Error(), "parse chat response") {
					t.Fatalf("err = %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			d := NewDeepSeek(DeepSeekConfig{BaseURL: srv.URL, APIKey: "k"})
			_, err := d.Request(context.Background(), []chat.Message{chat.User("hi")}, "")
			tt.check(t, err)
		})
	}
}

func TestDeepSeekTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := NewDeepSeek(DeepSeekConfig{BaseURL: srv.URL, APIKey: "k", Timeout: 100 * time.Millisecond})
	_, err := d.Request(context.Background(), []chat.Message{chat.User("hi")}, "")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestDeepSeekTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := NewDeepSeek(DeepSeekConfig{BaseURL: url, APIKey: "k"})
	_, err := d.Request(context.Background(), []chat.Message{chat.User("hi")}, "")
	if err == nil || !strings.Contains(err.Error(), "send chat request") {
		t.Fatalf("err = %v", err)
	}
}
