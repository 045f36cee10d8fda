package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pcbuild-service/internal/common/config"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
		ok    bool
	}{
		{name: "bare object", reply: `{"CPU": "Ryzen 5 3600"}`, want: `{"CPU": "Ryzen 5 3600"}`, ok: true},
		{name: "fenced", reply: "```json\n{\"CPU\": \"x\"}\n```", want: `{"CPU": "x"}`, ok: true},
		{name: "fence without info string", reply: "```\n{\"CPU\": \"x\"}\n```", want: `{"CPU": "x"}`, ok: true},
		{name: "prose around", reply: "Here is the build:\n{\"CPU\": \"x\"}\nEnjoy!", want: `{"CPU": "x"}`, ok: true},
		{name: "empty", reply: "   ", ok: false},
		{name: "no braces", reply: "I cannot help with that.", ok: false},
		{name: "reversed braces", reply: "} nope {", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.reply)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAsTransportError(t *testing.T) {
	base := errors.New("boom")
	te := AsTransportError("openai", base)
	assert.Equal(t, "openai", te.Provider)
	assert.ErrorIs(t, te, base)

	again := AsTransportError("anthropic", te)
	assert.Same(t, te, again)

	timeout := AsTransportError("gemini", context.DeadlineExceeded)
	assert.True(t, timeout.Timeout())
	assert.False(t, te.Timeout())
}

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newOpenAIServer(t *testing.T, status int, content string, captured *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		if captured != nil {
			require.NoError(t, json.Unmarshal(raw, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`)
			return
		}
		body, _ := json.Marshal(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_Complete(t *testing.T) {
	var req chatRequest
	srv := newOpenAIServer(t, http.StatusOK, `{"CPU": "Ryzen 5 3600"}`, &req)

	o := NewOpenAI(Settings{Model: "gpt-4o-mini", APIKey: "test", BaseURL: srv.URL + "/v1/"}, srv.Client())
	reply, err := o.Complete(context.Background(), "be terse", []Message{
		UserMessage("budget 250000"),
		AssistantMessage("{}"),
		UserMessage("fix it"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"CPU": "Ryzen 5 3600"}`, reply)

	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "be terse", req.Messages[0].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "assistant", req.Messages[2].Role)
	assert.Equal(t, "fix it", req.Messages[3].Content)
}

func TestOpenAI_CompleteHTTPErrorIsTransport(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusUnauthorized, "", nil)

	o := NewOpenAI(Settings{Model: "gpt-4o-mini", APIKey: "bad", BaseURL: srv.URL + "/v1/"}, srv.Client())
	_, err := o.Complete(context.Background(), "", []Message{UserMessage("hi")})
	require.Error(t, err)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ProviderOpenAI, te.Provider)
}

func TestOpenAI_CompatibleProviderName(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusUnauthorized, "", nil)

	o := NewOpenAI(Settings{Provider: ProviderOpenAICompatible, Model: "deepseek-chat", BaseURL: srv.URL + "/v1/"}, srv.Client())
	_, err := o.Complete(context.Background(), "", []Message{UserMessage("hi")})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ProviderOpenAICompatible, te.Provider)
}

func TestAnthropic_Complete(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "{\"CPU\": \"Ryzen 5 3600\"}"}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	a := NewAnthropic(Settings{Model: "claude-3-5-haiku-latest", APIKey: "test", BaseURL: srv.URL, MaxRetries: 0}, srv.Client())
	reply, err := a.Complete(context.Background(), "be terse", []Message{UserMessage("budget 250000")})
	require.NoError(t, err)
	assert.Equal(t, `{"CPU": "Ryzen 5 3600"}`, reply)

	assert.Equal(t, "claude-3-5-haiku-latest", captured["model"])
	assert.EqualValues(t, 1024, captured["max_tokens"])
	assert.NotNil(t, captured["system"])
}

func TestAnthropic_EmptyContentIsBlankReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "m",
			"content": [], "stop_reason": "end_turn", "usage": {"input_tokens": 1, "output_tokens": 0}
		}`)
	}))
	defer srv.Close()

	a := NewAnthropic(Settings{Model: "m", APIKey: "test", BaseURL: srv.URL}, srv.Client())
	reply, err := a.Complete(context.Background(), "", []Message{UserMessage("hi")})
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestGemini_NoCandidatesIsBlankReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates": []}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), Settings{Model: "gemini-2.0-flash", APIKey: "test", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	reply, err := g.Complete(context.Background(), "", []Message{UserMessage("hi")})
	require.NoError(t, err)
	assert.Empty(t, reply)
}

func TestGemini_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, ":generateContent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates": [{"content": {"role": "model", "parts": [{"text": "{\"CPU\": \"x\"}"}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), Settings{Model: "gemini-2.0-flash", APIKey: "test", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	reply, err := g.Complete(context.Background(), "be terse", []Message{UserMessage("hi"), AssistantMessage("{}"), UserMessage("again")})
	require.NoError(t, err)
	assert.Equal(t, `{"CPU": "x"}`, reply)
}

func TestNew_Providers(t *testing.T) {
	ctx := context.Background()
	for _, provider := range []string{ProviderOpenAI, ProviderOpenAICompatible, ProviderAnthropic, ProviderGemini} {
		o, err := New(ctx, config.OracleConfig{Provider: provider, Model: "m", APIKey: "k", BaseURL: "http://127.0.0.1:1/"}, nil)
		require.NoError(t, err, provider)
		assert.Equal(t, provider, o.Provider())
	}

	_, err := New(ctx, config.OracleConfig{Provider: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}

func TestSettingsFromConfig_Temperature(t *testing.T) {
	s := SettingsFromConfig(config.OracleConfig{Temperature: 0})
	assert.Nil(t, s.Temperature)

	s = SettingsFromConfig(config.OracleConfig{Temperature: 0.2})
	require.NotNil(t, s.Temperature)
	assert.Equal(t, 0.2, *s.Temperature)
}

func TestInstrumented_WrapsPlainErrors(t *testing.T) {
	inner := Func(func(ctx context.Context, system string, conversation []Message) (string, error) {
		return "", errors.New("socket closed")
	})

	_, err := NewInstrumented("openai", inner).Complete(context.Background(), "", nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "openai", te.Provider)
}

func TestInstrumented_PassesReplyThrough(t *testing.T) {
	inner := Func(func(ctx context.Context, system string, conversation []Message) (string, error) {
		return "ok:" + system, nil
	})

	reply, err := NewInstrumented("gemini", inner).Complete(context.Background(), "sys", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok:sys", reply)
}
