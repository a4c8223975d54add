package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

const okStream = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1"}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: ping
data: {"type": "ping"}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"The flight "}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"logs show"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_stop
data: {"type":"message_stop"}

`

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{APIKey: "key", BaseURL: srv.URL})
	require.NoError(t, err)
	return p
}

func collect(t *testing.T, p *Provider, req driven.ChatCompletion) (string, error) {
	t.Helper()
	var b strings.Builder
	err := p.Stream(context.Background(), req, func(delta string) error {
		b.WriteString(delta)
		return nil
	})
	return b.String(), err
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

	p, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.ModelName())
	assert.Equal(t, domain.ProviderAnthropic, p.Name())
}

func TestStream(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "be factual", req.System)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		if assert.Len(t, req.Messages, 2, "system turns are sent in the system field") {
			assert.Equal(t, "assistant", req.Messages[0].Role)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(okStream))
	})

	text, err := collect(t, p, driven.ChatCompletion{
		System: "be factual",
		Messages: []driven.ChatMessage{
			{Role: "system", Content: "ignored"},
			{Role: "assistant", Content: "earlier answer"},
			{Role: "user", Content: "what do the logs show?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "The flight logs show", text)
}

func TestStream_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
			},
			check: func(t *testing.T, err error) {
				var pe *domain.ProviderError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
				assert.Contains(t, err.Error(), "invalid x-api-key")
			},
		},
		{
			name: "error event mid-stream",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "Overloaded")
			},
		},
		{
			name: "malformed event",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte("data: {not json\n\n"))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decode stream event")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, newTestProvider(t, tt.handler), driven.ChatCompletion{
				Messages: []driven.ChatMessage{{Role: "user", Content: "q"}},
			})
			tt.check(t, err)
		})
	}
}

func TestStream_CallbackErrorAborts(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(okStream))
	})
	stop := errors.New("client gone")
	calls := 0
	err := p.Stream(context.Background(), driven.ChatCompletion{}, func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestPing(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Write([]byte(`{"data":[]}`))
	})
	assert.NoError(t, p.Ping(context.Background()))
}
