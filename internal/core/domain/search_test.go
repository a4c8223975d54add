package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchQuery_Normalise(t *testing.T) {
	tests := []struct {
		name    string
		query   SearchQuery
		wantErr bool
		page    int
		perPage int
	}{
		{"defaults applied", SearchQuery{Query: " flight logs "}, false, 1, DefaultSearchPerPage},
		{"explicit paging", SearchQuery{Query: "maxwell", Page: 3, PerPage: 50}, false, 3, 50},
		{"too short", SearchQuery{Query: "a"}, true, 0, 0},
		{"blank", SearchQuery{Query: "   "}, true, 0, 0},
		{"negative page", SearchQuery{Query: "ok", Page: -1}, true, 0, 0},
		{"per page too large", SearchQuery{Query: "ok", PerPage: MaxSearchPerPage + 1}, true, 0, 0},
		{"negative per page", SearchQuery{Query: "ok", PerPage: -5}, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			err := q.Normalise()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.page, q.Page)
			assert.Equal(t, tt.perPage, q.PerPage)
		})
	}
}

func TestSearchQuery_Offset(t *testing.T) {
	q := SearchQuery{Query: "ok", Page: 3, PerPage: 20}
	assert.Equal(t, 40, q.Offset())
}

func TestChatEvent_Terminal(t *testing.T) {
	assert.True(t, ChatEvent{Type: EventDone}.Terminal())
	assert.True(t, ChatEvent{Type: EventError, Error: "x"}.Terminal())
	assert.False(t, ChatEvent{Type: EventSources}.Terminal())
	assert.False(t, ChatEvent{Type: EventText, Text: "hi"}.Terminal())
}

func TestChatEvent_WireFormat(t *testing.T) {
	tests := []struct {
		name  string
		event ChatEvent
		want  string
	}{
		{"empty sources", ChatEvent{Type: EventSources}, `{"type":"sources","sources":[]}`},
		{
			"sources",
			ChatEvent{Type: EventSources, Sources: []Citation{{Title: "Flight log", Filename: "log.pdf", PageNum: 3, Source: "doj"}}},
			`{"type":"sources","sources":[{"title":"Flight log","filename":"log.pdf","page_num":3,"source":"doj","url":"","distance":0}]}`,
		},
		{"text", ChatEvent{Type: EventText, Text: "Epstein"}, `{"type":"text","text":"Epstein"}`},
		{"empty text", ChatEvent{Type: EventText}, `{"type":"text","text":""}`},
		{"done", ChatEvent{Type: EventDone, Text: "ignored"}, `{"type":"done"}`},
		{"error", ChatEvent{Type: EventError, Error: "provider timed out"}, `{"type":"error","error":"provider timed out"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var back ChatEvent
			require.NoError(t, json.Unmarshal(data, &back))
			assert.Equal(t, tt.event.Type, back.Type)
		})
	}
}
