package domain

import "encoding/json"

// Chat roles accepted in history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatTurn is one prior message in a conversation.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks for a grounded, streamed answer.
type ChatRequest struct {
	Message  string     `json:"message"`
	History  []ChatTurn `json:"history"`
	Provider string     `json:"provider"`
}

// ChatEventType identifies a streamed chat event.
type ChatEventType string

const (
	// EventSources carries the citation list. Always first, exactly once.
	EventSources ChatEventType = "sources"

	// EventText carries an incremental piece of generated output.
	EventText ChatEventType = "text"

	// EventDone terminates a successful stream.
	EventDone ChatEventType = "done"

	// EventError terminates a failed stream.
	EventError ChatEventType = "error"
)

// Citation is a retrieved passage reference sent to the client.
type Citation struct {
	Title    string  `json:"title"`
	Filename string  `json:"filename"`
	PageNum  int     `json:"page_num"`
	Source   string  `json:"source"`
	URL      string  `json:"url"`
	Distance float64 `json:"distance"`
}

// ChatEvent is one element of the ordered answer stream. On the wire each
// type carries only its own field: {"type":"sources","sources":[...]},
// {"type":"text","text":"..."}, {"type":"done"} or {"type":"error","error":"..."}.
type ChatEvent struct {
	Type    ChatEventType
	Sources []Citation
	Text    string
	Error   string
}

type sourcesFrame struct {
	Type    ChatEventType `json:"type"`
	Sources []Citation    `json:"sources"`
}

type textFrame struct {
	Type ChatEventType `json:"type"`
	Text string        `json:"text"`
}

type errorFrame struct {
	Type  ChatEventType `json:"type"`
	Error string        `json:"error"`
}

type typeFrame struct {
	Type ChatEventType `json:"type"`
}

// MarshalJSON writes the wire frame for the event's type. A sources event
// always carries a list, empty when nothing was retrieved.
func (e ChatEvent) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventSources:
		sources := e.Sources
		if sources == nil {
			sources = []Citation{}
		}
		return json.Marshal(sourcesFrame{Type: e.Type, Sources: sources})
	case EventText:
		return json.Marshal(textFrame{Type: e.Type, Text: e.Text})
	case EventError:
		return json.Marshal(errorFrame{Type: e.Type, Error: e.Error})
	default:
		return json.Marshal(typeFrame{Type: e.Type})
	}
}

// UnmarshalJSON reads any wire frame.
func (e *ChatEvent) UnmarshalJSON(data []byte) error {
	var frame struct {
		Type    ChatEventType `json:"type"`
		Sources []Citation    `json:"sources"`
		Text    string        `json:"text"`
		Error   string        `json:"error"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	*e = ChatEvent{Type: frame.Type, Sources: frame.Sources, Text: frame.Text, Error: frame.Error}
	return nil
}

// Terminal reports whether the event ends the stream.
func (e ChatEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// ChatState is the lifecycle state of one chat request.
type ChatState string

const (
	ChatReceived       ChatState = "received"
	ChatEmbeddingQuery ChatState = "embedding_query"
	ChatRetrieving     ChatState = "retrieving"
	ChatGenerating     ChatState = "generating"
	ChatCompleted      ChatState = "completed"
	ChatErrored        ChatState = "errored"
	ChatCancelled      ChatState = "cancelled"
)
