// Package llm holds the pieces shared by the streaming chat provider adapters.
package llm

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

// maxEventSize bounds a single server-sent event line.
const maxEventSize = 1 << 20

// ReadEvents parses a text/event-stream body and calls fn for every
// dispatched event. Multi-line data fields are joined with "\n". Reading
// stops at EOF or when fn returns an error, which is returned as-is.
func ReadEvents(r io.Reader, fn func(event, data string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var event string
	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			event = ""
			return nil
		}
		err := fn(event, strings.Join(data, "\n"))
		event, data = "", data[:0]
		return err
	}

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return dispatch()
}

// ResponseError turns a non-2xx provider response into a *domain.ProviderError,
// preferring the message of a JSON error body.
func ResponseError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		var plain string
		switch {
		case json.Unmarshal(envelope.Error, &detail) == nil && detail.Message != "":
			msg = detail.Message
		case json.Unmarshal(envelope.Error, &plain) == nil && plain != "":
			msg = plain
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &domain.ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: errors.New(msg)}
}
