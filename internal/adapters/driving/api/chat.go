package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/logger"
)

// chat streams an answer as server-sent events. Each event is one
// "data: <json>\n\n" frame carrying a domain.ChatEvent.
func (s *Server) chat(c echo.Context) error {
	if s.svc.Chat == nil {
		return domain.ErrProviderUnavailable
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return fmt.Errorf("%w: malformed chat request: %v", domain.ErrInvalidInput, err)
	}

	requestID := uuid.NewString()
	caller := c.RealIP()
	ctx := c.Request().Context()

	events, err := s.svc.Chat.Stream(ctx, caller, req)
	if err != nil {
		return err
	}
	logger.Debug("chat %s: streaming for %s", requestID, caller)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set(echo.HeaderXRequestID, requestID)
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Error("chat %s: encoding event: %v", requestID, err)
			continue
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", data); err != nil {
			// Client gone; the service sees ctx cancel and closes the channel.
			logger.Debug("chat %s: client disconnected: %v", requestID, err)
			continue
		}
		resp.Flush()
	}
	return nil
}
