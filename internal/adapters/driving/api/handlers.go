package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/custodia-labs/dossier/internal/core/domain"
)

type healthResponse struct {
	Status    string `json:"status"`
	Documents int    `json:"documents"`
	Chunks    int    `json:"chunks"`
}

func (s *Server) health(c echo.Context) error {
	stats, err := s.svc.Stats.Stats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "error"})
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Documents: stats.Documents,
		Chunks:    stats.ChunksIndexed,
	})
}

func (s *Server) search(c echo.Context) error {
	q := domain.SearchQuery{
		Query:  c.QueryParam("q"),
		Source: c.QueryParam("source"),
	}
	if err := echo.QueryParamsBinder(c).
		Int("page", &q.Page).
		Int("per_page", &q.PerPage).
		BindError(); err != nil {
		return invalidParam(err)
	}

	page, err := s.svc.Search.Search(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) listDocuments(c echo.Context) error {
	filter := domain.DocumentFilter{
		Source: c.QueryParam("source"),
		Status: domain.DownloadStatus(c.QueryParam("status")),
	}
	if err := echo.QueryParamsBinder(c).
		Int("page", &filter.Page).
		Int("per_page", &filter.PerPage).
		BindError(); err != nil {
		return invalidParam(err)
	}

	page, err := s.svc.Documents.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) getDocument(c echo.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}
	detail, err := s.svc.Documents.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) documentFile(c echo.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}
	path, doc, err := s.svc.Documents.File(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.Inline(path, doc.Filename)
}

// sourceView is one row of the sources listing: store counts joined with
// the adapter's description and availability.
type sourceView struct {
	Source         string `json:"source"`
	Count          int    `json:"count"`
	Downloaded     int    `json:"downloaded"`
	Description    string `json:"description,omitempty"`
	Enabled        bool   `json:"enabled"`
	DisabledReason string `json:"disabled_reason,omitempty"`
	RequiresAuth   bool   `json:"requires_auth"`
}

func (s *Server) sources(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := s.svc.Stats.Stats(ctx)
	if err != nil {
		return err
	}
	counts := make(map[string]domain.SourceStats, len(stats.Sources))
	for _, row := range stats.Sources {
		counts[row.Source] = row
	}

	var views []sourceView
	if s.svc.Acquisition != nil {
		for _, info := range s.svc.Acquisition.Sources(ctx) {
			row := counts[info.Name]
			delete(counts, info.Name)
			views = append(views, sourceView{
				Source:         info.Name,
				Count:          row.Documents,
				Downloaded:     row.Downloaded,
				Description:    info.Description,
				Enabled:        info.Enabled,
				DisabledReason: info.DisabledReason,
				RequiresAuth:   info.RequiresAuth,
			})
		}
	}

	// Sources with stored documents but no registered adapter.
	orphans := make([]string, 0, len(counts))
	for name := range counts {
		orphans = append(orphans, name)
	}
	sort.Strings(orphans)
	for _, name := range orphans {
		views = append(views, sourceView{
			Source:     name,
			Count:      counts[name].Documents,
			Downloaded: counts[name].Downloaded,
		})
	}

	if views == nil {
		views = []sourceView{}
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) stats(c echo.Context) error {
	stats, err := s.svc.Stats.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

func documentID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: document id %q", domain.ErrInvalidInput, c.Param("id"))
	}
	return id, nil
}

func invalidParam(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}
