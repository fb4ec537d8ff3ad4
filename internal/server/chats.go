package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"sourcefinder/internal/session"
	"sourcefinder/models"
)

const defaultSearchLimit = 20

type chatsResponse struct {
	Chats []session.Summary `json:"chats"`
}

// handleListChats returns every session, most recently active first.
func (s *Server) handleListChats(c echo.Context) error {
	chats, err := s.sessions.List(c.Request().Context())
	if err != nil {
		return err
	}
	if chats == nil {
		chats = []session.Summary{}
	}
	return c.JSON(http.StatusOK, chatsResponse{Chats: chats})
}

type refreshChatsRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

// handleRefreshChats starts a fresh current session when refresh=true,
// appends any messages supplied in the body verbatim, and returns the
// updated listing.
func (s *Server) handleRefreshChats(c echo.Context) error {
	ctx := c.Request().Context()
	var req refreshChatsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if strings.EqualFold(c.QueryParam("refresh"), "true") {
		if _, err := s.sessions.Create(ctx); err != nil {
			return err
		}
	}
	if len(req.Messages) > 0 {
		sess, err := s.sessions.Resolve(ctx, "")
		if err != nil {
			return err
		}
		for _, msg := range req.Messages {
			if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
				return echo.NewHTTPError(http.StatusBadRequest, "message role must be user or assistant")
			}
			if err := s.sessions.Append(ctx, sess.ID, msg); err != nil {
				return err
			}
		}
	}
	return s.handleListChats(c)
}

// handleSources returns the sources a session has accumulated. With q it
// runs a relevance search over them; without q it returns the full deduped
// list. No session resolves to an empty list, not an error.
func (s *Server) handleSources(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.QueryParam("session_id")
	if id == "" {
		current, err := s.sessions.Current(ctx)
		if err != nil {
			return err
		}
		if current == "" {
			return c.JSON(http.StatusOK, map[string][]models.SourceRecord{"sources": {}})
		}
		id = current
	}

	var (
		records []models.SourceRecord
		err     error
	)
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		records, err = s.sessions.Search(ctx, id, q, defaultSearchLimit)
	} else {
		records, err = s.sessions.Sources(ctx, id)
	}
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusOK, map[string][]models.SourceRecord{"sources": {}})
		}
		return err
	}
	if records == nil {
		records = []models.SourceRecord{}
	}
	return c.JSON(http.StatusOK, map[string][]models.SourceRecord{"sources": records})
}

// handleCurrentSession reports the active session, if any.
func (s *Server) handleCurrentSession(c echo.Context) error {
	ctx := c.Request().Context()
	current, err := s.sessions.Current(ctx)
	if err != nil {
		return err
	}
	if current == "" {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"session_id": nil,
			"message":    "No active session",
		})
	}
	sess, err := s.sessions.Get(ctx, current)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"session_id": nil,
				"message":    "No active session",
			})
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sess.ID,
		"title":      sess.Title,
		"updated_at": sess.UpdatedAt,
	})
}
