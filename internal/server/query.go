package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"sourcefinder/internal/retrieval"
	"sourcefinder/internal/session"
	"sourcefinder/models"
	"sourcefinder/provider"
)

type queryFilters struct {
	Sources []string `json:"sources"`
}

type processQueryRequest struct {
	Query     string       `json:"query"`
	SessionID string       `json:"session_id"`
	Filters   queryFilters `json:"filters"`
}

type queryResponse struct {
	Content string                `json:"content"`
	Sources []models.SourceRecord `json:"sources"`
}

type processQueryResponse struct {
	SessionID string                     `json:"session_id"`
	Response  queryResponse              `json:"response"`
	Degraded  []retrieval.DegradedSource `json:"degraded,omitempty"`
}

const noAnswerFallback = "I couldn't generate an answer right now. The sources below were gathered for your question; please try again."

// handleProcessQuery runs the full pipeline for one user turn: resolve the
// session, plan per-source queries, fan out, normalize, dedupe, assemble
// citations, synthesize, and persist both turns.
func (s *Server) handleProcessQuery(c echo.Context) error {
	var req processQueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	kinds, err := models.ParseKinds(req.Filters.Sources)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	sess, err := s.sessions.Resolve(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return err
	}
	history := sess.Messages

	if err := s.sessions.Append(ctx, sess.ID, models.ChatMessage{
		Role:      models.RoleUser,
		Content:   req.Query,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}

	queries := s.llm.PlanQueries(ctx, req.Query, history, kinds)

	retrievalCtx := ctx
	if s.cfg.Retrieval.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		retrievalCtx, cancel = context.WithTimeout(ctx, s.cfg.Retrieval.GlobalTimeout)
		defer cancel()
	}
	result, err := s.orch.Retrieve(retrievalCtx, queries, req.Query, kinds, s.cfg.Retrieval.PerKindLimit)
	if err != nil {
		return err
	}

	recordsByKind := make(map[models.SourceKind][]models.SourceRecord, len(result.ItemsByKind))
	for kind, items := range result.ItemsByKind {
		recordsByKind[kind] = retrieval.Normalize(kind, items)
	}
	evidence, records := retrieval.Assemble(recordsByKind, kinds, s.cfg.Retrieval.EvidenceBudget)
	s.tele.RecordEvidence(len(records))

	outcome := "ok"
	content, err := s.llm.Synthesize(ctx, req.Query, history, evidence)
	if err != nil {
		if !errors.Is(err, provider.ErrModelUnavailable) {
			return err
		}
		// The gathered evidence is still worth returning.
		s.tele.RecordModelFailure()
		content = noAnswerFallback
		outcome = "degraded"
	}
	if len(records) == 0 && outcome == "ok" {
		outcome = "no_sources"
	}
	s.tele.RecordQuery(outcome)

	if err := s.sessions.Append(ctx, sess.ID, models.ChatMessage{
		Role:      models.RoleAssistant,
		Content:   content,
		Sources:   records,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, processQueryResponse{
		SessionID: sess.ID,
		Response:  queryResponse{Content: content, Sources: records},
		Degraded:  result.Degraded,
	})
}
