package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	"github.com/wekeepgrowing/research-agent/internal/usecase"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

const defaultListLimit = 50

type submitRequest struct {
	Query    string `json:"query" validate:"required,min=3"`
	Controls struct {
		Purpose      string `json:"purpose" validate:"omitempty,oneof=brd company_research req_elaboration market_query custom"`
		Depth        string `json:"depth" validate:"omitempty,oneof=quick standard deep"`
		Audience     string `json:"audience" validate:"omitempty,oneof=exec product engineering mixed"`
		Region       string `json:"region"`
		Timeframe    string `json:"timeframe"`
		OutputFormat string `json:"output_format" validate:"omitempty,oneof=markdown json"`
		AsyncMode    bool   `json:"async_mode"`
	} `json:"controls"`
}

// ResearchHandler exposes the research pipeline over HTTP.
type ResearchHandler struct {
	orchestrator *usecase.Orchestrator
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewResearchHandler creates the research API handler.
func NewResearchHandler(orchestrator *usecase.Orchestrator, logger *zap.Logger) *ResearchHandler {
	return &ResearchHandler{
		orchestrator: orchestrator,
		validate:     validator.New(),
		logger:       logger,
	}
}

// Submit accepts a research request. Synchronous runs answer with the full
// report; asynchronous runs answer 202 with the queued task's identity.
func (h *ResearchHandler) Submit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	request := entity.ResearchRequest{
		Query: req.Query,
		Controls: entity.ResearchControls{
			Purpose:      entity.Purpose(req.Controls.Purpose),
			Depth:        entity.Depth(req.Controls.Depth),
			Audience:     entity.Audience(req.Controls.Audience),
			Region:       req.Controls.Region,
			Timeframe:    req.Controls.Timeframe,
			OutputFormat: entity.OutputFormat(req.Controls.OutputFormat),
			AsyncMode:    req.Controls.AsyncMode,
		},
	}

	result, err := h.orchestrator.Submit(c.Request().Context(), request)
	if err != nil {
		apperrors.LogError(h.logger, err, "research submit failed")
		return apperrors.ToHTTPError(err)
	}

	if result.TaskID != "" {
		return c.JSON(http.StatusAccepted, map[string]string{
			"task_id": result.TaskID,
			"status":  string(result.Status),
		})
	}
	return c.JSON(http.StatusOK, result.Report)
}

// GetTask returns the durable task record.
func (h *ResearchHandler) GetTask(c echo.Context) error {
	task, err := h.orchestrator.GetTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// ListTasks returns stored tasks, newest first. Supports a comma-separated
// status filter and a limit query parameter.
func (h *ResearchHandler) ListTasks(c echo.Context) error {
	var statuses []entity.TaskStatus
	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, entity.TaskStatus(strings.TrimSpace(s)))
		}
	}

	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit parameter")
		}
		limit = parsed
	}

	tasks, err := h.orchestrator.ListTasks(c.Request().Context(), statuses, limit)
	if err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
}

// DeleteTask removes a task record.
func (h *ResearchHandler) DeleteTask(c echo.Context) error {
	if err := h.orchestrator.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return apperrors.ToHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Stream delivers a task's progress as server-sent events: a snapshot first,
// then each committed event in order, ending with the terminal event.
func (h *ResearchHandler) Stream(c echo.Context) error {
	ctx := c.Request().Context()

	events, err := h.orchestrator.Subscribe(ctx, c.Param("id"))
	if err != nil {
		return apperrors.ToHTTPError(err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set(echo.HeaderConnection, "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to encode task event",
				zap.String("task_id", ev.TaskID),
				zap.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", ev.Kind, data); err != nil {
			return nil
		}
		resp.Flush()
	}
	return nil
}
