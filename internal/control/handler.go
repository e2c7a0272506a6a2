// Package control exposes the resident controller over HTTP on a unix socket.
// The tray actions, the terminal surface and one-shot CLI commands are all
// clients of this API.
package control

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
)

// Controller is the subset of usecase.Controller served by the API.
type Controller interface {
	AddDomain(ctx context.Context, name string) (bool, error)
	StartTimer(ctx context.Context, minutes string) error
	Show(ctx context.Context) error
	Hide(ctx context.Context) error
	Quit(ctx context.Context) error
	History(limit int) ([]domain.Session, error)
}

// Status describes the resident process.
type Status struct {
	PID        int    `json:"pid"`
	AppVersion string `json:"app_version"`
	HostsFile  string `json:"hosts_file"`
	ConfigFile string `json:"config_file"`
}

type addDomainsRequest struct {
	Domains []string `json:"domains"`
}

type addDomainsResponse struct {
	Added []string        `json:"added"`
	State domain.Snapshot `json:"state"`
	Error string          `json:"error,omitempty"`
}

type startTimerRequest struct {
	// Minutes defaults to the saved duration when empty.
	Minutes string `json:"minutes"`
}

// Handler serves control API requests.
type Handler struct {
	ctrl   Controller
	board  *Board
	status Status
	logger *zap.Logger
}

// NewHandler creates a handler.
func NewHandler(ctrl Controller, board *Board, status Status, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ctrl: ctrl, board: board, status: status, logger: logger}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "resident": h.status})
}

func (h *Handler) GetState(c *gin.Context) {
	state, seq := h.board.Latest()
	c.JSON(http.StatusOK, gin.H{"state": state, "seq": seq})
}

func (h *Handler) AddDomains(c *gin.Context) {
	var req addDomainsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, badRequest("invalid_json", "invalid request body"))
		return
	}
	if len(req.Domains) == 0 {
		writeError(c, badRequest("missing_domains", "at least one domain is required"))
		return
	}

	resp := addDomainsResponse{Added: []string{}}
	for _, d := range req.Domains {
		added, err := h.ctrl.AddDomain(c.Request.Context(), d)
		if errors.Is(err, usecase.ErrStopped) {
			writeError(c, unavailable("resident is shutting down"))
			return
		}
		if added {
			resp.Added = append(resp.Added, d)
		}
		if err != nil {
			// The domain is saved; only the hosts write failed.
			resp.Error = err.Error()
		}
	}
	resp.State, _ = h.board.Latest()
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) StartTimer(c *gin.Context) {
	var req startTimerRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, badRequest("invalid_json", "invalid request body"))
			return
		}
	}
	if req.Minutes == "" {
		state, _ := h.board.Latest()
		req.Minutes = state.DurationMinutes
	}

	err := h.ctrl.StartTimer(c.Request.Context(), req.Minutes)
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrInvalidDuration):
		writeError(c, badRequest("invalid_duration", err.Error()))
		return
	case errors.Is(err, usecase.ErrTimerRunning):
		state, _ := h.board.Latest()
		writeError(c, conflict("timer_running", err.Error(), gin.H{"state": state}))
		return
	case errors.Is(err, usecase.ErrStopped):
		writeError(c, unavailable("resident is shutting down"))
		return
	default:
		h.logger.Warn("start timer failed", zap.Error(err))
		writeError(c, internalError(err.Error()))
		return
	}

	state, _ := h.board.Latest()
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func (h *Handler) Show(c *gin.Context) {
	h.simple(c, h.ctrl.Show)
}

func (h *Handler) Hide(c *gin.Context) {
	h.simple(c, h.ctrl.Hide)
}

func (h *Handler) Quit(c *gin.Context) {
	err := h.ctrl.Quit(c.Request.Context())
	if errors.Is(err, usecase.ErrStopped) {
		writeError(c, unavailable("resident already stopped"))
		return
	}
	state, _ := h.board.Latest()
	body := gin.H{"state": state}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) GetHistory(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, badRequest("invalid_limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	sessions, err := h.ctrl.History(limit)
	if errors.Is(err, usecase.ErrNoHistory) {
		writeError(c, unavailable(err.Error()))
		return
	}
	if err != nil {
		writeError(c, internalError(err.Error()))
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) simple(c *gin.Context, fn func(context.Context) error) {
	if err := fn(c.Request.Context()); err != nil {
		if errors.Is(err, usecase.ErrStopped) {
			writeError(c, unavailable("resident is shutting down"))
			return
		}
		writeError(c, internalError(err.Error()))
		return
	}
	state, _ := h.board.Latest()
	c.JSON(http.StatusOK, gin.H{"state": state})
}

func writeError(c *gin.Context, apiErr *APIError) {
	if apiErr == nil {
		apiErr = internalError("")
	}
	body := gin.H{
		"code":    apiErr.Code,
		"message": apiErr.Message,
	}
	if apiErr.Details != nil {
		body["details"] = apiErr.Details
	}
	c.JSON(apiErr.Status, gin.H{"error": body})
}
