package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/usecase"
)

const (
	defaultListLimit = 20
	// runTimeout bounds a run once started; client disconnects do not cancel it.
	runTimeout = 2 * time.Minute
)

type runResponse struct {
	RunID       string          `json:"runId"`
	Message     string          `json:"message,omitempty"`
	DeliveredTo string          `json:"deliveredTo,omitempty"`
	Score       *float64        `json:"score,omitempty"`
	Failure     *apperr.Failure `json:"failure,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"running": s.runner != nil && s.runner.Busy(),
		"history": s.history != nil,
	})
}

func (s *Server) handleTriggerRun(c *gin.Context) {
	var in domain.RunInput
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), runTimeout)
	defer cancel()

	record, err := s.runner.Trigger(ctx, domain.TriggerAPI, in)
	if errors.Is(err, usecase.ErrRunInFlight) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		failure := apperr.Describe(err)
		c.JSON(http.StatusUnprocessableEntity, runResponse{RunID: record.ID, Failure: &failure})
		return
	}

	c.JSON(http.StatusOK, runResponse{
		RunID:       record.ID,
		Message:     record.Message,
		DeliveredTo: record.DeliveredTo,
		Score:       record.Score,
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history is disabled"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	runs, err := s.history.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history is disabled"})
		return
	}

	run, err := s.history.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		s.logger.Error("get run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}

	c.JSON(http.StatusOK, run)
}
