package main

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/middlewares"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/models/reports"
	"github.com/mmdatafocus/sellerdash_backend/viewstate"
	"github.com/sirupsen/logrus"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	streamKeepAlive  = 25 * time.Second
	handlersModule   = "server"
	sseSnapshotEvent = "snapshot"
)

type handlers struct {
	registry *viewstate.Registry
	logger   *logrus.Logger
}

func (h *handlers) dashboard(c *gin.Context) *viewstate.DashboardController {
	user, _ := middlewares.CtxUser(c.Request.Context())
	return h.registry.Dashboard(c.Request.Context(), user)
}

func (h *handlers) returns(c *gin.Context) *viewstate.ReturnsController {
	user, _ := middlewares.CtxUser(c.Request.Context())
	return h.registry.Returns(c.Request.Context(), user.Id)
}

func (h *handlers) getDashboard(c *gin.Context) {
	dc := h.dashboard(c)
	if view := c.Query("view"); view != "" {
		c.JSON(http.StatusOK, dc.ApplyView(view))
		return
	}
	c.JSON(http.StatusOK, dc.Snapshot())
}

func (h *handlers) refreshDashboard(c *gin.Context) {
	seq := h.dashboard(c).Refresh(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"seq": seq})
}

type tabRequest struct {
	Tab string `json:"tab" binding:"required"`
}

func (h *handlers) setDashboardTab(c *gin.Context) {
	var req tabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	tab, err := models.ParseTab(req.Tab)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.dashboard(c).SetActiveTab(tab))
}

type quickActionRequest struct {
	Label string `json:"label" binding:"required"`
}

func (h *handlers) quickAction(c *gin.Context) {
	var req quickActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	res, err := h.dashboard(c).QuickAction(req.Label)
	if errors.Is(err, viewstate.ErrUnknownQuickAction) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// dashboardPanel serves one panel of the dashboard snapshot.
func (h *handlers) dashboardPanel(pick func(viewstate.DashboardSnapshot) any) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, pick(h.dashboard(c).Snapshot()))
	}
}

func (h *handlers) getReturns(c *gin.Context) {
	c.JSON(http.StatusOK, h.returns(c).Snapshot())
}

func (h *handlers) loadReturns(c *gin.Context) {
	seq := h.returns(c).Load(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"seq": seq})
}

type searchRequest struct {
	Term string `json:"term"`
}

func (h *handlers) searchReturns(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	c.JSON(http.StatusOK, h.returns(c).SetSearchTerm(req.Term))
}

func (h *handlers) requestInsight(c *gin.Context) {
	rc := h.returns(c)
	if err := rc.RequestInsight(c.Request.Context()); err != nil {
		if errors.Is(err, viewstate.ErrInsightPending) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusAccepted, rc.Snapshot())
}

// streamReturns pushes every returns snapshot as a server-sent event until
// the client goes away.
func (h *handlers) streamReturns(c *gin.Context) {
	ch, unsubscribe := h.returns(c).Subscribe()
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case snap, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(sseSnapshotEvent, snap)
			return true
		case <-ticker.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			return true
		}
	})
}

func (h *handlers) exportReturns(c *gin.Context) {
	snap := h.returns(c).Snapshot()
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", `attachment; filename="returns.xlsx"`)
	c.Status(http.StatusOK)
	if err := reports.WriteReturnsWorkbook(c.Writer, snap.View.FilteredReturns); err != nil {
		config.LogError(h.logger, handlersModule, "exportReturns", "write workbook", nil, err)
		_ = c.Error(err)
	}
}
