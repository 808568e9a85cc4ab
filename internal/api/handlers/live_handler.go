package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relevohq/relevo/internal/services"
	"github.com/relevohq/relevo/internal/utils"
)

type LiveHandler struct {
	svc services.LiveService
}

func NewLiveHandler(svc services.LiveService) *LiveHandler {
	return &LiveHandler{svc: svc}
}

func (h *LiveHandler) View(c *gin.Context) {
	snap, err := h.svc.View(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type RevealRequest struct {
	Field  string `json:"field" binding:"required"`
	HoldMs int64  `json:"hold_ms"`
}

func (h *LiveHandler) Reveal(c *gin.Context) {
	var req RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "LiveHandler.Reveal", "invalid request body", err))
		return
	}

	state, err := h.svc.Reveal(c.Request.Context(), c.Param("session_id"), req.Field,
		time.Duration(req.HoldMs)*time.Millisecond)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"field": req.Field, "state": state})
}

func (h *LiveHandler) Unlock(c *gin.Context) {
	if err := h.svc.Unlock(c.Request.Context(), c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlocked"})
}

func (h *LiveHandler) Purge(c *gin.Context) {
	if err := h.svc.Purge(c.Request.Context(), c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "purged"})
}
