package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relevohq/relevo/internal/audit"
	"github.com/relevohq/relevo/internal/janitor"
)

// MaintenanceHandler exposes the audit export and the on-demand retention
// sweep. Both are read-side operational surfaces; the sweep is idempotent.
type MaintenanceHandler struct {
	audit   *audit.Log
	janitor *janitor.Janitor
}

func NewMaintenanceHandler(a *audit.Log, j *janitor.Janitor) *MaintenanceHandler {
	return &MaintenanceHandler{audit: a, janitor: j}
}

func (h *MaintenanceHandler) AuditEvents(c *gin.Context) {
	events := h.audit.Events(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *MaintenanceHandler) Sweep(c *gin.Context) {
	report := h.janitor.Sweep(c.Request.Context())
	c.JSON(http.StatusOK, report)
}
