package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/relevohq/relevo/internal/api/handlers"
)

type Deps struct {
	Handoff     *handlers.HandoffHandler
	Live        *handlers.LiveHandler
	Maintenance *handlers.MaintenanceHandler
	WS          *handlers.WSHandler // nil when the dictation boundary is not wired
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	v1 := r.Group("/v1")

	v1.POST("/handoffs/run", d.Handoff.Run)
	v1.GET("/handoffs", d.Handoff.List)
	v1.GET("/handoffs/:session_id", d.Handoff.Get)
	v1.POST("/handoffs/:session_id/save", d.Handoff.Save)
	v1.DELETE("/handoffs/:session_id", d.Handoff.Shred)
	v1.GET("/handoffs/:session_id/view", d.Live.View)
	v1.POST("/purge-all", d.Handoff.PurgeAll)

	v1.POST("/live/:session_id/reveal", d.Live.Reveal)
	v1.POST("/live/:session_id/unlock", d.Live.Unlock)
	v1.POST("/live/:session_id/purge", d.Live.Purge)

	v1.GET("/audit/events", d.Maintenance.AuditEvents)
	v1.POST("/maintenance/sweep", d.Maintenance.Sweep)

	// WebSocket
	if d.WS != nil {
		r.GET("/ws/handoffs/:session_id", d.WS.HandoffWS)
	}
}
