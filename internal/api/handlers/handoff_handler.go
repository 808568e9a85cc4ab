package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relevohq/relevo/internal/models"
	"github.com/relevohq/relevo/internal/services"
	"github.com/relevohq/relevo/internal/utils"
)

type HandoffHandler struct {
	svc       services.HandoffService
	dictation services.DictationService // nil when the dictation boundary is not wired
}

func NewHandoffHandler(svc services.HandoffService, dictation services.DictationService) *HandoffHandler {
	return &HandoffHandler{svc: svc, dictation: dictation}
}

type RunHandoffRequest struct {
	SessionID  string             `json:"session_id"`
	DutyType   string             `json:"duty_type"`
	Transcript string             `json:"transcript"`
	Timed      []models.TimedText `json:"timed_results"`
}

func (h *HandoffHandler) Run(c *gin.Context) {
	var req RunHandoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "HandoffHandler.Run", "invalid request body", err))
		return
	}

	// no inline input: fall back to the session's transcribed dictation chunks
	if req.Transcript == "" && len(req.Timed) == 0 && req.SessionID != "" && h.dictation != nil {
		timed, err := h.dictation.TimedTexts(c.Request.Context(), req.SessionID)
		if err != nil {
			writeError(c, err)
			return
		}
		req.Timed = timed
	}

	out, err := h.svc.Run(c.Request.Context(), services.RunInput{
		SessionID:  req.SessionID,
		DutyType:   req.DutyType,
		Transcript: req.Transcript,
		Timed:      req.Timed,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

func (h *HandoffHandler) Save(c *gin.Context) {
	rec, err := h.svc.Save(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *HandoffHandler) List(c *gin.Context) {
	records, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func (h *HandoffHandler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *HandoffHandler) Shred(c *gin.Context) {
	if err := h.svc.Shred(c.Request.Context(), c.Param("session_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "shredded"})
}

func (h *HandoffHandler) PurgeAll(c *gin.Context) {
	report, err := h.svc.PurgeAll(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
