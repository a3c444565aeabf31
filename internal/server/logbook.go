package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"nebnav/internal/lifecycle"
	"nebnav/internal/models"
)

type logEntryRequest struct {
	Mood int    `json:"mood"`
	Text string `json:"text"`
}

// handleListLogEntries returns journal entries, newest first.
func (s *Server) handleListLogEntries(c *gin.Context) {
	entries, err := s.store.ListLogEntries(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"entries": entries})
}

// handleSaveLogEntry upserts today's journal entry: a second save on the
// same date appends text and overwrites mood.
func (s *Server) handleSaveLogEntry(c *gin.Context) {
	var req logEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err))
		return
	}

	now := time.Now()
	entry, err := s.store.SaveLogEntry(c.Request.Context(), now.Format("2006-01-02"), req.Mood, req.Text, now)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"entry": entry})
}
