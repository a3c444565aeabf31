package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nebnav/internal/models"
)

// handleListStars returns every completion marker for the star map. Stars
// are written by the coordinator when a task completes; there is no direct
// create endpoint.
func (s *Server) handleListStars(c *gin.Context) {
	stars, err := s.store.ListStars(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if stars == nil {
		stars = []models.Star{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"stars": stars})
}
