package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"nebnav/internal/lifecycle"
	"nebnav/internal/models"
)

type createTasksRequest struct {
	Tasks      []models.Draft `json:"tasks"`
	Expedition *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"expedition"`
}

// handleListTasks returns live tasks, optionally filtered by lifecycle state.
func (s *Server) handleListTasks(c *gin.Context) {
	state := models.State(c.Query("status"))

	tasks, err := s.store.ListTasksByState(c.Request.Context(), state)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTasks commits one or more drafts, e.g. the outcome of triage.
// Drafts created under an expedition land in the backlog.
func (s *Server) handleCreateTasks(c *gin.Context) {
	var req createTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err))
		return
	}
	if len(req.Tasks) == 0 {
		s.respondError(c, fmt.Errorf("%w: no tasks supplied", lifecycle.ErrValidation))
		return
	}

	var exp *lifecycle.ExpeditionRef
	if req.Expedition != nil {
		exp = &lifecycle.ExpeditionRef{ID: req.Expedition.ID, Title: req.Expedition.Title}
	}

	tasks, err := s.coord.CreateTasks(c.Request.Context(), req.Tasks, exp)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"tasks": tasks})
}

type brainDumpRequest struct {
	Text string `json:"text"`
}

// handleBrainDump runs the external extraction call and returns drafts for
// triage. On failure no tasks are created and the raw text is echoed back so
// the client can offer a retry.
func (s *Server) handleBrainDump(c *gin.Context) {
	var req brainDumpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err))
		return
	}

	drafts, err := s.coord.BrainDump(c.Request.Context(), req.Text)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("brain dump failed", "error", err.Error())
		c.JSON(status, gin.H{"error": "interference in the comms channel, try again", "text": req.Text})
		return
	}
	if drafts == nil {
		drafts = []models.Draft{}
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": drafts})
}

// handleCompleteTask finishes an active task and places its star.
func (s *Server) handleCompleteTask(c *gin.Context) {
	task, star, err := s.coord.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task, "star": star})
}

// handleDelegateTask moves an active task into the cargo hold backlog.
func (s *Server) handleDelegateTask(c *gin.Context) {
	task, err := s.coord.Delegate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handlePromoteTask pulls a backlog task back onto the flight deck.
func (s *Server) handlePromoteTask(c *gin.Context) {
	task, err := s.coord.Promote(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleRestoreTask recovers an evaporated task from the void.
func (s *Server) handleRestoreTask(c *gin.Context) {
	task, err := s.coord.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

type effortRequest struct {
	EnergyLevel int `json:"energyLevel"`
}

// handleUpdateEffort adjusts a task's effort estimate.
func (s *Server) handleUpdateEffort(c *gin.Context) {
	var req effortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", lifecycle.ErrValidation, err))
		return
	}

	task, err := s.coord.SetEffort(c.Request.Context(), c.Param("id"), req.EnergyLevel)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleArchiveTask removes a task, keeping a deletion record. Repeating the
// call for an already-archived id succeeds.
func (s *Server) handleArchiveTask(c *gin.Context) {
	if err := s.coord.Archive(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "archived"})
}

// handleEvaporate triggers a sweep through the scheduler so it never
// overlaps an in-flight run.
func (s *Server) handleEvaporate(c *gin.Context) {
	moved, skipped, err := s.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"moved": moved, "skipped": skipped})
}
