package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// handleEdit ingests one cell edit and runs it through the classifier and
// dispatcher. The response acknowledges receipt; processing outcomes are
// visible in the audit trail.
func (s *Server) handleEdit(c *gin.Context) {
	var req EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	s.engine.HandleEdit(c.Request.Context(), req.ToEvent())
	c.JSON(http.StatusAccepted, StatusResponse{Status: "accepted"})
}

// handleSweep triggers one sweep run on the same code path as the timer.
func (s *Server) handleSweep(c *gin.Context) {
	if err := s.engine.RunSweep(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Status: "completed"})
}

// handleListUsers returns all registry users.
func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.registry.GetUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, UsersResponse{Users: users, Total: len(users)})
}

// handleListAudit returns recent audit events, newest first.
func (s *Server) handleListAudit(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	events, err := s.registry.ListAudit(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, AuditResponse{Events: events, Total: len(events)})
}
