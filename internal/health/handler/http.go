package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HTTP handles GET /healthz: 200 when every dependency is up, 503 otherwise.
func (s *Server) HTTP(c *gin.Context) {
	report := s.Refresh(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
