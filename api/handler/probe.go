package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/stealthshot/models"
)

// Probe returns a handler for POST /api/v1/probe.
//
// The report is returned even when the fetch fails, with a 502 status.
func Probe(rn Researcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ProbeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		report := rn.Probe(c.Request.Context(), req.URL, req.Headers)
		status := http.StatusOK
		if !report.Success {
			status = http.StatusBadGateway
		}
		c.JSON(status, report)
	}
}
