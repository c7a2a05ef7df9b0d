package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	hardwaresyncdomain "github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
)

func (s *Server) SyncHardware(c *gin.Context) {
	var req hardwaresyncdomain.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.hardwareSvc.Sync(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) RemoveHardware(c *gin.Context) {
	var req hardwaresyncdomain.RemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.hardwareSvc.Remove(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
