package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
)

func (s *Server) ListGymConfigs(c *gin.Context) {
	configs, err := s.gymConfigSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": configs})
}

func (s *Server) GetGymConfig(c *gin.Context) {
	cfg, err := s.gymConfigSvc.Get(c.Request.Context(), c.Param("facilityId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// UpsertGymConfig takes the facility from the path; a body facility_id is
// ignored.
func (s *Server) UpsertGymConfig(c *gin.Context) {
	var req gymconfigdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.FacilityID = strings.TrimSpace(c.Param("facilityId"))

	cfg, err := s.gymConfigSvc.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cfg})
}
