package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	facedomain "github.com/smallbiznis/gymgate/internal/face/domain"
)

func (s *Server) EnrollFace(c *gin.Context) {
	var req facedomain.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.faceSvc.Enroll(c.Request.Context(), facedomain.EnrollRequest{
		MemberID:    strings.TrimSpace(req.MemberID),
		FacilityID:  strings.TrimSpace(req.FacilityID),
		ImageBase64: req.ImageBase64,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type revokeFaceRequest struct {
	MemberID   string `json:"member_id"`
	FacilityID string `json:"facility_id"`
}

func (s *Server) RevokeFace(c *gin.Context) {
	var req revokeFaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.faceSvc.Revoke(c.Request.Context(), strings.TrimSpace(req.MemberID), strings.TrimSpace(req.FacilityID)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
