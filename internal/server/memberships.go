package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	"github.com/smallbiznis/gymgate/pkg/db/pagination"
)

func (s *Server) CreateMembership(c *gin.Context) {
	var req membershipdomain.CreateMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	membership, err := s.membershipSvc.Create(c.Request.Context(), membershipdomain.CreateMembershipRequest{
		MemberID:   strings.TrimSpace(req.MemberID),
		FacilityID: strings.TrimSpace(req.FacilityID),
		Plan:       strings.ToLower(strings.TrimSpace(req.Plan)),
		StartAt:    req.StartAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": membership})
}

func (s *Server) ListMemberships(c *gin.Context) {
	var query struct {
		pagination.Pagination
		FacilityID string `form:"facility_id"`
		Status     string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.membershipSvc.List(c.Request.Context(), membershipdomain.ListMembershipRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		FacilityID: strings.TrimSpace(query.FacilityID),
		Status:     strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Memberships, "page_info": resp.PageInfo})
}

func (s *Server) GetMembership(c *gin.Context) {
	view, err := s.membershipSvc.GetByMember(c.Request.Context(), c.Param("memberId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

type freezeMembershipRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) FreezeMembership(c *gin.Context) {
	var req freezeMembershipRequest
	// An empty body freezes with the default reason.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.membershipSvc.Freeze(c.Request.Context(), membershipdomain.FreezeRequest{
		MemberID: c.Param("memberId"),
		Reason:   req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnfreezeMembership(c *gin.Context) {
	resp, err := s.membershipSvc.Unfreeze(c.Request.Context(), c.Param("memberId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
