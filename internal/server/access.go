package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	accessdomain "github.com/smallbiznis/gymgate/internal/access/domain"
	"github.com/smallbiznis/gymgate/internal/authorization"
	gatedomain "github.com/smallbiznis/gymgate/internal/gateprovider/domain"
	obscontext "github.com/smallbiznis/gymgate/internal/observability/context"
	"github.com/smallbiznis/gymgate/pkg/db/pagination"
)

// ValidateAccess answers gate devices with the bare decision object.
func (s *Server) ValidateAccess(c *gin.Context) {
	var req accessdomain.EvaluateRequest
	// The rate limiter may already have consumed the body.
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	tagAccessRequest(c, req)

	decision, err := s.accessSvc.Evaluate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// tagAccessRequest exposes the facility and gate to the request logger.
func tagAccessRequest(c *gin.Context, req accessdomain.EvaluateRequest) {
	gateID := strings.TrimSpace(req.GateID)
	if gateID == "" {
		gateID = accessdomain.DefaultGateID
	}
	c.Set("gate_id", gateID)
	c.Request = c.Request.WithContext(obscontext.WithFacilityID(c.Request.Context(), req.FacilityID))
}

type issueQRTokenRequest struct {
	MemberID string `json:"member_id"`
}

type issueQRTokenResponse struct {
	QRCode    string    `json:"qr_code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueQRToken lets members mint their own token; anyone else needs the
// qr_issue capability.
func (s *Server) IssueQRToken(c *gin.Context) {
	var req issueQRTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		AbortWithError(c, newValidationError("member_id", "invalid_member_id", "member_id is required"))
		return
	}

	actorID, _ := actorIDFromContext(c)
	if actorID != memberID {
		if err := s.authzSvc.Authorize(c.Request.Context(), actorID, authorization.ObjectAccess, authorization.ActionQRIssue); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	member, err := s.memberSvc.GetByID(c.Request.Context(), memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": issueQRTokenResponse{
		QRCode:    s.qrIssuer.Issue(member.ID.String()),
		ExpiresAt: s.qrIssuer.ExpiresAt(),
	}})
}

func (s *Server) ListAccessLogs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		FacilityID string `form:"facility_id"`
		MemberID   string `form:"member_id"`
		Result     string `form:"result"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.accessSvc.ListLogs(c.Request.Context(), accessdomain.ListLogsRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		FacilityID: strings.TrimSpace(query.FacilityID),
		MemberID:   strings.TrimSpace(query.MemberID),
		Result:     strings.TrimSpace(query.Result),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Logs, "page_info": resp.PageInfo})
}

// CheckAccess reports the vendor's view of a member at a gate. A vendor
// refusal is a diagnosis, not a failure.
func (s *Server) CheckAccess(c *gin.Context) {
	var req accessdomain.CheckAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.accessSvc.CheckAccess(c.Request.Context(), req)
	if err != nil && (result == nil || !errors.Is(err, gatedomain.ErrActuationFailed)) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
