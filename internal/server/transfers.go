package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	transferdomain "github.com/smallbiznis/gymgate/internal/transfer/domain"
	"github.com/smallbiznis/gymgate/pkg/db/pagination"
)

func (s *Server) RequestTransfer(c *gin.Context) {
	var req transferdomain.RequestTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.transferSvc.Request(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListTransfers(c *gin.Context) {
	var query transferdomain.ListTransferRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.transferSvc.List(c.Request.Context(), transferdomain.ListTransferRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		Status:       strings.TrimSpace(query.Status),
		FromMemberID: strings.TrimSpace(query.FromMemberID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Transfers, "page_info": resp.PageInfo})
}

func (s *Server) GetTransfer(c *gin.Context) {
	transfer, err := s.transferSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transfer})
}

func (s *Server) ConfirmTransferPayment(c *gin.Context) {
	var req transferdomain.ConfirmPaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	transfer, err := s.transferSvc.ConfirmPayment(c.Request.Context(), c.Param("id"), transferdomain.ConfirmPaymentRequest{
		PaymentMethod:    strings.TrimSpace(req.PaymentMethod),
		PaymentReference: strings.TrimSpace(req.PaymentReference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transfer})
}

// ApproveTransfer records the acting admin as approver.
func (s *Server) ApproveTransfer(c *gin.Context) {
	actorID, _ := actorIDFromContext(c)

	resp, err := s.transferSvc.Approve(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
