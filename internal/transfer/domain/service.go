package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/gymgate/pkg/db/pagination"
)

type RequestTransferRequest struct {
	FromMemberID  string            `json:"from_member_id"`
	ToMemberID    string            `json:"to_member_id"`
	ToMember      *RecipientDetails `json:"to_member_details"`
	PaymentMethod string            `json:"payment_method"`
}

type RequestTransferResponse struct {
	TransferID  string `json:"transfer_id"`
	FeeRequired int64  `json:"fee_required"`
	Currency    string `json:"currency"`
	Status      Status `json:"status"`
}

type ConfirmPaymentRequest struct {
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
}

type ApproveResponse struct {
	TransferID      string `json:"transfer_id"`
	NewMembershipID string `json:"new_membership_id"`
	ToMemberID      string `json:"to_member_id"`
}

type ListTransferRequest struct {
	pagination.Pagination
	Status       string `form:"status"`
	FromMemberID string `form:"from_member_id"`
}

type ListTransferResponse struct {
	pagination.PageInfo
	Transfers []Transfer `json:"transfers"`
}

type Service interface {
	Request(ctx context.Context, req RequestTransferRequest) (*RequestTransferResponse, error)
	ConfirmPayment(ctx context.Context, id string, req ConfirmPaymentRequest) (*Transfer, error)
	// Approve completes a paid transfer. Approving a completed transfer
	// returns the original outcome.
	Approve(ctx context.Context, id string, approverID string) (*ApproveResponse, error)
	Get(ctx context.Context, id string) (*Transfer, error)
	List(ctx context.Context, req ListTransferRequest) (ListTransferResponse, error)
}

var (
	ErrInvalidID          = errors.New("invalid_transfer_id")
	ErrInvalidMemberID    = errors.New("invalid_member_id")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrRecipientRequired  = errors.New("recipient_required")
	ErrRecipientAmbiguous = errors.New("recipient_ambiguous")
	ErrSelfTransfer       = errors.New("self_transfer")
	ErrRecipientNotFound  = errors.New("recipient_not_found")
	ErrTransferPending    = errors.New("transfer_already_pending")
	ErrNotFound           = errors.New("transfer_not_found")
	ErrFeeNotPaid         = errors.New("fee_not_paid")
	ErrApproverRequired   = errors.New("approver_required")
	ErrInvalidState       = errors.New("invalid_transfer_state")
	ErrApprovalInProgress = errors.New("approval_in_progress")
)
