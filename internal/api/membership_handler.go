package api

import (
	"errors"
	"net/http"

	"github.com/ignite/membership-api/internal/membership"
	"github.com/ignite/membership-api/internal/pkg/httputil"
	"github.com/ignite/membership-api/internal/pkg/logger"
	"github.com/ignite/membership-api/internal/upload"
)

const (
	membershipSuccessMessage = "Membership processed successfully"
	customerFailureMessage   = "Failed to send confirmation email"
)

// MembershipResult is the data block of a successful purchase response.
type MembershipResult struct {
	Plan          string `json:"plan"`
	Price         string `json:"price"`
	EmailSent     bool   `json:"emailSent"`
	AdminNotified bool   `json:"adminNotified"`
}

// CreateMembership handles POST /api/membership. Upload problems are
// reported first, then validation, then the customer email must succeed.
func (h *Handlers) CreateMembership(w http.ResponseWriter, r *http.Request) {
	sub, err := h.parser.Parse(w, r)
	if err != nil {
		var upErr *upload.Error
		if errors.As(err, &upErr) {
			logger.Warn("membership upload rejected", "error", err)
			httputil.BadRequest(w, upErr.Message())
			return
		}
		httputil.BadRequest(w, (&upload.Error{}).Message())
		return
	}

	if err := h.validator.Validate(sub); err != nil {
		var vErr *membership.ValidationError
		if errors.As(err, &vErr) {
			httputil.BadRequest(w, vErr.Reason.Message())
			return
		}
		httputil.InternalError(w, err, "Internal server error")
		return
	}

	details := membership.Lookup(sub.Plan)
	outcome, err := h.dispatcher.Dispatch(r.Context(), sub, details)
	if err != nil {
		httputil.InternalError(w, err, customerFailureMessage)
		return
	}

	logger.Info("membership transaction processed",
		"email", sub.Email,
		"plan", details.DisplayName,
		"payment_method", sub.PaymentMethod,
		"transaction_id", sub.TransactionID,
		"has_image", sub.ProofImage != nil,
		"customer_sent", outcome.CustomerSent,
		"admin_sent", outcome.AdminSent,
		"reference", outcome.Reference,
	)

	httputil.OK(w, membershipSuccessMessage, MembershipResult{
		Plan:          details.DisplayName,
		Price:         details.Price,
		EmailSent:     outcome.CustomerSent,
		AdminNotified: outcome.AdminSent,
	})
}
