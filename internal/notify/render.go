package notify

import (
	"time"

	"github.com/ignite/membership-api/internal/membership"
)

const (
	customerDateLayout = "Monday, January 2, 2006"
	adminDateLayout    = "Monday, January 2, 2006 at 03:04 PM"
)

// Renderer produces the HTML bodies of the membership emails. Rendering has
// no side effects.
type Renderer struct {
	templates       *TemplateService
	brandName       string
	portalURL       string
	maskGiftCardPIN bool
	location        *time.Location
}

// RendererOptions configures a Renderer.
type RendererOptions struct {
	BrandName       string
	PortalURL       string
	MaskGiftCardPIN bool
	Location        *time.Location
}

// NewRenderer creates a Renderer backed by the embedded templates.
func NewRenderer(templates *TemplateService, opts RendererOptions) *Renderer {
	if templates == nil {
		templates = NewTemplateService()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		templates:       templates,
		brandName:       opts.BrandName,
		portalURL:       opts.PortalURL,
		maskGiftCardPIN: opts.MaskGiftCardPIN,
		location:        loc,
	}
}

// Customer renders the purchaser's confirmation email.
func (r *Renderer) Customer(sub *membership.Submission, details membership.PlanDetails, now time.Time) (string, error) {
	local := now.In(r.location)
	return r.templates.Render(TemplateCustomer, map[string]interface{}{
		"brand_name":      r.brandName,
		"portal_url":      r.portalURL,
		"accent_color":    details.AccentColor,
		"plan_name":       details.DisplayName,
		"price":           details.Price,
		"payment_method":  sub.PaymentMethod,
		"transaction_id":  sub.TransactionID,
		"activation_date": local.Format(customerDateLayout),
		"year":            local.Year(),
	})
}

// Admin renders the internal purchase alert. The gift-card section is only
// present for gift-card payments.
func (r *Renderer) Admin(sub *membership.Submission, details membership.PlanDetails, reference string, now time.Time) (string, error) {
	return r.templates.Render(TemplateAdmin, map[string]interface{}{
		"brand_name":     r.brandName,
		"accent_color":   details.AccentColor,
		"plan_name":      details.DisplayName,
		"price":          details.Price,
		"customer_email": sub.Email,
		"payment_method": sub.PaymentMethod,
		"transaction_id": sub.TransactionID,
		"purchased_at":   now.In(r.location).Format(adminDateLayout),
		"is_gift_card":   sub.IsGiftCard(),
		"gift_card_pin":  DisplayPIN(sub.GiftCardPIN, r.maskGiftCardPIN),
		"image_attached": sub.ProofImage != nil,
		"reference":      reference,
	})
}

// DisplayPIN formats a gift card PIN for the admin email. An empty PIN reads
// "N/A". With mask set, the first and last two digits stay visible and PINs
// shorter than six digits are hidden entirely.
func DisplayPIN(pin string, mask bool) string {
	switch {
	case pin == "":
		return "N/A"
	case !mask:
		return pin
	case len(pin) < 6:
		return "****"
	default:
		return pin[:2] + "****" + pin[len(pin)-2:]
	}
}
